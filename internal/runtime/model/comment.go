package model

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zeebo/xxh3"
)

// ShadowKeyVersion identifies the derivation implemented by ShadowKey. Bump it
// (and migrate stored keys) if the derivation ever changes.
const ShadowKeyVersion = 1

// ShadowKey derives the numeric key comments are filed under for a service.
// It is the xxh3-64 hash of the 16 raw UUID bytes with the sign bit cleared,
// stable across processes, restarts and platforms.
func ShadowKey(id uuid.UUID) int64 {
	return int64(xxh3.Hash(id[:]) & math.MaxInt64)
}

// CommentDraft is the comment the collaborator intends to record.
type CommentDraft struct {
	ServiceID uuid.UUID
	ProfileID int64
	Rating    decimal.Decimal
	Content   string
}

// Rating is a comment score. It is written as a bare JSON number and accepts
// either a number or a quoted string when read.
type Rating struct {
	decimal.Decimal
}

func (r Rating) MarshalJSON() ([]byte, error) {
	return []byte(r.Decimal.String()), nil
}

func (r *Rating) UnmarshalJSON(data []byte) error {
	return r.Decimal.UnmarshalJSON(data)
}

// CommentEvent is published once a comment has been recorded.
type CommentEvent struct {
	CommentID     int64           `json:"commentId"`
	ServiceUUID   string          `json:"serviceUuid"`
	ServiceIDHash int64           `json:"serviceIdHash"`
	ProfileID     int64           `json:"profileId"`
	Rating        Rating          `json:"rating"`
	Content       string          `json:"content"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NewCommentEvent builds the outbound event for a stored comment, deriving the
// shadow key from the service identity.
func NewCommentEvent(commentID int64, serviceID uuid.UUID, draft CommentDraft, createdAt time.Time) CommentEvent {
	return CommentEvent{
		CommentID:     commentID,
		ServiceUUID:   serviceID.String(),
		ServiceIDHash: ShadowKey(serviceID),
		ProfileID:     draft.ProfileID,
		Rating:        Rating{draft.Rating},
		Content:       draft.Content,
		CreatedAt:     createdAt,
	}
}
