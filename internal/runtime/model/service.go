// Package model holds the records exchanged with the marketplace: the service
// snapshots received from the bus and the comment events sent back to it.
package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/drblury/servicemirror/internal/runtime/jsoncodec"
)

// EventType classifies the change carried by a service message.
type EventType string

const (
	EventCreated EventType = "CREATED"
	EventUpdated EventType = "UPDATED"
	EventDeleted EventType = "DELETED"
	EventUnknown EventType = "UNKNOWN"
)

// Fallback values used when presenting a service with missing attributes.
const (
	DefaultCategoryName    = "General"
	DefaultDescription     = "No description available"
	DefaultPrimaryImageURL = "https://via.placeholder.com/300x200?text=No+Image"
	DefaultUserID          = "unknown"
)

// ParseEventType matches raw against the known event types ignoring case.
func ParseEventType(raw string) EventType {
	for _, known := range []EventType{EventCreated, EventUpdated, EventDeleted} {
		if strings.EqualFold(raw, string(known)) {
			return known
		}
	}
	return EventUnknown
}

// ServiceRecord is the latest known state of a marketplace service as decoded
// from the bus. RequestID and ErrorMessage only matter while a reply is being
// correlated and are stripped before the record is stored.
type ServiceRecord struct {
	RequestID    string `json:"requestId,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	// ServiceID and ID both may carry the identity. Producers are inconsistent
	// about which one they fill, see Identity.
	ServiceID *string    `json:"serviceId,omitempty"`
	ID        *uuid.UUID `json:"id,omitempty"`

	Title           string           `json:"title"`
	Description     *string          `json:"description,omitempty"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	AverageRating   *float64         `json:"averageRating,omitempty"`
	Event           string           `json:"eventType,omitempty"`
	Timestamp       string           `json:"timestamp,omitempty"`
	UserID          string           `json:"userId,omitempty"`
	CategoryID      *uuid.UUID       `json:"categoryId,omitempty"`
	CategoryName    string           `json:"categoryName,omitempty"`
	StatusID        *uuid.UUID       `json:"statusId,omitempty"`
	StatusName      string           `json:"statusName,omitempty"`
	CountryID       *uuid.UUID       `json:"countryId,omitempty"`
	CountryName     string           `json:"countryName,omitempty"`
	CountryCode     string           `json:"countryCode,omitempty"`
	PrimaryImageURL string           `json:"primaryImageUrl,omitempty"`
	IsActive        *bool            `json:"isActive,omitempty"`
}

// UnmarshalJSON decodes a service message. Producers send "" for absent UUID
// fields, which decodes to nil instead of failing the whole record. A
// non-blank value that is not a UUID is still an error.
func (r *ServiceRecord) UnmarshalJSON(data []byte) error {
	type plain ServiceRecord
	var wire struct {
		plain
		ID         *string `json:"id,omitempty"`
		CategoryID *string `json:"categoryId,omitempty"`
		StatusID   *string `json:"statusId,omitempty"`
		CountryID  *string `json:"countryId,omitempty"`
	}
	if err := jsoncodec.Unmarshal(data, &wire); err != nil {
		return err
	}

	out := ServiceRecord(wire.plain)
	fields := []struct {
		name string
		raw  *string
		dst  **uuid.UUID
	}{
		{"id", wire.ID, &out.ID},
		{"categoryId", wire.CategoryID, &out.CategoryID},
		{"statusId", wire.StatusID, &out.StatusID},
		{"countryId", wire.CountryID, &out.CountryID},
	}
	for _, f := range fields {
		id, err := parseOptionalUUID(f.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", f.name, err)
		}
		*f.dst = id
	}
	*r = out
	return nil
}

func parseOptionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Identity resolves the service identity. A serviceId that parses as a UUID
// wins; otherwise the structured id is used. The nil UUID counts as absent.
func (r ServiceRecord) Identity() (uuid.UUID, bool) {
	if r.ServiceID != nil {
		if id, err := uuid.Parse(*r.ServiceID); err == nil && id != uuid.Nil {
			return id, true
		}
	}
	if r.ID != nil && *r.ID != uuid.Nil {
		return *r.ID, true
	}
	return uuid.Nil, false
}

// IdentityString returns the raw identity as received, preferring serviceId.
func (r ServiceRecord) IdentityString() string {
	if r.ServiceID != nil {
		return *r.ServiceID
	}
	if r.ID != nil {
		return r.ID.String()
	}
	return ""
}

// Name is the display name of the service.
func (r ServiceRecord) Name() string {
	return r.Title
}

// EventType reports the change type tag of the message.
func (r ServiceRecord) EventType() EventType {
	return ParseEventType(r.Event)
}

// Available reports whether comments may be filed against the service. Only an
// explicit isActive=false marks a service unavailable.
func (r ServiceRecord) Available() bool {
	return r.IsActive == nil || *r.IsActive
}

// ValidForPresentation reports whether the record carries a non-blank
// identity, a non-blank name and a non-negative price.
func (r ServiceRecord) ValidForPresentation() bool {
	hasID := (r.ServiceID != nil && strings.TrimSpace(*r.ServiceID) != "") || r.ID != nil
	if !hasID || strings.TrimSpace(r.Title) == "" {
		return false
	}
	return r.Price != nil && !r.Price.IsNegative()
}

// Correlated reports whether the record answers a pending request.
func (r ServiceRecord) Correlated() bool {
	return strings.TrimSpace(r.RequestID) != ""
}

// SafeCategoryName falls back to DefaultCategoryName for a blank category.
func (r ServiceRecord) SafeCategoryName() string {
	if strings.TrimSpace(r.CategoryName) == "" {
		return DefaultCategoryName
	}
	return r.CategoryName
}

// SafeDescription falls back to DefaultDescription when none was sent.
func (r ServiceRecord) SafeDescription() string {
	if r.Description == nil {
		return DefaultDescription
	}
	return *r.Description
}

// SafeAverageRating returns zero for an unrated service.
func (r ServiceRecord) SafeAverageRating() float64 {
	if r.AverageRating == nil {
		return 0
	}
	return *r.AverageRating
}

// SafePrimaryImageURL falls back to DefaultPrimaryImageURL.
func (r ServiceRecord) SafePrimaryImageURL() string {
	if r.PrimaryImageURL == "" {
		return DefaultPrimaryImageURL
	}
	return r.PrimaryImageURL
}

// SafeUserID falls back to DefaultUserID.
func (r ServiceRecord) SafeUserID() string {
	if r.UserID == "" {
		return DefaultUserID
	}
	return r.UserID
}

// Clone returns a deep copy so the caller never shares pointers with the view.
func (r ServiceRecord) Clone() ServiceRecord {
	out := r
	out.ServiceID = clonePtr(r.ServiceID)
	out.ID = clonePtr(r.ID)
	out.Description = clonePtr(r.Description)
	out.Price = clonePtr(r.Price)
	out.AverageRating = clonePtr(r.AverageRating)
	out.CategoryID = clonePtr(r.CategoryID)
	out.StatusID = clonePtr(r.StatusID)
	out.CountryID = clonePtr(r.CountryID)
	out.IsActive = clonePtr(r.IsActive)
	return out
}

// Stripped returns a deep copy without the correlation fields.
func (r ServiceRecord) Stripped() ServiceRecord {
	out := r.Clone()
	out.RequestID = ""
	out.ErrorMessage = ""
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
