package runtime

import (
	"github.com/google/uuid"

	errspkg "github.com/drblury/servicemirror/internal/runtime/errors"
	"github.com/drblury/servicemirror/internal/runtime/model"
)

// Services lists every service currently held in the view.
func (s *Service) Services() []model.ServiceRecord {
	return s.view.List()
}

// LookupService returns the latest record for id.
func (s *Service) LookupService(id uuid.UUID) (model.ServiceRecord, bool) {
	return s.view.Get(id)
}

// HasService reports whether id is known.
func (s *Service) HasService(id uuid.UUID) bool {
	return s.view.Exists(id)
}

// ServiceCount returns the number of distinct services in the view.
func (s *Service) ServiceCount() int {
	return s.view.Count()
}

// ClearServices empties the view.
func (s *Service) ClearServices() {
	s.view.Clear()
}

// IsServiceAvailable reports whether id is known and not marked inactive.
func (s *Service) IsServiceAvailable(id uuid.UUID) bool {
	record, ok := s.view.Get(id)
	return ok && record.Available()
}

// ValidateCommentTarget checks that draft may be filed against the service id
// and returns the current record. Failures are *errors.DomainError values
// matching ErrServiceMismatch, ErrServiceNotFound or ErrServiceUnavailable.
func (s *Service) ValidateCommentTarget(id uuid.UUID, draft model.CommentDraft) (model.ServiceRecord, error) {
	if draft.ServiceID != uuid.Nil && draft.ServiceID != id {
		return model.ServiceRecord{}, errspkg.NewDomainError(errspkg.ErrServiceMismatch, draft.ServiceID.String())
	}

	record, ok := s.view.Get(id)
	if !ok {
		return model.ServiceRecord{}, errspkg.NewDomainError(errspkg.ErrServiceNotFound, id.String())
	}
	if !record.Available() {
		return record, errspkg.NewDomainError(errspkg.ErrServiceUnavailable, id.String())
	}
	return record, nil
}
