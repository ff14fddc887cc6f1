package runtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	errspkg "github.com/drblury/servicemirror/internal/runtime/errors"
	idspkg "github.com/drblury/servicemirror/internal/runtime/ids"
	loggingpkg "github.com/drblury/servicemirror/internal/runtime/logging"
	metadatapkg "github.com/drblury/servicemirror/internal/runtime/metadata"
	"github.com/drblury/servicemirror/internal/runtime/model"
)

// ServiceRequest asks the upstream to republish a service. The reply arrives
// on the service topic carrying the same requestId.
type ServiceRequest struct {
	RequestID string `json:"requestId"`
	ServiceID string `json:"serviceId"`
}

// RequestService asks the upstream for the current state of id and waits for
// the correlated reply, at most Config.CorrelationTimeout. A reply carrying an
// errorMessage is returned as *errors.RemoteError. The view is updated by the
// ingest pipeline before the reply is handed back.
func (s *Service) RequestService(ctx context.Context, id uuid.UUID) (model.ServiceRecord, error) {
	if id == uuid.Nil {
		return model.ServiceRecord{}, errspkg.ErrIdentityRequired
	}

	token := idspkg.CreateULID()
	handle, err := s.bridge.Register(token)
	if err != nil {
		return model.ServiceRecord{}, err
	}

	req := ServiceRequest{RequestID: token, ServiceID: id.String()}
	md := metadatapkg.New(
		metadatapkg.KeyEventSchema, metadatapkg.SchemaServiceRequest,
		metadatapkg.KeyCorrelationID, token,
		metadatapkg.KeyRequestID, token,
		metadatapkg.KeyServiceUUID, req.ServiceID,
	)
	if err := PublishJSON(ctx, s.publisher, s.Conf.ServiceRequestTopic, req, md); err != nil {
		s.bridge.Cancel(handle)
		return model.ServiceRecord{}, fmt.Errorf("publish service request: %w", err)
	}
	s.Logger.Debug("Requested service", loggingpkg.LogFields{"request_id": token, "service_id": req.ServiceID})

	reply, err := s.bridge.Await(ctx, handle, s.Conf.CorrelationTimeout)
	if err != nil {
		return model.ServiceRecord{}, err
	}
	if reply.ErrorMessage != "" {
		return model.ServiceRecord{}, &errspkg.RemoteError{Token: token, Message: reply.ErrorMessage}
	}
	return reply.Stripped(), nil
}
