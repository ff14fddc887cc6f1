package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/servicemirror/internal/runtime/errors"
	"github.com/drblury/servicemirror/internal/runtime/jsoncodec"
	metadatapkg "github.com/drblury/servicemirror/internal/runtime/metadata"
	"github.com/drblury/servicemirror/internal/runtime/model"
)

type publisherTestContextKey struct{}

func TestNewMessageFromJSON(t *testing.T) {
	_, err := NewMessageFromJSON(nil, nil)
	assert.ErrorIs(t, err, errspkg.ErrEventPayloadRequired)

	msg, err := NewMessageFromJSON(map[string]string{"a": "b"}, metadatapkg.Metadata{"origin": "unit"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"b"}`, string(msg.Payload))
	assert.Equal(t, "unit", msg.Metadata.Get("origin"))
	assert.Equal(t, metadatapkg.ContentTypeJSON, msg.Metadata.Get(metadatapkg.KeyContentType))
	assert.NotEmpty(t, msg.UUID)
}

type failingPayload struct{}

func (failingPayload) MarshalJSON() ([]byte, error) { return nil, errors.New("nope") }

func TestNewMessageFromJSONMarshalError(t *testing.T) {
	_, err := NewMessageFromJSON(failingPayload{}, nil)
	assert.ErrorContains(t, err, "failed to marshal event payload")
}

func TestPublishJSONValidations(t *testing.T) {
	assert.ErrorIs(t, PublishJSON(context.Background(), nil, "topic", struct{}{}, nil), errspkg.ErrPublisherRequired)
	assert.ErrorIs(t, PublishJSON(context.Background(), &testPublisher{}, "", struct{}{}, nil), errspkg.ErrTopicRequired)

	var svc *Service
	assert.Error(t, svc.PublishJSON(context.Background(), "topic", struct{}{}, nil))
}

func TestPublishJSONKeepsContext(t *testing.T) {
	pub := &testPublisher{}
	ctx := context.WithValue(context.Background(), publisherTestContextKey{}, "value")

	require.NoError(t, PublishJSON(ctx, pub, "topic", struct{}{}, nil))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "value", msgs[0].Context().Value(publisherTestContextKey{}))
}

func sampleCommentEvent() model.CommentEvent {
	serviceID := uuid.New()
	draft := model.CommentDraft{ServiceID: serviceID, ProfileID: 7, Rating: decimal.RequireFromString("4.5"), Content: "great"}
	return model.NewCommentEvent(99, serviceID, draft, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
}

func TestCommentPublisherPublishes(t *testing.T) {
	svc, pub := newTestService(t)
	event := sampleCommentEvent()

	svc.PublishComment(context.Background(), event)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{svc.Conf.CommentTopic}, pub.Topics())

	msg := msgs[0]
	assert.Equal(t, metadatapkg.SchemaCommentCreated, msg.Metadata.Get(metadatapkg.KeyEventSchema))
	assert.Equal(t, event.ServiceUUID, msg.Metadata.Get(metadatapkg.KeyServiceUUID))
	assert.NotEmpty(t, msg.Metadata.Get(metadatapkg.KeyCorrelationID))

	var decoded model.CommentEvent
	require.NoError(t, jsoncodec.Unmarshal(msg.Payload, &decoded))
	assert.Equal(t, event.CommentID, decoded.CommentID)
	assert.Equal(t, event.ServiceIDHash, decoded.ServiceIDHash)
	assert.True(t, event.Rating.Equal(decoded.Rating.Decimal))

	assert.Equal(t, uint64(1), svc.Metrics().Snapshot().PublishSuccess)
}

func TestCommentPublisherSwallowsTransportErrors(t *testing.T) {
	svc, pub := newTestService(t)
	pub.err = errors.New("broker down")

	assert.NotPanics(t, func() {
		svc.PublishComment(context.Background(), sampleCommentEvent())
	})

	assert.Empty(t, pub.Messages())
	assert.Equal(t, uint64(1), svc.Metrics().Snapshot().PublishFailures)
}

type panickingPublisher struct{ testPublisher }

func (p *panickingPublisher) Publish(string, ...*message.Message) error {
	panic("broker client exploded")
}

func TestCommentPublisherRecoversFromPanic(t *testing.T) {
	metrics := NewPipelineMetrics(prometheus.NewRegistry())
	p := NewCommentPublisher(&panickingPublisher{}, "comments", newTestLogger(), metrics)

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), sampleCommentEvent())
	})
	assert.Equal(t, uint64(1), metrics.Snapshot().PublishFailures)
	assert.Zero(t, metrics.Snapshot().PublishSuccess)
}

func TestCommentPublisherWithoutPublisher(t *testing.T) {
	p := NewCommentPublisher(nil, "comments", nil, nil)
	assert.NotPanics(t, func() {
		p.Publish(context.Background(), sampleCommentEvent())
	})
}
