package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/servicemirror/internal/runtime/correlation"
	"github.com/drblury/servicemirror/internal/runtime/decoder"
	"github.com/drblury/servicemirror/internal/runtime/logging"
	"github.com/drblury/servicemirror/internal/runtime/view"
)

type countingRecorder struct {
	mu       sync.Mutex
	ingested map[string]int
	dropped  map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{ingested: map[string]int{}, dropped: map[string]int{}}
}

func (r *countingRecorder) Ingested(strategy string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingested[strategy]++
}

func (r *countingRecorder) Dropped(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped[reason]++
}

type warnCapture struct {
	mu    sync.Mutex
	warns []string
	errs  []error
}

func (w *warnCapture) With(logging.LogFields) logging.ServiceLogger  { return w }
func (w *warnCapture) Debug(string, logging.LogFields)                {}
func (w *warnCapture) Info(string, logging.LogFields)                 {}
func (w *warnCapture) Trace(string, logging.LogFields)                {}
func (w *warnCapture) Warn(msg string, _ logging.LogFields)           { w.mu.Lock(); w.warns = append(w.warns, msg); w.mu.Unlock() }
func (w *warnCapture) Error(_ string, err error, _ logging.LogFields) { w.mu.Lock(); w.errs = append(w.errs, err); w.mu.Unlock() }

type fixture struct {
	view     *view.View
	bridge   *correlation.Bridge
	recorder *countingRecorder
	log      *warnCapture
	pipeline *Pipeline
}

func newFixture() *fixture {
	f := &fixture{
		view:     view.New(),
		bridge:   correlation.New(),
		recorder: newCountingRecorder(),
		log:      &warnCapture{},
	}
	f.pipeline = New(f.view, f.bridge, WithRecorder(f.recorder), WithLogger(f.log))
	return f
}

func servicePayload(id uuid.UUID, extra string) string {
	return fmt.Sprintf(`{"serviceId":%q,"title":"Svc","price":10.00%s}`, id.String(), extra)
}

func TestIngestDirectJSON(t *testing.T) {
	f := newFixture()
	id := uuid.New()

	f.pipeline.Ingest(context.Background(), servicePayload(id, `,"isActive":true`))

	got, ok := f.view.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Svc", got.Title)
	assert.Equal(t, 1, f.recorder.ingested[decoder.StrategyDirect])
}

func TestIngestBase64Payload(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	encoded := base64.StdEncoding.EncodeToString([]byte(servicePayload(id, "")))

	f.pipeline.Ingest(context.Background(), `"`+encoded+`"`)

	assert.True(t, f.view.Exists(id))
	assert.Equal(t, 1, f.recorder.ingested[decoder.StrategyBase64])
}

func TestIngestFallsBackToStructuredID(t *testing.T) {
	f := newFixture()
	id := uuid.New()

	f.pipeline.Ingest(context.Background(), fmt.Sprintf(`{"serviceId":"legacy-7","id":%q,"title":"Svc","price":1}`, id))

	assert.True(t, f.view.Exists(id))
}

func TestIngestTreatsBlankStructuredIDAsAbsent(t *testing.T) {
	f := newFixture()
	id := uuid.New()

	f.pipeline.Ingest(context.Background(), servicePayload(id, `,"id":""`))

	assert.True(t, f.view.Exists(id))
	assert.Empty(t, f.recorder.dropped)
}

func TestIngestTreatsBlankReferenceIDsAsAbsent(t *testing.T) {
	f := newFixture()
	id := uuid.New()

	f.pipeline.Ingest(context.Background(), servicePayload(id, `,"categoryId":"","statusId":"","countryId":null,"categoryName":"Music"`))

	got, ok := f.view.Get(id)
	require.True(t, ok)
	assert.Nil(t, got.CategoryID)
	assert.Nil(t, got.StatusID)
	assert.Nil(t, got.CountryID)
	assert.Equal(t, "Music", got.CategoryName)
	assert.Empty(t, f.recorder.dropped)
}

func TestIngestDropsMessageWithoutIdentity(t *testing.T) {
	f := newFixture()

	f.pipeline.Ingest(context.Background(), `{"title":"nameless","price":1}`)

	assert.Equal(t, 0, f.view.Count())
	assert.Equal(t, 1, f.recorder.dropped[DropMissingIdentity])
	assert.Len(t, f.log.warns, 1)
}

func TestIngestDropsUnparsablePayload(t *testing.T) {
	f := newFixture()

	assert.NotPanics(t, func() {
		f.pipeline.Ingest(context.Background(), "definitely not json")
		f.pipeline.Ingest(context.Background(), "")
		f.pipeline.Ingest(context.Background(), `{"serviceId":`)
	})

	assert.Equal(t, 0, f.view.Count())
	assert.Equal(t, 3, f.recorder.dropped[DropUnparsable])
	assert.Len(t, f.log.errs, 3)
}

func TestIngestRecoversFromPanics(t *testing.T) {
	f := newFixture()
	boom := decoder.Strategy{Name: "boom", Apply: func(string) (string, bool) { panic("kaboom") }}
	p := New(f.view, f.bridge, WithDecoder(decoder.New(boom)), WithRecorder(f.recorder), WithLogger(f.log))

	assert.NotPanics(t, func() { p.Ingest(context.Background(), "{}") })
	assert.Equal(t, 1, f.recorder.dropped[DropPanic])
}

func TestIngestDeliversCorrelatedReply(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	h, err := f.bridge.Register("req-42")
	require.NoError(t, err)

	f.pipeline.Ingest(context.Background(), servicePayload(id, `,"requestId":"req-42"`))

	reply, err := f.bridge.Await(context.Background(), h, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "req-42", reply.RequestID)

	stored, _ := f.view.Get(id)
	assert.Empty(t, stored.RequestID, "request id must not be stored in the view")
}

func TestIngestUnsolicitedReplyStillUpdatesView(t *testing.T) {
	f := newFixture()
	id := uuid.New()

	f.pipeline.Ingest(context.Background(), servicePayload(id, `,"requestId":"nobody-asked"`))

	assert.True(t, f.view.Exists(id))
	assert.Equal(t, 0, f.bridge.Pending())
}

func TestHandlerAlwaysAcks(t *testing.T) {
	f := newFixture()
	handler := f.pipeline.Handler()

	err := handler(message.NewMessage("m-1", []byte("garbage")))
	assert.NoError(t, err)

	id := uuid.New()
	err = handler(message.NewMessage("m-2", []byte(servicePayload(id, ""))))
	assert.NoError(t, err)
	assert.True(t, f.view.Exists(id))
}

func TestIngestErrorReplyIsDeliveredButNotStored(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	h, err := f.bridge.Register("req-err")
	require.NoError(t, err)

	f.pipeline.Ingest(context.Background(), fmt.Sprintf(`{"requestId":"req-err","serviceId":%q,"errorMessage":"unknown service"}`, id))

	reply, err := f.bridge.Await(context.Background(), h, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "unknown service", reply.ErrorMessage)
	assert.False(t, f.view.Exists(id))
}
