package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJS struct {
	subject string
	payload []byte
	err     error
}

func (f *fakeJS) Publish(_ context.Context, subject string, payload []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.subject = subject
	f.payload = payload
	if f.err != nil {
		return nil, f.err
	}
	return &jetstream.PubAck{Stream: StreamEvents, Sequence: 1}, nil
}

func TestPublisher_PublishAuditEvent(t *testing.T) {
	js := &fakeJS{}
	p := NewPublisher(js)

	event := AuditEvent{
		ID:        "evt-1",
		UserID:    "admin-1",
		Outcome:   "SUCCESS",
		Severity:  "info",
		Message:   "image generated",
		Details:   json.RawMessage(`{"model":"imagen"}`),
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, p.PublishAuditEvent(context.Background(), event))

	assert.Equal(t, SubjectAuditEvent, js.subject)

	var decoded AuditEvent
	require.NoError(t, json.Unmarshal(js.payload, &decoded))
	assert.Equal(t, "admin-1", decoded.UserID)
	assert.Equal(t, "SUCCESS", decoded.Outcome)
	assert.JSONEq(t, `{"model":"imagen"}`, string(decoded.Details))
}

func TestPublisher_WrapsPublishError(t *testing.T) {
	js := &fakeJS{err: errors.New("no responders")}
	p := NewPublisher(js)

	err := p.PublishAuditEvent(context.Background(), AuditEvent{ID: "evt-2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), SubjectAuditEvent)
}
