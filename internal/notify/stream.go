package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/rueidis"
)

// DefaultStream is the Redis stream key facts are mirrored to.
const DefaultStream = "elderlink:events"

// StreamMirror appends every fact to a Redis stream so out-of-process
// consumers (SMS or push senders) can follow event changes. It is another
// best-effort listener: a failed XADD is logged by the Dispatcher and dropped.
type StreamMirror struct {
	client rueidis.Client
	stream string
}

// NewStreamMirror constructs a StreamMirror writing to stream.
func NewStreamMirror(client rueidis.Client, stream string) *StreamMirror {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamMirror{client: client, stream: stream}
}

// streamFields returns the entry fields for f.
func streamFields(f Fact) (map[string]string, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal fact: %w", err)
	}
	return map[string]string{
		"fact_kind": string(f.Kind),
		"event_id":  f.EventID,
		"payload":   string(payload),
	}, nil
}

func (m *StreamMirror) Handle(ctx context.Context, f Fact) error {
	fields, err := streamFields(f)
	if err != nil {
		return err
	}
	cmd := m.client.B().Xadd().Key(m.stream).Id("*").
		FieldValue().
		FieldValue("fact_kind", fields["fact_kind"]).
		FieldValue("event_id", fields["event_id"]).
		FieldValue("payload", fields["payload"]).
		Build()
	if err := m.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("xadd %s: %w", m.stream, err)
	}
	return nil
}
