package notify

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStreamFields(t *testing.T) {
	f := Fact{
		Kind:        EventDeleted,
		EventID:     "e1",
		EventTitle:  "Choir",
		AttendeeIDs: []string{"a", "b"},
		OccurredAt:  time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	fields, err := streamFields(f)
	if err != nil {
		t.Fatal(err)
	}
	if fields["fact_kind"] != "EventDeleted" || fields["event_id"] != "e1" {
		t.Fatalf("unexpected fields: %v", fields)
	}

	var got Fact
	if err := json.Unmarshal([]byte(fields["payload"]), &got); err != nil {
		t.Fatalf("payload is not a fact: %v", err)
	}
	if got.EventTitle != "Choir" || len(got.AttendeeIDs) != 2 || !got.OccurredAt.Equal(f.OccurredAt) {
		t.Fatalf("payload = %+v", got)
	}
}

func TestNewStreamMirrorDefaultsKey(t *testing.T) {
	if m := NewStreamMirror(nil, ""); m.stream != DefaultStream {
		t.Fatalf("stream = %q, want %q", m.stream, DefaultStream)
	}
}
