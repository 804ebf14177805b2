package amqp

import (
	"testing"

	"reportal/internal/core"
)

func TestRecordEventMessageRoundTrip(t *testing.T) {
	msg := NewRecordEventMessage(42, core.KindCellRecord, ActionUpdated, "Zone A")
	if msg.Timestamp.IsZero() {
		t.Fatal("timestamp should be stamped")
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := RecordEventMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != 42 || got.Kind != core.KindCellRecord || got.Action != ActionUpdated || got.Zone != "Zone A" {
		t.Fatalf("round trip lost fields: %+v", got)
	}
}

func TestRecordEventMessageFromJSONInvalid(t *testing.T) {
	if _, err := RecordEventMessageFromJSON([]byte("{nope")); err == nil {
		t.Fatal("expected error")
	}
}
