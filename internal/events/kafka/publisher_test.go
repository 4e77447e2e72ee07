package kafka

import (
	"encoding/json"
	"testing"

	"pocket/internal/ledger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

func TestNewPublisher(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092", "localhost:9093"}, "pocket.events")

	if p.writer.Topic != "pocket.events" {
		t.Errorf("Topic = %q, want pocket.events", p.writer.Topic)
	}
	if _, ok := p.writer.Balancer.(*kafka.Hash); !ok {
		t.Errorf("Balancer = %T, want *kafka.Hash", p.writer.Balancer)
	}
	if p.writer.Addr == nil {
		t.Error("Addr should be set")
	}
}

func TestEncode(t *testing.T) {
	e := ledger.NewEvent(ledger.EventRecordDeleted, "alice")
	e.RecordID = uuid.New()

	data, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var got ledger.Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Kind != ledger.EventRecordDeleted || got.RecordID != e.RecordID || got.UserID != "alice" {
		t.Errorf("decoded = %+v, want %+v", got, e)
	}
}
