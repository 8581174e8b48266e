package amqp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"moneta/internal/core"

	"github.com/rabbitmq/amqp091-go"
)

func TestLedgerChangeMessageRoundTrip(t *testing.T) {
	msg := NewLedgerChangeMessage("alice", []core.MonthKey{"2025-03", "2025-04"})

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	got, err := LedgerChangeMessageFromJSON(data)
	if err != nil {
		t.Fatalf("LedgerChangeMessageFromJSON() error = %v", err)
	}
	if got.Owner != "alice" {
		t.Errorf("Owner = %q, want alice", got.Owner)
	}
	if len(got.MonthKeys) != 2 || got.MonthKeys[0] != "2025-03" || got.MonthKeys[1] != "2025-04" {
		t.Errorf("MonthKeys = %v, want [2025-03 2025-04]", got.MonthKeys)
	}
	if got.Timestamp.IsZero() {
		t.Error("Timestamp is zero after round trip")
	}
}

func TestLedgerChangeMessageFromJSONInvalid(t *testing.T) {
	if _, err := LedgerChangeMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("LedgerChangeMessageFromJSON() error = nil, want parse error")
	}
}

// fakeAcknowledger records the ack/nack outcome of one delivery.
type fakeAcknowledger struct {
	acks    int
	nacks   int
	requeue bool
}

func (f *fakeAcknowledger) Ack(uint64, bool) error { f.acks++; return nil }

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacks++
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(uint64, bool) error { return nil }

func validBody(t *testing.T) []byte {
	t.Helper()
	body, err := NewLedgerChangeMessage("alice", []core.MonthKey{"2025-03"}).ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	return body
}

func TestProcessDelivery(t *testing.T) {
	ctx := context.Background()
	errHandler := errors.New("export failed")

	t.Run("success acks", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		handled := 0
		processDelivery(ctx, amqp091.Delivery{Acknowledger: ack, Body: validBody(t)},
			func(*LedgerChangeMessage) error { handled++; return nil })
		if handled != 1 {
			t.Errorf("handler called %d times, want 1", handled)
		}
		if ack.acks != 1 || ack.nacks != 0 {
			t.Errorf("acks = %d, nacks = %d, want 1 ack", ack.acks, ack.nacks)
		}
	})

	t.Run("first failure requeues", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		processDelivery(ctx, amqp091.Delivery{Acknowledger: ack, Body: validBody(t)},
			func(*LedgerChangeMessage) error { return errHandler })
		if ack.nacks != 1 || !ack.requeue {
			t.Errorf("nacks = %d, requeue = %v, want one nack with requeue", ack.nacks, ack.requeue)
		}
	})

	t.Run("redelivered failure drops", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		processDelivery(ctx, amqp091.Delivery{Acknowledger: ack, Body: validBody(t), Redelivered: true},
			func(*LedgerChangeMessage) error { return errHandler })
		if ack.nacks != 1 || ack.requeue {
			t.Errorf("nacks = %d, requeue = %v, want one nack without requeue", ack.nacks, ack.requeue)
		}
	})

	t.Run("unparseable body drops without handling", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		handled := 0
		processDelivery(ctx, amqp091.Delivery{Acknowledger: ack, Body: []byte("{broken")},
			func(*LedgerChangeMessage) error { handled++; return nil })
		if handled != 0 {
			t.Errorf("handler called %d times, want 0", handled)
		}
		if ack.nacks != 1 || ack.requeue {
			t.Errorf("nacks = %d, requeue = %v, want one nack without requeue", ack.nacks, ack.requeue)
		}
	})
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{63, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := exponentialBackoff(tt.attempt); got != tt.want {
			t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", errors.New("dial tcp 127.0.0.1:5672: connect: connection refused"), true},
		{"closed", fmt.Errorf("consume: %w", errors.New("connection closed by server")), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"closed network", errors.New("use of closed network connection"), true},
		{"delivery channel", errors.New("message channel closed"), true},
		{"handler failure", errors.New("summary not found"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.want {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
