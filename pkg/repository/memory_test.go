package repository

import (
	"context"
	"testing"
	"time"

	"github.com/satgroupe/fmb-gateway/pkg/model"
)

func TestMemoryDout1StateRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	got, err := m.GetDout1State(ctx, "123")
	if err != nil {
		t.Fatalf("GetDout1State: %v", err)
	}
	if got != nil {
		t.Fatalf("GetDout1State on unseen IMEI = %+v, want nil", got)
	}

	now := time.Now().UTC()
	state := model.Dout1State{IMEI: "123", LastZeroTime: &now, Active: false}
	if err := m.UpsertDout1State(ctx, state); err != nil {
		t.Fatalf("UpsertDout1State: %v", err)
	}

	got, err = m.GetDout1State(ctx, "123")
	if err != nil {
		t.Fatalf("GetDout1State: %v", err)
	}
	if got == nil || !got.LastZeroTime.Equal(now) {
		t.Fatalf("GetDout1State = %+v, want LastZeroTime=%v", got, now)
	}
}

func TestMemoryCommandQueueFIFO(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id1, err := m.EnqueueCommand(ctx, "123", "setdigout 1")
	if err != nil {
		t.Fatalf("EnqueueCommand: %v", err)
	}
	id2, err := m.EnqueueCommand(ctx, "123", "setdigout 0")
	if err != nil {
		t.Fatalf("EnqueueCommand: %v", err)
	}

	pending, err := m.ListPendingCommands(ctx, "123")
	if err != nil {
		t.Fatalf("ListPendingCommands: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != id1 || pending[1].ID != id2 {
		t.Fatalf("ListPendingCommands = %+v, want FIFO [%d, %d]", pending, id1, id2)
	}

	if err := m.MarkCommand(ctx, id1, model.CommandCompleted); err != nil {
		t.Fatalf("MarkCommand: %v", err)
	}

	pending, err = m.ListPendingCommands(ctx, "123")
	if err != nil {
		t.Fatalf("ListPendingCommands: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id2 {
		t.Fatalf("ListPendingCommands after mark = %+v, want only [%d]", pending, id2)
	}
}

func TestMemoryInsertGPSAndIOAppendOnly(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec := model.Record{Timestamp: time.Now().UTC(), Latitude: 1, Longitude: 2}
	if err := m.InsertGPS(ctx, "123", rec); err != nil {
		t.Fatalf("InsertGPS: %v", err)
	}
	if err := m.InsertIO(ctx, "123", rec.Timestamp, 179, 0); err != nil {
		t.Fatalf("InsertIO: %v", err)
	}
	if len(m.gps) != 1 || len(m.io) != 1 {
		t.Fatalf("gps=%d io=%d, want 1 each", len(m.gps), len(m.io))
	}
}
