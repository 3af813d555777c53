// Package repository defines the persistence contract the session handler
// and DOUT1 controller depend on. Per spec, the SQL-backed implementation
// is out of scope for this repository; only the interface and an
// in-memory reference implementation live here.
package repository

import (
	"context"
	"time"

	"github.com/satgroupe/fmb-gateway/pkg/model"
)

// Store is the fixed operation set external collaborators (the session
// handler, the DOUT1 controller, and the out-of-scope operator HTTP API)
// use to read and write gateway state. Calls are synchronous; atomicity is
// per call, not across calls — callers must not assume multi-statement
// transactions.
type Store interface {
	InsertGPS(ctx context.Context, imei string, rec model.Record) error
	InsertIO(ctx context.Context, imei string, ts time.Time, ioID uint16, value uint64) error

	GetDout1State(ctx context.Context, imei string) (*model.Dout1State, error)
	UpsertDout1State(ctx context.Context, state model.Dout1State) error

	EnqueueCommand(ctx context.Context, imei, command string) (int64, error)
	ListPendingCommands(ctx context.Context, imei string) ([]model.CommandQueueEntry, error)
	MarkCommand(ctx context.Context, id int64, status model.CommandStatus) error
}
