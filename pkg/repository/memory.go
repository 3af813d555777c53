package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/satgroupe/fmb-gateway/pkg/model"
)

type gpsRow struct {
	imei string
	rec  model.Record
}

type ioRow struct {
	imei  string
	ts    time.Time
	ioID  uint16
	value uint64
}

// Memory is a process-lifetime, mutex-guarded reference Store. Dout1State
// read-modify-write is made safe for the "at most one worker per IMEI"
// model (spec §5) by a per-IMEI mutex, so concurrent sessions for distinct
// IMEIs never contend on a shared lock.
type Memory struct {
	mu sync.Mutex // guards everything below except imeiLocks' own content

	gps []gpsRow
	io  []ioRow

	dout1 map[string]model.Dout1State

	queue    []model.CommandQueueEntry
	nextID   int64
	imeiLock map[string]*sync.Mutex
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		dout1:    make(map[string]model.Dout1State),
		imeiLock: make(map[string]*sync.Mutex),
	}
}

func (m *Memory) lockFor(imei string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.imeiLock[imei]
	if !ok {
		l = &sync.Mutex{}
		m.imeiLock[imei] = l
	}
	return l
}

func (m *Memory) InsertGPS(_ context.Context, imei string, rec model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gps = append(m.gps, gpsRow{imei: imei, rec: rec})
	return nil
}

func (m *Memory) InsertIO(_ context.Context, imei string, ts time.Time, ioID uint16, value uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.io = append(m.io, ioRow{imei: imei, ts: ts, ioID: ioID, value: value})
	return nil
}

func (m *Memory) GetDout1State(_ context.Context, imei string) (*model.Dout1State, error) {
	lock := m.lockFor(imei)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.dout1[imei]
	if !ok {
		return nil, nil
	}
	cp := state
	return &cp, nil
}

func (m *Memory) UpsertDout1State(_ context.Context, state model.Dout1State) error {
	lock := m.lockFor(state.IMEI)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.dout1[state.IMEI] = state
	return nil
}

func (m *Memory) EnqueueCommand(_ context.Context, imei, command string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	entry := model.CommandQueueEntry{
		ID:        m.nextID,
		IMEI:      imei,
		Command:   command,
		Status:    model.CommandPending,
		CreatedAt: time.Now().UTC(),
	}
	m.queue = append(m.queue, entry)
	return entry.ID, nil
}

func (m *Memory) ListPendingCommands(_ context.Context, imei string) ([]model.CommandQueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.CommandQueueEntry
	for _, e := range m.queue {
		if e.IMEI == imei && e.Status == model.CommandPending {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) MarkCommand(_ context.Context, id int64, status model.CommandStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.queue {
		if m.queue[i].ID == id {
			m.queue[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("repository: no command queue entry with id %d", id)
}

var _ Store = (*Memory)(nil)
