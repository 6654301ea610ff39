package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRecord struct {
	Record
	seq uint64
}

// Memory keeps records in process. It backs tests and STORE_DRIVER=memory.
type Memory struct {
	// txMu serializes transactions against every other caller.
	txMu    sync.RWMutex
	mu      sync.Mutex
	records map[Kind]map[string]memoryRecord
	seq     uint64
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[Kind]map[string]memoryRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Insert(ctx context.Context, kind Kind, data json.RawMessage) (Record, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return memoryTx{m}.Insert(ctx, kind, data)
}

func (m *Memory) Get(ctx context.Context, kind Kind, id string) (Record, error) {
	m.txMu.RLock()
	defer m.txMu.RUnlock()
	return memoryTx{m}.Get(ctx, kind, id)
}

func (m *Memory) Find(ctx context.Context, kind Kind, query Query) ([]Record, error) {
	m.txMu.RLock()
	defer m.txMu.RUnlock()
	return memoryTx{m}.Find(ctx, kind, query)
}

func (m *Memory) Update(ctx context.Context, kind Kind, id string, patch json.RawMessage) (Record, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return memoryTx{m}.Update(ctx, kind, id, patch)
}

func (m *Memory) Remove(ctx context.Context, kind Kind, id string) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return memoryTx{m}.Remove(ctx, kind, id)
}

// WithTx snapshots every kind and restores the snapshot when fn fails.
func (m *Memory) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snapshot := m.snapshot()
	if err := fn(memoryTx{m}); err != nil {
		m.restore(snapshot)
		return err
	}
	if err := ctx.Err(); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	records map[Kind]map[string]memoryRecord
	seq     uint64
}

func (m *Memory) snapshot() memorySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make(map[Kind]map[string]memoryRecord, len(m.records))
	for kind, byID := range m.records {
		inner := make(map[string]memoryRecord, len(byID))
		for id, rec := range byID {
			inner[id] = rec
		}
		copied[kind] = inner
	}
	return memorySnapshot{records: copied, seq: m.seq}
}

func (m *Memory) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = s.records
	m.seq = s.seq
}

type memoryTx struct {
	m *Memory
}

func (t memoryTx) Insert(_ context.Context, kind Kind, data json.RawMessage) (Record, error) {
	body, err := normalizeData(data)
	if err != nil {
		return Record{}, fmt.Errorf("insert %s: %w", kind, err)
	}

	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	byID, ok := t.m.records[kind]
	if !ok {
		byID = make(map[string]memoryRecord)
		t.m.records[kind] = byID
	}
	now := t.m.now()
	t.m.seq++
	rec := memoryRecord{
		Record: Record{ID: uuid.NewString(), Kind: kind, Data: body, CreatedAt: now, UpdatedAt: now},
		seq:    t.m.seq,
	}
	byID[rec.ID] = rec
	return rec.Record, nil
}

func (t memoryTx) Get(_ context.Context, kind Kind, id string) (Record, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	rec, ok := t.m.records[kind][id]
	if !ok {
		return Record{}, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return rec.Record, nil
}

func (t memoryTx) Find(_ context.Context, kind Kind, query Query) ([]Record, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	found := make([]memoryRecord, 0, len(t.m.records[kind]))
	for _, rec := range t.m.records[kind] {
		ok, err := matches(rec.Data, query)
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", kind, err)
		}
		if ok {
			found = append(found, rec)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })

	out := make([]Record, len(found))
	for i, rec := range found {
		out[i] = rec.Record
	}
	return out, nil
}

func (t memoryTx) Update(_ context.Context, kind Kind, id string, patch json.RawMessage) (Record, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	rec, ok := t.m.records[kind][id]
	if !ok {
		return Record{}, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	body, err := mergePatch(rec.Data, patch)
	if err != nil {
		return Record{}, fmt.Errorf("update %s %s: %w", kind, id, err)
	}
	rec.Data = body
	rec.UpdatedAt = t.m.now()
	t.m.records[kind][id] = rec
	return rec.Record, nil
}

func (t memoryTx) Remove(_ context.Context, kind Kind, id string) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if _, ok := t.m.records[kind][id]; !ok {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	delete(t.m.records[kind], id)
	return nil
}
