// Package repository maps domain types onto store records.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"caisse/internal/store"
)

var ErrNotFound = store.ErrNotFound

// Repository is bound to one store.Tx: either the store itself or an open
// transaction.
type Repository struct {
	tx store.Tx
}

func New(tx store.Tx) *Repository {
	return &Repository{tx: tx}
}

// envelope fields live on store.Record, not in the record body.
var envelope = []string{"id", "created_at", "updated_at"}

func encode(v any, omit ...string) (json.RawMessage, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	for _, key := range envelope {
		delete(fields, key)
	}
	for _, key := range omit {
		delete(fields, key)
	}
	return json.Marshal(fields)
}

func withNulls(body json.RawMessage, keys []string) (json.RawMessage, error) {
	if len(keys) == 0 {
		return body, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	for _, key := range keys {
		if _, ok := fields[key]; !ok {
			fields[key] = json.RawMessage("null")
		}
	}
	return json.Marshal(fields)
}

func decode[T any](rec store.Record, stamp func(*T, store.Record)) (T, error) {
	var out T
	if err := json.Unmarshal(rec.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s %s: %w", rec.Kind, rec.ID, err)
	}
	stamp(&out, rec)
	return out, nil
}

func decodeAll[T any](records []store.Record, stamp func(*T, store.Record)) ([]T, error) {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		item, err := decode(rec, stamp)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *Repository) insert(ctx context.Context, kind store.Kind, v any) (store.Record, error) {
	body, err := encode(v)
	if err != nil {
		return store.Record{}, fmt.Errorf("encode %s: %w", kind, err)
	}
	return r.tx.Insert(ctx, kind, body)
}

// replace overwrites a record through a merge update. Optional keys that
// the encoding omits are written as null so clearing a field sticks.
func (r *Repository) replace(ctx context.Context, kind store.Kind, id string, v any, optional []string, omit ...string) (store.Record, error) {
	body, err := encode(v, omit...)
	if err == nil {
		body, err = withNulls(body, optional)
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("encode %s: %w", kind, err)
	}
	return r.tx.Update(ctx, kind, id, body)
}

func normalizeName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func page[T any](items []T, limit, offset int) []T {
	limit = normalizeLimit(limit)
	offset = normalizeOffset(offset)
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// newestFirst orders by a timestamp descending, ties broken by id.
func newestFirst[T any](items []T, at func(T) time.Time, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := at(items[i]), at(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return id(items[i]) > id(items[j])
	})
}
