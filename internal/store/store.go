// Package store is the document store the core persists through: schemaless
// JSON records grouped by kind, with top-level equality queries and
// merge-style updates.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate reports a write rejected by a uniqueness constraint, such
	// as two documents of one kind sharing a number.
	ErrDuplicate = errors.New("duplicate")
)

type Kind string

const (
	Products         Kind = "products"
	PurchaseOrders   Kind = "purchaseOrders"
	Sales            Kind = "sales"
	Invoices         Kind = "invoices"
	ProformaInvoices Kind = "proformaInvoices"
	Clients          Kind = "clients"
	Suppliers        Kind = "suppliers"
)

type Record struct {
	ID        string
	Kind      Kind
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Query matches records whose top-level fields equal every entry.
// An empty query matches everything.
type Query map[string]any

// Tx is the set of operations available inside and outside a transaction.
type Tx interface {
	Insert(ctx context.Context, kind Kind, data json.RawMessage) (Record, error)
	Get(ctx context.Context, kind Kind, id string) (Record, error)
	// Find returns matches in insertion order.
	Find(ctx context.Context, kind Kind, query Query) ([]Record, error)
	// Update merges the top-level keys of patch into the record.
	Update(ctx context.Context, kind Kind, id string, patch json.RawMessage) (Record, error)
	Remove(ctx context.Context, kind Kind, id string) error
}

type Store interface {
	Tx
	// WithTx runs fn atomically: either every write inside fn is kept or none.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

func decodeObject(data json.RawMessage) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if fields == nil {
		return nil, errors.New("decode record: not a JSON object")
	}
	return fields, nil
}

// mergePatch applies a top-level merge and drops any "id" key, which belongs
// to the record envelope.
func mergePatch(data, patch json.RawMessage) (json.RawMessage, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	changes, err := decodeObject(patch)
	if err != nil {
		return nil, err
	}
	for key, value := range changes {
		fields[key] = value
	}
	delete(fields, "id")
	return json.Marshal(fields)
}

func normalizeData(data json.RawMessage) (json.RawMessage, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	delete(fields, "id")
	return json.Marshal(fields)
}

// matches evaluates a Query against a record body. Values are compared after
// a JSON round trip so a query built from Go values matches the stored form.
func matches(data json.RawMessage, query Query) (bool, error) {
	if len(query) == 0 {
		return true, nil
	}
	fields, err := decodeObject(data)
	if err != nil {
		return false, err
	}
	for key, want := range query {
		raw, ok := fields[key]
		if !ok {
			return false, nil
		}
		wantJSON, err := json.Marshal(want)
		if err != nil {
			return false, fmt.Errorf("encode query field %s: %w", key, err)
		}
		if bytes.Equal(bytes.TrimSpace(raw), wantJSON) {
			continue
		}
		var got, expected any
		if err := json.Unmarshal(raw, &got); err != nil {
			return false, err
		}
		if err := json.Unmarshal(wantJSON, &expected); err != nil {
			return false, err
		}
		if !reflect.DeepEqual(got, expected) {
			return false, nil
		}
	}
	return true, nil
}
