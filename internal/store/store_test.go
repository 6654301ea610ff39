package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func decode(t *testing.T, rec Record) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Data, &out))
	return out
}

func runStoreSuite(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("insert get update remove", func(t *testing.T) {
		rec, err := s.Insert(ctx, Products, raw(t, map[string]any{"id": "ignored", "name": "Café", "unit": "kg"}))
		require.NoError(t, err)
		require.NotEmpty(t, rec.ID)
		require.NotEqual(t, "ignored", rec.ID)

		got, err := s.Get(ctx, Products, rec.ID)
		require.NoError(t, err)
		fields := decode(t, got)
		require.Equal(t, "Café", fields["name"])
		require.NotContains(t, fields, "id")

		updated, err := s.Update(ctx, Products, rec.ID, raw(t, map[string]any{"unit": "sac", "alert": 3}))
		require.NoError(t, err)
		fields = decode(t, updated)
		require.Equal(t, "Café", fields["name"])
		require.Equal(t, "sac", fields["unit"])
		require.EqualValues(t, 3, fields["alert"])

		require.NoError(t, s.Remove(ctx, Products, rec.ID))
		_, err = s.Get(ctx, Products, rec.ID)
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, s.Remove(ctx, Products, rec.ID), ErrNotFound)
		_, err = s.Update(ctx, Products, rec.ID, raw(t, map[string]any{"unit": "x"}))
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("find by top level equality in insertion order", func(t *testing.T) {
		first, err := s.Insert(ctx, Sales, raw(t, map[string]any{"invoice_id": "inv-1", "n": 1}))
		require.NoError(t, err)
		_, err = s.Insert(ctx, Sales, raw(t, map[string]any{"invoice_id": "inv-2", "n": 2}))
		require.NoError(t, err)
		third, err := s.Insert(ctx, Sales, raw(t, map[string]any{"invoice_id": "inv-1", "n": 3}))
		require.NoError(t, err)
		_, err = s.Insert(ctx, Invoices, raw(t, map[string]any{"invoice_id": "inv-1"}))
		require.NoError(t, err)

		found, err := s.Find(ctx, Sales, Query{"invoice_id": "inv-1"})
		require.NoError(t, err)
		require.Len(t, found, 2)
		require.Equal(t, first.ID, found[0].ID)
		require.Equal(t, third.ID, found[1].ID)

		all, err := s.Find(ctx, Sales, nil)
		require.NoError(t, err)
		require.Len(t, all, 3)

		none, err := s.Find(ctx, Sales, Query{"invoice_id": "nope"})
		require.NoError(t, err)
		require.Empty(t, none)
	})

	t.Run("transaction rolls back on error", func(t *testing.T) {
		kept, err := s.Insert(ctx, Clients, raw(t, map[string]any{"name": "Alice"}))
		require.NoError(t, err)

		boom := errors.New("boom")
		err = s.WithTx(ctx, func(tx Tx) error {
			if _, err := tx.Insert(ctx, Clients, raw(t, map[string]any{"name": "Bob"})); err != nil {
				return err
			}
			if _, err := tx.Update(ctx, Clients, kept.ID, raw(t, map[string]any{"name": "Alicia"})); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		clients, err := s.Find(ctx, Clients, nil)
		require.NoError(t, err)
		require.Len(t, clients, 1)
		require.Equal(t, "Alice", decode(t, clients[0])["name"])
	})

	t.Run("transaction commits", func(t *testing.T) {
		var id string
		err := s.WithTx(ctx, func(tx Tx) error {
			rec, err := tx.Insert(ctx, Suppliers, raw(t, map[string]any{"name": "Grossiste"}))
			if err != nil {
				return err
			}
			id = rec.ID
			_, err = tx.Get(ctx, Suppliers, id)
			return err
		})
		require.NoError(t, err)
		_, err = s.Get(ctx, Suppliers, id)
		require.NoError(t, err)
	})

	t.Run("rejects non object data", func(t *testing.T) {
		_, err := s.Insert(ctx, Products, json.RawMessage(`[1,2]`))
		require.Error(t, err)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemory())
}

func TestGormStore(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s, err := NewGorm(gdb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	runStoreSuite(t, s)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	// Temp tables are per connection.
	cfg.MaxConns = 1
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `
		CREATE TEMP TABLE records (
			seq BIGSERIAL NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (kind, id)
		)
	`)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		CREATE UNIQUE INDEX idx_records_number_unique ON records (kind, (data->>'number'))
			WHERE data ? 'number' AND data->>'number' <> ''
	`)
	require.NoError(t, err)

	st := NewPostgres(pool)
	runStoreSuite(t, st)

	t.Run("numbers are unique per kind", func(t *testing.T) {
		_, err := st.Insert(ctx, Invoices, raw(t, map[string]any{"number": "001-2030"}))
		require.NoError(t, err)
		_, err = st.Insert(ctx, ProformaInvoices, raw(t, map[string]any{"number": "001-2030"}))
		require.NoError(t, err)
		_, err = st.Insert(ctx, Invoices, raw(t, map[string]any{"number": "001-2030"}))
		require.ErrorIs(t, err, ErrDuplicate)
	})
}

func TestMatches(t *testing.T) {
	data := json.RawMessage(`{"kind":"sale","qty":2,"tags":["a"],"price":"12.50"}`)

	ok, err := matches(data, Query{"kind": "sale", "qty": 2})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = matches(data, Query{"qty": 2.0})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = matches(data, Query{"missing": nil})
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = matches(data, Query{"price": "12.5"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryWithTxRestoresOnCancelledContext(t *testing.T) {
	s := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	err := s.WithTx(ctx, func(tx Tx) error {
		_, err := tx.Insert(ctx, Products, json.RawMessage(`{"name":"x"}`))
		cancel()
		return err
	})
	require.ErrorIs(t, err, context.Canceled)

	all, err := s.Find(context.Background(), Products, nil)
	require.NoError(t, err)
	require.Empty(t, all)
}
