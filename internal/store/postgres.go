package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores every kind in the records table created by the embedded
// migrations of internal/db.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Insert(ctx context.Context, kind Kind, data json.RawMessage) (Record, error) {
	return postgresTx{q: p.pool}.Insert(ctx, kind, data)
}

func (p *Postgres) Get(ctx context.Context, kind Kind, id string) (Record, error) {
	return postgresTx{q: p.pool}.Get(ctx, kind, id)
}

func (p *Postgres) Find(ctx context.Context, kind Kind, query Query) ([]Record, error) {
	return postgresTx{q: p.pool}.Find(ctx, kind, query)
}

func (p *Postgres) Update(ctx context.Context, kind Kind, id string, patch json.RawMessage) (Record, error) {
	return postgresTx{q: p.pool}.Update(ctx, kind, id, patch)
}

func (p *Postgres) Remove(ctx context.Context, kind Kind, id string) error {
	return postgresTx{q: p.pool}.Remove(ctx, kind, id)
}

func (p *Postgres) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(postgresTx{q: tx, forUpdate: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type postgresTx struct {
	q         querier
	forUpdate bool
}

func (t postgresTx) Insert(ctx context.Context, kind Kind, data json.RawMessage) (Record, error) {
	body, err := normalizeData(data)
	if err != nil {
		return Record{}, fmt.Errorf("insert %s: %w", kind, err)
	}
	rec := Record{ID: uuid.NewString(), Kind: kind, Data: body}
	if err := t.q.QueryRow(ctx, `
		INSERT INTO records (kind, id, data)
		VALUES ($1, $2, $3::jsonb)
		RETURNING created_at, updated_at
	`, string(kind), rec.ID, string(body)).Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, fmt.Errorf("insert %s: %w", kind, uniqueViolation(err))
	}
	return rec, nil
}

func (t postgresTx) Get(ctx context.Context, kind Kind, id string) (Record, error) {
	query := `
		SELECT id, data, created_at, updated_at
		FROM records
		WHERE kind = $1 AND id = $2
	`
	if t.forUpdate {
		query += " FOR UPDATE"
	}

	rec := Record{Kind: kind}
	var body []byte
	if err := t.q.QueryRow(ctx, query, string(kind), id).Scan(&rec.ID, &body, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
		}
		return Record{}, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	rec.Data = body
	return rec, nil
}

func (t postgresTx) Find(ctx context.Context, kind Kind, query Query) ([]Record, error) {
	filter := []byte("{}")
	if len(query) > 0 {
		var err error
		if filter, err = json.Marshal(query); err != nil {
			return nil, fmt.Errorf("encode %s query: %w", kind, err)
		}
	}

	rows, err := t.q.Query(ctx, `
		SELECT id, data, created_at, updated_at
		FROM records
		WHERE kind = $1 AND data @> $2::jsonb
		ORDER BY seq
	`, string(kind), string(filter))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", kind, err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec := Record{Kind: kind}
		var body []byte
		if err := rows.Scan(&rec.ID, &body, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		rec.Data = body
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", kind, err)
	}
	return records, nil
}

func (t postgresTx) Update(ctx context.Context, kind Kind, id string, patch json.RawMessage) (Record, error) {
	if _, err := decodeObject(patch); err != nil {
		return Record{}, fmt.Errorf("update %s %s: %w", kind, id, err)
	}

	rec := Record{Kind: kind}
	var body []byte
	if err := t.q.QueryRow(ctx, `
		UPDATE records
		SET data = (data || $3::jsonb) - 'id',
		    updated_at = NOW()
		WHERE kind = $1 AND id = $2
		RETURNING id, data, created_at, updated_at
	`, string(kind), id, string(patch)).Scan(&rec.ID, &body, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
		}
		return Record{}, fmt.Errorf("update %s %s: %w", kind, id, uniqueViolation(err))
	}
	rec.Data = body
	return rec, nil
}

func (t postgresTx) Remove(ctx context.Context, kind Kind, id string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM records WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		return fmt.Errorf("remove %s %s: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

// uniqueViolation turns a unique_violation into ErrDuplicate.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrDuplicate)
	}
	return err
}
