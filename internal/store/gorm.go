package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormRecord struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement"`
	Kind      string    `gorm:"size:64;not null;uniqueIndex:idx_records_kind_id"`
	RecordID  string    `gorm:"column:record_id;size:36;not null;uniqueIndex:idx_records_kind_id"`
	Data      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (gormRecord) TableName() string { return "records" }

func (r gormRecord) record() Record {
	return Record{
		ID:        r.RecordID,
		Kind:      Kind(r.Kind),
		Data:      json.RawMessage(r.Data),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// Gorm is the embedded store used by the desktop till, normally on SQLite.
type Gorm struct {
	db *gorm.DB
}

// NewGorm migrates the records table and returns a store over db.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&gormRecord{}); err != nil {
		return nil, fmt.Errorf("automigrate records: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *Gorm) Insert(ctx context.Context, kind Kind, data json.RawMessage) (Record, error) {
	return gormTx{db: g.db.WithContext(ctx)}.Insert(ctx, kind, data)
}

func (g *Gorm) Get(ctx context.Context, kind Kind, id string) (Record, error) {
	return gormTx{db: g.db.WithContext(ctx)}.Get(ctx, kind, id)
}

func (g *Gorm) Find(ctx context.Context, kind Kind, query Query) ([]Record, error) {
	return gormTx{db: g.db.WithContext(ctx)}.Find(ctx, kind, query)
}

func (g *Gorm) Update(ctx context.Context, kind Kind, id string, patch json.RawMessage) (Record, error) {
	return gormTx{db: g.db.WithContext(ctx)}.Update(ctx, kind, id, patch)
}

func (g *Gorm) Remove(ctx context.Context, kind Kind, id string) error {
	return gormTx{db: g.db.WithContext(ctx)}.Remove(ctx, kind, id)
}

func (g *Gorm) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(gormTx{db: tx})
	})
}

type gormTx struct {
	db *gorm.DB
}

func (t gormTx) Insert(_ context.Context, kind Kind, data json.RawMessage) (Record, error) {
	body, err := normalizeData(data)
	if err != nil {
		return Record{}, fmt.Errorf("insert %s: %w", kind, err)
	}
	now := time.Now().UTC()
	row := gormRecord{
		Kind:      string(kind),
		RecordID:  uuid.NewString(),
		Data:      string(body),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.db.Create(&row).Error; err != nil {
		return Record{}, fmt.Errorf("insert %s: %w", kind, err)
	}
	return row.record(), nil
}

func (t gormTx) load(kind Kind, id string) (gormRecord, error) {
	var row gormRecord
	err := t.db.Where("kind = ? AND record_id = ?", string(kind), id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return gormRecord{}, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	if err != nil {
		return gormRecord{}, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	return row, nil
}

func (t gormTx) Get(_ context.Context, kind Kind, id string) (Record, error) {
	row, err := t.load(kind, id)
	if err != nil {
		return Record{}, err
	}
	return row.record(), nil
}

// Find filters in Go; SQLite holds one till's data so a kind scan is small.
func (t gormTx) Find(_ context.Context, kind Kind, query Query) ([]Record, error) {
	var rows []gormRecord
	if err := t.db.Where("kind = ?", string(kind)).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find %s: %w", kind, err)
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		ok, err := matches(json.RawMessage(row.Data), query)
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", kind, err)
		}
		if ok {
			records = append(records, row.record())
		}
	}
	return records, nil
}

func (t gormTx) Update(_ context.Context, kind Kind, id string, patch json.RawMessage) (Record, error) {
	row, err := t.load(kind, id)
	if err != nil {
		return Record{}, err
	}
	body, err := mergePatch(json.RawMessage(row.Data), patch)
	if err != nil {
		return Record{}, fmt.Errorf("update %s %s: %w", kind, id, err)
	}
	row.Data = string(body)
	row.UpdatedAt = time.Now().UTC()
	if err := t.db.Model(&gormRecord{}).
		Where("seq = ?", row.Seq).
		Updates(map[string]any{"data": row.Data, "updated_at": row.UpdatedAt}).Error; err != nil {
		return Record{}, fmt.Errorf("update %s %s: %w", kind, id, err)
	}
	return row.record(), nil
}

func (t gormTx) Remove(_ context.Context, kind Kind, id string) error {
	res := t.db.Where("kind = ? AND record_id = ?", string(kind), id).Delete(&gormRecord{})
	if res.Error != nil {
		return fmt.Errorf("remove %s %s: %w", kind, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
