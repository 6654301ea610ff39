// Package service is the only mutation surface for documents and stock.
// Every write validates first, takes the keyed locks it needs, then runs in
// a single store transaction.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"caisse/internal/amountwords"
	"caisse/internal/domain"
	"caisse/internal/lock"
	"caisse/internal/repository"
	"caisse/internal/stock"
	"caisse/internal/store"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = store.ErrNotFound
	// ErrDuplicate is returned when the store refuses a second document with
	// the same number.
	ErrDuplicate = store.ErrDuplicate
	// ErrConflict marks a request that is well formed but clashes with the
	// current state, such as editing a sale owned by an invoice.
	ErrConflict = errors.New("conflict")
)

const (
	WarnMalformedNumber stock.WarningKind = "malformed_number"

	catalogLockKey = "catalog"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// DocumentResult is a persisted document plus the data-consistency warnings
// raised while writing it.
type DocumentResult struct {
	Document domain.Document `json:"document"`
	Warnings []stock.Warning `json:"warnings,omitempty"`
}

type Options struct {
	StrictProductLookup bool
	// LockWait bounds how long a write waits for its locks.
	LockWait time.Duration
	Currency amountwords.Currency
	Now      func() time.Time
}

type Service struct {
	store  store.Store
	locker lock.Locker
	logger *slog.Logger
	words  *amountwords.Formatter
	strict bool
	wait   time.Duration
	now    func() time.Time
}

func New(st store.Store, locker lock.Locker, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = lock.NewMemory()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:  st,
		locker: locker,
		logger: logger,
		words:  amountwords.New(opts.Currency),
		strict: opts.StrictProductLookup,
		wait:   opts.LockWait,
		now:    opts.Now,
	}
}

// txScope is what a write sees inside its transaction.
type txScope struct {
	repo     *repository.Repository
	stock    *stock.Adjuster
	warnings []stock.Warning
}

func (t *txScope) warn(result stock.Result) {
	t.warnings = append(t.warnings, result.Warnings...)
}

// stockProducts adapts the repository to the adjuster's port.
type stockProducts struct {
	repo *repository.Repository
}

func (p stockProducts) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := p.repo.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, stock.ErrProductNotFound)
	}
	return product, err
}

func (p stockProducts) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	return p.repo.CreateProduct(ctx, product)
}

func (p stockProducts) SetProductQuantity(ctx context.Context, id string, quantity decimal.Decimal) error {
	return p.repo.SetProductQuantity(ctx, id, quantity)
}

// lock acquires keys, bounded by the configured wait.
func (s *Service) lock(ctx context.Context, keys ...string) (func(), error) {
	lockCtx := ctx
	if s.wait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.wait)
		defer cancel()
	}
	unlock, err := s.locker.Lock(lockCtx, keys...)
	if err != nil {
		return nil, fmt.Errorf("acquire locks: %w", err)
	}
	return unlock, nil
}

// write runs fn under keys in one transaction and logs the warnings it
// collected once the transaction committed.
func (s *Service) write(ctx context.Context, op string, keys []string, fn func(tx *txScope) error) ([]stock.Warning, error) {
	unlock, err := s.lock(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var warnings []stock.Warning
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		repo := repository.New(tx)
		scope := &txScope{
			repo:  repo,
			stock: stock.New(stockProducts{repo: repo}, stock.Config{StrictProductLookup: s.strict}),
		}
		if err := fn(scope); err != nil {
			return err
		}
		warnings = scope.warnings
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, w := range warnings {
		s.logger.WarnContext(ctx, "data consistency",
			slog.String("op", op),
			slog.String("kind", string(w.Kind)),
			slog.String("product_id", w.ProductID),
			slog.String("detail", w.Message),
		)
	}
	return warnings, nil
}

// reader returns a repository outside any transaction.
func (s *Service) reader() *repository.Repository {
	return repository.New(s.store)
}

func documentLockKey(kind domain.DocumentKind, id string) string {
	return "doc:" + string(kind) + ":" + id
}

func productLockKeys(ids ...[]string) []string {
	var keys []string
	for _, group := range ids {
		for _, id := range group {
			keys = append(keys, lock.ProductKey(id))
		}
	}
	return keys
}

func normalizeText(value string) string {
	return strings.TrimSpace(value)
}
