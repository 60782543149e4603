package memory

import (
	"context"

	"slot-swapper/internal/domain/events"
	"slot-swapper/internal/domain/history"
	"slot-swapper/internal/domain/swaps"
	"slot-swapper/internal/platform/apperr"

	"golang.org/x/sync/semaphore"
)

var (
	ErrNotFound = apperr.New(apperr.KindNotFound, "not found")
)

// gateWeight es el peso que toma un escritor: excluye a todos los lectores.
const gateWeight int64 = 1 << 20

// Store guarda todo en memoria detrás de un único gate lector/escritor.
// Las transacciones toman el gate como escritor, así que nadie observa
// un estado a medio aplicar; el journal deshace lo escrito si fn falla.
type Store struct {
	gate *semaphore.Weighted

	events  map[string]events.Event
	swaps   map[string]swaps.SwapRequest
	history map[string]history.Entry
	// swap request id -> history entry id
	historyBySwap map[string]string
}

func NewStore() *Store {
	return &Store{
		gate:          semaphore.NewWeighted(gateWeight),
		events:        make(map[string]events.Event),
		swaps:         make(map[string]swaps.SwapRequest),
		history:       make(map[string]history.Entry),
		historyBySwap: make(map[string]string),
	}
}

type txKey struct{}

type tx struct {
	store   *Store
	journal []func()
}

func (t *tx) undo(fn func()) { t.journal = append(t.journal, fn) }

func (t *tx) rollback() {
	for i := len(t.journal) - 1; i >= 0; i-- {
		t.journal[i]()
	}
	t.journal = nil
}

func (s *Store) txFrom(ctx context.Context) *tx {
	t, ok := ctx.Value(txKey{}).(*tx)
	if !ok || t.store != s {
		return nil
	}
	return t
}

// WithinTx implementa txn.Manager. Las llamadas anidadas se unen a la externa.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txFrom(ctx) != nil {
		return fn(ctx)
	}

	if err := s.gate.Acquire(ctx, gateWeight); err != nil {
		return err
	}
	defer s.gate.Release(gateWeight)

	t := &tx{store: s}
	err := fn(context.WithValue(ctx, txKey{}, t))
	if err == nil {
		// Si el deadline venció mientras corría fn, no se "commitea".
		err = ctx.Err()
	}
	if err != nil {
		t.rollback()
		return err
	}
	return nil
}

// view corre fn como lector (o dentro de la transacción del ctx).
func (s *Store) view(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.txFrom(ctx) != nil {
		return fn()
	}
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.gate.Release(1)
	return fn()
}

// update corre fn como escritor. Fuera de una transacción abre una propia.
func (s *Store) update(ctx context.Context, fn func(t *tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t := s.txFrom(ctx); t != nil {
		return fn(t)
	}
	return s.WithinTx(ctx, func(ctx context.Context) error {
		return fn(s.txFrom(ctx))
	})
}
