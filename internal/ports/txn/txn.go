package txn

import "context"

// Manager ejecuta fn dentro de una transacción del store.
// La transacción viaja en el ctx que recibe fn: los repos la toman de ahí.
// Llamadas anidadas se unen a la transacción externa.
// Si fn devuelve error, nada de lo escrito queda visible.
type Manager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Passthrough ejecuta fn sin transacción. Sirve para repos que no la necesitan (tests).
type Passthrough struct{}

func (Passthrough) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
