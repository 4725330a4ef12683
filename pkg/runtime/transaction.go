package runtime

import (
	"context"
	"time"

	"github.com/eventql/eventql-sub000/pkg/storage"
)

// Transaction is the per-statement context. It carries the cancellation
// context, the table provider and user variables such as the reference time.
// A Transaction must not be shared between goroutines.
type Transaction struct {
	ctx     context.Context
	runtime *Runtime
	tables  storage.TableProvider
	now     time.Time
}

// Now returns the reference time of the transaction.
func (t *Transaction) Now() time.Time {
	return t.now
}

// SetNow overrides the reference time.
func (t *Transaction) SetNow(now time.Time) {
	t.now = now.UTC()
}

// Context returns the context statements run under.
func (t *Transaction) Context() context.Context {
	return t.ctx
}

// Runtime returns the runtime the transaction belongs to.
func (t *Transaction) Runtime() *Runtime {
	return t.runtime
}

// Tables returns the table provider.
func (t *Transaction) Tables() storage.TableProvider {
	return t.tables
}
