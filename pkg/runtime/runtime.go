// Package runtime ties the CSQL front-end, the query planner and the
// execution engine together. A Runtime is created once and shared; every
// statement runs inside its own Transaction.
package runtime

import (
	"context"
	"time"

	"github.com/eventql/eventql-sub000/internal/logger"
	"github.com/eventql/eventql-sub000/pkg/function"
	"github.com/eventql/eventql-sub000/pkg/storage"
)

// Runtime holds the state shared by all statements: the function registry,
// planner options and the logger. It is read-only after construction.
type Runtime struct {
	symbols         *function.SymbolTable
	constantFolding bool
	log             *logger.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used for planning and execution.
func WithLogger(log *logger.Logger) Option {
	return func(rt *Runtime) {
		if log != nil {
			rt.log = log
		}
	}
}

// WithSymbolTable replaces the builtin function registry.
func WithSymbolTable(symbols *function.SymbolTable) Option {
	return func(rt *Runtime) {
		if symbols != nil {
			rt.symbols = symbols
		}
	}
}

// WithConstantFolding toggles plan-time evaluation of constant
// subexpressions. It is enabled by default.
func WithConstantFolding(enabled bool) Option {
	return func(rt *Runtime) {
		rt.constantFolding = enabled
	}
}

// NewRuntime creates a runtime with the builtin functions registered.
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{
		symbols:         function.NewDefaultSymbolTable(),
		constantFolding: true,
		log:             logger.NewNop(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Symbols returns the function registry.
func (rt *Runtime) Symbols() *function.SymbolTable {
	return rt.symbols
}

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *logger.Logger {
	return rt.log
}

// NewTransaction creates the context for one or more statements against
// tables. The reference time for now() is fixed at creation.
func (rt *Runtime) NewTransaction(ctx context.Context, tables storage.TableProvider) *Transaction {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Transaction{
		ctx:     ctx,
		runtime: rt,
		tables:  tables,
		now:     time.Now().UTC(),
	}
}
