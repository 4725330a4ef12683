// Package function holds the builtin scalar and aggregate functions callable
// from CSQL expressions.
package function

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eventql/eventql-sub000/pkg/catalog"
)

// Env is the per-statement context functions may consult.
type Env interface {
	Now() time.Time
}

// PureFunction computes a value from its arguments.
type PureFunction func(env Env, args []catalog.Value) (catalog.Value, error)

// Aggregator accumulates values for one aggregate expression instance.
type Aggregator interface {
	Accumulate(args []catalog.Value) error
	Result() catalog.Value
	Reset()
	Merge(other Aggregator) error
}

// RecordScoper is implemented by aggregates whose result over an empty
// WITHIN RECORD group differs from their result over an empty input.
type RecordScoper interface {
	ScopeToRecord()
}

// Symbol describes a registered function.
type Symbol struct {
	Name string
	// MinArgs and MaxArgs bound the argument count; MaxArgs < 0 is variadic.
	MinArgs int
	MaxArgs int
	// Deterministic functions may be folded at plan time.
	Deterministic bool

	Call         PureFunction
	NewAggregate func() Aggregator
}

// IsAggregate reports whether the symbol is an aggregate function.
func (s *Symbol) IsAggregate() bool {
	return s.NewAggregate != nil
}

// CheckArgs validates the argument count.
func (s *Symbol) CheckArgs(n int) error {
	if n < s.MinArgs || (s.MaxArgs >= 0 && n > s.MaxArgs) {
		switch {
		case s.MinArgs == s.MaxArgs:
			return catalog.NewError(catalog.KindRuntimeError,
				"wrong number of arguments for %s: expected %d, got %d", s.Name, s.MinArgs, n)
		case s.MaxArgs < 0:
			return catalog.NewError(catalog.KindRuntimeError,
				"wrong number of arguments for %s: expected at least %d, got %d", s.Name, s.MinArgs, n)
		default:
			return catalog.NewError(catalog.KindRuntimeError,
				"wrong number of arguments for %s: expected %d to %d, got %d", s.Name, s.MinArgs, s.MaxArgs, n)
		}
	}
	return nil
}

// SymbolTable maps lowercase function names to symbols. It is populated before
// use and read-only afterwards.
type SymbolTable struct {
	symbols map[string]*Symbol
}

// NewSymbolTable returns an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{symbols: make(map[string]*Symbol)}
}

// Register adds or replaces a symbol.
func (t *SymbolTable) Register(s *Symbol) {
	t.symbols[strings.ToLower(s.Name)] = s
}

// RegisterPure registers a deterministic scalar function.
func (t *SymbolTable) RegisterPure(name string, minArgs, maxArgs int, fn PureFunction) {
	t.Register(&Symbol{Name: name, MinArgs: minArgs, MaxArgs: maxArgs, Deterministic: true, Call: fn})
}

// RegisterAggregate registers an aggregate function.
func (t *SymbolTable) RegisterAggregate(name string, minArgs, maxArgs int, factory func() Aggregator) {
	t.Register(&Symbol{Name: name, MinArgs: minArgs, MaxArgs: maxArgs, NewAggregate: factory})
}

// Lookup finds a symbol by name.
func (t *SymbolTable) Lookup(name string) (*Symbol, error) {
	s, ok := t.symbols[strings.ToLower(name)]
	if !ok {
		return nil, catalog.NewError(catalog.KindRuntimeError, "unknown function: %s", name)
	}
	return s, nil
}

// IsAggregateFunction reports whether name refers to an aggregate.
func (t *SymbolTable) IsAggregateFunction(name string) bool {
	s, ok := t.symbols[strings.ToLower(name)]
	return ok && s.IsAggregate()
}

// Names returns all registered names, sorted.
func (t *SymbolTable) Names() []string {
	names := make([]string, 0, len(t.symbols))
	for n := range t.symbols {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewDefaultSymbolTable returns a table with every builtin registered.
func NewDefaultSymbolTable() *SymbolTable {
	t := NewSymbolTable()
	registerOperators(t)
	registerStrings(t)
	registerDateTime(t)
	registerConversions(t)
	registerAggregates(t)
	return t
}

func argError(fn string, err error) error {
	return fmt.Errorf("%s: %w", fn, err)
}
