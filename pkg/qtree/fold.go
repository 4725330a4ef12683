package qtree

import (
	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/function"
)

// AggregateValues supplies the current result of an aggregate call.
type AggregateValues func(call *CallExpression) (catalog.Value, error)

// Evaluate computes a pure expression against row. Aggregate calls fail;
// use EvaluateAggregates when aggregate state is available.
func Evaluate(env function.Env, expr ValueExpression, row []catalog.Value) (catalog.Value, error) {
	return EvaluateAggregates(env, expr, row, nil)
}

// EvaluateAggregates computes expr against row, reading every aggregate call
// from aggs. It is the single expression walker shared by constant folding,
// constant expression evaluation and query execution.
func EvaluateAggregates(env function.Env, expr ValueExpression, row []catalog.Value, aggs AggregateValues) (catalog.Value, error) {
	switch e := expr.(type) {
	case *LiteralExpression:
		return e.Value, nil

	case *ColumnReference:
		if e.Index < 0 || e.Index >= len(row) {
			return catalog.Null(), catalog.ColumnNotFound(e.Name)
		}
		return row[e.Index], nil

	case *CallExpression:
		if e.Symbol == nil {
			return catalog.Null(), catalog.NewError(catalog.KindRuntimeError, "unresolved function: %s", e.Name)
		}
		if e.Symbol.IsAggregate() {
			if aggs == nil {
				return catalog.Null(), catalog.NewError(catalog.KindRuntimeError,
					"aggregate function %s can't be used in this context", e.Name)
			}
			return aggs(e)
		}
		args := make([]catalog.Value, len(e.Args))
		for i, a := range e.Args {
			v, err := EvaluateAggregates(env, a, row, aggs)
			if err != nil {
				return catalog.Null(), err
			}
			args[i] = v
		}
		return e.Symbol.Call(env, args)

	default:
		return catalog.Null(), catalog.NewError(catalog.KindRuntimeError, "unknown expression %T", expr)
	}
}

// FoldConstants returns a copy of expr where every call whose arguments are
// all literals, and whose function is deterministic and not an aggregate, is
// replaced by its value.
func FoldConstants(env function.Env, expr ValueExpression) (ValueExpression, error) {
	call, ok := expr.(*CallExpression)
	if !ok {
		return expr.DeepCopy(), nil
	}

	folded := &CallExpression{
		Name:         call.Name,
		WithinRecord: call.WithinRecord,
		Symbol:       call.Symbol,
		Args:         make([]ValueExpression, len(call.Args)),
	}
	allConst := true
	for i, a := range call.Args {
		f, err := FoldConstants(env, a)
		if err != nil {
			return nil, err
		}
		if _, lit := f.(*LiteralExpression); !lit {
			allConst = false
		}
		folded.Args[i] = f
	}

	if !allConst || call.Symbol == nil || call.Symbol.IsAggregate() || !call.Symbol.Deterministic {
		return folded, nil
	}
	v, err := Evaluate(env, folded, nil)
	if err != nil {
		return nil, err
	}
	return NewLiteral(v), nil
}

// IsConstantExpression reports whether expr can be computed without any
// input row: no column references, aggregates or non-deterministic calls.
func IsConstantExpression(expr ValueExpression) bool {
	switch e := expr.(type) {
	case *LiteralExpression:
		return true
	case *ColumnReference:
		return false
	case *CallExpression:
		if e.Symbol == nil || e.Symbol.IsAggregate() || !e.Symbol.Deterministic {
			return false
		}
		for _, a := range e.Args {
			if !IsConstantExpression(a) {
				return false
			}
		}
		return true
	}
	return false
}

// IsPureExpression reports whether expr contains no aggregate calls.
func IsPureExpression(expr ValueExpression) bool {
	return !HasAggregation(expr)
}

// HasAggregation reports whether expr contains any aggregate call, WITHIN
// RECORD or not.
func HasAggregation(expr ValueExpression) bool {
	found := false
	Walk(expr, func(e ValueExpression) bool {
		if c, ok := e.(*CallExpression); ok && c.IsAggregate() {
			found = true
		}
		return !found
	})
	return found
}

// HasGlobalAggregation reports whether expr aggregates across records.
func HasGlobalAggregation(expr ValueExpression) bool {
	found := false
	Walk(expr, func(e ValueExpression) bool {
		if c, ok := e.(*CallExpression); ok && c.IsAggregate() {
			if !c.WithinRecord {
				found = true
			}
			return false
		}
		return !found
	})
	return found
}

// HasWithinRecordAggregation reports whether expr contains a WITHIN RECORD call.
func HasWithinRecordAggregation(expr ValueExpression) bool {
	found := false
	Walk(expr, func(e ValueExpression) bool {
		if c, ok := e.(*CallExpression); ok && c.WithinRecord {
			found = true
		}
		return !found
	})
	return found
}

// Walk visits expr depth first. Children are skipped when fn returns false.
func Walk(expr ValueExpression, fn func(ValueExpression) bool) {
	if !fn(expr) {
		return
	}
	for _, a := range expr.Arguments() {
		Walk(a, fn)
	}
}

// ReferencedColumns returns the distinct column names referenced by expr in
// first-seen order.
func ReferencedColumns(expr ValueExpression) []string {
	var names []string
	seen := make(map[string]bool)
	Walk(expr, func(e ValueExpression) bool {
		if c, ok := e.(*ColumnReference); ok && !seen[c.Name] {
			seen[c.Name] = true
			names = append(names, c.Name)
		}
		return true
	})
	return names
}

// ResolveColumns binds every column reference in expr through resolve,
// which maps a name to an input index.
func ResolveColumns(expr ValueExpression, resolve func(name string) (int, error)) error {
	var err error
	Walk(expr, func(e ValueExpression) bool {
		if err != nil {
			return false
		}
		if c, ok := e.(*ColumnReference); ok {
			c.Index, err = resolve(c.Name)
		}
		return err == nil
	})
	return err
}
