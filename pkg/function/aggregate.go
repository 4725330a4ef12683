package function

import (
	"fmt"

	"github.com/eventql/eventql-sub000/pkg/catalog"
)

func registerAggregates(t *SymbolTable) {
	t.RegisterAggregate("count", 0, 1, func() Aggregator { return &countAggregate{} })
	t.RegisterAggregate("sum", 1, 1, func() Aggregator { return &sumAggregate{} })
	t.RegisterAggregate("min", 1, 1, func() Aggregator { return &extremeAggregate{want: -1} })
	t.RegisterAggregate("max", 1, 1, func() Aggregator { return &extremeAggregate{want: 1} })
	t.RegisterAggregate("mean", 1, 1, func() Aggregator { return &meanAggregate{} })
	t.RegisterAggregate("avg", 1, 1, func() Aggregator { return &meanAggregate{} })
}

func mergeMismatch(a, b Aggregator) error {
	return fmt.Errorf("can't merge %T into %T", b, a)
}

// countAggregate counts non-NULL arguments; count() with no argument counts rows.
// Scoped to a record it yields NULL when the record has no values.
type countAggregate struct {
	n      int64
	record bool
}

func (a *countAggregate) Accumulate(args []catalog.Value) error {
	if len(args) == 0 || !args[0].IsNull() {
		a.n++
	}
	return nil
}

func (a *countAggregate) Result() catalog.Value {
	if a.record && a.n == 0 {
		return catalog.Null()
	}
	return catalog.NewInteger(a.n)
}

func (a *countAggregate) Reset()         { a.n = 0 }
func (a *countAggregate) ScopeToRecord() { a.record = true }

func (a *countAggregate) Merge(other Aggregator) error {
	o, ok := other.(*countAggregate)
	if !ok {
		return mergeMismatch(a, other)
	}
	a.n += o.n
	return nil
}

type sumAggregate struct {
	sum   catalog.Value
	valid bool
}

func (a *sumAggregate) Accumulate(args []catalog.Value) error {
	v := args[0]
	if v.IsNull() {
		return nil
	}
	switch v.Type {
	case catalog.TypeString, catalog.TypeTimestamp, catalog.TypeBool:
		if iv, err := v.ToIntegerStrict(); err == nil {
			v = catalog.NewInteger(iv)
		} else {
			f, err := v.ToFloat()
			if err != nil {
				return argError("sum", err)
			}
			v = catalog.NewFloat(f)
		}
	}
	if !a.valid {
		a.sum, a.valid = v, true
		return nil
	}
	s, err := catalog.Add(a.sum, v)
	if err != nil {
		return argError("sum", err)
	}
	a.sum = s
	return nil
}

func (a *sumAggregate) Result() catalog.Value {
	if !a.valid {
		return catalog.Null()
	}
	return a.sum
}

func (a *sumAggregate) Reset() { a.sum, a.valid = catalog.Null(), false }

func (a *sumAggregate) Merge(other Aggregator) error {
	o, ok := other.(*sumAggregate)
	if !ok {
		return mergeMismatch(a, other)
	}
	if !o.valid {
		return nil
	}
	return a.Accumulate([]catalog.Value{o.sum})
}

// extremeAggregate implements min (want -1) and max (want 1).
type extremeAggregate struct {
	want  int
	value catalog.Value
	valid bool
}

func (a *extremeAggregate) Accumulate(args []catalog.Value) error {
	v := args[0]
	if v.IsNull() {
		return nil
	}
	if !a.valid {
		a.value, a.valid = v, true
		return nil
	}
	c, err := catalog.Compare(v, a.value)
	if err != nil {
		return err
	}
	if c == a.want {
		a.value = v
	}
	return nil
}

func (a *extremeAggregate) Result() catalog.Value {
	if !a.valid {
		return catalog.Null()
	}
	return a.value
}

func (a *extremeAggregate) Reset() { a.value, a.valid = catalog.Null(), false }

func (a *extremeAggregate) Merge(other Aggregator) error {
	o, ok := other.(*extremeAggregate)
	if !ok || o.want != a.want {
		return mergeMismatch(a, other)
	}
	if !o.valid {
		return nil
	}
	return a.Accumulate([]catalog.Value{o.value})
}

type meanAggregate struct {
	sum   float64
	count int64
}

func (a *meanAggregate) Accumulate(args []catalog.Value) error {
	if args[0].IsNull() {
		return nil
	}
	f, err := args[0].ToFloat()
	if err != nil {
		return argError("mean", err)
	}
	a.sum += f
	a.count++
	return nil
}

func (a *meanAggregate) Result() catalog.Value {
	if a.count == 0 {
		return catalog.Null()
	}
	return catalog.NewFloat(a.sum / float64(a.count))
}

func (a *meanAggregate) Reset() { a.sum, a.count = 0, 0 }

func (a *meanAggregate) Merge(other Aggregator) error {
	o, ok := other.(*meanAggregate)
	if !ok {
		return mergeMismatch(a, other)
	}
	a.sum += o.sum
	a.count += o.count
	return nil
}
