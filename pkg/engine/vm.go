package engine

import (
	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/function"
	"github.com/eventql/eventql-sub000/pkg/qtree"
)

// program is a checked value expression. Aggregate state lives in a
// separate instance so one program can serve many groups. Evaluation goes
// through qtree.EvaluateAggregates.
type program struct {
	env   function.Env
	expr  qtree.ValueExpression
	aggs  []*qtree.CallExpression
	slots map[*qtree.CallExpression]int
	// rows read by result before any row was accumulated
	nullRow []catalog.Value
}

// instance holds the aggregate state of one program evaluation context.
type instance struct {
	aggs    []function.Aggregator
	lastRow []catalog.Value
	hasRow  bool
}

func compile(env function.Env, expr qtree.ValueExpression) (*program, error) {
	p := &program{env: env, expr: expr, slots: make(map[*qtree.CallExpression]int)}
	width := 0
	if err := p.check(expr, false, &width); err != nil {
		return nil, err
	}
	p.nullRow = make([]catalog.Value, width)
	for i := range p.nullRow {
		p.nullRow[i] = catalog.Null()
	}
	return p, nil
}

// check resolves the aggregate slots of expr and rejects expressions the
// engine can't run.
func (p *program) check(expr qtree.ValueExpression, inAggregate bool, width *int) error {
	switch e := expr.(type) {
	case *qtree.LiteralExpression:
		return nil

	case *qtree.ColumnReference:
		if e.Index < 0 {
			return catalog.ColumnNotFound(e.Name)
		}
		if e.Index >= *width {
			*width = e.Index + 1
		}
		return nil

	case *qtree.CallExpression:
		if e.Symbol == nil {
			return catalog.NewError(catalog.KindRuntimeError, "unresolved function: %s", e.Name)
		}
		agg := e.Symbol.IsAggregate()
		if agg {
			if inAggregate {
				return catalog.NewError(catalog.KindRuntimeError,
					"aggregate function %s can't be nested in another aggregate", e.Name)
			}
			p.slots[e] = len(p.aggs)
			p.aggs = append(p.aggs, e)
		}
		for _, a := range e.Args {
			if err := p.check(a, inAggregate || agg, width); err != nil {
				return err
			}
		}
		return nil
	}
	return catalog.NewError(catalog.KindRuntimeError, "unknown expression %T", expr)
}

func (p *program) hasAggregates() bool { return len(p.aggs) > 0 }

func (p *program) newInstance() *instance {
	inst := &instance{aggs: make([]function.Aggregator, len(p.aggs))}
	for i, call := range p.aggs {
		agg := call.Symbol.NewAggregate()
		if rs, ok := agg.(function.RecordScoper); ok && call.WithinRecord {
			rs.ScopeToRecord()
		}
		inst.aggs[i] = agg
	}
	return inst
}

// evaluate computes a pure program against row.
func (p *program) evaluate(row []catalog.Value) (catalog.Value, error) {
	return qtree.Evaluate(p.env, p.expr, row)
}

// accumulate feeds row into every aggregate of the program and remembers it
// for the non-aggregate parts of the result.
func (p *program) accumulate(inst *instance, row []catalog.Value) error {
	for i, call := range p.aggs {
		args := make([]catalog.Value, len(call.Args))
		for j, a := range call.Args {
			v, err := qtree.Evaluate(p.env, a, row)
			if err != nil {
				return err
			}
			args[j] = v
		}
		if err := inst.aggs[i].Accumulate(args); err != nil {
			return err
		}
	}
	inst.lastRow = append(inst.lastRow[:0], row...)
	inst.hasRow = true
	return nil
}

// result computes the program from the aggregate state. Column references
// outside aggregates read the last accumulated row, or NULL if there is none.
func (p *program) result(inst *instance) (catalog.Value, error) {
	row := p.nullRow
	if inst.hasRow {
		row = inst.lastRow
	}
	return qtree.EvaluateAggregates(p.env, p.expr, row, func(call *qtree.CallExpression) (catalog.Value, error) {
		slot, ok := p.slots[call]
		if !ok {
			return catalog.Null(), catalog.NewError(catalog.KindRuntimeError,
				"aggregate function %s can't be used in this context", call.Name)
		}
		return inst.aggs[slot].Result(), nil
	})
}

func (p *program) reset(inst *instance) {
	for _, a := range inst.aggs {
		a.Reset()
	}
	inst.lastRow = inst.lastRow[:0]
	inst.hasRow = false
}

// evaluatePredicate evaluates a compiled WHERE or ON expression.
func evaluatePredicate(p *program, row []catalog.Value) (bool, error) {
	if p == nil {
		return true, nil
	}
	v, err := p.evaluate(row)
	if err != nil {
		return false, err
	}
	return v.ToBool()
}

func compileSelectList(env function.Env, list []*qtree.SelectListNode) ([]*program, error) {
	progs := make([]*program, len(list))
	for i, s := range list {
		p, err := compile(env, s.Expression)
		if err != nil {
			return nil, err
		}
		progs[i] = p
	}
	return progs, nil
}

func compileOptional(env function.Env, expr qtree.ValueExpression) (*program, error) {
	if expr == nil {
		return nil, nil
	}
	return compile(env, expr)
}
