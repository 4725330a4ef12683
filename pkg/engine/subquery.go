package engine

import (
	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/qtree"
)

// subqueryIterator filters and projects the rows of a nested query. When the
// select list aggregates, all matching rows fold into a single output row.
type subqueryIterator struct {
	e          *Executor
	input      RowIterator
	where      *program
	selectList []*program
	instances  []*instance
	aggregate  bool
	done       bool
	row        []catalog.Value
	err        error
}

func (e *Executor) executeSubquery(n *qtree.SubqueryNode) (RowIterator, error) {
	where, err := compileOptional(e.env, n.Where)
	if err != nil {
		return nil, err
	}
	if where != nil && where.hasAggregates() {
		return nil, catalog.NewError(catalog.KindRuntimeError,
			"where expressions can only contain pure functions")
	}
	selectList, err := compileSelectList(e.env, n.SelectList)
	if err != nil {
		return nil, err
	}

	it := &subqueryIterator{
		e:          e,
		where:      where,
		selectList: selectList,
		row:        make([]catalog.Value, len(selectList)),
	}
	for _, p := range selectList {
		if p.hasAggregates() {
			it.aggregate = true
		}
	}
	if it.aggregate {
		it.instances = make([]*instance, len(selectList))
		for i, p := range selectList {
			it.instances[i] = p.newInstance()
		}
	}

	if it.input, err = e.Execute(n.Subquery); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *subqueryIterator) Next() bool {
	if it.err != nil || it.done {
		return false
	}
	ok, err := it.next()
	if err != nil {
		it.err = err
		return false
	}
	return ok
}

func (it *subqueryIterator) next() (bool, error) {
	for it.input.Next() {
		row := it.input.Row()
		ok, err := evaluatePredicate(it.where, row)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}

		if it.aggregate {
			for i, p := range it.selectList {
				if err := p.accumulate(it.instances[i], row); err != nil {
					return false, err
				}
			}
			continue
		}

		for i, p := range it.selectList {
			v, err := p.evaluate(row)
			if err != nil {
				return false, err
			}
			it.row[i] = v
		}
		return true, nil
	}
	if err := it.input.Err(); err != nil {
		return false, err
	}

	it.done = true
	if !it.aggregate {
		return false, nil
	}
	for i, p := range it.selectList {
		v, err := p.result(it.instances[i])
		if err != nil {
			return false, err
		}
		it.row[i] = v
	}
	return true, nil
}

func (it *subqueryIterator) Row() []catalog.Value { return it.row }
func (it *subqueryIterator) Err() error           { return it.err }
func (it *subqueryIterator) Close() error         { return it.input.Close() }

// unionIterator returns the rows of each input in turn.
type unionIterator struct {
	e       *Executor
	inputs  []qtree.Node
	current RowIterator
	pos     int
	err     error
}

func (e *Executor) executeUnion(n *qtree.UnionNode) (RowIterator, error) {
	if len(n.Inputs) == 0 {
		return newSliceIterator(nil), nil
	}
	width := len(n.Inputs[0].Columns())
	for _, in := range n.Inputs[1:] {
		if len(in.Columns()) != width {
			return nil, catalog.NewError(catalog.KindRuntimeError,
				"UNION tables return different number of columns: %d vs %d", width, len(in.Columns()))
		}
	}
	return &unionIterator{e: e, inputs: n.Inputs, pos: -1}, nil
}

func (it *unionIterator) Next() bool {
	for it.err == nil {
		if it.current != nil {
			if it.current.Next() {
				return true
			}
			if err := it.current.Err(); err != nil {
				it.err = err
				return false
			}
			it.current.Close()
			it.current = nil
		}
		if it.pos+1 >= len(it.inputs) {
			return false
		}
		it.pos++
		cur, err := it.e.Execute(it.inputs[it.pos])
		if err != nil {
			it.err = err
			return false
		}
		it.current = cur
	}
	return false
}

func (it *unionIterator) Row() []catalog.Value { return it.current.Row() }
func (it *unionIterator) Err() error           { return it.err }

func (it *unionIterator) Close() error {
	if it.current == nil {
		return nil
	}
	err := it.current.Close()
	it.current = nil
	return err
}

func (e *Executor) executeSelectExpression(n *qtree.SelectExpressionNode) (RowIterator, error) {
	row := make([]catalog.Value, len(n.SelectList))
	for i, s := range n.SelectList {
		p, err := compile(e.env, s.Expression)
		if err != nil {
			return nil, err
		}
		if p.hasAggregates() {
			return nil, catalog.NewError(catalog.KindRuntimeError,
				"a SELECT without any tables can only contain pure functions")
		}
		if row[i], err = p.evaluate(nil); err != nil {
			return nil, err
		}
	}
	return newSliceIterator([][]catalog.Value{row}), nil
}
