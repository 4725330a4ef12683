package engine

import (
	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/qtree"
)

// joinIterator is a nested loop join. The joined side is materialized, the
// base side is streamed.
type joinIterator struct {
	e          *Executor
	node       *qtree.JoinNode
	base       RowIterator
	joinedRows [][]catalog.Value

	condition  *program
	where      *program
	selectList []*program

	inRow  []catalog.Value
	outRow []catalog.Value

	baseRow  []catalog.Value
	haveBase bool
	pos      int
	matched  bool
	steps    int
	err      error
}

func (e *Executor) executeJoin(n *qtree.JoinNode) (RowIterator, error) {
	condition, err := compileOptional(e.env, n.Condition)
	if err != nil {
		return nil, err
	}
	if condition != nil && condition.hasAggregates() {
		return nil, catalog.NewError(catalog.KindRuntimeError,
			"JOIN conditions can only contain pure functions")
	}
	where, err := compileOptional(e.env, n.Where)
	if err != nil {
		return nil, err
	}
	selectList, err := compileSelectList(e.env, n.SelectList)
	if err != nil {
		return nil, err
	}

	joined, err := e.Execute(n.Joined)
	if err != nil {
		return nil, err
	}
	joinedRows, err := Collect(joined)
	if err != nil {
		return nil, err
	}

	base, err := e.Execute(n.Base)
	if err != nil {
		return nil, err
	}

	e.log.Debug("executing join", "type", n.Type.String(), "joined_rows", len(joinedRows))
	return &joinIterator{
		e:          e,
		node:       n,
		base:       base,
		joinedRows: joinedRows,
		condition:  condition,
		where:      where,
		selectList: selectList,
		inRow:      make([]catalog.Value, len(n.InputMap)),
		outRow:     make([]catalog.Value, len(selectList)),
	}, nil
}

// fillInput builds the combined row. A nil joined row pads the joined side
// with NULLs.
func (it *joinIterator) fillInput(joinedRow []catalog.Value) {
	for i, m := range it.node.InputMap {
		switch {
		case m.Side == qtree.BaseSide:
			it.inRow[i] = it.baseRow[m.Index]
		case joinedRow == nil:
			it.inRow[i] = catalog.Null()
		default:
			it.inRow[i] = joinedRow[m.Index]
		}
	}
}

func (it *joinIterator) project() error {
	for i, p := range it.selectList {
		v, err := p.evaluate(it.inRow)
		if err != nil {
			return err
		}
		it.outRow[i] = v
	}
	return nil
}

func (it *joinIterator) Next() bool {
	if it.err != nil {
		return false
	}
	ok, err := it.next()
	if err != nil {
		it.err = err
		return false
	}
	return ok
}

func (it *joinIterator) next() (bool, error) {
	for {
		if !it.haveBase {
			if !it.base.Next() {
				return false, it.base.Err()
			}
			it.baseRow = it.base.Row()
			it.haveBase = true
			it.pos = 0
			it.matched = false
		}

		for it.pos < len(it.joinedRows) {
			joinedRow := it.joinedRows[it.pos]
			it.pos++

			it.steps++
			if it.steps%cancelCheckInterval == 0 {
				if err := it.e.cancelled(); err != nil {
					return false, err
				}
			}

			it.fillInput(joinedRow)
			if it.node.Type != qtree.JoinCartesian {
				ok, err := evaluatePredicate(it.condition, it.inRow)
				if err != nil {
					return false, err
				}
				if !ok {
					continue
				}
			}
			// an ON match suppresses the NULL padded row even if WHERE
			// rejects it
			it.matched = true
			ok, err := evaluatePredicate(it.where, it.inRow)
			if err != nil {
				return false, err
			}
			if !ok {
				continue
			}
			return true, it.project()
		}

		emitPadded := it.node.Type == qtree.JoinOuter && !it.matched
		if emitPadded {
			it.fillInput(nil)
		}
		it.haveBase = false
		if !emitPadded {
			continue
		}

		ok, err := evaluatePredicate(it.where, it.inRow)
		if err != nil {
			return false, err
		}
		if ok {
			return true, it.project()
		}
	}
}

func (it *joinIterator) Row() []catalog.Value { return it.outRow }
func (it *joinIterator) Err() error           { return it.err }
func (it *joinIterator) Close() error         { return it.base.Close() }
