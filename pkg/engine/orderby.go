package engine

import (
	"sort"

	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/qtree"
)

type sortedRow struct {
	row  []catalog.Value
	keys []catalog.Value
}

func (e *Executor) executeOrderBy(n *qtree.OrderByNode) (RowIterator, error) {
	keys := make([]*program, len(n.Specs))
	for i, s := range n.Specs {
		p, err := compile(e.env, s.Expr)
		if err != nil {
			return nil, err
		}
		keys[i] = p
	}

	input, err := e.Execute(n.Input)
	if err != nil {
		return nil, err
	}
	rows, err := Collect(input)
	if err != nil {
		return nil, err
	}

	sorted := make([]sortedRow, len(rows))
	for i, row := range rows {
		sorted[i].row = row
		sorted[i].keys = make([]catalog.Value, len(keys))
		for j, k := range keys {
			v, err := k.evaluate(row)
			if err != nil {
				return nil, err
			}
			sorted[i].keys[j] = v
		}
	}

	// Sort with multiple columns
	sort.SliceStable(sorted, func(i, j int) bool {
		for k, spec := range n.Specs {
			cmp := catalog.SortCompare(sorted[i].keys[k], sorted[j].keys[k])
			if cmp == 0 {
				continue
			}
			if spec.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})

	out := make([][]catalog.Value, len(sorted))
	for i, s := range sorted {
		row := s.row
		if n.NumVisible >= 0 && n.NumVisible < len(row) {
			row = row[:n.NumVisible]
		}
		out[i] = row
	}
	e.log.Debug("sorted rows", "rows", len(out), "keys", len(keys))
	return newSliceIterator(out), nil
}

// limitIterator skips Offset rows and stops after Limit rows.
type limitIterator struct {
	input   RowIterator
	limit   int64
	offset  int64
	skipped int64
	emitted int64
}

func (e *Executor) executeLimit(n *qtree.LimitNode) (RowIterator, error) {
	input, err := e.Execute(n.Input)
	if err != nil {
		return nil, err
	}
	return &limitIterator{input: input, limit: n.Limit, offset: n.Offset}, nil
}

func (it *limitIterator) Next() bool {
	if it.limit >= 0 && it.emitted >= it.limit {
		return false
	}
	for it.skipped < it.offset {
		if !it.input.Next() {
			return false
		}
		it.skipped++
	}
	if !it.input.Next() {
		return false
	}
	it.emitted++
	return true
}

func (it *limitIterator) Row() []catalog.Value { return it.input.Row() }
func (it *limitIterator) Err() error           { return it.input.Err() }
func (it *limitIterator) Close() error         { return it.input.Close() }
