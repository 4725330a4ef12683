package engine

import (
	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/qtree"
	"github.com/eventql/eventql-sub000/pkg/storage"
)

const cancelCheckInterval = 1024

type scanColumn struct {
	name   string
	cursor storage.ColumnCursor
	maxR   int
	maxD   int
}

type scanSelectItem struct {
	prog     *program
	inst     *instance
	repLevel int
}

// scanIterator walks the columns of a table in lockstep. Each fetch reads
// every column whose next repetition level is at least the current fetch
// level; a next level of 0 marks the end of a record.
type scanIterator struct {
	e        *Executor
	node     *qtree.SequentialScanNode
	scan     storage.TableScan
	filter   storage.RecordFilter
	strategy qtree.AggregationStrategy

	columns    []scanColumn
	selectList []scanSelectItem
	where      *program

	inRow  []catalog.Value
	outRow []catalog.Value

	numRecords  uint64
	curRecord   uint64
	fetchLevel  int
	selectLevel int
	filterPred  bool
	recordMatch bool
	fetches     int

	finished bool
	err      error
	closed   bool
}

func (e *Executor) executeScan(n *qtree.SequentialScanNode) (RowIterator, error) {
	scan, err := e.tables.Open(e.ctx, n.TableName, storage.ScanRequest{
		Columns:     n.InputColumns,
		Constraints: n.Constraints,
	})
	if err != nil {
		return nil, err
	}

	it := &scanIterator{
		e:          e,
		node:       n,
		scan:       scan,
		filter:     scan.RecordFilter(),
		strategy:   n.Strategy,
		numRecords: scan.NumRecords(),
		inRow:      make([]catalog.Value, len(n.InputColumns)),
		outRow:     make([]catalog.Value, len(n.SelectList)),
		filterPred: true,
	}
	for _, name := range n.InputColumns {
		cur, ok := scan.Cursor(name)
		if !ok {
			scan.Close()
			return nil, catalog.ColumnNotFound(name)
		}
		it.columns = append(it.columns, scanColumn{
			name:   name,
			cursor: cur,
			maxR:   cur.MaxRepetitionLevel(),
			maxD:   cur.MaxDefinitionLevel(),
		})
	}
	for i := range it.inRow {
		it.inRow[i] = catalog.Null()
	}

	for _, s := range n.SelectList {
		prog, err := compile(e.env, s.Expression)
		if err != nil {
			scan.Close()
			return nil, err
		}
		it.selectList = append(it.selectList, scanSelectItem{
			prog:     prog,
			inst:     prog.newInstance(),
			repLevel: it.maxRepetitionLevel(s.Expression),
		})
	}
	if it.where, err = compileOptional(e.env, n.Where); err != nil {
		scan.Close()
		return nil, err
	}

	e.log.Debug("scanning table",
		"table", n.TableName,
		"records", it.numRecords,
		"columns", len(it.columns),
		"strategy", n.Strategy.String(),
		"constraints", len(n.Constraints))
	return it, nil
}

// maxRepetitionLevel returns the deepest repetition level of the columns an
// expression reads.
func (it *scanIterator) maxRepetitionLevel(expr qtree.ValueExpression) int {
	level := 0
	qtree.Walk(expr, func(e qtree.ValueExpression) bool {
		if c, ok := e.(*qtree.ColumnReference); ok && c.Index >= 0 && c.Index < len(it.columns) {
			if r := it.columns[c.Index].maxR; r > level {
				level = r
			}
		}
		return true
	})
	return level
}

func (it *scanIterator) Next() bool {
	if it.closed || it.err != nil || it.finished {
		return false
	}

	for it.curRecord < it.numRecords {
		it.fetches++
		if it.fetches%cancelCheckInterval == 0 {
			if err := it.e.cancelled(); err != nil {
				it.err = err
				return false
			}
		}

		var emitted bool
		var err error
		if len(it.columns) == 0 {
			emitted, err = it.fetchRecordWithoutColumns()
		} else {
			emitted, err = it.fetchNext()
		}
		if err != nil {
			it.err = err
			return false
		}
		if emitted {
			return true
		}
	}

	it.finished = true
	if it.strategy == qtree.AggregateAll {
		if err := it.computeResults(); err != nil {
			it.err = err
			return false
		}
		return true
	}
	return false
}

// fetchNext performs one fetch iteration and reports whether a row was
// produced.
func (it *scanIterator) fetchNext() (bool, error) {
	if it.fetchLevel == 0 && it.filter != nil {
		it.filterPred = it.filter(it.curRecord)
	}

	nextLevel := 0
	for i := range it.columns {
		col := &it.columns[i]
		if col.cursor.NextRepetitionLevel() >= it.fetchLevel {
			_, d, v, err := col.cursor.Next()
			if err != nil {
				return false, err
			}
			if d < col.maxD {
				v = catalog.Null()
			}
			it.inRow[i] = v
		}
		if r := col.cursor.NextRepetitionLevel(); r > nextLevel {
			nextLevel = r
		}
	}

	it.fetchLevel = nextLevel
	if it.fetchLevel == 0 {
		it.curRecord++
	}

	emitted := false
	pass := it.filterPred
	if pass {
		var err error
		if pass, err = evaluatePredicate(it.where, it.inRow); err != nil {
			return false, err
		}
	}

	if pass {
		for _, s := range it.selectList {
			if s.repLevel >= it.selectLevel {
				if err := s.prog.accumulate(s.inst, it.inRow); err != nil {
					return false, err
				}
			}
		}

		switch it.strategy {
		case qtree.NoAggregation:
			for i, s := range it.selectList {
				v, err := s.prog.evaluate(it.inRow)
				if err != nil {
					return false, err
				}
				it.outRow[i] = v
			}
			emitted = true

		case qtree.AggregateWithinRecordDeep:
			if err := it.computeResults(); err != nil {
				return false, err
			}
			emitted = true

		case qtree.AggregateWithinRecordFlat:
			it.recordMatch = true
		}

		it.selectLevel = it.fetchLevel
	} else if it.fetchLevel < it.selectLevel {
		it.selectLevel = it.fetchLevel
	}

	if it.strategy == qtree.AggregateWithinRecordFlat && nextLevel == 0 {
		if it.recordMatch {
			if err := it.computeResults(); err != nil {
				return false, err
			}
			emitted = true
		}
		it.resetAggregates()
		it.recordMatch = false
	}

	// values below the fetch level stay in place until they are read again
	for i := range it.columns {
		if it.columns[i].maxR >= it.fetchLevel {
			it.inRow[i] = catalog.Null()
		}
	}
	return emitted, nil
}

// fetchRecordWithoutColumns handles scans that read no column, such as
// SELECT count(1) FROM t. Each record is one row.
func (it *scanIterator) fetchRecordWithoutColumns() (bool, error) {
	pass := true
	if it.filter != nil {
		pass = it.filter(it.curRecord)
	}
	it.curRecord++

	if pass {
		var err error
		if pass, err = evaluatePredicate(it.where, nil); err != nil {
			return false, err
		}
	}
	if !pass {
		return false, nil
	}

	for _, s := range it.selectList {
		if err := s.prog.accumulate(s.inst, nil); err != nil {
			return false, err
		}
	}
	if it.strategy == qtree.AggregateAll {
		return false, nil
	}
	if err := it.computeResults(); err != nil {
		return false, err
	}
	return true, nil
}

// computeResults fills outRow from the aggregate state and resets it.
func (it *scanIterator) computeResults() error {
	for i, s := range it.selectList {
		v, err := s.prog.result(s.inst)
		if err != nil {
			return err
		}
		it.outRow[i] = v
	}
	it.resetAggregates()
	return nil
}

func (it *scanIterator) resetAggregates() {
	for _, s := range it.selectList {
		s.prog.reset(s.inst)
	}
}

func (it *scanIterator) Row() []catalog.Value { return it.outRow }
func (it *scanIterator) Err() error           { return it.err }

func (it *scanIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.scan.Close()
}
