// Package engine executes query trees. Every node becomes a pull-based
// RowIterator; a statement runs on a single goroutine.
package engine

import (
	"context"

	"github.com/eventql/eventql-sub000/internal/logger"
	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/function"
	"github.com/eventql/eventql-sub000/pkg/qtree"
	"github.com/eventql/eventql-sub000/pkg/storage"
)

// RowIterator iterates over the rows a query node produces.
type RowIterator interface {
	// Next advances to the next row. It returns false when the rows are
	// exhausted or an error occurred.
	Next() bool

	// Row returns the current row. It is only valid until the next call
	// to Next.
	Row() []catalog.Value

	// Err returns the error that stopped the iteration, if any.
	Err() error

	// Close releases iterator resources.
	Close() error
}

// Executor turns query tree nodes into row iterators.
type Executor struct {
	ctx    context.Context
	env    function.Env
	tables storage.TableProvider
	log    *logger.Logger
}

// NewExecutor creates an executor for one statement.
func NewExecutor(ctx context.Context, env function.Env, tables storage.TableProvider, log *logger.Logger) *Executor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Executor{ctx: ctx, env: env, tables: tables, log: log}
}

// Execute returns an iterator over the rows of node.
func (e *Executor) Execute(node qtree.Node) (RowIterator, error) {
	switch n := node.(type) {
	case *qtree.SequentialScanNode:
		return e.executeScan(n)
	case *qtree.GroupByNode:
		return e.executeGroupBy(n)
	case *qtree.JoinNode:
		return e.executeJoin(n)
	case *qtree.UnionNode:
		return e.executeUnion(n)
	case *qtree.SubqueryNode:
		return e.executeSubquery(n)
	case *qtree.OrderByNode:
		return e.executeOrderBy(n)
	case *qtree.LimitNode:
		return e.executeLimit(n)
	case *qtree.SelectExpressionNode:
		return e.executeSelectExpression(n)
	case *qtree.ShowTablesNode:
		return e.executeShowTables(n)
	case *qtree.DescribeTableNode:
		return e.executeDescribe(n)
	default:
		return nil, catalog.NewError(catalog.KindRuntimeError, "can't execute %T", node)
	}
}

// cancelled reports the context error, if the statement was cancelled.
func (e *Executor) cancelled() error {
	if e.ctx == nil {
		return nil
	}
	return e.ctx.Err()
}

// Collect drains it into a slice of rows and closes it.
func Collect(it RowIterator) ([][]catalog.Value, error) {
	defer it.Close()
	var rows [][]catalog.Value
	for it.Next() {
		rows = append(rows, append([]catalog.Value(nil), it.Row()...))
	}
	return rows, it.Err()
}

// sliceIterator iterates over materialized rows.
type sliceIterator struct {
	rows [][]catalog.Value
	pos  int
}

func newSliceIterator(rows [][]catalog.Value) *sliceIterator {
	return &sliceIterator{rows: rows, pos: -1}
}

func (it *sliceIterator) Next() bool {
	if it.pos+1 >= len(it.rows) {
		it.pos = len(it.rows)
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Row() []catalog.Value { return it.rows[it.pos] }
func (it *sliceIterator) Err() error           { return nil }
func (it *sliceIterator) Close() error         { return nil }
