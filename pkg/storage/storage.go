// Package storage provides the table sources the query engine scans. Every
// table is exposed column by column; nested and repeated fields carry Dremel
// style repetition and definition levels.
package storage

import (
	"context"

	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/qtree"
)

// ScanRequest describes what a scan needs from a table.
type ScanRequest struct {
	// Columns lists the leaf columns the scan will read.
	Columns []string
	// Constraints are advisory predicates the source may use to skip records.
	Constraints []qtree.ScanConstraint
}

// RecordFilter reports whether the record at the given index may match the
// scan constraints. Records it rejects can be skipped without being read.
type RecordFilter func(record uint64) bool

// ColumnCursor reads the (repetition level, definition level, value) triples
// of one column in storage order.
type ColumnCursor interface {
	MaxRepetitionLevel() int
	MaxDefinitionLevel() int
	// NextRepetitionLevel peeks at the repetition level of the next triple.
	// It returns 0 when the column is exhausted.
	NextRepetitionLevel() int
	// Next reads the next triple. A definition level below the maximum
	// means the value is NULL.
	Next() (r, d int, v catalog.Value, err error)
}

// TableScan is an open scan over a table.
type TableScan interface {
	NumRecords() uint64
	Cursor(column string) (ColumnCursor, bool)
	// RecordFilter returns nil when the source can't evaluate constraints.
	RecordFilter() RecordFilter
	Close() error
}

// Table is a single scannable table.
type Table interface {
	Info() catalog.TableInfo
	Open(ctx context.Context, req ScanRequest) (TableScan, error)
}

// TableProvider resolves table names for the query planner and engine.
type TableProvider interface {
	ListTables() []catalog.TableInfo
	Describe(name string) (catalog.TableInfo, bool)
	Open(ctx context.Context, name string, req ScanRequest) (TableScan, error)
}
