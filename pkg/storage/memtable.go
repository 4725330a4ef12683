package storage

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/qtree"
)

// Field declares one field of a nested table schema. Groups have Fields and
// no Type. Top-level fields are optional unless Required is set.
type Field struct {
	Name        string
	Type        catalog.DataType
	Repeated    bool
	Required    bool
	Description string
	Fields      []Field
}

func (f *Field) isGroup() bool { return len(f.Fields) > 0 }

const microsPerSecond = int64(time.Second / time.Microsecond)

// cell is one striped (r, d, v) triple.
type cell struct {
	r, d int
	v    catalog.Value
}

type memColumn struct {
	info  catalog.ColumnInfo
	cells []cell
}

// fieldNode is a schema field with its computed levels and leaf columns.
type fieldNode struct {
	field    Field
	repLevel int
	defLevel int
	children []*fieldNode
	column   *memColumn
}

// MemTable is an in-memory columnar table. Records are shredded into one
// cell stripe per leaf column when they are added.
type MemTable struct {
	mu          sync.RWMutex
	name        string
	description string
	root        []*fieldNode
	columns     []*memColumn
	numRecords  uint64
}

// NewMemTable creates an empty table with a nested schema.
func NewMemTable(name string, fields []Field) *MemTable {
	t := &MemTable{name: name}
	for _, f := range fields {
		t.root = append(t.root, t.buildField(f, "", 0, 0))
	}
	return t
}

func (t *MemTable) buildField(f Field, prefix string, parentRep, parentDef int) *fieldNode {
	n := &fieldNode{field: f, repLevel: parentRep, defLevel: parentDef}
	if f.Repeated {
		n.repLevel++
	}
	if f.Repeated || !f.Required {
		n.defLevel++
	}
	path := f.Name
	if prefix != "" {
		path = prefix + "." + f.Name
	}
	if f.isGroup() {
		for _, c := range f.Fields {
			n.children = append(n.children, t.buildField(c, path, n.repLevel, n.defLevel))
		}
		return n
	}
	n.column = &memColumn{info: catalog.ColumnInfo{
		Name:               path,
		Type:               f.Type,
		Nullable:           n.defLevel > 0,
		Repeated:           n.repLevel > 0,
		MaxRepetitionLevel: n.repLevel,
		MaxDefinitionLevel: n.defLevel,
		Description:        f.Description,
	}}
	t.columns = append(t.columns, n.column)
	return n
}

// newFlatMemTable creates a table of non-repeated nullable columns.
func newFlatMemTable(name string, columns []catalog.ColumnInfo) *MemTable {
	fields := make([]Field, len(columns))
	for i, c := range columns {
		fields[i] = Field{Name: c.Name, Type: c.Type, Description: c.Description}
	}
	return NewMemTable(name, fields)
}

// SetDescription sets the table description shown by SHOW TABLES.
func (t *MemTable) SetDescription(desc string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.description = desc
}

// NumRecords returns the number of top-level records.
func (t *MemTable) NumRecords() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.numRecords
}

// Info describes the table and its leaf columns.
func (t *MemTable) Info() catalog.TableInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	info := catalog.TableInfo{Name: t.name, Description: t.description}
	for _, c := range t.columns {
		info.Columns = append(info.Columns, c.info)
	}
	return info
}

// AddRecord shreds one record. Nested groups are map[string]any values and
// repeated fields are []any slices. A record that fails to shred leaves the
// table unchanged.
func (t *MemTable) AddRecord(rec map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	marks := make([]int, len(t.columns))
	for i, c := range t.columns {
		marks[i] = len(c.cells)
	}
	for _, f := range t.root {
		if err := writeField(f, rec[f.field.Name], 0, 0); err != nil {
			for i, c := range t.columns {
				c.cells = c.cells[:marks[i]]
			}
			return fmt.Errorf("table %s: %w", t.name, err)
		}
	}
	t.numRecords++
	return nil
}

// AddRow appends a flat record whose values are given in column order.
func (t *MemTable) AddRow(values []catalog.Value) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(values) != len(t.columns) {
		return fmt.Errorf("table %s: expected %d values, got %d", t.name, len(t.columns), len(values))
	}
	for i, c := range t.columns {
		if c.info.MaxRepetitionLevel != 0 {
			return fmt.Errorf("table %s: AddRow on repeated column %s", t.name, c.info.Name)
		}
		v := values[i]
		d := c.info.MaxDefinitionLevel
		if v.IsNull() {
			d = 0
		}
		c.cells = append(c.cells, cell{r: 0, d: d, v: v})
	}
	t.numRecords++
	return nil
}

func writeField(n *fieldNode, v any, r, d int) error {
	switch {
	case n.field.Repeated:
		items, ok := v.([]any)
		if v != nil && !ok {
			items = []any{v}
		}
		if len(items) == 0 {
			writeNulls(n, r, d)
			return nil
		}
		for i, item := range items {
			ri := r
			if i > 0 {
				ri = n.repLevel
			}
			if err := writeItem(n, item, ri, d+1); err != nil {
				return err
			}
		}
		return nil

	case !n.field.Required:
		if v == nil {
			writeNulls(n, r, d)
			return nil
		}
		return writeItem(n, v, r, d+1)

	default:
		if v == nil {
			return fmt.Errorf("missing required field %s", n.field.Name)
		}
		return writeItem(n, v, r, d)
	}
}

func writeItem(n *fieldNode, v any, r, d int) error {
	if n.column != nil {
		val, err := toValue(v, n.field.Type)
		if err != nil {
			return fmt.Errorf("field %s: %w", n.column.info.Name, err)
		}
		if val.IsNull() && d > 0 {
			// an explicit null is undefined at this level
			d--
		}
		n.column.cells = append(n.column.cells, cell{r: r, d: d, v: val})
		return nil
	}
	group, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("field %s: expected an object, got %T", n.field.Name, v)
	}
	for _, c := range n.children {
		if err := writeField(c, group[c.field.Name], r, d); err != nil {
			return err
		}
	}
	return nil
}

func writeNulls(n *fieldNode, r, d int) {
	if n.column != nil {
		n.column.cells = append(n.column.cells, cell{r: r, d: d, v: catalog.Null()})
		return
	}
	for _, c := range n.children {
		writeNulls(c, r, d)
	}
}

// toValue converts a decoded document value to the column type.
func toValue(v any, typ catalog.DataType) (catalog.Value, error) {
	var val catalog.Value
	switch x := v.(type) {
	case nil:
		return catalog.Null(), nil
	case catalog.Value:
		val = x
	case int:
		val = catalog.NewInteger(int64(x))
	case int32:
		val = catalog.NewInteger(int64(x))
	case int64:
		val = catalog.NewInteger(x)
	case uint64:
		if x > math.MaxInt64 {
			return catalog.Null(), fmt.Errorf("integer %d out of range", x)
		}
		val = catalog.NewInteger(int64(x))
	case float32:
		val = catalog.NewFloat(float64(x))
	case float64:
		val = catalog.NewFloat(x)
	case bool:
		val = catalog.NewBool(x)
	case string:
		if typ == catalog.TypeString {
			return catalog.NewString(x), nil
		}
		val = catalog.ParseValue(strings.TrimSpace(x))
	case time.Time:
		val = catalog.NewTime(x)
	default:
		return catalog.Null(), fmt.Errorf("unsupported value %T", v)
	}

	switch typ {
	case catalog.TypeNull:
		return val, nil
	case catalog.TypeTimestamp:
		// bare numbers in timestamp columns are unix seconds
		switch val.Type {
		case catalog.TypeInteger:
			return catalog.NewTimestamp(val.Int * microsPerSecond), nil
		case catalog.TypeFloat:
			return catalog.NewTimestamp(int64(math.Round(val.Float * float64(microsPerSecond)))), nil
		}
	}
	return val.CastTo(typ)
}

// Open snapshots the table and returns a scan over it.
func (t *MemTable) Open(ctx context.Context, req ScanRequest) (TableScan, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	scan := &memScan{
		numRecords: t.numRecords,
		columns:    make(map[string]*memColumn, len(t.columns)),
	}
	for _, c := range t.columns {
		snap := &memColumn{info: c.info, cells: c.cells[:len(c.cells):len(c.cells)]}
		scan.columns[c.info.Name] = snap
	}
	for _, name := range req.Columns {
		if _, ok := scan.columns[name]; !ok {
			return nil, catalog.ColumnNotFound(name)
		}
	}
	scan.filter = scan.buildFilter(req.Constraints)
	return scan, nil
}

type memScan struct {
	numRecords uint64
	columns    map[string]*memColumn
	filter     RecordFilter
	closed     bool
}

func (s *memScan) NumRecords() uint64 { return s.numRecords }

func (s *memScan) Cursor(column string) (ColumnCursor, bool) {
	c, ok := s.columns[column]
	if !ok {
		return nil, false
	}
	return &memCursor{col: c}, true
}

func (s *memScan) RecordFilter() RecordFilter { return s.filter }

func (s *memScan) Close() error {
	s.closed = true
	return nil
}

// buildFilter checks constraints on non-repeated columns, which hold exactly
// one cell per record.
func (s *memScan) buildFilter(constraints []qtree.ScanConstraint) RecordFilter {
	type check struct {
		cells      []cell
		constraint qtree.ScanConstraint
	}
	var checks []check
	for _, c := range constraints {
		col, ok := s.columns[c.Column]
		if !ok || col.info.MaxRepetitionLevel != 0 || uint64(len(col.cells)) != s.numRecords {
			continue
		}
		checks = append(checks, check{cells: col.cells, constraint: c})
	}
	if len(checks) == 0 {
		return nil
	}
	return func(record uint64) bool {
		for _, ch := range checks {
			if !ch.constraint.Matches(ch.cells[record].v) {
				return false
			}
		}
		return true
	}
}

type memCursor struct {
	col *memColumn
	pos int
}

func (c *memCursor) MaxRepetitionLevel() int { return c.col.info.MaxRepetitionLevel }
func (c *memCursor) MaxDefinitionLevel() int { return c.col.info.MaxDefinitionLevel }

func (c *memCursor) NextRepetitionLevel() int {
	if c.pos >= len(c.col.cells) {
		return 0
	}
	return c.col.cells[c.pos].r
}

func (c *memCursor) Next() (int, int, catalog.Value, error) {
	if c.pos >= len(c.col.cells) {
		return 0, 0, catalog.Null(), fmt.Errorf("column %s: read past end", c.col.info.Name)
	}
	cl := c.col.cells[c.pos]
	c.pos++
	return cl.r, cl.d, cl.v, nil
}
