package qtree

import (
	"fmt"
	"strings"

	"github.com/eventql/eventql-sub000/pkg/catalog"
)

// Node is a table-producing node of the query tree. The set of node types is
// closed; the engine dispatches on the concrete type.
type Node interface {
	qtreeNode()
	// Columns returns the names of the output columns.
	Columns() []string
	// ComputedColumnIndex returns the output index of the named column, or -1.
	// With allowAdd, nodes that read from a table may append the column to
	// their output.
	ComputedColumnIndex(name string, allowAdd bool) int
	String() string
}

// AggregationStrategy controls when a sequential scan emits rows.
type AggregationStrategy int

const (
	// NoAggregation emits a row for every fetched (record, repetition) tuple.
	NoAggregation AggregationStrategy = iota
	// AggregateWithinRecordFlat emits one row per record.
	AggregateWithinRecordFlat
	// AggregateWithinRecordDeep emits a row for every fetched tuple, with
	// record-scoped aggregates carried along.
	AggregateWithinRecordDeep
	// AggregateAll emits a single row after the whole table was scanned.
	AggregateAll
)

func (s AggregationStrategy) String() string {
	switch s {
	case NoAggregation:
		return "NO_AGGREGATION"
	case AggregateWithinRecordFlat:
		return "AGGREGATE_WITHIN_RECORD_FLAT"
	case AggregateWithinRecordDeep:
		return "AGGREGATE_WITHIN_RECORD_DEEP"
	case AggregateAll:
		return "AGGREGATE_ALL"
	default:
		return "UNKNOWN"
	}
}

// SelectListNode is one output column: an expression and its column name.
type SelectListNode struct {
	Expression ValueExpression
	Alias      string
}

func (s *SelectListNode) String() string {
	return s.Expression.ToSQL() + " AS " + s.Alias
}

func selectListColumns(list []*SelectListNode) []string {
	cols := make([]string, len(list))
	for i, s := range list {
		cols[i] = s.Alias
	}
	return cols
}

func selectListIndex(list []*SelectListNode, name string) int {
	for i, s := range list {
		if s.Alias == name {
			return i
		}
	}
	return -1
}

func selectListString(list []*SelectListNode) string {
	parts := make([]string, len(list))
	for i, s := range list {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}

// SequentialScanNode reads a table. Column references in SelectList and Where
// index into InputColumns, the table columns the scan fetches.
type SequentialScanNode struct {
	TableName   string
	TableAlias  string
	Table       catalog.TableInfo
	SelectList  []*SelectListNode
	Where       ValueExpression
	Constraints []ScanConstraint
	Strategy    AggregationStrategy

	InputColumns []string
}

func (n *SequentialScanNode) Columns() []string { return selectListColumns(n.SelectList) }

// NormalizeColumnName strips a leading table name or alias qualifier and
// returns the table column the name refers to, or "" if there is none.
func (n *SequentialScanNode) NormalizeColumnName(name string) string {
	name = strings.Trim(name, "`")
	for _, prefix := range []string{n.TableAlias, n.TableName} {
		if prefix == "" || !strings.HasPrefix(name, prefix+".") {
			continue
		}
		if col, _ := n.Table.ColumnByName(strings.TrimPrefix(name, prefix+".")); col != nil {
			return col.Name
		}
	}
	if col, _ := n.Table.ColumnByName(name); col != nil {
		return col.Name
	}
	return ""
}

// InputColumnIndex returns the fetch index of a table column, registering it
// on first use. It returns -1 for unknown columns.
func (n *SequentialScanNode) InputColumnIndex(name string) int {
	col := n.NormalizeColumnName(name)
	if col == "" {
		return -1
	}
	for i, c := range n.InputColumns {
		if c == col {
			return i
		}
	}
	n.InputColumns = append(n.InputColumns, col)
	return len(n.InputColumns) - 1
}

func (n *SequentialScanNode) ComputedColumnIndex(name string, allowAdd bool) int {
	if idx := selectListIndex(n.SelectList, name); idx >= 0 {
		return idx
	}
	col := n.NormalizeColumnName(name)
	if col == "" {
		return -1
	}
	if idx := selectListIndex(n.SelectList, col); idx >= 0 {
		return idx
	}
	if !allowAdd {
		return -1
	}
	n.SelectList = append(n.SelectList, &SelectListNode{
		Expression: NewResolvedColumnReference(col, n.InputColumnIndex(col)),
		Alias:      col,
	})
	return len(n.SelectList) - 1
}

func (n *SequentialScanNode) String() string {
	s := fmt.Sprintf("SequentialScan on %s [%s] strategy=%s", n.TableName, selectListString(n.SelectList), n.Strategy)
	if n.Where != nil {
		s += " where=" + n.Where.ToSQL()
	}
	for _, c := range n.Constraints {
		s += " constraint=(" + c.String() + ")"
	}
	return s
}

// GroupByNode groups the rows of Input by GroupExprs. Expressions index into
// the input row.
type GroupByNode struct {
	Input      Node
	GroupExprs []ValueExpression
	SelectList []*SelectListNode
}

func (n *GroupByNode) Columns() []string { return selectListColumns(n.SelectList) }

func (n *GroupByNode) ComputedColumnIndex(name string, allowAdd bool) int {
	return selectListIndex(n.SelectList, name)
}

func (n *GroupByNode) String() string {
	keys := make([]string, len(n.GroupExprs))
	for i, e := range n.GroupExprs {
		keys[i] = e.ToSQL()
	}
	return fmt.Sprintf("GroupBy [%s] keys=[%s]", selectListString(n.SelectList), strings.Join(keys, ", "))
}

// JoinType enumerates the join variants. Right joins are planned as left
// joins with swapped inputs.
type JoinType int

const (
	JoinCartesian JoinType = iota
	JoinInner
	JoinOuter
)

func (t JoinType) String() string {
	switch t {
	case JoinCartesian:
		return "CARTESIAN"
	case JoinInner:
		return "INNER"
	case JoinOuter:
		return "OUTER"
	default:
		return "UNKNOWN"
	}
}

// JoinSide selects one of the two join inputs.
type JoinSide int

const (
	BaseSide JoinSide = iota
	JoinedSide
)

// JoinInput is one column of the combined join row.
type JoinInput struct {
	Side  JoinSide
	Index int
}

// JoinNode joins Base with Joined. Expressions index into the combined row
// described by InputMap.
type JoinNode struct {
	Type        JoinType
	Base        Node
	BaseAlias   string
	Joined      Node
	JoinedAlias string
	Condition   ValueExpression
	Where       ValueExpression
	SelectList  []*SelectListNode
	InputMap    []JoinInput
}

func (n *JoinNode) Columns() []string { return selectListColumns(n.SelectList) }

func (n *JoinNode) ComputedColumnIndex(name string, allowAdd bool) int {
	if idx := selectListIndex(n.SelectList, name); idx >= 0 || !allowAdd {
		return idx
	}
	in := n.InputColumnIndex(name)
	if in < 0 {
		return -1
	}
	n.SelectList = append(n.SelectList, &SelectListNode{
		Expression: NewResolvedColumnReference(name, in),
		Alias:      name,
	})
	return len(n.SelectList) - 1
}

// InputColumnIndex resolves a (possibly qualified) column name against the
// join inputs and returns its position in the combined row, or -1.
func (n *JoinNode) InputColumnIndex(name string) int {
	side, idx := n.resolveInput(name)
	if idx < 0 {
		return -1
	}
	for i, in := range n.InputMap {
		if in.Side == side && in.Index == idx {
			return i
		}
	}
	n.InputMap = append(n.InputMap, JoinInput{Side: side, Index: idx})
	return len(n.InputMap) - 1
}

func (n *JoinNode) resolveInput(name string) (JoinSide, int) {
	name = strings.Trim(name, "`")
	if n.BaseAlias != "" && strings.HasPrefix(name, n.BaseAlias+".") {
		if idx := n.Base.ComputedColumnIndex(name, true); idx >= 0 {
			return BaseSide, idx
		}
	}
	if n.JoinedAlias != "" && strings.HasPrefix(name, n.JoinedAlias+".") {
		if idx := n.Joined.ComputedColumnIndex(name, true); idx >= 0 {
			return JoinedSide, idx
		}
	}
	if idx := n.Base.ComputedColumnIndex(name, true); idx >= 0 {
		return BaseSide, idx
	}
	if idx := n.Joined.ComputedColumnIndex(name, true); idx >= 0 {
		return JoinedSide, idx
	}
	return BaseSide, -1
}

func (n *JoinNode) String() string {
	s := fmt.Sprintf("Join type=%s [%s]", n.Type, selectListString(n.SelectList))
	if n.Condition != nil {
		s += " on=" + n.Condition.ToSQL()
	}
	if n.Where != nil {
		s += " where=" + n.Where.ToSQL()
	}
	return s
}

// UnionNode concatenates the rows of its inputs.
type UnionNode struct {
	Inputs []Node
}

func (n *UnionNode) Columns() []string {
	if len(n.Inputs) == 0 {
		return nil
	}
	return n.Inputs[0].Columns()
}

func (n *UnionNode) ComputedColumnIndex(name string, allowAdd bool) int {
	if len(n.Inputs) == 0 {
		return -1
	}
	return n.Inputs[0].ComputedColumnIndex(name, false)
}

func (n *UnionNode) String() string { return fmt.Sprintf("Union inputs=%d", len(n.Inputs)) }

// SubqueryNode selects from the rows of a nested query. Expressions index
// into the subquery's output row.
type SubqueryNode struct {
	Subquery   Node
	Alias      string
	SelectList []*SelectListNode
	Where      ValueExpression
}

func (n *SubqueryNode) Columns() []string { return selectListColumns(n.SelectList) }

func (n *SubqueryNode) ComputedColumnIndex(name string, allowAdd bool) int {
	if idx := selectListIndex(n.SelectList, name); idx >= 0 {
		return idx
	}
	if n.Alias != "" && strings.HasPrefix(name, n.Alias+".") {
		return selectListIndex(n.SelectList, strings.TrimPrefix(name, n.Alias+"."))
	}
	return -1
}

// InputColumnIndex resolves a column of the subquery output. A leading
// "alias." qualifier is stripped.
func (n *SubqueryNode) InputColumnIndex(name string) int {
	name = strings.Trim(name, "`")
	if n.Alias != "" && strings.HasPrefix(name, n.Alias+".") {
		name = strings.TrimPrefix(name, n.Alias+".")
	}
	for i, c := range n.Subquery.Columns() {
		if c == name {
			return i
		}
	}
	return -1
}

func (n *SubqueryNode) String() string {
	s := fmt.Sprintf("Subquery alias=%q [%s]", n.Alias, selectListString(n.SelectList))
	if n.Where != nil {
		s += " where=" + n.Where.ToSQL()
	}
	return s
}

// SortSpec is one ORDER BY term. Expr indexes into the input row.
type SortSpec struct {
	Expr       ValueExpression
	Descending bool
}

// OrderByNode sorts the rows of Input. Only the first NumVisible columns are
// returned; the rest carry sort keys that were not selected.
type OrderByNode struct {
	Input      Node
	Specs      []SortSpec
	NumVisible int
}

func (n *OrderByNode) Columns() []string {
	cols := n.Input.Columns()
	if n.NumVisible < len(cols) {
		cols = cols[:n.NumVisible]
	}
	return cols
}

func (n *OrderByNode) ComputedColumnIndex(name string, allowAdd bool) int {
	idx := n.Input.ComputedColumnIndex(name, false)
	if idx >= n.NumVisible {
		return -1
	}
	return idx
}

func (n *OrderByNode) String() string {
	parts := make([]string, len(n.Specs))
	for i, s := range n.Specs {
		dir := "ASC"
		if s.Descending {
			dir = "DESC"
		}
		parts[i] = s.Expr.ToSQL() + " " + dir
	}
	return "OrderBy " + strings.Join(parts, ", ")
}

// LimitNode skips Offset rows of Input and returns at most Limit rows. A
// negative Limit is unbounded.
type LimitNode struct {
	Input  Node
	Limit  int64
	Offset int64
}

func (n *LimitNode) Columns() []string { return n.Input.Columns() }

func (n *LimitNode) ComputedColumnIndex(name string, allowAdd bool) int {
	return n.Input.ComputedColumnIndex(name, false)
}

func (n *LimitNode) String() string {
	return fmt.Sprintf("Limit limit=%d offset=%d", n.Limit, n.Offset)
}

// SelectExpressionNode is a SELECT without tables; it yields one row.
type SelectExpressionNode struct {
	SelectList []*SelectListNode
}

func (n *SelectExpressionNode) Columns() []string { return selectListColumns(n.SelectList) }

func (n *SelectExpressionNode) ComputedColumnIndex(name string, allowAdd bool) int {
	return selectListIndex(n.SelectList, name)
}

func (n *SelectExpressionNode) String() string {
	return "SelectExpression [" + selectListString(n.SelectList) + "]"
}

// ShowTablesNode lists the tables known to the table provider.
type ShowTablesNode struct{}

func (n *ShowTablesNode) Columns() []string { return []string{"table_name", "description"} }

func (n *ShowTablesNode) ComputedColumnIndex(name string, allowAdd bool) int {
	return indexOf(n.Columns(), name)
}

func (n *ShowTablesNode) String() string { return "ShowTables" }

// DescribeTableNode lists the columns of one table.
type DescribeTableNode struct {
	TableName string
}

func (n *DescribeTableNode) Columns() []string {
	return []string{"column_name", "type", "nullable", "description"}
}

func (n *DescribeTableNode) ComputedColumnIndex(name string, allowAdd bool) int {
	return indexOf(n.Columns(), name)
}

func (n *DescribeTableNode) String() string { return "DescribeTable " + n.TableName }

func indexOf(list []string, name string) int {
	for i, s := range list {
		if s == name {
			return i
		}
	}
	return -1
}

func (*SequentialScanNode) qtreeNode()   {}
func (*GroupByNode) qtreeNode()          {}
func (*JoinNode) qtreeNode()             {}
func (*UnionNode) qtreeNode()            {}
func (*SubqueryNode) qtreeNode()         {}
func (*OrderByNode) qtreeNode()          {}
func (*LimitNode) qtreeNode()            {}
func (*SelectExpressionNode) qtreeNode() {}
func (*ShowTablesNode) qtreeNode()       {}
func (*DescribeTableNode) qtreeNode()    {}

// Children returns the direct inputs of n.
func Children(n Node) []Node {
	switch t := n.(type) {
	case *GroupByNode:
		return []Node{t.Input}
	case *JoinNode:
		return []Node{t.Base, t.Joined}
	case *UnionNode:
		return t.Inputs
	case *SubqueryNode:
		return []Node{t.Subquery}
	case *OrderByNode:
		return []Node{t.Input}
	case *LimitNode:
		return []Node{t.Input}
	}
	return nil
}

// Explain renders the tree, one node per line, children indented.
func Explain(n Node) string {
	var b strings.Builder
	var walk func(n Node, depth int)
	walk = func(n Node, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.String())
		b.WriteByte('\n')
		for _, c := range Children(n) {
			walk(c, depth+1)
		}
	}
	walk(n, 0)
	return b.String()
}
