package sql

import "github.com/eventql/eventql-sub000/pkg/catalog"

// AST node types for CSQL statements

// Statement is the interface for all CSQL statements.
type Statement interface {
	statementNode()
}

// Expression is the interface for all CSQL expressions.
type Expression interface {
	exprNode()
}

// TableExpr is the interface for FROM clause items.
type TableExpr interface {
	tableExprNode()
}

// SelectStmt represents a SELECT statement. From is nil for a SELECT without
// tables.
type SelectStmt struct {
	Columns []SelectColumn
	From    TableExpr
	Where   Expression
	GroupBy []Expression
	Having  Expression
	OrderBy []OrderByItem
	Limit   *int64
	Offset  *int64
}

func (s *SelectStmt) statementNode() {}

// SelectColumn is one item of the select list. Star items carry no
// expression; StarTable restricts them to one table ("t.*").
type SelectColumn struct {
	Expr      Expression
	Alias     string
	Star      bool
	StarTable string
}

// OrderByItem is one ORDER BY term.
type OrderByItem struct {
	Expr Expression
	Desc bool
}

// ShowTablesStmt represents SHOW TABLES.
type ShowTablesStmt struct{}

func (s *ShowTablesStmt) statementNode() {}

// DescribeStmt represents DESCRIBE table.
type DescribeStmt struct {
	TableName string
}

func (s *DescribeStmt) statementNode() {}

// ExplainStmt represents EXPLAIN SELECT ...
type ExplainStmt struct {
	Statement *SelectStmt
}

func (s *ExplainStmt) statementNode() {}

// TableName is a named table in FROM. Dotted names are kept whole.
type TableName struct {
	Name  string
	Alias string
}

func (t *TableName) tableExprNode() {}

// SubqueryTable is a derived table: (SELECT ...) [AS] alias.
type SubqueryTable struct {
	Select *SelectStmt
	Alias  string
}

func (t *SubqueryTable) tableExprNode() {}

// JoinType is the kind of an explicit or implicit join.
type JoinType int

const (
	JoinCross JoinType = iota // comma or CROSS JOIN
	JoinInner
	JoinLeft
	JoinRight
)

func (t JoinType) String() string {
	switch t {
	case JoinInner:
		return "INNER"
	case JoinLeft:
		return "LEFT"
	case JoinRight:
		return "RIGHT"
	default:
		return "CROSS"
	}
}

// JoinExpr joins two FROM items. Chains associate to the left.
type JoinExpr struct {
	Type    JoinType
	Natural bool
	Left    TableExpr
	Right   TableExpr
	On      Expression
}

func (j *JoinExpr) tableExprNode() {}

// LiteralExpr represents a literal value. Raw keeps the source text, which
// names the output column.
type LiteralExpr struct {
	Value catalog.Value
	Raw   string
}

func (e *LiteralExpr) exprNode() {}

// ColumnRef represents a column reference. Qualified and nested names keep
// their dots ("t.col", "Name.Language.Code").
type ColumnRef struct {
	Name string
}

func (e *ColumnRef) exprNode() {}

// StarExpr is a "*" or "t.*" in an expression position; it is only valid as
// a select list item.
type StarExpr struct {
	Table string
}

func (e *StarExpr) exprNode() {}

// BinaryExpr represents a binary operation.
type BinaryExpr struct {
	Left  Expression
	Op    TokenType
	Right Expression
}

func (e *BinaryExpr) exprNode() {}

// UnaryExpr represents a unary operation (NOT, -).
type UnaryExpr struct {
	Op   TokenType
	Expr Expression
}

func (e *UnaryExpr) exprNode() {}

// FunctionCall represents a function call. Star is set for count(*).
type FunctionCall struct {
	Name         string
	Args         []Expression
	Star         bool
	WithinRecord bool
}

func (e *FunctionCall) exprNode() {}
