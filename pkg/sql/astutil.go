package sql

import "strings"

var operatorNames = map[TokenType]string{
	TOKEN_EQ:      "==",
	TOKEN_NE:      "!=",
	TOKEN_LT:      "<",
	TOKEN_LE:      "<=",
	TOKEN_GT:      ">",
	TOKEN_GE:      ">=",
	TOKEN_AND:     "AND",
	TOKEN_OR:      "OR",
	TOKEN_PLUS:    "+",
	TOKEN_MINUS:   "-",
	TOKEN_STAR:    "*",
	TOKEN_SLASH:   "/",
	TOKEN_PERCENT: "%",
	TOKEN_CARET:   "^",
	TOKEN_LIKE:    "LIKE",
	TOKEN_REGEXP:  "REGEXP",
}

// ColumnNameForExpression derives the output column name of an unaliased
// select list expression, e.g. "count(time)" or "(a + 1)".
func ColumnNameForExpression(expr Expression) string {
	switch e := expr.(type) {
	case *LiteralExpr:
		return e.Raw

	case *ColumnRef:
		return e.Name

	case *StarExpr:
		if e.Table != "" {
			return e.Table + ".*"
		}
		return "*"

	case *FunctionCall:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = ColumnNameForExpression(a)
		}
		if e.Star {
			args = []string{"*"}
		}
		name := e.Name + "(" + strings.Join(args, ", ") + ")"
		if e.WithinRecord {
			name += " WITHIN RECORD"
		}
		return name

	case *BinaryExpr:
		op, ok := operatorNames[e.Op]
		if !ok {
			return "<expr>"
		}
		return "(" + ColumnNameForExpression(e.Left) + " " + op + " " + ColumnNameForExpression(e.Right) + ")"

	case *UnaryExpr:
		if e.Op == TOKEN_MINUS {
			return "-(" + ColumnNameForExpression(e.Expr) + ")"
		}
		return "!(" + ColumnNameForExpression(e.Expr) + ")"
	}
	return "<expr>"
}

// WalkExpression calls fn for expr and each subexpression, depth first.
// Returning false from fn skips the children.
func WalkExpression(expr Expression, fn func(Expression) bool) {
	if expr == nil || !fn(expr) {
		return
	}
	switch e := expr.(type) {
	case *BinaryExpr:
		WalkExpression(e.Left, fn)
		WalkExpression(e.Right, fn)
	case *UnaryExpr:
		WalkExpression(e.Expr, fn)
	case *FunctionCall:
		for _, a := range e.Args {
			WalkExpression(a, fn)
		}
	}
}
