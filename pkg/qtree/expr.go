// Package qtree defines the logical query tree: value expressions, plan
// nodes, constant folding and scan constraint extraction.
package qtree

import (
	"strconv"
	"strings"

	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/function"
)

// ValueExpression is a node of an expression tree. Trees are owned by the
// plan node that holds them and are never shared.
type ValueExpression interface {
	exprNode()
	// Arguments returns the child expressions.
	Arguments() []ValueExpression
	// ToSQL renders the expression, e.g. gt(`time`,1234).
	ToSQL() string
	// DeepCopy returns an independent copy of the tree.
	DeepCopy() ValueExpression
}

// LiteralExpression is a constant value.
type LiteralExpression struct {
	Value catalog.Value
}

// ColumnReference refers to a column of the node's input row. Index is -1
// until the reference has been resolved.
type ColumnReference struct {
	Name  string
	Index int
}

// CallExpression is a function or operator call.
type CallExpression struct {
	Name         string
	Args         []ValueExpression
	WithinRecord bool
	Symbol       *function.Symbol
}

func (*LiteralExpression) exprNode() {}
func (*ColumnReference) exprNode()   {}
func (*CallExpression) exprNode()    {}

// NewLiteral returns a literal expression.
func NewLiteral(v catalog.Value) *LiteralExpression {
	return &LiteralExpression{Value: v}
}

// NewColumnReference returns an unresolved column reference.
func NewColumnReference(name string) *ColumnReference {
	return &ColumnReference{Name: name, Index: -1}
}

// NewResolvedColumnReference returns a column reference bound to an input index.
func NewResolvedColumnReference(name string, index int) *ColumnReference {
	return &ColumnReference{Name: name, Index: index}
}

// NewCall resolves name in symbols and returns a call expression.
func NewCall(symbols *function.SymbolTable, name string, args ...ValueExpression) (*CallExpression, error) {
	sym, err := symbols.Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := sym.CheckArgs(len(args)); err != nil {
		return nil, err
	}
	return &CallExpression{Name: strings.ToLower(name), Args: args, Symbol: sym}, nil
}

// NewWithinRecordCall returns a record-scoped aggregate call.
func NewWithinRecordCall(symbols *function.SymbolTable, name string, args ...ValueExpression) (*CallExpression, error) {
	call, err := NewCall(symbols, name, args...)
	if err != nil {
		return nil, err
	}
	if !call.Symbol.IsAggregate() {
		return nil, catalog.NewError(catalog.KindRuntimeError,
			"WITHIN RECORD can only be used with aggregate functions, got %s", name)
	}
	call.WithinRecord = true
	return call, nil
}

// IsAggregate reports whether the call is an aggregate function.
func (c *CallExpression) IsAggregate() bool {
	return c.Symbol != nil && c.Symbol.IsAggregate()
}

func (*LiteralExpression) Arguments() []ValueExpression { return nil }
func (*ColumnReference) Arguments() []ValueExpression   { return nil }
func (c *CallExpression) Arguments() []ValueExpression  { return c.Args }

func (l *LiteralExpression) ToSQL() string {
	switch l.Value.Type {
	case catalog.TypeString:
		return strconv.Quote(l.Value.Text)
	case catalog.TypeTimestamp:
		return "to_timestamp(" + strconv.FormatInt(l.Value.Int, 10) + ")"
	default:
		return l.Value.String()
	}
}

func (c *ColumnReference) ToSQL() string {
	return "`" + c.Name + "`"
}

func (c *CallExpression) ToSQL() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.ToSQL()
	}
	s := c.Name + "(" + strings.Join(args, ",") + ")"
	if c.WithinRecord {
		s += " WITHIN RECORD"
	}
	return s
}

func (l *LiteralExpression) DeepCopy() ValueExpression {
	return &LiteralExpression{Value: l.Value}
}

func (c *ColumnReference) DeepCopy() ValueExpression {
	return &ColumnReference{Name: c.Name, Index: c.Index}
}

func (c *CallExpression) DeepCopy() ValueExpression {
	args := make([]ValueExpression, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.DeepCopy()
	}
	return &CallExpression{Name: c.Name, Args: args, WithinRecord: c.WithinRecord, Symbol: c.Symbol}
}

// IsLiteralTrue reports whether e is the literal true.
func IsLiteralTrue(e ValueExpression) bool {
	l, ok := e.(*LiteralExpression)
	return ok && l.Value.Type == catalog.TypeBool && l.Value.Bool
}
