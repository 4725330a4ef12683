package qtree

import (
	"fmt"

	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/function"
)

// ConstraintKind is the comparison a ScanConstraint asserts.
type ConstraintKind int

const (
	EqualTo ConstraintKind = iota
	NotEqualTo
	LessThan
	LessThanOrEqualTo
	GreaterThan
	GreaterThanOrEqualTo
)

func (k ConstraintKind) String() string {
	switch k {
	case EqualTo:
		return "EQUAL_TO"
	case NotEqualTo:
		return "NOT_EQUAL_TO"
	case LessThan:
		return "LESS_THAN"
	case LessThanOrEqualTo:
		return "LESS_THAN_OR_EQUAL_TO"
	case GreaterThan:
		return "GREATER_THAN"
	case GreaterThanOrEqualTo:
		return "GREATER_THAN_OR_EQUAL_TO"
	default:
		return "UNKNOWN"
	}
}

// Reflect returns the kind that holds when the operands are swapped.
func (k ConstraintKind) Reflect() ConstraintKind {
	switch k {
	case LessThan:
		return GreaterThan
	case LessThanOrEqualTo:
		return GreaterThanOrEqualTo
	case GreaterThan:
		return LessThan
	case GreaterThanOrEqualTo:
		return LessThanOrEqualTo
	default:
		return k
	}
}

var constraintOps = map[string]ConstraintKind{
	"eq":  EqualTo,
	"neq": NotEqualTo,
	"lt":  LessThan,
	"lte": LessThanOrEqualTo,
	"gt":  GreaterThan,
	"gte": GreaterThanOrEqualTo,
}

// ScanConstraint is a column-vs-constant comparison a scan source may use to
// skip records. Constraints are advisory.
type ScanConstraint struct {
	Column string
	Kind   ConstraintKind
	Value  catalog.Value
}

func (c ScanConstraint) String() string {
	return fmt.Sprintf("%s %s %s", c.Column, c.Kind, c.Value)
}

// Equal reports whether both constraints assert the same thing.
func (c ScanConstraint) Equal(o ScanConstraint) bool {
	return c.Column == o.Column && c.Kind == o.Kind && c.Value.Key() == o.Value.Key()
}

// Matches reports whether v satisfies the constraint. NULL never does.
func (c ScanConstraint) Matches(v catalog.Value) bool {
	if v.IsNull() {
		return false
	}
	switch c.Kind {
	case EqualTo:
		return catalog.Equal(v, c.Value)
	case NotEqualTo:
		return !catalog.Equal(v, c.Value)
	}
	cmp, err := catalog.Compare(v, c.Value)
	if err != nil {
		// incomparable values can't be ruled out here
		return true
	}
	switch c.Kind {
	case LessThan:
		return cmp < 0
	case LessThanOrEqualTo:
		return cmp <= 0
	case GreaterThan:
		return cmp > 0
	case GreaterThanOrEqualTo:
		return cmp >= 0
	}
	return true
}

func isLogicalAnd(expr ValueExpression) (*CallExpression, bool) {
	c, ok := expr.(*CallExpression)
	return c, ok && c.Name == "logical_and" && len(c.Args) == 2
}

// FindConstraints flattens the logical_and chain of predicate and returns one
// constraint per simple column-vs-constant conjunct, in source order.
func FindConstraints(env function.Env, predicate ValueExpression) []ScanConstraint {
	var out []ScanConstraint
	var visit func(e ValueExpression)
	visit = func(e ValueExpression) {
		if and, ok := isLogicalAnd(e); ok {
			visit(and.Args[0])
			visit(and.Args[1])
			return
		}
		if c, ok := FindConstraint(env, e); ok {
			out = append(out, c)
		}
	}
	if predicate != nil {
		visit(predicate)
	}
	return out
}

// FindConstraint matches a single conjunct of the form op(column, literal)
// or op(literal, column). Operands are constant folded first; a reflected
// comparison yields the reflected kind.
func FindConstraint(env function.Env, expr ValueExpression) (ScanConstraint, bool) {
	call, ok := expr.(*CallExpression)
	if !ok || len(call.Args) != 2 {
		return ScanConstraint{}, false
	}
	kind, ok := constraintOps[call.Name]
	if !ok {
		return ScanConstraint{}, false
	}

	var (
		column   *ColumnReference
		literal  *LiteralExpression
		reversed bool
	)
	for i, arg := range call.Args {
		if env != nil && IsConstantExpression(arg) {
			if folded, err := FoldConstants(env, arg); err == nil {
				arg = folded
			}
		}
		switch a := arg.(type) {
		case *LiteralExpression:
			literal = a
		case *ColumnReference:
			column = a
			reversed = i > 0
		}
	}
	if column == nil || literal == nil {
		return ScanConstraint{}, false
	}
	if reversed {
		kind = kind.Reflect()
	}
	return ScanConstraint{Column: column.Name, Kind: kind, Value: literal.Value}, true
}

// RemoveConstraintFromPredicate returns a copy of predicate in which the
// first conjunct asserting constraint is replaced by the literal true.
// The predicate itself is left untouched.
func RemoveConstraintFromPredicate(env function.Env, predicate ValueExpression, constraint ScanConstraint) ValueExpression {
	removed := false
	var rewrite func(e ValueExpression) ValueExpression
	rewrite = func(e ValueExpression) ValueExpression {
		if and, ok := isLogicalAnd(e); ok {
			left := rewrite(and.Args[0])
			right := rewrite(and.Args[1])
			return &CallExpression{
				Name:   and.Name,
				Args:   []ValueExpression{left, right},
				Symbol: and.Symbol,
			}
		}
		if !removed {
			if c, ok := FindConstraint(env, e); ok && c.Equal(constraint) {
				removed = true
				return NewLiteral(catalog.NewBool(true))
			}
		}
		return e.DeepCopy()
	}
	return rewrite(predicate)
}

// SimplifyPredicate collapses logical_and conjuncts that are literal true.
// A predicate whose every conjunct is true reduces to the literal true.
func SimplifyPredicate(predicate ValueExpression) ValueExpression {
	and, ok := isLogicalAnd(predicate)
	if !ok {
		return predicate.DeepCopy()
	}
	left := SimplifyPredicate(and.Args[0])
	right := SimplifyPredicate(and.Args[1])
	switch {
	case IsLiteralTrue(left):
		return right
	case IsLiteralTrue(right):
		return left
	}
	return &CallExpression{Name: and.Name, Args: []ValueExpression{left, right}, Symbol: and.Symbol}
}

// PrunePredicateExpression returns a copy of predicate in which every
// conjunct referencing a column outside whitelist is replaced by true.
func PrunePredicateExpression(predicate ValueExpression, whitelist map[string]bool) ValueExpression {
	if and, ok := isLogicalAnd(predicate); ok {
		return &CallExpression{
			Name: and.Name,
			Args: []ValueExpression{
				PrunePredicateExpression(and.Args[0], whitelist),
				PrunePredicateExpression(and.Args[1], whitelist),
			},
			Symbol: and.Symbol,
		}
	}
	for _, col := range ReferencedColumns(predicate) {
		if !whitelist[col] {
			return NewLiteral(catalog.NewBool(true))
		}
	}
	return predicate.DeepCopy()
}
