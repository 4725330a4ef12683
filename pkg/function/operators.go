package function

import (
	"math"
	"regexp"
	"strings"

	"github.com/eventql/eventql-sub000/pkg/catalog"
)

func registerOperators(t *SymbolTable) {
	t.RegisterPure("eq", 2, 2, func(env Env, args []catalog.Value) (catalog.Value, error) {
		return catalog.NewBool(catalog.Equal(args[0], args[1])), nil
	})
	t.RegisterPure("neq", 2, 2, func(env Env, args []catalog.Value) (catalog.Value, error) {
		return catalog.NewBool(!catalog.Equal(args[0], args[1])), nil
	})
	t.RegisterPure("lt", 2, 2, compareOp(func(c int) bool { return c < 0 }))
	t.RegisterPure("lte", 2, 2, compareOp(func(c int) bool { return c <= 0 }))
	t.RegisterPure("gt", 2, 2, compareOp(func(c int) bool { return c > 0 }))
	t.RegisterPure("gte", 2, 2, compareOp(func(c int) bool { return c >= 0 }))

	t.RegisterPure("add", 2, 2, binaryOp(catalog.Add))
	t.RegisterPure("sub", 2, 2, binaryOp(catalog.Sub))
	t.RegisterPure("mul", 2, 2, binaryOp(catalog.Mul))
	t.RegisterPure("div", 2, 2, binaryOp(catalog.Div))
	t.RegisterPure("mod", 2, 2, binaryOp(catalog.Mod))
	t.RegisterPure("pow", 2, 2, binaryOp(catalog.Pow))
	t.RegisterPure("neg", 1, 1, func(env Env, args []catalog.Value) (catalog.Value, error) {
		return catalog.Negate(args[0])
	})

	t.RegisterPure("logical_and", 2, 2, func(env Env, args []catalog.Value) (catalog.Value, error) {
		a, err := args[0].ToBool()
		if err != nil {
			return catalog.Null(), err
		}
		b, err := args[1].ToBool()
		if err != nil {
			return catalog.Null(), err
		}
		return catalog.NewBool(a && b), nil
	})
	t.RegisterPure("logical_or", 2, 2, func(env Env, args []catalog.Value) (catalog.Value, error) {
		a, err := args[0].ToBool()
		if err != nil {
			return catalog.Null(), err
		}
		b, err := args[1].ToBool()
		if err != nil {
			return catalog.Null(), err
		}
		return catalog.NewBool(a || b), nil
	})

	t.RegisterPure("if", 3, 3, func(env Env, args []catalog.Value) (catalog.Value, error) {
		cond, err := args[0].ToBool()
		if err != nil {
			return catalog.Null(), argError("if", err)
		}
		if cond {
			return args[1], nil
		}
		return args[2], nil
	})
	t.RegisterPure("isnull", 1, 1, func(env Env, args []catalog.Value) (catalog.Value, error) {
		return catalog.NewBool(args[0].IsNull()), nil
	})

	t.RegisterPure("regex", 2, 2, func(env Env, args []catalog.Value) (catalog.Value, error) {
		if args[0].IsNull() || args[1].IsNull() {
			return catalog.NewBool(false), nil
		}
		re, err := regexp.Compile(args[1].String())
		if err != nil {
			return catalog.Null(), catalog.NewError(catalog.KindRuntimeError, "invalid regex: %v", err)
		}
		return catalog.NewBool(re.MatchString(args[0].String())), nil
	})
	t.RegisterPure("like", 2, 2, func(env Env, args []catalog.Value) (catalog.Value, error) {
		if args[0].IsNull() || args[1].IsNull() {
			return catalog.NewBool(false), nil
		}
		re, err := regexp.Compile(likePattern(args[1].String()))
		if err != nil {
			return catalog.Null(), catalog.NewError(catalog.KindRuntimeError, "invalid LIKE pattern: %v", err)
		}
		return catalog.NewBool(re.MatchString(args[0].String())), nil
	})

	t.RegisterPure("truncate", 1, 2, func(env Env, args []catalog.Value) (catalog.Value, error) {
		if args[0].IsNull() {
			return args[0], nil
		}
		f, err := args[0].ToFloat()
		if err != nil {
			return catalog.Null(), argError("truncate", err)
		}
		if len(args) == 1 {
			return catalog.NewInteger(int64(math.Trunc(f))), nil
		}
		digits, err := args[1].ToInteger()
		if err != nil {
			return catalog.Null(), argError("truncate", err)
		}
		p := math.Pow(10, float64(digits))
		return catalog.NewFloat(math.Trunc(f*p) / p), nil
	})
	t.RegisterPure("round", 1, 2, func(env Env, args []catalog.Value) (catalog.Value, error) {
		if args[0].IsNull() {
			return args[0], nil
		}
		f, err := args[0].ToFloat()
		if err != nil {
			return catalog.Null(), argError("round", err)
		}
		if len(args) == 1 {
			return catalog.NewInteger(int64(math.Round(f))), nil
		}
		digits, err := args[1].ToInteger()
		if err != nil {
			return catalog.Null(), argError("round", err)
		}
		p := math.Pow(10, float64(digits))
		return catalog.NewFloat(math.Round(f*p) / p), nil
	})
	t.RegisterPure("abs", 1, 1, func(env Env, args []catalog.Value) (catalog.Value, error) {
		v := args[0]
		switch v.Type {
		case catalog.TypeInteger:
			if v.Int < 0 {
				return catalog.NewInteger(-v.Int), nil
			}
			return v, nil
		case catalog.TypeNull:
			return v, nil
		}
		f, err := v.ToFloat()
		if err != nil {
			return catalog.Null(), argError("abs", err)
		}
		return catalog.NewFloat(math.Abs(f)), nil
	})
}

func binaryOp(op func(a, b catalog.Value) (catalog.Value, error)) PureFunction {
	return func(env Env, args []catalog.Value) (catalog.Value, error) {
		return op(args[0], args[1])
	}
}

// compareOp builds an ordering comparison. Comparisons involving NULL are
// false.
func compareOp(test func(c int) bool) PureFunction {
	return func(env Env, args []catalog.Value) (catalog.Value, error) {
		if args[0].IsNull() || args[1].IsNull() {
			return catalog.NewBool(false), nil
		}
		c, err := catalog.Compare(args[0], args[1])
		if err != nil {
			return catalog.Null(), err
		}
		return catalog.NewBool(test(c)), nil
	}
}

// likePattern translates a SQL LIKE pattern into an anchored regexp.
func likePattern(p string) string {
	var b strings.Builder
	b.WriteString("(?s)^")
	for _, r := range p {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}
