package function

import (
	"strings"

	"github.com/eventql/eventql-sub000/pkg/catalog"
)

func registerStrings(t *SymbolTable) {
	t.RegisterPure("startswith", 2, 2, func(env Env, args []catalog.Value) (catalog.Value, error) {
		if args[0].IsNull() || args[1].IsNull() {
			return catalog.NewBool(false), nil
		}
		return catalog.NewBool(strings.HasPrefix(args[0].String(), args[1].String())), nil
	})
	t.RegisterPure("endswith", 2, 2, func(env Env, args []catalog.Value) (catalog.Value, error) {
		if args[0].IsNull() || args[1].IsNull() {
			return catalog.NewBool(false), nil
		}
		return catalog.NewBool(strings.HasSuffix(args[0].String(), args[1].String())), nil
	})

	upper := func(env Env, args []catalog.Value) (catalog.Value, error) {
		if args[0].IsNull() {
			return args[0], nil
		}
		return catalog.NewString(strings.ToUpper(args[0].String())), nil
	}
	lower := func(env Env, args []catalog.Value) (catalog.Value, error) {
		if args[0].IsNull() {
			return args[0], nil
		}
		return catalog.NewString(strings.ToLower(args[0].String())), nil
	}
	t.RegisterPure("uppercase", 1, 1, upper)
	t.RegisterPure("ucase", 1, 1, upper)
	t.RegisterPure("upper", 1, 1, upper)
	t.RegisterPure("lowercase", 1, 1, lower)
	t.RegisterPure("lcase", 1, 1, lower)
	t.RegisterPure("lower", 1, 1, lower)

	t.RegisterPure("concat", 1, -1, func(env Env, args []catalog.Value) (catalog.Value, error) {
		var b strings.Builder
		for _, a := range args {
			if a.IsNull() {
				return catalog.Null(), nil
			}
			b.WriteString(a.String())
		}
		return catalog.NewString(b.String()), nil
	})
	t.RegisterPure("length", 1, 1, func(env Env, args []catalog.Value) (catalog.Value, error) {
		if args[0].IsNull() {
			return args[0], nil
		}
		return catalog.NewInteger(int64(len(args[0].String()))), nil
	})

	trim := func(f func(string, string) string) PureFunction {
		return func(env Env, args []catalog.Value) (catalog.Value, error) {
			if args[0].IsNull() {
				return args[0], nil
			}
			return catalog.NewString(f(args[0].String(), " \t\r\n")), nil
		}
	}
	t.RegisterPure("ltrim", 1, 1, trim(strings.TrimLeft))
	t.RegisterPure("rtrim", 1, 1, trim(strings.TrimRight))
	t.RegisterPure("trim", 1, 1, trim(strings.Trim))

	// repeat_value returns its argument unchanged.
	t.RegisterPure("repeat_value", 1, 1, func(env Env, args []catalog.Value) (catalog.Value, error) {
		return args[0], nil
	})

	// substr(str, pos[, len]) with a 1-based position; negative positions count
	// from the end.
	substr := func(env Env, args []catalog.Value) (catalog.Value, error) {
		if args[0].IsNull() {
			return args[0], nil
		}
		s := args[0].String()
		pos, err := args[1].ToInteger()
		if err != nil {
			return catalog.Null(), argError("substr", err)
		}
		start := int(pos) - 1
		if pos < 0 {
			start = len(s) + int(pos)
		}
		if start < 0 {
			start = 0
		}
		if start > len(s) {
			return catalog.NewString(""), nil
		}
		end := len(s)
		if len(args) == 3 {
			n, err := args[2].ToInteger()
			if err != nil {
				return catalog.Null(), argError("substr", err)
			}
			if n < 0 {
				n = 0
			}
			if start+int(n) < end {
				end = start + int(n)
			}
		}
		return catalog.NewString(s[start:end]), nil
	}
	t.RegisterPure("substr", 2, 3, substr)
	t.RegisterPure("substring", 2, 3, substr)
}
