package function

import "github.com/eventql/eventql-sub000/pkg/catalog"

func registerConversions(t *SymbolTable) {
	cast := func(name string, to catalog.DataType) PureFunction {
		return func(env Env, args []catalog.Value) (catalog.Value, error) {
			v, err := args[0].CastTo(to)
			if err != nil {
				return catalog.Null(), argError(name, err)
			}
			return v, nil
		}
	}
	t.RegisterPure("to_string", 1, 1, cast("to_string", catalog.TypeString))
	t.RegisterPure("to_str", 1, 1, cast("to_str", catalog.TypeString))
	t.RegisterPure("to_int", 1, 1, cast("to_int", catalog.TypeInteger))
	t.RegisterPure("to_integer", 1, 1, cast("to_integer", catalog.TypeInteger))
	t.RegisterPure("to_float", 1, 1, cast("to_float", catalog.TypeFloat))
	t.RegisterPure("to_bool", 1, 1, cast("to_bool", catalog.TypeBool))
}
