package nodes

import (
	"fmt"

	"go.starlark.net/starlark"
)

// Evaluator is the pluggable expression contract used by the
// condition and transform nodes. The engine core never sees it; a
// different implementation can be swapped in via SetEvaluator.
type Evaluator interface {
	Eval(expr string, env map[string]any) (any, error)
}

// StarlarkEvaluator evaluates expressions with Starlark. It is the
// one implementation shipped with the reference library.
type StarlarkEvaluator struct{}

// Eval evaluates a single Starlark expression against env bindings.
func (StarlarkEvaluator) Eval(expr string, env map[string]any) (any, error) {
	bindings := make(starlark.StringDict, len(env))
	for k, v := range env {
		sv, err := toStarlark(v)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", k, err)
		}
		bindings[k] = sv
	}
	thread := &starlark.Thread{Name: "expr"}
	val, err := starlark.Eval(thread, "<expr>", expr, bindings)
	if err != nil {
		return nil, err
	}
	return fromStarlark(val)
}

func toStarlark(v any) (starlark.Value, error) {
	switch val := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(val), nil
	case string:
		return starlark.String(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case []any:
		elems := make([]starlark.Value, len(val))
		for i, e := range val {
			sv, err := toStarlark(e)
			if err != nil {
				return nil, err
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		d := starlark.NewDict(len(val))
		for k, e := range val {
			sv, err := toStarlark(e)
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func fromStarlark(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.String:
		return string(val), nil
	case starlark.Int:
		if i, ok := val.Int64(); ok {
			return int(i), nil
		}
		return val.String(), nil
	case starlark.Float:
		return float64(val), nil
	case *starlark.List:
		out := make([]any, 0, val.Len())
		for i := 0; i < val.Len(); i++ {
			e, err := fromStarlark(val.Index(i))
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]any, val.Len())
		for _, k := range val.Keys() {
			item, _, err := val.Get(k)
			if err != nil {
				return nil, err
			}
			ks, ok := k.(starlark.String)
			if !ok {
				return nil, fmt.Errorf("non-string dict key %s", k)
			}
			e, err := fromStarlark(item)
			if err != nil {
				return nil, err
			}
			out[string(ks)] = e
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported result type %s", v.Type())
	}
}

var defaultEvaluator Evaluator = StarlarkEvaluator{}

// SetEvaluator swaps the expression evaluator used by condition and
// transform nodes.
func SetEvaluator(e Evaluator) {
	if e != nil {
		defaultEvaluator = e
	}
}
