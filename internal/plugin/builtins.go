package plugin

import (
	"fmt"
	"math"

	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
)

// predeclared returns a fresh set of globals visible to strategy code.
func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"where": starlark.NewBuiltin("where", where),
		"isnan": starlark.NewBuiltin("isnan", isnan),
		"sign":  starlark.NewBuiltin("sign", sign),
		"nan":   starlark.Float(math.NaN()),
		"math":  starlarkmath.Module,
	}
}

// where(cond, x, y) picks x where cond is truthy and y elsewhere.
func where(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cond, x, y starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 3, &cond, &x, &y); err != nil {
		return nil, err
	}

	n := -1
	for _, v := range []starlark.Value{cond, x, y} {
		if s, ok := v.(*seriesValue); ok {
			n = len(s.values)
			break
		}
	}
	if n < 0 {
		return nil, fmt.Errorf("%s: at least one argument must be a series", b.Name())
	}

	c, err := operand(cond, n)
	if err != nil {
		return nil, fmt.Errorf("%s: cond: %w", b.Name(), err)
	}
	a, err := operand(x, n)
	if err != nil {
		return nil, fmt.Errorf("%s: x: %w", b.Name(), err)
	}
	o, err := operand(y, n)
	if err != nil {
		return nil, fmt.Errorf("%s: y: %w", b.Name(), err)
	}

	out := make([]float64, n)
	for i := range out {
		if truthy(c[i]) {
			out[i] = a[i]
		} else {
			out[i] = o[i]
		}
	}
	return newSeries("", out), nil
}

func isnan(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
		return nil, err
	}
	if s, ok := x.(*seriesValue); ok {
		out := make([]float64, len(s.values))
		for i, v := range s.values {
			out[i] = boolFloat(math.IsNaN(v))
		}
		return newSeries(s.name, out), nil
	}
	f, ok := toFloat(x)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want number or series", b.Name(), x.Type())
	}
	return starlark.Bool(math.IsNaN(f)), nil
}

// sign maps each value to -1, 0 or 1. NaN stays NaN.
func sign(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
		return nil, err
	}
	s, ok := x.(*seriesValue)
	if !ok {
		f, ok := toFloat(x)
		if !ok {
			return nil, fmt.Errorf("%s: got %s, want number or series", b.Name(), x.Type())
		}
		return starlark.Float(signOf(f)), nil
	}
	out := make([]float64, len(s.values))
	for i, v := range s.values {
		out[i] = signOf(v)
	}
	return newSeries(s.name, out), nil
}

func signOf(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return v
}
