package plugin

import (
	"fmt"
	"math"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/newthinker/strategylab/internal/indicator"
)

// seriesValue is a single float column exposed to strategy code. Values are
// copied in and out of the frame, so a series never aliases frame storage.
type seriesValue struct {
	name   string
	values []float64
}

var (
	_ starlark.Value      = (*seriesValue)(nil)
	_ starlark.Indexable  = (*seriesValue)(nil)
	_ starlark.HasBinary  = (*seriesValue)(nil)
	_ starlark.HasUnary   = (*seriesValue)(nil)
	_ starlark.HasAttrs   = (*seriesValue)(nil)
	_ starlark.Comparable = (*seriesValue)(nil)
)

func newSeries(name string, values []float64) *seriesValue {
	return &seriesValue{name: name, values: values}
}

func (s *seriesValue) String() string {
	if s.name != "" {
		return fmt.Sprintf("series(%q, len=%d)", s.name, len(s.values))
	}
	return fmt.Sprintf("series(len=%d)", len(s.values))
}

func (s *seriesValue) Type() string          { return "series" }
func (s *seriesValue) Freeze()               {}
func (s *seriesValue) Truth() starlark.Bool  { return len(s.values) > 0 }
func (s *seriesValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: series") }
func (s *seriesValue) Len() int              { return len(s.values) }

func (s *seriesValue) Index(i int) starlark.Value {
	return starlark.Float(s.values[i])
}

func (s *seriesValue) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	other, err := operand(y, len(s.values))
	if err != nil {
		if _, ok := y.(*seriesValue); ok {
			return nil, err
		}
		return nil, nil // unsupported operand type
	}
	a, b := s.values, other
	if side == starlark.Right {
		a, b = other, s.values
	}

	var fn func(x, y float64) float64
	switch op {
	case syntax.PLUS:
		fn = func(x, y float64) float64 { return x + y }
	case syntax.MINUS:
		fn = func(x, y float64) float64 { return x - y }
	case syntax.STAR:
		fn = func(x, y float64) float64 { return x * y }
	case syntax.SLASH:
		fn = func(x, y float64) float64 { return x / y }
	case syntax.SLASHSLASH:
		fn = func(x, y float64) float64 { return math.Floor(x / y) }
	case syntax.PERCENT:
		fn = func(x, y float64) float64 { return x - y*math.Floor(x/y) }
	case syntax.AMP:
		fn = func(x, y float64) float64 { return boolFloat(truthy(x) && truthy(y)) }
	case syntax.PIPE:
		fn = func(x, y float64) float64 { return boolFloat(truthy(x) || truthy(y)) }
	default:
		return nil, nil
	}
	return newSeries("", zipWith(a, b, fn)), nil
}

// CompareSameType rejects every operator. Starlark comparisons must yield a
// single bool, so element-wise comparison goes through the gt, ge, lt, le,
// eq and ne methods instead.
func (s *seriesValue) CompareSameType(op syntax.Token, _ starlark.Value, _ int) (bool, error) {
	return false, fmt.Errorf("series %s series is not element-wise; %s", op, comparisonHint(op))
}

// comparisonHint names the series method that replaces op.
func comparisonHint(op syntax.Token) string {
	if m, ok := comparisonMethods[op]; ok {
		return fmt.Sprintf("use .%s() instead", m)
	}
	return "use .gt(), .ge(), .lt(), .le(), .eq() or .ne() instead"
}

var comparisonMethods = map[syntax.Token]string{
	syntax.GT:  "gt",
	syntax.GE:  "ge",
	syntax.LT:  "lt",
	syntax.LE:  "le",
	syntax.EQL: "eq",
	syntax.NEQ: "ne",
}

func (s *seriesValue) Unary(op syntax.Token) (starlark.Value, error) {
	out := make([]float64, len(s.values))
	switch op {
	case syntax.MINUS:
		for i, v := range s.values {
			out[i] = -v
		}
	case syntax.PLUS:
		copy(out, s.values)
	case syntax.TILDE:
		for i, v := range s.values {
			out[i] = boolFloat(!truthy(v))
		}
	default:
		return nil, nil
	}
	return newSeries("", out), nil
}

type seriesMethod func(s *seriesValue, fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

var seriesMethods = map[string]seriesMethod{
	"abs":        seriesAbs,
	"clip":       seriesClip,
	"cumsum":     seriesCumSum,
	"diff":       seriesDiff,
	"ema":        seriesEMA,
	"fillna":     seriesFillNA,
	"pct_change": seriesPctChange,
	"rolling":    seriesRolling,
	"shift":      seriesShift,
	"tolist":     seriesToList,

	// Element-wise comparisons return 1/0 series. The operators <, >, ==
	// and friends cannot, since Starlark requires them to produce a bool.
	"gt": compareMethod(func(x, y float64) bool { return x > y }),
	"ge": compareMethod(func(x, y float64) bool { return x >= y }),
	"lt": compareMethod(func(x, y float64) bool { return x < y }),
	"le": compareMethod(func(x, y float64) bool { return x <= y }),
	"eq": compareMethod(func(x, y float64) bool { return x == y }),
	"ne": compareMethod(func(x, y float64) bool { return x != y }),

	"mean": aggregateMethod(indicator.Mean),
	"std":  aggregateMethod(indicator.StdDev),
	"sum":  aggregateMethod(nanSum),
	"min":  aggregateMethod(nanMin),
	"max":  aggregateMethod(nanMax),
}

func (s *seriesValue) Attr(name string) (starlark.Value, error) {
	if name == "name" {
		return starlark.String(s.name), nil
	}
	m, ok := seriesMethods[name]
	if !ok {
		return nil, nil
	}
	return bindMethod(name, s, func(fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return m(s, fnname, args, kwargs)
	}), nil
}

func (s *seriesValue) AttrNames() []string {
	names := make([]string, 0, len(seriesMethods)+1)
	names = append(names, "name")
	for name := range seriesMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func seriesAbs(s *seriesValue, fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(fnname, args, kwargs, 0); err != nil {
		return nil, err
	}
	out := make([]float64, len(s.values))
	for i, v := range s.values {
		out[i] = math.Abs(v)
	}
	return newSeries(s.name, out), nil
}

func seriesClip(s *seriesValue, fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var lower, upper starlark.Value = starlark.None, starlark.None
	if err := starlark.UnpackArgs(fnname, args, kwargs, "lower?", &lower, "upper?", &upper); err != nil {
		return nil, err
	}
	lo, hi := math.Inf(-1), math.Inf(1)
	if lower != starlark.None {
		v, ok := toFloat(lower)
		if !ok {
			return nil, fmt.Errorf("%s: lower must be a number, got %s", fnname, lower.Type())
		}
		lo = v
	}
	if upper != starlark.None {
		v, ok := toFloat(upper)
		if !ok {
			return nil, fmt.Errorf("%s: upper must be a number, got %s", fnname, upper.Type())
		}
		hi = v
	}
	out := make([]float64, len(s.values))
	for i, v := range s.values {
		switch {
		case math.IsNaN(v):
			out[i] = v
		case v < lo:
			out[i] = lo
		case v > hi:
			out[i] = hi
		default:
			out[i] = v
		}
	}
	return newSeries(s.name, out), nil
}

func seriesCumSum(s *seriesValue, fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(fnname, args, kwargs, 0); err != nil {
		return nil, err
	}
	return newSeries(s.name, indicator.CumSum(s.values)), nil
}

func seriesDiff(s *seriesValue, fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	periods := 1
	if err := starlark.UnpackArgs(fnname, args, kwargs, "periods?", &periods); err != nil {
		return nil, err
	}
	return newSeries(s.name, indicator.Diff(s.values, periods)), nil
}

func seriesEMA(s *seriesValue, fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var span int
	if err := starlark.UnpackArgs(fnname, args, kwargs, "span", &span); err != nil {
		return nil, err
	}
	if span < 1 {
		return nil, fmt.Errorf("%s: span must be positive, got %d", fnname, span)
	}
	return newSeries(s.name, indicator.EMA(s.values, span)), nil
}

func seriesFillNA(s *seriesValue, fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	if err := starlark.UnpackPositionalArgs(fnname, args, kwargs, 1, &value); err != nil {
		return nil, err
	}
	fill, ok := toFloat(value)
	if !ok {
		return nil, fmt.Errorf("%s: value must be a number, got %s", fnname, value.Type())
	}
	out := make([]float64, len(s.values))
	for i, v := range s.values {
		if math.IsNaN(v) {
			v = fill
		}
		out[i] = v
	}
	return newSeries(s.name, out), nil
}

func seriesPctChange(s *seriesValue, fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	periods := 1
	if err := starlark.UnpackArgs(fnname, args, kwargs, "periods?", &periods); err != nil {
		return nil, err
	}
	return newSeries(s.name, indicator.PctChange(s.values, periods)), nil
}

func seriesShift(s *seriesValue, fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	periods := 1
	if err := starlark.UnpackArgs(fnname, args, kwargs, "periods?", &periods); err != nil {
		return nil, err
	}
	return newSeries(s.name, indicator.Shift(s.values, periods)), nil
}

func seriesRolling(s *seriesValue, fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var window int
	if err := starlark.UnpackArgs(fnname, args, kwargs, "window", &window); err != nil {
		return nil, err
	}
	if window < 1 {
		return nil, fmt.Errorf("%s: window must be positive, got %d", fnname, window)
	}
	return &rollingValue{src: s, window: window}, nil
}

func seriesToList(s *seriesValue, fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(fnname, args, kwargs, 0); err != nil {
		return nil, err
	}
	elems := make([]starlark.Value, len(s.values))
	for i, v := range s.values {
		elems[i] = starlark.Float(v)
	}
	return starlark.NewList(elems), nil
}

// compareMethod builds an element-wise comparison. Comparisons involving NaN
// are false, except ne which is true.
func compareMethod(cmp func(x, y float64) bool) seriesMethod {
	return func(s *seriesValue, fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var y starlark.Value
		if err := starlark.UnpackPositionalArgs(fnname, args, kwargs, 1, &y); err != nil {
			return nil, err
		}
		other, err := operand(y, len(s.values))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fnname, err)
		}
		return newSeries("", zipWith(s.values, other, func(a, b float64) float64 {
			return boolFloat(cmp(a, b))
		})), nil
	}
}

func aggregateMethod(agg func([]float64) float64) seriesMethod {
	return func(s *seriesValue, fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(fnname, args, kwargs, 0); err != nil {
			return nil, err
		}
		return starlark.Float(agg(s.values)), nil
	}
}

// rollingValue is the result of series.rolling(n); its methods reduce each
// trailing window.
type rollingValue struct {
	src    *seriesValue
	window int
}

var rollingMethods = map[string]func([]float64, int) []float64{
	"mean": indicator.SMA,
	"sum":  indicator.RollingSum,
	"min":  indicator.RollingMin,
	"max":  indicator.RollingMax,
	"std":  indicator.RollingStd,
}

func (r *rollingValue) String() string        { return fmt.Sprintf("rolling(window=%d)", r.window) }
func (r *rollingValue) Type() string          { return "rolling" }
func (r *rollingValue) Freeze()               {}
func (r *rollingValue) Truth() starlark.Bool  { return true }
func (r *rollingValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: rolling") }

func (r *rollingValue) Attr(name string) (starlark.Value, error) {
	fn, ok := rollingMethods[name]
	if !ok {
		return nil, nil
	}
	return bindMethod(name, r, func(fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(fnname, args, kwargs, 0); err != nil {
			return nil, err
		}
		return newSeries(r.src.name, fn(r.src.values, r.window)), nil
	}), nil
}

func (r *rollingValue) AttrNames() []string {
	return []string{"max", "mean", "min", "std", "sum"}
}

func bindMethod(name string, recv starlark.Value, fn func(fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)) starlark.Value {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return fn(b.Name(), args, kwargs)
	}).BindReceiver(recv)
}

// operand converts a series or scalar into a slice of length n.
func operand(v starlark.Value, n int) ([]float64, error) {
	if s, ok := v.(*seriesValue); ok {
		if len(s.values) != n {
			return nil, fmt.Errorf("series length mismatch: %d vs %d", len(s.values), n)
		}
		return s.values, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil, fmt.Errorf("unsupported operand type %s", v.Type())
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = f
	}
	return out, nil
}

// toFloat accepts int, float, bool and None (as NaN).
func toFloat(v starlark.Value) (float64, bool) {
	switch x := v.(type) {
	case starlark.Bool:
		return boolFloat(bool(x)), true
	case starlark.NoneType:
		return math.NaN(), true
	}
	return starlark.AsFloat(v)
}

func zipWith(a, b []float64, fn func(x, y float64) float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = fn(a[i], b[i])
	}
	return out
}

func truthy(v float64) bool {
	return v != 0 && !math.IsNaN(v)
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func nanSum(values []float64) float64 {
	var sum float64
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
		}
	}
	return sum
}

func nanMin(values []float64) float64 {
	out := math.NaN()
	for _, v := range values {
		if !math.IsNaN(v) && (math.IsNaN(out) || v < out) {
			out = v
		}
	}
	return out
}

func nanMax(values []float64) float64 {
	out := math.NaN()
	for _, v := range values {
		if !math.IsNaN(v) && (math.IsNaN(out) || v > out) {
			out = v
		}
	}
	return out
}
