package plugin

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"

	"github.com/newthinker/strategylab/internal/series"
)

// frameValue wraps a private copy of the price series as the strategy's df.
// It supports df["col"], df["col"] = value, "col" in df, len(df) and
// iteration over column names.
type frameValue struct {
	frame  *series.Frame
	frozen bool
}

var (
	_ starlark.Value     = (*frameValue)(nil)
	_ starlark.Mapping   = (*frameValue)(nil)
	_ starlark.HasSetKey = (*frameValue)(nil)
	_ starlark.Sequence  = (*frameValue)(nil)
	_ starlark.HasAttrs  = (*frameValue)(nil)
)

func newFrame(f *series.Frame) *frameValue {
	return &frameValue{frame: f}
}

func (f *frameValue) String() string {
	return fmt.Sprintf("frame(rows=%d, columns=%v)", f.frame.Len(), f.frame.Columns())
}

func (f *frameValue) Type() string          { return "frame" }
func (f *frameValue) Freeze()               { f.frozen = true }
func (f *frameValue) Truth() starlark.Bool  { return f.frame.Len() > 0 }
func (f *frameValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: frame") }
func (f *frameValue) Len() int              { return len(f.frame.Columns()) }

func (f *frameValue) Iterate() starlark.Iterator {
	return &columnIterator{names: f.frame.Columns()}
}

func (f *frameValue) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("frame keys must be strings, got %s", k.Type())
	}
	values, ok := f.frame.Column(name)
	if !ok {
		return nil, false, nil
	}
	return newSeries(name, values), true, nil
}

func (f *frameValue) SetKey(k, v starlark.Value) error {
	if f.frozen {
		return fmt.Errorf("cannot assign to frozen frame")
	}
	name, ok := starlark.AsString(k)
	if !ok {
		return fmt.Errorf("frame keys must be strings, got %s", k.Type())
	}
	values, err := columnValues(v, f.frame.Len())
	if err != nil {
		return fmt.Errorf("df[%q]: %w", name, err)
	}
	return f.frame.Set(name, values)
}

func (f *frameValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		cols := f.frame.Columns()
		elems := make([]starlark.Value, len(cols))
		for i, c := range cols {
			elems[i] = starlark.String(c)
		}
		return starlark.NewList(elems), nil
	case "copy":
		return bindMethod(name, f, func(fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(fnname, args, kwargs, 0); err != nil {
				return nil, err
			}
			return newFrame(f.frame.Clone()), nil
		}), nil
	case "drop":
		return bindMethod(name, f, func(fnname string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var col string
			if err := starlark.UnpackPositionalArgs(fnname, args, kwargs, 1, &col); err != nil {
				return nil, err
			}
			if f.frozen {
				return nil, fmt.Errorf("%s: cannot modify frozen frame", fnname)
			}
			return starlark.Bool(f.frame.Drop(col)), nil
		}), nil
	}

	// Columns are also reachable as attributes, as in df.close.
	if values, ok := f.frame.Column(name); ok {
		return newSeries(name, values), nil
	}
	return nil, nil
}

func (f *frameValue) AttrNames() []string {
	names := append([]string{"columns", "copy", "drop"}, f.frame.Columns()...)
	sort.Strings(names)
	return names
}

type columnIterator struct {
	names []string
	i     int
}

func (it *columnIterator) Next(p *starlark.Value) bool {
	if it.i >= len(it.names) {
		return false
	}
	*p = starlark.String(it.names[it.i])
	it.i++
	return true
}

func (it *columnIterator) Done() {}

// columnValues broadcasts a scalar or converts a series or list into a column
// of length n.
func columnValues(v starlark.Value, n int) ([]float64, error) {
	switch x := v.(type) {
	case *seriesValue:
		if len(x.values) != n {
			return nil, fmt.Errorf("series has length %d, frame has %d rows", len(x.values), n)
		}
		return x.values, nil
	case starlark.Indexable:
		if _, isString := x.(starlark.String); isString {
			return nil, fmt.Errorf("cannot assign string to a column")
		}
		if x.Len() != n {
			return nil, fmt.Errorf("sequence has length %d, frame has %d rows", x.Len(), n)
		}
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			f, ok := toFloat(x.Index(i))
			if !ok {
				return nil, fmt.Errorf("element %d is %s, want number", i, x.Index(i).Type())
			}
			out[i] = f
		}
		return out, nil
	}
	return operand(v, n)
}
