// Package series holds the columnar price series that strategies read and
// augment. Missing cells are NaN.
package series

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/newthinker/strategylab/internal/core"
)

// Canonical price columns produced by FromBars.
const (
	ColOpen     = "open"
	ColHigh     = "high"
	ColLow      = "low"
	ColClose    = "close"
	ColVolume   = "volume"
	ColSignal   = "signal"
	ColPosition = "position"
	ColReturns  = "returns"
)

// Frame is an ordered, time-indexed set of equal-length float64 columns.
type Frame struct {
	index   []time.Time
	columns map[string][]float64
	order   []string
}

// New creates an empty frame over index. The index must be strictly increasing.
func New(index []time.Time) (*Frame, error) {
	for i := 1; i < len(index); i++ {
		if !index[i].After(index[i-1]) {
			return nil, core.WrapError(core.ErrInvalidSeries,
				fmt.Errorf("timestamp %s at position %d does not follow %s",
					index[i].Format(time.RFC3339), i, index[i-1].Format(time.RFC3339)))
		}
	}
	idx := make([]time.Time, len(index))
	copy(idx, index)
	return &Frame{
		index:   idx,
		columns: make(map[string][]float64),
	}, nil
}

// FromBars builds a price series with open/high/low/close/volume columns.
func FromBars(bars []core.OHLCV) (*Frame, error) {
	index := make([]time.Time, len(bars))
	open := make([]float64, len(bars))
	high := make([]float64, len(bars))
	low := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	volume := make([]float64, len(bars))

	for i, b := range bars {
		index[i] = b.Time
		open[i] = b.Open
		high[i] = b.High
		low[i] = b.Low
		closes[i] = b.Close
		volume[i] = float64(b.Volume)
	}

	f, err := New(index)
	if err != nil {
		return nil, err
	}
	f.set(ColOpen, open)
	f.set(ColHigh, high)
	f.set(ColLow, low)
	f.set(ColClose, closes)
	f.set(ColVolume, volume)
	return f, nil
}

// Len returns the number of periods.
func (f *Frame) Len() int {
	return len(f.index)
}

// Index returns a copy of the time index.
func (f *Frame) Index() []time.Time {
	idx := make([]time.Time, len(f.index))
	copy(idx, f.index)
	return idx
}

// Time returns the timestamp of period i.
func (f *Frame) Time(i int) time.Time {
	return f.index[i]
}

// Columns returns column names in insertion order.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.order))
	copy(names, f.order)
	return names
}

// Has reports whether the column resolves.
func (f *Frame) Has(name string) bool {
	_, ok := f.resolve(name)
	return ok
}

// Column returns a copy of the named column. Lookup is exact first, then
// case-insensitive.
func (f *Frame) Column(name string) ([]float64, bool) {
	key, ok := f.resolve(name)
	if !ok {
		return nil, false
	}
	src := f.columns[key]
	out := make([]float64, len(src))
	copy(out, src)
	return out, true
}

// Set stores a copy of values under name, replacing an existing column with
// the exact same name.
func (f *Frame) Set(name string, values []float64) error {
	if name == "" {
		return fmt.Errorf("column name cannot be empty")
	}
	if len(values) != len(f.index) {
		return fmt.Errorf("column %q has length %d, series has %d", name, len(values), len(f.index))
	}
	out := make([]float64, len(values))
	copy(out, values)
	f.set(name, out)
	return nil
}

// Fill stores a constant column.
func (f *Frame) Fill(name string, value float64) error {
	values := make([]float64, len(f.index))
	for i := range values {
		values[i] = value
	}
	return f.Set(name, values)
}

// Drop removes a column and reports whether it existed.
func (f *Frame) Drop(name string) bool {
	key, ok := f.resolve(name)
	if !ok {
		return false
	}
	delete(f.columns, key)
	for i, n := range f.order {
		if n == key {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return true
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	c := &Frame{
		index:   make([]time.Time, len(f.index)),
		columns: make(map[string][]float64, len(f.columns)),
		order:   make([]string, len(f.order)),
	}
	copy(c.index, f.index)
	copy(c.order, f.order)
	for name, values := range f.columns {
		vals := make([]float64, len(values))
		copy(vals, values)
		c.columns[name] = vals
	}
	return c
}

// Missing counts NaN cells in a column.
func (f *Frame) Missing(name string) int {
	key, ok := f.resolve(name)
	if !ok {
		return 0
	}
	n := 0
	for _, v := range f.columns[key] {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

func (f *Frame) set(name string, values []float64) {
	if _, exists := f.columns[name]; !exists {
		f.order = append(f.order, name)
	}
	f.columns[name] = values
}

func (f *Frame) resolve(name string) (string, bool) {
	if _, ok := f.columns[name]; ok {
		return name, true
	}
	for _, n := range f.order {
		if strings.EqualFold(n, name) {
			return n, true
		}
	}
	return "", false
}
