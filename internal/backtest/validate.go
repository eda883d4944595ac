package backtest

import (
	"github.com/newthinker/strategylab/internal/core"
	"github.com/newthinker/strategylab/internal/series"
)

// RequiredColumns lists the derived columns an augmented series must carry,
// in the order they are checked.
var RequiredColumns = []string{series.ColPosition, series.ColReturns}

// Validate checks that a strategy produced every required column. Values are
// not inspected; NaN cells are handled by Evaluate.
func Validate(f *series.Frame) error {
	for _, name := range RequiredColumns {
		if f == nil || !f.Has(name) {
			return core.MissingField(name)
		}
	}
	return nil
}
