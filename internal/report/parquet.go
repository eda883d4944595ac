// Package report exports evaluated equity curves.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/newthinker/strategylab/internal/backtest"
	"github.com/newthinker/strategylab/internal/storage/archive"
)

// Row is the Parquet schema for one period of an equity curve.
type Row struct {
	Time           int64   `parquet:"time,timestamp(millisecond)"` // Unix ms
	Position       float64 `parquet:"position"`
	Returns        float64 `parquet:"returns"`
	StrategyReturn float64 `parquet:"strategy_return"`
	Equity         float64 `parquet:"equity"`
}

// summaryKey holds the JSON summary in the file's key/value metadata.
const summaryKey = "strategylab.summary"

// Encode renders the report's series as a Parquet file. The summary
// statistics travel in the file metadata.
func Encode(rep backtest.Report) ([]byte, error) {
	rows := make([]Row, len(rep.Series))
	for i, p := range rep.Series {
		rows[i] = Row{
			Time:           p.Time.UnixMilli(),
			Position:       p.Position,
			Returns:        p.Returns,
			StrategyReturn: p.StrategyReturn,
			Equity:         p.Equity,
		}
	}

	summary := rep
	summary.Series = nil
	meta, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}

	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows, parquet.KeyValueMetadata(summaryKey, string(meta))); err != nil {
		return nil, fmt.Errorf("writing parquet: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads rows written by Encode.
func Decode(data []byte) ([]Row, error) {
	rows, err := parquet.Read[Row](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reading parquet: %w", err)
	}
	return rows, nil
}

// ExportParquet writes the report to storage at path.
func ExportParquet(ctx context.Context, storage archive.Storage, path string, rep backtest.Report) error {
	data, err := Encode(rep)
	if err != nil {
		return err
	}
	if err := storage.Write(ctx, path, data); err != nil {
		return fmt.Errorf("storing %s: %w", path, err)
	}
	return nil
}

// ExportPath names an export file: exports/<symbol>/<UTC timestamp>.parquet.
func ExportPath(symbol string, at time.Time) string {
	if symbol == "" {
		symbol = "unknown"
	}
	symbol = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(symbol)
	return fmt.Sprintf("exports/%s/%s.parquet", symbol, at.UTC().Format("20060102T150405Z"))
}
