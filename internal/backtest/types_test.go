package backtest

import (
	"testing"
)

func TestConfig_WithDefaults(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want Config
	}{
		{"zero", Config{}, DefaultConfig()},
		{"negative capital", Config{InitialCapital: -1, AnnualizationFactor: 52}, Config{InitialCapital: 1000, AnnualizationFactor: 52}},
		{"explicit", Config{InitialCapital: 5000, AnnualizationFactor: 365}, Config{InitialCapital: 5000, AnnualizationFactor: 365}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.withDefaults(); got != tt.want {
				t.Errorf("withDefaults() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
