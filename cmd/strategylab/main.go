package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/strategylab/internal/app"
	"github.com/newthinker/strategylab/internal/config"
	"github.com/newthinker/strategylab/internal/core"
	"github.com/newthinker/strategylab/internal/logger"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "strategylab",
	Short: "StrategyLab - strategy backtesting with scripted plugins",
	Long: `StrategyLab runs user-written Starlark strategies against historical
price series and reports equity, return, win rate, Sharpe ratio and drawdown.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, core.UserMessage(err))
		os.Exit(1)
	}
}

// loadConfig reads the config file, or the defaults when none is given.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the logger for cfg. --debug forces development output
// at debug level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if debug {
		return logger.Debug(), nil
	}
	return logger.New(cfg.Log)
}

// newApp loads config, lets adjust override it and builds the app.
func newApp(adjust func(*config.Config)) (*app.App, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if adjust != nil {
		adjust(cfg)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}
