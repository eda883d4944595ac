package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/strategylab/internal/core"
	"github.com/newthinker/strategylab/internal/storage/record"
)

// AddStrategy stores source for owner. The source is parsed before it is
// saved so obviously broken strategies are rejected early.
func (a *App) AddStrategy(ctx context.Context, owner, name, source string) (*core.StrategyRecord, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("owner required"))
	}
	if strings.TrimSpace(source) == "" {
		return nil, core.WrapError(core.ErrSourceUnreadable, fmt.Errorf("empty strategy source"))
	}
	if err := a.runner.Check(source); err != nil {
		return nil, err
	}

	rec := &core.StrategyRecord{Owner: owner, Name: name, Source: source}
	if err := a.records.Save(ctx, rec); err != nil {
		return nil, err
	}
	a.logger.Info("strategy added", zap.String("owner", owner), zap.String("id", rec.ID))
	return rec, nil
}

// AddStrategyFile stores the strategy at path for owner.
func (a *App) AddStrategyFile(ctx context.Context, owner, name, path string) (*core.StrategyRecord, error) {
	src, err := a.loader.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = path
	}
	return a.AddStrategy(ctx, owner, name, src)
}

// ListStrategies returns owner's strategies, oldest first.
func (a *App) ListStrategies(ctx context.Context, owner string) ([]core.StrategyRecord, error) {
	return a.records.List(ctx, record.ListFilter{Owner: owner})
}

// GetStrategy returns one of owner's strategies. Records of other owners
// are reported as not found.
func (a *App) GetStrategy(ctx context.Context, owner, id string) (*core.StrategyRecord, error) {
	rec, err := a.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Owner != owner {
		return nil, core.WrapError(core.ErrRecordNotFound, fmt.Errorf("id %s", id))
	}
	return rec, nil
}

// DeleteStrategy removes one of owner's strategies.
func (a *App) DeleteStrategy(ctx context.Context, owner, id string) error {
	if _, err := a.GetStrategy(ctx, owner, id); err != nil {
		return err
	}
	return a.records.Delete(ctx, id)
}

// RunStrategy backtests a stored strategy and saves the feedback text on
// the record when feedback was requested.
func (a *App) RunStrategy(ctx context.Context, owner, id string, req Request) (*Outcome, error) {
	rec, err := a.GetStrategy(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	req.Source = rec.Source

	out, err := a.Backtest(ctx, req)
	if err != nil {
		return nil, err
	}
	a.saveFeedback(ctx, rec.ID, out, req.Feedback)
	return out, nil
}

func (a *App) saveFeedback(ctx context.Context, id string, out *Outcome, requested bool) {
	if !requested {
		return
	}
	if err := a.records.SetFeedback(ctx, id, out.Feedback); err != nil {
		a.logger.Warn("saving feedback failed", zap.String("id", id), zap.Error(err))
	}
}

// OwnerResult is one strategy's result within RunOwner. Exactly one of
// Outcome and Err is set.
type OwnerResult struct {
	Strategy core.StrategyRecord
	Outcome  *Outcome
	Err      error
}

// RunOwner backtests all of owner's strategies against one price series.
// Runs proceed concurrently up to backtest.workers; a failed run is
// reported in its own result and does not stop the others.
func (a *App) RunOwner(ctx context.Context, owner string, req Request) ([]OwnerResult, error) {
	recs, err := a.ListStrategies(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return []OwnerResult{}, nil
	}

	req = a.withDefaults(req)
	prices, err := a.backtester.Series(ctx, req.Symbol, req.Period, req.Interval)
	if err != nil {
		return nil, err
	}

	workers := a.cfg.Backtest.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]OwnerResult, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rec := range recs {
		results[i].Strategy = rec
		g.Go(func() error {
			r := req
			r.Source = rec.Source
			out, err := a.backtestOn(gctx, r, prices, a.now())
			if err != nil {
				results[i].Err = err
				a.logger.Info("strategy failed",
					zap.String("owner", owner),
					zap.String("id", rec.ID),
					zap.String("code", core.Code(err)),
				)
				return nil
			}
			results[i].Outcome = out
			a.saveFeedback(gctx, rec.ID, out, r.Feedback)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
