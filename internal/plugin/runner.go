// Package plugin executes user strategy code against a private copy of a
// price series. Strategies are written in Starlark and see only the frame
// they were given plus a small set of numeric builtins.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"go.uber.org/zap"

	"github.com/newthinker/strategylab/internal/core"
	"github.com/newthinker/strategylab/internal/series"
)

// DefaultEntryPoint is the function looked up in function form.
const DefaultEntryPoint = "apply_strategy"

// dfBinding is the name of the series in script form.
const dfBinding = "df"

// Options bounds and configures a Runner. Zero limits mean unbounded.
type Options struct {
	Form            core.StrategyForm
	EntryPoint      string
	Timeout         time.Duration
	MaxSeriesLength int
	MaxSteps        uint64
}

// Runner executes strategy sources. It holds no per-run state and is safe
// for concurrent use.
type Runner struct {
	opts   Options
	logger *zap.Logger
}

// NewRunner creates a runner, filling defaults for empty options.
func NewRunner(opts Options, logger ...*zap.Logger) *Runner {
	if opts.Form == "" {
		opts.Form = core.FormAuto
	}
	if opts.EntryPoint == "" {
		opts.EntryPoint = DefaultEntryPoint
	}
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Runner{opts: opts, logger: l}
}

// Options returns the effective options.
func (r *Runner) Options() Options {
	return r.opts
}

// Run executes source against a copy of input and returns the augmented
// series. input is never modified.
func (r *Runner) Run(ctx context.Context, source string, input *series.Frame) (out *series.Frame, err error) {
	if input == nil {
		return nil, core.ErrEmptySeries
	}
	if r.opts.MaxSeriesLength > 0 && input.Len() > r.opts.MaxSeriesLength {
		return nil, core.WrapError(core.ErrSeriesTooLong,
			fmt.Errorf("%d rows, limit %d", input.Len(), r.opts.MaxSeriesLength))
	}
	if !r.opts.Form.IsValid() {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown strategy form %q", r.opts.Form))
	}

	f, form, err := r.parse(source)
	if err != nil {
		return nil, err
	}

	env := predeclared()
	var df *frameValue
	if form == core.FormScript {
		df = newFrame(input.Clone())
		env[dfBinding] = df
	}

	prog, err := starlark.FileProgram(f, env.Has)
	if err != nil {
		return nil, core.WrapError(core.ErrPluginSyntax, err)
	}

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	var stepsExhausted atomic.Bool
	thread := &starlark.Thread{
		Name: "strategy",
		Print: func(_ *starlark.Thread, msg string) {
			r.logger.Debug("strategy output", zap.String("msg", msg))
		},
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			return nil, fmt.Errorf("load(%q): modules are not available to strategies", module)
		},
	}
	if r.opts.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(r.opts.MaxSteps)
		thread.OnMaxSteps = func(t *starlark.Thread) {
			stepsExhausted.Store(true)
			t.Cancel("too many steps")
		}
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	start := time.Now()
	result, err := r.exec(thread, prog, env, form, input)
	if err != nil {
		switch {
		case stepsExhausted.Load():
			return nil, core.WrapError(core.ErrPluginTimeout,
				fmt.Errorf("step budget of %d exhausted", r.opts.MaxSteps))
		case ctx.Err() != nil:
			return nil, core.WrapError(core.ErrPluginTimeout, ctx.Err())
		}
		return nil, err
	}

	if result == nil {
		result = df
	}
	if result.frame.Len() != input.Len() {
		return nil, core.WrapError(core.ErrPluginRuntime,
			fmt.Errorf("strategy returned %d rows, input has %d", result.frame.Len(), input.Len()))
	}

	r.logger.Debug("strategy finished",
		zap.String("form", string(form)),
		zap.Uint64("steps", thread.ExecutionSteps()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result.frame, nil
}

// Check compiles source without executing it. In function form it also
// requires the entry point to be defined at top level.
func (r *Runner) Check(source string) error {
	if !r.opts.Form.IsValid() {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown strategy form %q", r.opts.Form))
	}
	f, form, err := r.parse(source)
	if err != nil {
		return err
	}

	env := predeclared()
	if form == core.FormScript {
		env[dfBinding] = starlark.None
	}
	if _, err := starlark.FileProgram(f, env.Has); err != nil {
		return core.WrapError(core.ErrPluginSyntax, err)
	}
	if form == core.FormFunction && !definesFunction(f, r.opts.EntryPoint) {
		return core.WrapError(core.ErrPluginNotFound,
			fmt.Errorf("no top-level %s(df) defined", r.opts.EntryPoint))
	}
	return nil
}

// parse reads source and resolves the auto form.
func (r *Runner) parse(source string) (*syntax.File, core.StrategyForm, error) {
	fileOpts := &syntax.FileOptions{
		Set:             true,
		TopLevelControl: true,
		GlobalReassign:  true,
	}
	f, err := fileOpts.Parse("strategy.star", source, 0)
	if err != nil {
		return nil, "", core.WrapError(core.ErrPluginSyntax, err)
	}

	form := r.opts.Form
	if form == core.FormAuto {
		switch {
		case definesFunction(f, r.opts.EntryPoint):
			form = core.FormFunction
		case onlyDefinitions(f):
			// a module of defs that never touches df is a function-form
			// strategy whose entry point is misnamed
			return nil, "", core.WrapError(core.ErrPluginNotFound,
				fmt.Errorf("no top-level %s(df) defined", r.opts.EntryPoint))
		default:
			form = core.FormScript
		}
	}
	return f, form, nil
}

// exec initializes the module and, in function form, calls the entry point.
// A nil frame with a nil error means the script-form df holds the result.
func (r *Runner) exec(thread *starlark.Thread, prog *starlark.Program, env starlark.StringDict, form core.StrategyForm, input *series.Frame) (result *frameValue, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = core.WrapError(core.ErrPluginRuntime, fmt.Errorf("panic: %v", p))
		}
	}()

	globals, err := prog.Init(thread, env)
	if err != nil {
		return nil, runtimeError(err)
	}

	if form == core.FormScript {
		return nil, nil
	}

	entry, ok := globals[r.opts.EntryPoint]
	if !ok {
		return nil, core.WrapError(core.ErrPluginNotFound,
			fmt.Errorf("no top-level %s(df) defined", r.opts.EntryPoint))
	}
	fn, ok := entry.(starlark.Callable)
	if !ok {
		return nil, core.WrapError(core.ErrPluginNotFound,
			fmt.Errorf("%s is a %s, not a function", r.opts.EntryPoint, entry.Type()))
	}

	v, err := starlark.Call(thread, fn, starlark.Tuple{newFrame(input.Clone())}, nil)
	if err != nil {
		return nil, runtimeError(err)
	}
	out, ok := v.(*frameValue)
	if !ok {
		return nil, core.WrapError(core.ErrPluginRuntime,
			fmt.Errorf("%s must return a frame, got %s", r.opts.EntryPoint, v.Type()))
	}
	return out, nil
}

// seriesOrdering matches the interpreter's error for <, >, <= or >= between
// a series and a scalar.
var seriesOrdering = regexp.MustCompile(`(?:^series (<=|>=|<|>) \w+|^\w+ (<=|>=|<|>) series) not implemented`)

var orderingTokens = map[string]syntax.Token{
	"<": syntax.LT, "<=": syntax.LE, ">": syntax.GT, ">=": syntax.GE,
}

func runtimeError(err error) error {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		msg := evalErr.Backtrace()
		if m := seriesOrdering.FindStringSubmatch(evalErr.Msg); m != nil {
			msg += "\n" + comparisonHint(orderingTokens[m[1]+m[2]])
		}
		return core.WrapError(core.ErrPluginRuntime, errors.New(msg))
	}
	var resolveErr resolve.ErrorList
	if errors.As(err, &resolveErr) {
		return core.WrapError(core.ErrPluginSyntax, err)
	}
	return core.WrapError(core.ErrPluginRuntime, err)
}

// definesFunction reports whether the file has a top-level def named name.
func definesFunction(f *syntax.File, name string) bool {
	for _, stmt := range f.Stmts {
		if def, ok := stmt.(*syntax.DefStmt); ok && def.Name.Name == name {
			return true
		}
	}
	return false
}

// onlyDefinitions reports whether f defines at least one function and its
// top level holds nothing but defs, loads and assignments that do not
// mention df. Such a file does no work as a script.
func onlyDefinitions(f *syntax.File) bool {
	defs := 0
	for _, stmt := range f.Stmts {
		switch stmt := stmt.(type) {
		case *syntax.DefStmt:
			defs++
		case *syntax.LoadStmt:
		case *syntax.AssignStmt:
			if mentions(stmt, dfBinding) {
				return false
			}
		default:
			return false
		}
	}
	return defs > 0
}

// mentions reports whether name appears as an identifier anywhere in n.
func mentions(n syntax.Node, name string) bool {
	found := false
	syntax.Walk(n, func(n syntax.Node) bool {
		if id, ok := n.(*syntax.Ident); ok && id.Name == name {
			found = true
		}
		return !found
	})
	return found
}
