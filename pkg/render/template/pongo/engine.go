package pongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-twigrender/pkg/callable"
	"github.com/goliatone/go-twigrender/pkg/loader"
	"github.com/goliatone/go-twigrender/pkg/render/template"
)

// Option configures the engine before construction.
type Option func(*config)

type config struct {
	name         string
	chain        *loader.Chain
	globalData   map[string]any
	numberFormat template.NumberFormat
	logger       *slog.Logger
}

// WithName names the underlying template set, which shows up in pongo2
// diagnostics.
func WithName(name string) Option {
	return func(cfg *config) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cfg.name = trimmed
		}
	}
}

// WithChain sets the loader chain templates are resolved through.
func WithChain(chain *loader.Chain) Option {
	return func(cfg *config) {
		cfg.chain = chain
	}
}

// WithGlobalData seeds global values available to every template.
func WithGlobalData(data map[string]any) Option {
	return func(cfg *config) {
		if len(data) == 0 {
			return
		}
		if cfg.globalData == nil {
			cfg.globalData = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globalData[strings.TrimSpace(key)] = value
		}
	}
}

// WithNumberFormat sets the initial number_format configuration.
func WithNumberFormat(format template.NumberFormat) Option {
	return func(cfg *config) {
		cfg.numberFormat = format
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Engine satisfies template.Engine using pongo2. Each Render builds a fresh
// template set bound to the loader chain and parses the requested template,
// so nothing is cached between calls.
type Engine struct {
	mu sync.RWMutex

	name         string
	chain        *loader.Chain
	filters      map[string]callable.Callable
	functions    map[string]callable.Callable
	globals      pongo2.Context
	numberFormat template.NumberFormat
	logger       *slog.Logger
}

// Ensure Engine implements the template.Engine interface.
var _ template.Engine = (*Engine)(nil)

// New constructs an Engine using the provided configuration options.
func New(options ...Option) (*Engine, error) {
	cfg := &config{
		name:         "twigrender",
		numberFormat: template.DefaultNumberFormat(),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	if cfg.chain == nil {
		return nil, errors.New("pongo: loader chain is required")
	}
	if err := filterRegistry.claim(NumberFormatFilter); err != nil {
		return nil, err
	}

	engine := &Engine{
		name:         cfg.name,
		chain:        cfg.chain,
		filters:      make(map[string]callable.Callable),
		functions:    make(map[string]callable.Callable),
		globals:      make(pongo2.Context),
		numberFormat: cfg.numberFormat,
		logger:       cfg.logger,
	}

	if err := engine.GlobalContext(cfg.globalData); err != nil {
		return nil, fmt.Errorf("pongo: apply global data: %w", err)
	}
	return engine, nil
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateName checks that name can be referenced from a template.
func ValidateName(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("pongo: %q is not a valid identifier", name)
	}
	return nil
}

// AddFilter registers fn as a filter, replacing any earlier registration
// with the same name on this engine.
func (e *Engine) AddFilter(name string, fn callable.Callable) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if !fn.Valid() {
		return fmt.Errorf("pongo: filter %q has no function", name)
	}
	if err := filterRegistry.claim(name); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.filters[name] = fn
	return nil
}

// AddFunction registers fn as a function callable from templates.
func (e *Engine) AddFunction(name string, fn callable.Callable) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if !fn.Valid() {
		return fmt.Errorf("pongo: function %q has no function", name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.functions[name] = fn
	return nil
}

// AddGlobal exposes value to every render. Render data with the same key
// takes precedence.
func (e *Engine) AddGlobal(name string, value any) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("pongo: global name required")
	}
	return e.GlobalContext(map[string]any{name: value})
}

// GlobalContext merges data into the global values.
func (e *Engine) GlobalContext(data map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	globalCtx, err := convertToContext(data)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.globals.Update(globalCtx)
	return nil
}

// SetNumberFormat implements template.Environment.
func (e *Engine) SetNumberFormat(format template.NumberFormat) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.numberFormat = format
}

// NumberFormat implements template.Environment.
func (e *Engine) NumberFormat() template.NumberFormat {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.numberFormat
}

// HasFilter reports whether name is registered on this engine.
func (e *Engine) HasFilter(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.filters[name]
	return ok
}

type snapshot struct {
	filters      map[string]callable.Callable
	functions    map[string]callable.Callable
	globals      pongo2.Context
	numberFormat template.NumberFormat
}

func (e *Engine) snapshot() snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := snapshot{
		filters:      make(map[string]callable.Callable, len(e.filters)),
		functions:    make(map[string]callable.Callable, len(e.functions)),
		globals:      make(pongo2.Context, len(e.globals)),
		numberFormat: e.numberFormat,
	}
	for name, fn := range e.filters {
		snap.filters[name] = fn
	}
	for name, fn := range e.functions {
		snap.functions[name] = fn
	}
	snap.globals.Update(e.globals)
	return snap
}

// Render resolves name through the loader chain and executes it with data.
func (e *Engine) Render(ctx context.Context, name string, data map[string]any) (string, error) {
	if e == nil || e.chain == nil {
		return "", errors.New("pongo: engine is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	viewContext, err := convertToContext(data)
	if err != nil {
		return "", fmt.Errorf("pongo: convert data: %w", err)
	}

	snap := e.snapshot()
	state := newRenderState(ctx)
	state.bindings = e.bindFilters(snap, state)
	if err := filterRegistry.enter(state); err != nil {
		return "", fmt.Errorf("pongo: render %q: %w", name, err)
	}
	defer filterRegistry.leave(state)

	set := pongo2.NewSet(e.name, &chainLoader{chain: e.chain, state: state})
	set.Globals = snap.globals
	if err := filterRegistry.ban(set, state); err != nil {
		return "", err
	}

	tpl, err := set.FromFile(name)
	filterRegistry.settle(state)
	if err != nil {
		return "", e.renderError(name, err, state)
	}

	for fnName, fn := range snap.functions {
		viewContext[fnName] = bindFunction(fn, state)
	}

	rendered, err := tpl.Execute(viewContext)
	if err != nil {
		return "", e.renderError(name, err, state)
	}
	return rendered, nil
}

func (e *Engine) bindFilters(snap snapshot, state *renderState) map[string]pongo2.FilterFunction {
	bindings := make(map[string]pongo2.FilterFunction, len(snap.filters)+1)
	bindings[NumberFormatFilter] = numberFormatFilter(snap.numberFormat)
	for name, fn := range snap.filters {
		bindings[name] = bindFilter(name, fn, state)
	}
	return bindings
}

func bindFilter(name string, fn callable.Callable, state *renderState) pongo2.FilterFunction {
	safe := fn.Options().Safe
	return func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		args := []any{in.Interface()}
		if param != nil && !param.IsNil() {
			args = append(args, param.Interface())
		}
		result, err := call(state, fn, args)
		if err != nil {
			state.fail(err)
			return nil, &pongo2.Error{Sender: "filter:" + name, OrigError: err}
		}
		return toValue(result, safe), nil
	}
}

func bindFunction(fn callable.Callable, state *renderState) func(args ...*pongo2.Value) (*pongo2.Value, error) {
	safe := fn.Options().Safe
	return func(args ...*pongo2.Value) (*pongo2.Value, error) {
		values := make([]any, 0, len(args))
		for _, arg := range args {
			values = append(values, arg.Interface())
		}
		result, err := call(state, fn, values)
		if err != nil {
			state.fail(err)
			return nil, err
		}
		return toValue(result, safe), nil
	}
}

// call runs fn with the registry gate released, so user code may render
// through any engine, this one included.
func call(state *renderState, fn callable.Callable, args []any) (any, error) {
	filterRegistry.suspend(state)
	defer filterRegistry.resume(state)
	return fn.Call(state.ctx, args...).Await(state.ctx)
}

func (e *Engine) renderError(name string, err error, state *renderState) error {
	execErr := &ExecutionError{Template: name, Err: err}
	var engineErr *pongo2.Error
	if errors.As(err, &engineErr) {
		execErr.Line = engineErr.Line
		execErr.Column = engineErr.Column
	}

	if cause := state.cause(); cause != nil {
		execErr.Err = cause
		e.logger.Debug("template extension failed", "template", name, "error", cause)
		return execErr
	}
	if filter, ok := state.unknownFilter(err); ok {
		execErr.Err = &UnknownFilterError{Name: filter}
		return execErr
	}
	if loadErr := state.loadFailure(name, err); loadErr != nil {
		return fmt.Errorf("pongo: load template %q: %w", name, loadErr)
	}
	return execErr
}
