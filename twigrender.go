package twigrender

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/goliatone/go-twigrender/pkg/callable"
	"github.com/goliatone/go-twigrender/pkg/loader"
	"github.com/goliatone/go-twigrender/pkg/markdown"
	"github.com/goliatone/go-twigrender/pkg/render/template"
	"github.com/goliatone/go-twigrender/pkg/render/template/pongo"
)

// RenderFunc renders the selected template against data.
type RenderFunc func(ctx context.Context, data map[string]any) (string, error)

// Renderer is an assembled engine plus view selection. It is safe for
// concurrent use.
type Renderer struct {
	engine template.Engine
	chain  *loader.Chain
	view   ViewSelector
	logger *slog.Logger
}

// Build validates cfg and returns the render function of a new Renderer.
func Build(cfg Config) (RenderFunc, error) {
	renderer, err := NewRenderer(cfg)
	if err != nil {
		return nil, err
	}
	return renderer.Render, nil
}

// NewRenderer validates cfg and assembles the engine. Registration order is
// globals, the markdown filter, functions, filters and finally the
// Configure hook.
func NewRenderer(cfg Config) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	chainOpts := []loader.Option{
		loader.WithViews(cfg.Views),
		loader.WithRoots(cfg.ViewsDir...),
		loader.WithLogger(logger),
	}
	for i, fsys := range cfg.ViewsFS {
		chainOpts = append(chainOpts, loader.WithFS(fmt.Sprintf("fs[%d]", i), fsys))
	}
	chain := loader.NewChain(chainOpts...)

	engine, err := pongo.New(
		pongo.WithChain(chain),
		pongo.WithGlobalData(cfg.Globals),
		pongo.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("twigrender: create engine: %w", err)
	}

	if !cfg.MarkdownDisabled {
		base := markdown.DefaultOptions()
		if cfg.MarkdownOptions != nil {
			base = *cfg.MarkdownOptions
		}
		filter := markdown.NewFilter(
			markdown.NewConverter(cfg.MarkdownExtensions...),
			base,
			markdown.WithTrim(cfg.MarkdownTrim),
		)
		if err := engine.AddFilter(markdown.FilterName, filter.Callable()); err != nil {
			return nil, fmt.Errorf("twigrender: register markdown filter: %w", err)
		}
	}

	for _, name := range sortedKeys(cfg.Functions) {
		if err := engine.AddFunction(name, cfg.Functions[name]); err != nil {
			return nil, fmt.Errorf("twigrender: register function %q: %w", name, err)
		}
	}
	for _, name := range sortedKeys(cfg.Filters) {
		if err := engine.AddFilter(name, cfg.Filters[name]); err != nil {
			return nil, fmt.Errorf("twigrender: register filter %q: %w", name, err)
		}
	}

	if cfg.Configure != nil {
		if err := cfg.Configure(engine); err != nil {
			return nil, fmt.Errorf("twigrender: configure: %w", err)
		}
	}

	logger.Debug("renderer assembled",
		"views", len(cfg.Views),
		"roots", len(cfg.ViewsDir)+len(cfg.ViewsFS),
		"functions", len(cfg.Functions),
		"filters", len(cfg.Filters),
		"markdown", !cfg.MarkdownDisabled,
	)

	return &Renderer{
		engine: engine,
		chain:  chain,
		view:   selectorOrDefault(cfg.View),
		logger: logger,
	}, nil
}

// View returns the template name selected for data.
func (r *Renderer) View(data map[string]any) string {
	return r.view.selectView(data)
}

// Render selects the view for data and renders it. Errors raised by user
// functions and filters are returned with their identity intact.
func (r *Renderer) Render(ctx context.Context, data map[string]any) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	name := r.View(data)
	r.logger.Debug("rendering view", "view", name)
	return r.engine.Render(ctx, name, data)
}

// RenderFuture renders on a new goroutine and returns the pending result.
func (r *Renderer) RenderFuture(ctx context.Context, data map[string]any) *callable.Future {
	return callable.Go(func() (any, error) {
		return r.Render(ctx, data)
	})
}

// Templates lists the templates the renderer can resolve.
func (r *Renderer) Templates(ctx context.Context, pattern string) ([]loader.Listing, error) {
	return r.chain.List(ctx, pattern)
}
