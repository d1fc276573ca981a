package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Option configures a Chain.
type Option func(*Chain)

// WithViews registers an in-memory mapping. Empty mappings are skipped.
func WithViews(views map[string]string) Option {
	return func(c *Chain) {
		if len(views) == 0 {
			return
		}
		c.static = append(c.static, NewMapSource("views", views))
	}
}

// WithStatic appends a source consulted sequentially before any root.
func WithStatic(src Source) Option {
	return func(c *Chain) {
		if src == nil {
			return
		}
		c.static = append(c.static, src)
	}
}

// WithRoots appends filesystem roots in priority order.
func WithRoots(dirs ...string) Option {
	return func(c *Chain) {
		for _, dir := range dirs {
			if strings.TrimSpace(dir) == "" {
				continue
			}
			c.roots = append(c.roots, NewDirSource(dir))
		}
	}
}

// WithFS appends an fs.FS root after any previously configured roots.
func WithFS(label string, fsys fs.FS) Option {
	return func(c *Chain) {
		if fsys == nil {
			return
		}
		c.roots = append(c.roots, NewFSSource(label, fsys))
	}
}

// WithRoot appends a custom source that is probed concurrently with the
// other roots.
func WithRoot(src Source) Option {
	return func(c *Chain) {
		if src == nil {
			return
		}
		c.roots = append(c.roots, src)
	}
}

// WithLogger sets the logger used for fault diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Chain resolves names against static sources, then roots.
type Chain struct {
	static []Source
	roots  []Source
	logger *slog.Logger
}

// NewChain builds a Chain from options.
func NewChain(options ...Option) *Chain {
	c := &Chain{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// Sources returns static sources followed by roots, in resolution order.
func (c *Chain) Sources() []Source {
	out := make([]Source, 0, len(c.static)+len(c.roots))
	out = append(out, c.static...)
	out = append(out, c.roots...)
	return out
}

// Resolve returns the content for name from the highest priority source
// holding it.
func (c *Chain) Resolve(ctx context.Context, name string) (Template, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var faults []Fault
	for _, src := range c.static {
		tpl, ok, err := src.Lookup(ctx, name)
		if err != nil {
			faults = append(faults, Fault{Source: src.Name(), Err: err})
			continue
		}
		if ok {
			c.logger.Debug("template resolved", "name", name, "source", src.Name())
			return tpl, nil
		}
	}

	if len(c.roots) > 0 {
		tpl, ok, rootFaults := c.probeRoots(ctx, name)
		faults = append(faults, rootFaults...)
		if ok {
			c.reportFaults(name, faults)
			c.logger.Debug("template resolved", "name", name, "source", tpl.Source)
			return tpl, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return Template{}, err
	}
	c.reportFaults(name, faults)
	return Template{}, &NotFoundError{Name: name, Faults: faults}
}

type probeOutcome struct {
	index int
	tpl   Template
	ok    bool
	err   error
}

// probeRoots looks name up in every root at once. A hit is only accepted
// after every lower-index root has reported, so configuration order decides
// precedence rather than response timing.
func (c *Chain) probeRoots(ctx context.Context, name string) (Template, bool, []Fault) {
	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan probeOutcome, len(c.roots))
	for i, src := range c.roots {
		go func(i int, src Source) {
			tpl, ok, err := src.Lookup(probeCtx, name)
			results <- probeOutcome{index: i, tpl: tpl, ok: ok, err: err}
		}(i, src)
	}

	settled := make([]*probeOutcome, len(c.roots))
	next := 0
	for received := 0; received < len(c.roots); received++ {
		outcome := <-results
		settled[outcome.index] = &outcome

		for next < len(settled) && settled[next] != nil {
			if settled[next].ok {
				return settled[next].tpl, true, c.collectFaults(settled[:next])
			}
			next++
		}
	}
	return Template{}, false, c.collectFaults(settled)
}

func (c *Chain) collectFaults(outcomes []*probeOutcome) []Fault {
	var faults []Fault
	for _, outcome := range outcomes {
		if outcome == nil || outcome.err == nil {
			continue
		}
		faults = append(faults, Fault{Source: c.roots[outcome.index].Name(), Err: outcome.err})
	}
	return faults
}

func (c *Chain) reportFaults(name string, faults []Fault) {
	for _, fault := range faults {
		if errors.Is(fault.Err, context.Canceled) || errors.Is(fault.Err, context.DeadlineExceeded) {
			continue
		}
		c.logger.Warn("template source fault", "name", name, "source", fault.Source, "error", fault.Err)
	}
}

// Listing describes one resolvable name.
type Listing struct {
	Name string
	// Source wins resolution for Name.
	Source string
	// Shadowed lists lower priority sources that also hold Name.
	Shadowed []string
}

// List enumerates names matching a doublestar pattern across every source
// that supports listing, in resolution order.
func (c *Chain) List(ctx context.Context, pattern string) ([]Listing, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(pattern) == "" {
		pattern = "**"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("loader: invalid pattern %q", pattern)
	}

	index := make(map[string]*Listing)
	for _, src := range c.Sources() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lister, ok := src.(Lister)
		if !ok {
			continue
		}
		names, err := lister.List(ctx, pattern)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if existing, seen := index[name]; seen {
				existing.Shadowed = append(existing.Shadowed, src.Name())
				continue
			}
			index[name] = &Listing{Name: name, Source: src.Name()}
		}
	}

	out := make([]Listing, 0, len(index))
	for _, listing := range index {
		out = append(out, *listing)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
