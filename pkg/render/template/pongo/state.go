package pongo

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-twigrender/pkg/loader"
)

// renderState is owned by a single Render call. Filter and function bindings
// close over it so the original cause of a failure survives pongo2's error
// wrapping.
type renderState struct {
	ctx      context.Context
	bindings map[string]pongo2.FilterFunction
	banned   map[string]struct{}

	// held is the registry gate weight this render owns. Only the rendering
	// goroutine touches it.
	held int64

	mu       sync.Mutex
	failure  error
	loadErrs []loadFailure
}

type loadFailure struct {
	name string
	err  error
}

func newRenderState(ctx context.Context) *renderState {
	return &renderState{ctx: ctx, banned: make(map[string]struct{})}
}

// fail records the first extension failure.
func (s *renderState) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure == nil {
		s.failure = err
	}
}

func (s *renderState) cause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

func (s *renderState) recordLoad(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErrs = append(s.loadErrs, loadFailure{name: name, err: err})
}

// loadFailure returns the load error behind engineErr: the one recorded for
// name, otherwise the latest one whose name appears in the engine message.
func (s *renderState) loadFailure(name string, engineErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, failure := range s.loadErrs {
		if failure.name == name {
			return failure.err
		}
	}
	if engineErr == nil {
		return nil
	}
	msg := engineErr.Error()
	for i := len(s.loadErrs) - 1; i >= 0; i-- {
		if strings.Contains(msg, s.loadErrs[i].name) {
			return s.loadErrs[i].err
		}
	}
	return nil
}

// unknownFilter names the filter engineErr reports as missing: one pongo2
// never knew, or a claimed one this render banned.
func (s *renderState) unknownFilter(engineErr error) (string, bool) {
	if engineErr == nil {
		return "", false
	}
	msg := engineErr.Error()
	if match := unknownFilterPattern.FindStringSubmatch(msg); match != nil {
		return match[1], true
	}
	if match := bannedFilterPattern.FindStringSubmatch(msg); match != nil {
		if _, ok := s.banned[match[1]]; ok {
			return match[1], true
		}
	}
	return "", false
}

// chainLoader feeds pongo2 from a loader.Chain. Names are root relative, so
// Abs ignores the including template.
type chainLoader struct {
	chain *loader.Chain
	state *renderState
}

var _ pongo2.TemplateLoader = (*chainLoader)(nil)

func (l *chainLoader) Abs(_, name string) string {
	return name
}

// Get resolves path and prepares the registry for pongo2 to parse it: the
// entry template, static includes and includes named at execution time all
// parse right after Get returns.
func (l *chainLoader) Get(path string) (io.Reader, error) {
	tpl, err := l.chain.Resolve(l.state.ctx, path)
	if err != nil {
		l.state.recordLoad(path, err)
		return nil, err
	}
	if err := filterRegistry.install(l.state); err != nil {
		return nil, err
	}
	return strings.NewReader(tpl.Content), nil
}
