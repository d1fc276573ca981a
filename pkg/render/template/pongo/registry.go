package pongo

import (
	"context"
	"fmt"

	"github.com/flosch/pongo2/v6"
	"golang.org/x/sync/semaphore"
)

// pongo2 keeps filters in a package level map. It binds a filter to the
// template while parsing and reads "escape" from the map while executing.
// Every pongo2 call made by this package therefore holds the gate: parsing
// and any write to the map hold it exclusively, executing holds one shared
// slot. User callables always run with the gate released.
const exclusive int64 = 1 << 30

var filterRegistry = &registry{
	gate:  semaphore.NewWeighted(exclusive),
	names: make(map[string]struct{}),
}

type registry struct {
	gate *semaphore.Weighted

	// names is guarded by gate.
	names map[string]struct{}
}

// claim reserves name for engine managed bindings. Names already provided by
// pongo2 itself (or registered outside this package) cannot be claimed.
func (r *registry) claim(name string) error {
	if err := r.gate.Acquire(context.Background(), exclusive); err != nil {
		return err
	}
	defer r.gate.Release(exclusive)

	if _, ok := r.names[name]; ok {
		return nil
	}
	if pongo2.FilterExists(name) {
		return &BuiltinFilterError{Name: name}
	}
	if err := pongo2.RegisterFilter(name, detachedFilter(name)); err != nil {
		return fmt.Errorf("pongo: claim filter %q: %w", name, err)
	}
	r.names[name] = struct{}{}
	return nil
}

// enter takes a shared slot for state. It is the only acquisition that
// honours the render context; later ones cannot wait on user code.
func (r *registry) enter(state *renderState) error {
	if err := r.gate.Acquire(state.ctx, 1); err != nil {
		return err
	}
	state.held = 1
	return nil
}

// ban forbids, on set, every claimed name state has no binding for, so such
// filters fail while parsing whatever other engines have claimed.
func (r *registry) ban(set *pongo2.TemplateSet, state *renderState) error {
	for name := range r.names {
		if _, ok := state.bindings[name]; ok {
			continue
		}
		if err := set.BanFilter(name); err != nil {
			return fmt.Errorf("pongo: ban filter %q: %w", name, err)
		}
		state.banned[name] = struct{}{}
	}
	return nil
}

// install upgrades state to the exclusive gate and points every claimed name
// at its binding. Names claimed after the set was created resolve to a stub
// that fails when executed.
func (r *registry) install(state *renderState) error {
	if state.held == exclusive {
		return nil
	}
	r.leave(state)
	_ = r.gate.Acquire(context.Background(), exclusive)
	state.held = exclusive

	for name := range r.names {
		fn, ok := state.bindings[name]
		if !ok {
			fn = unknownFilter(name, state)
		}
		if err := pongo2.ReplaceFilter(name, fn); err != nil {
			return fmt.Errorf("pongo: install filter %q: %w", name, err)
		}
	}
	return nil
}

// settle restores the detached bindings and steps down to a shared slot.
func (r *registry) settle(state *renderState) {
	if state.held != exclusive {
		return
	}
	r.detach()
	r.gate.Release(exclusive - 1)
	state.held = 1
}

// suspend releases everything state holds before user code runs.
func (r *registry) suspend(state *renderState) {
	r.leave(state)
}

// resume takes a shared slot back once user code returned.
func (r *registry) resume(state *renderState) {
	if state.held != 0 {
		return
	}
	_ = r.gate.Acquire(context.Background(), 1)
	state.held = 1
}

// leave releases whatever state holds.
func (r *registry) leave(state *renderState) {
	switch state.held {
	case 0:
		return
	case exclusive:
		r.detach()
	}
	r.gate.Release(state.held)
	state.held = 0
}

// detach points every claimed name back at its detached stub. Callers hold
// the gate exclusively.
func (r *registry) detach() {
	for name := range r.names {
		_ = pongo2.ReplaceFilter(name, detachedFilter(name))
	}
}

// BuiltinFilterReserved reports whether name belongs to pongo2 or to the
// package defaults and therefore cannot be registered by an engine.
func BuiltinFilterReserved(name string) bool {
	r := filterRegistry
	_ = r.gate.Acquire(context.Background(), 1)
	defer r.gate.Release(1)

	if _, ok := r.names[name]; ok {
		return false
	}
	return pongo2.FilterExists(name)
}

func unknownFilter(name string, state *renderState) pongo2.FilterFunction {
	return func(_ *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		err := &UnknownFilterError{Name: name}
		state.fail(err)
		return nil, &pongo2.Error{Sender: "filter:" + name, OrigError: err}
	}
}

// detachedFilter is what a claimed name resolves to outside of parsing. Only
// the filter tag looks filters up at execution time, and it cannot tell
// which engine is rendering.
func detachedFilter(name string) pongo2.FilterFunction {
	return func(_ *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		return nil, &pongo2.Error{Sender: "filter:" + name, OrigError: &DetachedFilterError{Name: name}}
	}
}
