// Package callable normalises template extensions into a single asynchronous
// contract. Every Callable returns a *Future when invoked, regardless of
// whether it was registered through Sync or Async, so the engine can await
// extension results through one code path and surface failures as
// rejections instead of panics or partially-written output.
package callable
