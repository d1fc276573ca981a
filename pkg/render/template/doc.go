// Package template defines the engine-agnostic seam between renderer
// assembly and the template engine: the Environment capability interface
// used by configure hooks and the Engine contract used at render time.
package template
