// Package twigrender assembles a Twig-style renderer from a declarative
// Config: in-memory and on-disk template sources, user functions and filters,
// a built-in markdown filter, global values and a configure hook applied
// last.
//
//	render, err := twigrender.Build(twigrender.Config{
//		Views: map[string]string{"main.twig": "{{ content|markdown }}"},
//	})
//	if err != nil {
//		return err
//	}
//	html, err := render(ctx, map[string]any{"content": "# Title"})
//
// Templates use pongo2 syntax with HTML auto-escaping enabled. Filters and
// functions are wrapped with the callable package so synchronous and
// asynchronous implementations share one calling convention.
package twigrender
