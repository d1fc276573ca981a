package twigrender

import "strings"

const (
	// DefaultExtension is appended to the "view" value read from render data.
	DefaultExtension = ".twig"
	// FallbackView is rendered when the data names no view.
	FallbackView = "main.twig"
)

// ViewSelector picks the template for a render call. It is either a
// StaticView or a ViewFunc; the concrete type decides which is used.
type ViewSelector interface {
	selectView(data map[string]any) string
}

// StaticView always renders the same template.
type StaticView string

func (v StaticView) selectView(map[string]any) string {
	return string(v)
}

// ViewFunc computes the template name from the render data.
type ViewFunc func(data map[string]any) string

func (f ViewFunc) selectView(data map[string]any) string {
	return f(data)
}

// DefaultView derives the template from a string "view" entry in data,
// adding DefaultExtension, and falls back to FallbackView.
var DefaultView ViewSelector = ViewFunc(func(data map[string]any) string {
	if view, ok := data["view"].(string); ok && strings.TrimSpace(view) != "" {
		return view + DefaultExtension
	}
	return FallbackView
})

func selectorOrDefault(view ViewSelector) ViewSelector {
	if view == nil {
		return DefaultView
	}
	return view
}
