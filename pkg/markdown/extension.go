package markdown

import (
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Extension customises the converter setup after Options are applied.
type Extension func(*Setup)

// Footnotes enables [^ref] style footnotes.
func Footnotes() Extension {
	return func(s *Setup) {
		s.Extensions |= parser.Footnotes
	}
}

// DefinitionLists enables term/definition lists.
func DefinitionLists() Extension {
	return func(s *Setup) {
		s.Extensions |= parser.DefinitionLists
	}
}

// MathJax keeps $inline$ and $$block$$ math untouched for client side rendering.
func MathJax() Extension {
	return func(s *Setup) {
		s.Extensions |= parser.MathJax
	}
}

// NodeHook installs a render hook. Hooks run in registration order and the
// first one reporting handled=true wins for a node.
func NodeHook(fn html.RenderNodeFunc) Extension {
	return func(s *Setup) {
		if fn == nil {
			return
		}
		s.Hooks = append(s.Hooks, fn)
	}
}
