package markdown

import (
	"bytes"
	"io"
	"sync"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var (
	sanitizePolicyOnce sync.Once
	sanitizePolicy     *bluemonday.Policy
)

// Converter turns markdown into HTML. A fresh parser and renderer are built
// for every call; gomarkdown parsers keep per-document state.
type Converter struct {
	extensions []Extension
}

// NewConverter returns a converter applying extensions on every call.
func NewConverter(extensions ...Extension) *Converter {
	filtered := make([]Extension, 0, len(extensions))
	for _, ext := range extensions {
		if ext != nil {
			filtered = append(filtered, ext)
		}
	}
	return &Converter{extensions: filtered}
}

// Parse converts text in block mode.
func (c *Converter) Parse(text string, opts Options) string {
	if text == "" {
		return ""
	}
	setup := c.setup(opts)
	doc := markdown.Parse([]byte(text), parser.NewWithExtensions(setup.Extensions))
	out := markdown.Render(doc, newRenderer(setup))
	return finish(out, opts)
}

// ParseInline converts text as a single run of inline markdown. Block syntax
// such as headings or lists is kept as literal text.
func (c *Converter) ParseInline(text string, opts Options) string {
	if text == "" {
		return ""
	}
	setup := c.setup(opts)
	p := parser.NewWithExtensions(setup.Extensions)
	container := &ast.Paragraph{}
	p.Inline(container, parser.NormalizeNewlines([]byte(text)))

	renderer := newRenderer(setup)
	var buf bytes.Buffer
	for _, child := range container.GetChildren() {
		buf.Write(markdown.Render(child, renderer))
	}
	return finish(buf.Bytes(), opts)
}

func (c *Converter) setup(opts Options) Setup {
	setup := opts.setup()
	for _, ext := range c.extensions {
		ext(&setup)
	}
	return setup
}

func newRenderer(setup Setup) *html.Renderer {
	rendererOpts := html.RendererOptions{Flags: setup.Flags}
	if len(setup.Hooks) > 0 {
		hooks := append([]html.RenderNodeFunc(nil), setup.Hooks...)
		rendererOpts.RenderNodeHook = func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			for _, hook := range hooks {
				if status, handled := hook(w, node, entering); handled {
					return status, true
				}
			}
			return ast.GoToNext, false
		}
	}
	return html.NewRenderer(rendererOpts)
}

func finish(out []byte, opts Options) string {
	if !opts.Sanitize {
		return string(out)
	}
	return string(sanitizer().SanitizeBytes(out))
}

func sanitizer() *bluemonday.Policy {
	sanitizePolicyOnce.Do(func() {
		sanitizePolicy = bluemonday.UGCPolicy()
	})
	return sanitizePolicy
}
