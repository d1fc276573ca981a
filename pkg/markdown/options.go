package markdown

import (
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Options is the base configuration handed to the converter. Keys mirror
// the names accepted from templates, so a call-site map such as
// {"gfm": false} overrides the field tagged "gfm".
type Options struct {
	// GFM enables tables, strikethrough and autolinks.
	GFM bool `mapstructure:"gfm" yaml:"gfm" json:"gfm"`
	// Breaks turns single newlines inside paragraphs into <br>.
	Breaks bool `mapstructure:"breaks" yaml:"breaks" json:"breaks"`
	// HeaderIDs generates id attributes for headings.
	HeaderIDs   bool `mapstructure:"headerIds" yaml:"headerIds" json:"headerIds"`
	XHTML       bool `mapstructure:"xhtml" yaml:"xhtml" json:"xhtml"`
	Smartypants bool `mapstructure:"smartypants" yaml:"smartypants" json:"smartypants"`
	TargetBlank bool `mapstructure:"targetBlank" yaml:"targetBlank" json:"targetBlank"`
	// Sanitize runs the generated HTML through a user-generated-content
	// policy before it is returned.
	Sanitize bool `mapstructure:"sanitize" yaml:"sanitize" json:"sanitize"`
}

// DefaultOptions returns GFM-flavoured defaults.
func DefaultOptions() Options {
	return Options{GFM: true}
}

// Setup is the low level converter configuration extensions can mutate.
type Setup struct {
	Extensions parser.Extensions
	Flags      html.Flags
	Hooks      []html.RenderNodeFunc
}

const baseExtensions = parser.NoIntraEmphasis |
	parser.FencedCode |
	parser.SpaceHeadings |
	parser.BackslashLineBreak

const gfmExtensions = parser.Tables |
	parser.Strikethrough |
	parser.Autolink

func (o Options) setup() Setup {
	setup := Setup{
		Extensions: baseExtensions,
		Flags:      html.FlagsNone,
	}
	if o.GFM {
		setup.Extensions |= gfmExtensions
	}
	if o.Breaks {
		setup.Extensions |= parser.HardLineBreak
	}
	if o.HeaderIDs {
		setup.Extensions |= parser.AutoHeadingIDs | parser.HeadingIDs
	}
	if o.XHTML {
		setup.Flags |= html.UseXHTML
	}
	if o.Smartypants {
		setup.Flags |= html.Smartypants | html.SmartypantsFractions | html.SmartypantsDashes | html.SmartypantsLatexDashes
	}
	if o.TargetBlank {
		setup.Flags |= html.HrefTargetBlank
	}
	return setup
}
