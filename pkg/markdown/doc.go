// Package markdown binds github.com/gomarkdown/markdown to the template
// layer and provides the built-in "markdown" filter.
//
// Templates call the filter as {{ body|markdown }} for block output, or pass
// options either as a map from the render data or in the compact string form
// {{ title|markdown:"inline,gfm=false" }}. Call-site keys override the base
// Options; "inline" only selects the conversion mode.
package markdown
