package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// Streams carries the command output writers.
type Streams struct {
	Out io.Writer
	Err io.Writer
}

type globalFlags struct {
	config   string
	viewsDir []string
	verbose  bool
}

// NewRootCommand builds the twig-render command tree.
func NewRootCommand(streams Streams) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "twig-render",
		Short: "Render Twig-style templates with markdown support",
		Long: `Render Twig-style templates from in-memory views and directories.

Examples:
  # Render main.twig from ./views with data from page.yaml
  twig-render render --views-dir views --data page.yaml

  # Render a specific view into a file
  twig-render render --config site.yaml --view about.twig -o about.html

  # Show which directory provides each template
  twig-render list --views-dir theme --views-dir base`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(streams.Out)
	root.SetErr(streams.Err)

	root.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "configuration file (YAML or JSON)")
	root.PersistentFlags().StringArrayVar(&flags.viewsDir, "views-dir", nil, "template directory, repeatable, highest priority first")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(newRenderCommand(flags))
	root.AddCommand(newListCommand(flags))
	return root
}

func (g *globalFlags) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}
