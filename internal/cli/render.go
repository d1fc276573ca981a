package cli

import (
	"fmt"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-twigrender"
)

type renderFlags struct {
	view         string
	data         string
	globals      []string
	noMarkdown   bool
	markdownTrim bool
	output       string
}

func newRenderCommand(global *globalFlags) *cobra.Command {
	flags := &renderFlags{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a template to stdout or a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd, global, flags)
		},
	}

	cmd.Flags().StringVar(&flags.view, "view", "", "template to render (default: data view + .twig, or main.twig)")
	cmd.Flags().StringVarP(&flags.data, "data", "d", "", "YAML or JSON data file, - for stdin")
	cmd.Flags().StringArrayVar(&flags.globals, "global", nil, "global value as key=value, repeatable")
	cmd.Flags().BoolVar(&flags.noMarkdown, "no-markdown", false, "disable the markdown filter")
	cmd.Flags().BoolVar(&flags.markdownTrim, "markdown-trim", false, "trim whitespace around markdown output")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (stdout if empty)")
	return cmd
}

func runRender(cmd *cobra.Command, global *globalFlags, flags *renderFlags) error {
	logger := global.logger(cmd)

	globals, err := parseAssignments(flags.globals)
	if err != nil {
		return err
	}
	overrides := twigrender.FileConfig{
		View:         flags.view,
		ViewsDir:     global.viewsDir,
		Globals:      globals,
		MarkdownTrim: flags.markdownTrim,
	}
	if flags.noMarkdown {
		enabled := false
		overrides.MarkedEnabled = &enabled
	}

	fileCfg, err := loadConfig(global.config, overrides)
	if err != nil {
		return err
	}
	data, err := readData(flags.data, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg := fileCfg.Config()
	cfg.Logger = logger
	renderer, err := twigrender.NewRenderer(cfg)
	if err != nil {
		return err
	}

	out, err := renderer.Render(cmd.Context(), data)
	if err != nil {
		return fmt.Errorf("render %s: %w", renderer.View(data), err)
	}

	if flags.output == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	}
	if err := atomic.WriteFile(flags.output, strings.NewReader(out)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	logger.Info("output written", "path", flags.output, "bytes", len(out))
	return nil
}
