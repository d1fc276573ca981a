package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-twigrender"
)

func newListCommand(global *globalFlags) *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List resolvable templates and the source providing each",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fileCfg, err := loadConfig(global.config, twigrender.FileConfig{ViewsDir: global.viewsDir})
			if err != nil {
				return err
			}
			cfg := fileCfg.Config()
			cfg.Logger = global.logger(cmd)

			renderer, err := twigrender.NewRenderer(cfg)
			if err != nil {
				return err
			}
			listings, err := renderer.Templates(cmd.Context(), pattern)
			if err != nil {
				return err
			}
			if len(listings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No templates found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSOURCE\tSHADOWED")
			for _, listing := range listings {
				shadowed := "-"
				if len(listing.Shadowed) > 0 {
					shadowed = strings.Join(listing.Shadowed, ",")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", listing.Name, listing.Source, shadowed)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&pattern, "pattern", "p", "**", "doublestar pattern to filter template names")
	return cmd
}
