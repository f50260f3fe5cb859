package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmmcquay/sgfrender/internal/theme"
)

// sgfrender themes
func Themes(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List the available themes",
		Args:  cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range theme.Names() {
				th, err := theme.Resolve(name)
				if err != nil {
					return err
				}
				marker := ""
				if th.Name == a.cfg.Render.Theme {
					marker = "(default)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", th.Name, th.Style, marker)
			}
			return w.Flush()
		},
	}
}
