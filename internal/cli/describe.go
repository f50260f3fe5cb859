package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmmcquay/sgfrender/internal/pipeline"
)

// sgfrender describe
func Describe(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe [file.sgf]",
		Short: "Print game information and the board as text",
		Args:  cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readRecord(cmd, args)
			if err != nil {
				return err
			}

			desc, err := pipeline.NewService(a.logger).Describe(cmd.Context(), text, a.options(cmd))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(desc)
			}
			_, err = fmt.Fprint(out, desc.String())
			return err
		},
	}

	cmd.Flags().Bool("json", false, "Print the description as JSON")
	renderFlags(cmd)

	return cmd
}
