package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/dmmcquay/sgfrender/internal/pipeline"
)

// renderFlags registers the options shared by render and describe.
func renderFlags(cmd *cobra.Command) {
	cmd.Flags().Int("move", 0, "Show the position after this many moves (default: final position)")
	cmd.Flags().Int("board-size", 0, "Board size for records without SZ")
}

// readRecord reads the game record named by args, or stdin when args is
// empty or "-".
func readRecord(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read game record: %w", err)
	}
	return string(data), nil
}

// options builds pipeline options from the configured defaults and any
// flags the user changed.
func (a *app) options(cmd *cobra.Command) pipeline.Options {
	flags := cmd.Flags()
	opts := pipeline.Options{
		Theme:       a.cfg.Render.Theme,
		Kifu:        a.cfg.Render.Kifu,
		CellSize:    a.cfg.Render.CellSize,
		Coordinates: a.cfg.Render.Coordinates,
	}

	if flags.Changed("move") {
		move, _ := flags.GetInt("move")
		opts.MoveNumber = &move
	}
	if flags.Changed("board-size") {
		size, _ := flags.GetInt("board-size")
		opts.BoardWidth, opts.BoardHeight = size, size
	}
	if flags.Changed("theme") {
		opts.Theme, _ = flags.GetString("theme")
	}
	if flags.Changed("kifu") {
		opts.Kifu, _ = flags.GetBool("kifu")
	}
	if flags.Changed("cell-size") {
		opts.CellSize, _ = flags.GetInt("cell-size")
	}
	if flags.Changed("no-coordinates") {
		off, _ := flags.GetBool("no-coordinates")
		opts.Coordinates = !off
	}
	return opts
}

// sgfrender render
func Render(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render [file.sgf]",
		Short: "Render a game record as a PNG",
		Args:  cobra.MaximumNArgs(1),
		Long: heredoc.Doc(`render replays a game record and writes the board as a PNG.

			The record is read from the named file, or from stdin when no
			file or "-" is given. The image is written to --output, or to
			stdout when --output is empty or "-".

			With --kifu every stone still on the board is labelled with the
			number of the move that placed it. Setup stones stay unlabelled.`),
		Example: heredoc.Doc(`
			$ sgfrender render game.sgf -o game.png
			$ sgfrender render --theme paper --kifu --move 50 game.sgf -o move50.png
			$ cat game.sgf | sgfrender render > game.png`),

		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readRecord(cmd, args)
			if err != nil {
				return err
			}

			opts := a.options(cmd)
			svc := pipeline.NewService(a.logger)
			ctx := cmd.Context()

			output, _ := cmd.Flags().GetString("output")
			if output == "" || output == "-" {
				return svc.Render(ctx, text, cmd.OutOrStdout(), opts)
			}
			if err := svc.RenderFile(ctx, text, output, opts); err != nil {
				return err
			}
			a.logger.Info("Wrote board image", "path", output)
			return nil
		},
	}

	cmd.Flags().String("theme", "", "Theme to draw with; run 'sgfrender themes' for the list")
	cmd.Flags().Bool("kifu", false, "Label stones with move numbers")
	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	cmd.Flags().Int("cell-size", 0, "Pixels between adjacent lines")
	cmd.Flags().Bool("no-coordinates", false, "Omit the coordinate labels")
	renderFlags(cmd)

	return cmd
}
