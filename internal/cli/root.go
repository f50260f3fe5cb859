// Package cli implements the sgfrender command tree.
package cli

import (
	"fmt"
	"io"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/dmmcquay/sgfrender/internal/config"
	"github.com/dmmcquay/sgfrender/internal/logging"
)

// BuildInfo is injected into the binary at link time.
type BuildInfo struct {
	GitCommit string
	BuildTime string
}

// app carries state shared by every command once flags are parsed.
type app struct {
	build  BuildInfo
	cfg    *config.Config
	logger logging.ContextLogger
	closer io.Closer
}

// Root builds the sgfrender command tree.
func Root(build BuildInfo) *cobra.Command {
	a := &app{build: build}

	root := &cobra.Command{
		Use:   "sgfrender",
		Short: "Render Go game records as board images",
		Long: heredoc.Doc(`sgfrender reads a game record in SGF format, replays it
			to the requested move and draws the position as a PNG.

			Configuration is read from $SGFRENDER_CONFIG, ./config.yaml or
			the XDG config directory, and every key can be overridden with
			an SGFRENDER_ environment variable.`),
		Args: cobra.NoArgs,

		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.closer != nil {
				_ = a.closer.Close()
			}
		},
	}

	root.PersistentFlags().String("config", "", "Path to a config file")
	root.PersistentFlags().String("log-level", "", "Override the configured log level")

	root.Version = "0.1.0"
	root.SetVersionTemplate(fmt.Sprintf("sgfrender {{.Version}}\nGit commit: %s\nBuild time: %s\n",
		build.GitCommit, build.BuildTime))

	root.AddCommand(Render(a))
	root.AddCommand(Describe(a))
	root.AddCommand(Themes(a))
	root.AddCommand(Serve(a))

	return root
}

// setup loads configuration and creates the logger.
func (a *app) setup(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.GetConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	a.cfg = cfg

	a.logger, a.closer = logging.NewLoggerFromConfig(&logging.Config{
		Level:   cfg.Logging.Level,
		Format:  logging.LogFormat(cfg.Logging.Format),
		Service: cfg.Server.Name,
		Version: cfg.Server.Version,
		File:    cfg.Logging.File,
	})
	return nil
}
