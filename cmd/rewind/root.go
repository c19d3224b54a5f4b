package main

import (
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/rybkr/rewind/internal/config"
	"github.com/rybkr/rewind/internal/gitcore"
	"github.com/rybkr/rewind/internal/logging"
	"github.com/rybkr/rewind/internal/timeline"
)

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"backend":   "backend",
	"git-bin":   "git_bin",
	"log-level": "log.level",
	"max-count": "max_count",
	"depth":     "render.depth",
	"color":     "render.color",
	"addr":      "server.addr",
	"watch":     "watch.enabled",
}

// app carries state shared by every subcommand once flags are parsed.
type app struct {
	configFilePath string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "rewind",
		Short: "Browse git history as a tree of commits and changed files",
		Long: heredoc.Doc(`
			rewind lists the commits of one or more repositories, newest first,
			and under each commit the files it added, modified or removed.

			Configuration is read from rewind.yaml in the working directory, or
			the file given with --config, and from REWIND_* environment variables.
			Flags take precedence over both.
		`),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.PreRunE,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configFilePath, "config", "c", "", "File path for rewind configuration")
	flags.String("backend", gitcore.BackendExec, "Query backend: exec or gogit")
	flags.String("git-bin", "git", "git executable used by the exec backend")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.Int("max-count", 0, "Maximum commits listed per repository (0 for all)")

	cmd.AddCommand(newTreeCommand(a), newServeCommand(a))
	return cmd
}

// PreRunE loads configuration with flag overrides and sets up logging.
// Positional arguments replace the configured folders.
func (a *app) PreRunE(cmd *cobra.Command, args []string) error {
	v, err := config.NewViper(a.configFilePath)
	if err != nil {
		return err
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})
	if bindErr != nil {
		return fmt.Errorf("bind flags: %w", bindErr)
	}
	if len(args) > 0 {
		v.Set("folders", args)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := logging.Init(cfg.Logging()); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	a.cfg = cfg
	a.logger = logging.L()
	return nil
}

func (a *app) projection() (*timeline.Projection, []timeline.Folder, error) {
	folders, err := a.cfg.WorkspaceFolders()
	if err != nil {
		return nil, nil, err
	}
	q, err := gitcore.NewQuerier(a.cfg.Backend, a.cfg.GitBin)
	if err != nil {
		return nil, nil, err
	}

	a.logger.Debug("projection",
		zap.Int("folders", len(folders)),
		zap.String("backend", a.cfg.Backend),
		zap.Int("max_count", a.cfg.MaxCount))

	return timeline.NewProjection(folders,
		timeline.WithQuerier(q),
		timeline.WithMaxCount(a.cfg.MaxCount),
	), folders, nil
}
