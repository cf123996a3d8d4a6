package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Strob0t/tasktimer/internal/config"
	"github.com/Strob0t/tasktimer/internal/logger"
)

const version = "0.1.0"

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "tasktimer",
		Short:         "Track time spent on an ordered list of tasks",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to the YAML config file (default $"+config.EnvConfigFile+" or "+config.DefaultConfigFile+")")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newTaskCmd(opts),
		newHashKeyCmd(),
	)
	return root
}

// loadConfig resolves the config file from the flag or the environment.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFrom(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// setupLogger installs the default slog logger writing to w.
func setupLogger(w io.Writer, cfg config.Logging) logger.Closer {
	l, closer := logger.NewTo(w, cfg)
	slog.SetDefault(l)
	return closer
}
