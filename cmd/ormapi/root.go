package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// cli holds the state shared by the subcommands.
type cli struct {
	configPath string
	verbose    bool
	config     *Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "ormapi",
		Short:         "Expose a SQL schema as a REST API",
		Long:          "ormapi infers models and their relations from a SQL schema, generates Go models and an OpenAPI document, and serves CRUD endpoints with nested mutations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "init" {
				return nil
			}
			return c.load()
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "ormapi.yaml", "configuration file (.yaml or .toml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(
		newInitCmd(c),
		newInspectCmd(c),
		newGenCmd(c),
		newServeCmd(c),
	)
	return root
}

func (c *cli) load() error {
	cfg, err := LoadConfig(c.configPath)
	if err != nil {
		return err
	}
	if c.verbose {
		cfg.Log.Level = "debug"
	}
	c.config = cfg
	c.logger = cfg.Logger()
	slog.SetDefault(c.logger)
	return nil
}
