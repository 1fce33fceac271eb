package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// answers are the values collected by the init prompts.
type answers struct {
	Driver  string
	DSN     string
	Source  string
	DDLFile string
	Target  string
	Package string
	OpenAPI bool
}

func newInitCmd(c *cli) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(c.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", c.configPath)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			a, err := ask()
			if err != nil {
				return err
			}
			if err := a.config().Write(c.configPath); err != nil {
				return err
			}
			color.Green("Created %s", c.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration file")
	return cmd
}

func ask() (*answers, error) {
	d := DefaultConfig()
	a := &answers{}
	if err := survey.AskOne(&survey.Select{
		Message: "Database driver:",
		Options: []string{"mysql", "postgres", "pgx", "sqlite"},
		Default: d.Driver,
	}, &a.Driver); err != nil {
		return nil, err
	}
	if err := survey.AskOne(&survey.Input{
		Message: "Data source name:",
		Help:    "Environment references such as ${DATABASE_URL} are expanded when the file is read.",
		Default: "${DATABASE_URL}",
	}, &a.DSN, survey.WithValidator(survey.Required)); err != nil {
		return nil, err
	}
	if err := survey.AskOne(&survey.Select{
		Message: "Read the schema from:",
		Options: []string{"live", "ddl"},
		Default: d.Inspect.Source,
	}, &a.Source); err != nil {
		return nil, err
	}
	if a.Source == "ddl" {
		if err := survey.AskOne(&survey.Input{
			Message: "DDL file:",
			Default: "schema.sql",
		}, &a.DDLFile, survey.WithValidator(survey.Required)); err != nil {
			return nil, err
		}
	}
	if err := survey.AskOne(&survey.Input{
		Message: "Target directory of the generated models:",
		Default: d.Gen.Target,
	}, &a.Target, survey.WithValidator(survey.Required)); err != nil {
		return nil, err
	}
	if err := survey.AskOne(&survey.Input{
		Message: "Import path of the generated package:",
		Help:    "For example github.com/acme/shop/models. Leave empty to name the package after the target directory.",
	}, &a.Package); err != nil {
		return nil, err
	}
	if err := survey.AskOne(&survey.Confirm{
		Message: "Generate an OpenAPI document?",
		Default: d.Gen.OpenAPI,
	}, &a.OpenAPI); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *answers) config() *Config {
	c := DefaultConfig()
	c.Driver = a.Driver
	c.DSN = strings.TrimSpace(a.DSN)
	c.Inspect.Source = a.Source
	c.Inspect.DDLFile = a.DDLFile
	c.Gen.Target = a.Target
	c.Gen.Package = a.Package
	c.Gen.OpenAPI = a.OpenAPI
	return c
}
