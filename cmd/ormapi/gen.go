package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/syssam/ormapi/compiler/gen"
)

// debounce is how long the watcher waits for writes to settle before
// regenerating.
const debounce = 200 * time.Millisecond

func newGenCmd(c *cli) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate Go models and the OpenAPI document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := generate(cmd.Context(), cmd.OutOrStdout(), c.config, c.logger); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return c.watch(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "regenerate when the configuration or schema files change")
	return cmd
}

// genOptions returns the generator options of cfg.
func genOptions(cfg *Config) []gen.Option {
	opts := []gen.Option{gen.WithTarget(cfg.resolve(cfg.Gen.Target))}
	if cfg.Gen.Package != "" {
		opts = append(opts, gen.WithPackage(cfg.Gen.Package))
	}
	if cfg.Gen.OpenAPI {
		opts = append(opts, gen.WithOpenAPI("", ""))
	}
	return opts
}

func generate(ctx context.Context, w io.Writer, cfg *Config, logger *slog.Logger) error {
	s, err := snapshot(ctx, cfg, logger)
	if err != nil {
		return err
	}
	g, err := cfg.Load(s, logger)
	if err != nil {
		return err
	}
	generator, err := gen.New(g, genOptions(cfg)...)
	if err != nil {
		return err
	}
	generator.WithLogger(logger).WithPrefix(cfg.Serve.Prefix)
	if err := generator.Generate(ctx); err != nil {
		return err
	}
	green.Fprintf(w, "Generated %d files for %d models in %s\n", len(generator.Files()), len(g.Specs), generator.Config().Target)
	return nil
}

// watched returns the files whose changes trigger a regeneration.
func (c *cli) watched() []string {
	files := []string{c.configPath}
	if c.config.Inspect.Source == "ddl" {
		files = append(files, c.config.resolve(c.config.Inspect.DDLFile))
	}
	if c.config.Naming.Dictionary != "" {
		files = append(files, c.config.resolve(c.config.Naming.Dictionary))
	}
	return files
}

func (c *cli) watch(ctx context.Context, w io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	files := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, f := range c.watched() {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		files[abs] = true
		// Editors replace files on save, so the parent directory is watched.
		if dir := filepath.Dir(abs); !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("watching %s: %w", dir, err)
			}
			dirs[dir] = true
		}
	}
	faint.Fprintln(w, "Watching for changes, press Ctrl+C to stop")
	var (
		timer = time.NewTimer(debounce)
		fire  <-chan time.Time
	)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Error("watcher error", "error", err)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !files[filepath.Clean(ev.Name)] || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			c.logger.Debug("file changed", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			if err := c.load(); err != nil {
				color.Red("Error: %v", err)
				continue
			}
			if err := generate(ctx, w, c.config, c.logger); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				color.Red("Error: %v", err)
			}
		}
	}
}
