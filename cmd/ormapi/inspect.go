package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/syssam/ormapi/compiler/load"
	"github.com/syssam/ormapi/compiler/naming"
	"github.com/syssam/ormapi/dialect/sql/schema"
)

type inspectOptions struct {
	report   bool
	json     bool
	segments bool
}

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	faint  = color.New(color.Faint)
)

func newInspectCmd(c *cli) *cobra.Command {
	var opts inspectOptions
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the models and relations inferred from the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return inspect(cmd.Context(), cmd.OutOrStdout(), c.config, c.logger, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.report, "report", false, "print the schema validation report")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the inferred models as JSON")
	cmd.Flags().BoolVar(&opts.segments, "segments", false, "print how the naming dictionary splits table and column names")
	return cmd
}

func inspect(ctx context.Context, w io.Writer, cfg *Config, logger *slog.Logger, opts inspectOptions) error {
	s, err := snapshot(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if opts.report {
		printReport(w, schema.ValidateSchema(s))
	}
	if opts.segments {
		if err := printSegments(w, cfg, s); err != nil {
			return err
		}
	}
	g, err := cfg.Load(s, logger)
	if err != nil {
		return err
	}
	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(g.Specs)
	}
	printGraph(w, g)
	return nil
}

// snapshot reads the configured schema, connecting to the database for
// live inspection.
func snapshot(ctx context.Context, cfg *Config, logger *slog.Logger) (*schema.Snapshot, error) {
	if cfg.Inspect.Source == "ddl" {
		return cfg.ReadSchema(ctx, nil)
	}
	drv, _, err := cfg.Open(logger)
	if err != nil {
		return nil, err
	}
	defer drv.Close()
	return cfg.ReadSchema(ctx, drv)
}

func printReport(w io.Writer, r *schema.Report) {
	for _, e := range r.Errors {
		red.Fprint(w, "error   ")
		fmt.Fprintln(w, e.Error())
	}
	for _, e := range r.Warnings {
		yellow.Fprint(w, "warning ")
		fmt.Fprintln(w, e.Error())
	}
	if !r.HasErrors() && !r.HasWarnings() {
		green.Fprintln(w, "No issues found")
	}
	fmt.Fprintln(w)
}

func printSegments(w io.Writer, cfg *Config, s *schema.Snapshot) error {
	if cfg.Naming.Dictionary == "" {
		faint.Fprintln(w, "No naming dictionary configured")
		fmt.Fprintln(w)
		return nil
	}
	d, err := cfg.Dictionary()
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, t := range s.Tables {
		words := []string{t.Name}
		for _, c := range t.Columns {
			words = append(words, c.Name)
		}
		for _, word := range words {
			for _, part := range strings.Split(word, "_") {
				if part == "" || seen[part] {
					continue
				}
				seen[part] = true
				segs := d.Segment(part)
				if len(segs) < 2 {
					continue
				}
				fmt.Fprintf(w, "%s: %s\n", part, formatSegments(segs))
			}
		}
	}
	fmt.Fprintln(w)
	return nil
}

func formatSegments(segs []naming.Segment) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		if s.Matched {
			parts[i] = s.Text
		} else {
			parts[i] = "?" + s.Text
		}
	}
	return strings.Join(parts, " ")
}

func printGraph(w io.Writer, g *load.Graph) {
	for i, s := range g.Specs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		bold.Fprintf(w, "%s", s.Name)
		faint.Fprintf(w, " (table %s, key %s)\n", s.Table, s.PrimaryKey)
		for _, e := range s.Edges() {
			fmt.Fprintf(w, "  %-14s %-16s -> %s", e.Type, e.Name, e.Model)
			switch {
			case e.Pivot != nil:
				faint.Fprintf(w, " via %s(%s, %s)", e.Pivot.Table, e.Pivot.ForeignPivotKey, e.Pivot.RelatedPivotKey)
			case e.ForeignKey != "":
				faint.Fprintf(w, " on %s", e.ForeignKey)
			}
			fmt.Fprintln(w)
		}
	}
}
