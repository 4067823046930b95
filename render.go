package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/mickamy/pgdot/internal/config"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		input string
		out   string
		opts  outputOptions
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render an EXPLAIN (FORMAT JSON or YAML) document",
		Example: `  pgdot render --input plan.json > plan.dot
  psql -XqAt -c 'EXPLAIN (ANALYZE, FORMAT JSON) SELECT 1' | pgdot render --format svg --out plan.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			applyRenderDefaults(cmd, &opts)
			if err := opts.validate(false); err != nil {
				return err
			}
			plan, err := readInput(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			a.logger.Debug().Str("input", input).Int("bytes", len(plan)).Str("format", opts.Format).Msg("Rendering plan")
			return withOutput(cmd.OutOrStdout(), out, func(w io.Writer) error {
				return emit(cmd.Context(), w, plan, opts)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&input, "input", "i", "-", "Path to the EXPLAIN document; - reads stdin")
	flags.StringVarP(&out, "out", "o", "", "Output path (stdout if omitted)")
	addRenderFlags(cmd, &opts)
	return cmd
}

func addRenderFlags(cmd *cobra.Command, opts *outputOptions) {
	defaults := config.Default().Render
	flags := cmd.Flags()
	flags.StringVar(&opts.Format, "format", defaults.Format, "Output format: dot, svg, png, jpg, tree or html")
	flags.StringVar(&opts.GraphID, "graph-id", defaults.GraphID, "Name of the DOT digraph")
	flags.StringVar(&opts.Title, "title", "pgdot report", "Report title (html)")
	flags.BoolVar(&opts.Color, "color", defaults.Color, "Enable ANSI colors (tree)")
	flags.IntVar(&opts.MaxDepth, "max-depth", defaults.MaxDepth, "Limit tree depth (tree)")
	flags.BoolVar(&opts.Strict, "strict", defaults.Strict, "Reject unknown node types")
	flags.BoolVar(&opts.YAML, "yaml", false, "Input is EXPLAIN (FORMAT YAML)")
}

// applyRenderDefaults fills every flag the user did not set from the active config.
func applyRenderDefaults(cmd *cobra.Command, opts *outputOptions) {
	cfg := config.Active().Render
	flags := cmd.Flags()
	if !flags.Changed("format") && cfg.Format != "" {
		opts.Format = cfg.Format
	}
	if !flags.Changed("graph-id") && cfg.GraphID != "" {
		opts.GraphID = cfg.GraphID
	}
	if !flags.Changed("color") {
		opts.Color = cfg.Color
	}
	if !flags.Changed("max-depth") {
		opts.MaxDepth = cfg.MaxDepth
	}
	if !flags.Changed("strict") {
		opts.Strict = cfg.Strict
	}
}
