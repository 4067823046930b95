package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mickamy/pgdot/internal/conninfo"
	"github.com/mickamy/pgdot/internal/errs"
	"github.com/mickamy/pgdot/internal/runner"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		params  conninfo.Params
		command string
		file    string
		analyze bool
		buffers bool
		dryRun  bool
		timeout time.Duration
		out     string
		opts    outputOptions
	)
	cmd := &cobra.Command{
		Use:   "run [DBNAME]",
		Short: "Run EXPLAIN for a query and render the plan",
		Long: `Run EXPLAIN (FORMAT JSON) for a statement and render the resulting plan.

The statement comes from --command, --file or stdin. With --dry-run the input
is taken to be EXPLAIN JSON already and no database is contacted.`,
		Example: `  pgdot run shop -c 'SELECT * FROM orders WHERE total > 0' --analyze
  pgdot run --url postgres://localhost/shop -f query.sql --format svg -o plan.svg
  pgdot run -n < plan.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyRenderDefaults(cmd, &opts)
			if err := opts.validate(true); err != nil {
				return err
			}
			if command != "" && file != "" {
				return errs.New(errs.CodeInvalidRequest, "specify only one of --command or --file")
			}
			if len(args) == 1 {
				params.DBName = args[0]
			}

			var input []byte
			var err error
			if command != "" {
				input = []byte(command)
			} else {
				input, err = readInput(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
			}

			plan := input
			if !dryRun {
				dsn, err := conninfo.Resolve(params)
				if err != nil {
					return err
				}
				a.logger.Debug().Bool("analyze", analyze).Dur("timeout", timeout).Msg("Running EXPLAIN")
				plan, err = runner.Run(cmd.Context(), dsn, string(input), runner.Options{
					Analyze: analyze,
					Buffers: buffers,
					Timeout: timeout,
					Logger:  a.logger,
				})
				if err != nil {
					return err
				}
			} else if strings.TrimSpace(string(plan)) == "" {
				return errs.New(errs.CodeInvalidRequest, "no EXPLAIN document on input")
			}

			return withOutput(cmd.OutOrStdout(), out, func(w io.Writer) error {
				return emit(cmd.Context(), w, plan, opts)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&params.URL, "url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL; defaults to $DATABASE_URL")
	flags.StringVar(&params.Host, "host", "", "Database server host or socket directory (default "+conninfo.DefaultHost+")")
	flags.IntVar(&params.Port, "port", conninfo.DefaultPort, "Database server port")
	flags.StringVar(&params.User, "user", "", "Database user name (default $USER)")
	flags.StringVar(&params.PassFile, "passfile", "", "Password file (default $PGPASSFILE or ~/.pgpass)")
	flags.StringVarP(&command, "command", "c", "", "SQL statement to explain")
	flags.StringVarP(&file, "file", "f", "", "File containing the SQL statement; - reads stdin")
	flags.BoolVar(&analyze, "analyze", false, "Execute the statement to collect actual timings")
	flags.BoolVar(&buffers, "buffers", false, "Include buffer usage (with --analyze)")
	flags.BoolVarP(&dryRun, "dry-run", "n", false, "Treat the input as EXPLAIN JSON instead of SQL")
	flags.DurationVar(&timeout, "timeout", 0, "Optional execution timeout, e.g. 45s")
	flags.StringVarP(&out, "out", "o", "", "Output path (stdout if omitted)")
	addRenderFlags(cmd, &opts)
	flags.Lookup("format").Usage = "Output format: json, dot, svg, png, jpg, tree or html"
	return cmd
}
