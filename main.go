package main

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mickamy/pgdot/internal/config"
	"github.com/mickamy/pgdot/internal/logging"
)

var version = "dev"

// app carries state shared by the subcommands once the root pre-run has loaded config.
type app struct {
	configPath string
	logLevel   string
	logger     zerolog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "pgdot",
		Short: "Render PostgreSQL EXPLAIN plans as annotated Graphviz graphs",
		Long: `pgdot turns a PostgreSQL EXPLAIN plan into a DOT digraph.

Each node shows its exclusive cost as a red-to-green gradient and, for
EXPLAIN ANALYZE plans, its exclusive time with the share of the total
execution time. Sub-plans are grouped into clusters.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to configuration file (YAML, JSON or TOML). Falls back to $PGDOT_CONFIG")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")

	root.AddCommand(
		newRenderCmd(a),
		newRunCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	path := strings.TrimSpace(a.configPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("PGDOT_CONFIG"))
	}
	if err := config.Apply(path); err != nil {
		return err
	}
	level := config.Active().Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	a.logger = logging.NewConsole(level, cmd.ErrOrStderr(), false)
	a.logger.Debug().Str("config", path).Str("level", level).Msg("Configuration loaded")
	return nil
}

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show CLI version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, meta := resolveVersion()
			out := cmd.OutOrStdout()
			switch {
			case short:
				_, _ = fmt.Fprintln(out, v)
			case meta != "":
				_, _ = fmt.Fprintf(out, "pgdot %s (%s)\n", v, meta)
			default:
				_, _ = fmt.Fprintf(out, "pgdot %s\n", v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}

func resolveVersion() (string, string) {
	v := strings.TrimSpace(version)
	if v == "" {
		v = "dev"
	}

	var commit, buildTime string
	var dirty bool
	if info, ok := debug.ReadBuildInfo(); ok {
		if (v == "dev" || v == "(devel)") &&
			info.Main.Version != "" &&
			info.Main.Version != "(devel)" &&
			!strings.HasPrefix(info.Main.Version, "v0.0.0-") {
			v = info.Main.Version
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				commit = setting.Value
			case "vcs.time":
				buildTime = setting.Value
			case "vcs.modified":
				dirty = setting.Value == "true"
			}
		}
	}

	var details []string
	if commit != "" {
		rev := commit
		if len(rev) > 12 {
			rev = rev[:12]
		}
		if dirty {
			rev += "*"
		}
		details = append(details, "commit "+rev)
	} else if dirty {
		details = append(details, "modified workspace")
	}
	if buildTime != "" {
		details = append(details, "built "+buildTime)
	}
	return v, strings.Join(details, ", ")
}
