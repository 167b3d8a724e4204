package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/pushplan/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Verbose    bool
	Format     string // "json" | "text"

	// Config is resolved before any subcommand runs.
	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = config.Outputs

// NewRootCommand creates the root command for the pushplan CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pushplan",
		Short: "pushplan - push relational plans down to the region servers",
		Long: `Compile relational algebra into distributed scan plans.

pushplan reads plan trees in explain form, applies pushdown rules that move
filters, projections, aggregations and joins into range scans, costs every
alternative and lowers the cheapest to an executable fragment.

Settings come from flags, PUSHPLAN_ environment variables and pushplan.yaml,
in that order of precedence.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			// Command-local flags such as compile --output are not settings.
			cfg, err := config.Load(opts.ConfigFile, cmd.Root().PersistentFlags())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			opts.Config = cfg
			opts.Format = cfg.Output
			opts.Verbose = cfg.Verbose
			configureLogging(cmd, cfg.Verbose)
			if cfg.File != "" {
				slog.Debug("config loaded", "file", cfg.File)
			}
			return nil
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.ConfigFile, "config", "", "config file (default pushplan.yaml)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.String("catalog", config.DefaultCatalog, "catalog CUE file or directory")
	pf.String("db", "", "SQLite history database")
	pf.Int("workers", 0, "concurrent candidate compilations (0 = GOMAXPROCS)")
	pf.Int("max-candidates", 0, "cap on derived plan trees per session")
	pf.Int("max-rule-steps", 0, "cap on rule applications per session")
	pf.Float64("phoenix-factor", 0, "cost weight of pushed-down operators")
	pf.Float64("server-factor", 0, "cost weight of work inside a scan")
	pf.Float64("client-merge-factor", 0, "cost weight of merge-sorting server groups")

	// Add subcommands
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewOptimizeCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))

	return cmd
}

// configureLogging sends structured logs to stderr so they never mix with
// command output. Debug logs only appear with --verbose.
func configureLogging(cmd *cobra.Command, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
