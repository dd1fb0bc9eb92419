package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/nopg/internal/config"
)

// RootOptions holds global flags for all commands, and the configuration
// and logger resolved from them before any subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	Driver     string
	DSN        string
	LogLevel   string

	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the nopg CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "nopg",
		Short: "nopg - documents over SQL",
		Long: `A schema-flexible document store layered over SQLite or Postgres.

Documents carry arbitrary JSON fields and may be bound to a type whose
JSON Schema and CUE validator are checked on every write.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default ./nopg.yaml if present)")
	flags.StringVar(&opts.Driver, "driver", config.DefaultDriver, "database driver (sqlite3|pgx)")
	flags.StringVar(&opts.DSN, "dsn", config.DefaultDSN, "SQLite path or Postgres connection string")
	flags.StringVar(&opts.LogLevel, "log-level", config.DefaultLogLevel, "log level (debug|info|warn|error)")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Validate format flag
		if !isValidFormat(opts.Format) {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
		}
		return opts.resolve(cmd, flags.Lookup)
	}

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))
	cmd.AddCommand(NewTypeCommand(opts))
	cmd.AddCommand(NewDocCommand(opts))
	cmd.AddCommand(NewAttachCommand(opts))
	cmd.AddCommand(NewLibCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolve loads the configuration, flags taking precedence, and sets up
// logging on the command's stderr.
func (o *RootOptions) resolve(cmd *cobra.Command, lookup func(string) *pflag.Flag) error {
	loader := config.NewLoader()
	bindings := map[string]string{
		config.KeyDriver:   "driver",
		config.KeyDSN:      "dsn",
		config.KeyLogLevel: "log-level",
	}
	for key, name := range bindings {
		if err := loader.BindFlag(key, lookup(name)); err != nil {
			return WrapExitError(ExitCommandError, "invalid flags", err)
		}
	}

	cfg, err := loader.Load(o.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	o.Config = cfg

	level := &slog.LevelVar{}
	l, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	level.Set(l)
	if o.Verbose {
		level.Set(slog.LevelDebug)
	}
	o.Logger = NewLogger(cmd.ErrOrStderr(), level)

	if used := loader.Used(); used != "" {
		o.Logger.Debug("loaded config", "file", used)
	}
	return nil
}

// output returns the formatter for cmd.
func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
