package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/pcd/internal/config"
	"github.com/roach88/pcd/internal/logging"
)

// ConfigEnv names the environment variable consulted when --config is unset.
const ConfigEnv = "PCD_CONFIG"

// RootOptions holds global flags and the state they resolve to.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Set by the root command before any subcommand runs. Subcommands
	// constructed directly (tests) fall back to defaults.
	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the pcd CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pcd",
		Short: "pcd - pseudo character device",
		Long: `A bounded in-memory byte store exposed through character-device style
open/seek/read/write/release operations, with an optional SQLite journal
for tracing and deterministic replay.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.setup(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (yaml or toml; default $"+ConfigEnv+")")

	cmd.AddCommand(NewInfoCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// setup loads configuration and installs the logger.
func (o *RootOptions) setup(logOut io.Writer) error {
	path := o.ConfigPath
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Verbose {
		cfg.Logging.Level = "debug"
	}

	o.Config = cfg
	o.Logger = logging.New(cfg.Logging, logOut)
	slog.SetDefault(o.Logger)
	return nil
}

// config returns the resolved configuration, or defaults.
func (o *RootOptions) config() *config.Config {
	if o.Config == nil {
		return config.Default()
	}
	return o.Config
}

// logger returns the resolved logger, or one that discards everything.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// formatter returns an OutputFormatter bound to cmd's writers.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
