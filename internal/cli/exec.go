package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pcd/internal/harness"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Journal string
	Strict  bool
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec OP...",
		Short: "Run file operations on a fresh device",
		Long: `Open one session on a freshly registered device and run each operation
in order, printing the byte count, cursor and error code of each.

Operations:
  write:TEXT            write TEXT
  hex:414243            write decoded hex bytes
  fill:0x41:10          write 10 copies of byte 0x41
  read:N                read up to N bytes
  seek:WHENCE:OFF       seek (whence is start, current or end)
  reopen                release the session and open a new one

Examples:
  pcd exec write:hello seek:start:0 read:5
  pcd exec fill:0x41:600 --strict
  pcd exec write:abc --journal pcd.db`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal path (overrides config)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 if any operation returned an error code")

	return cmd
}

func runExec(cmd *cobra.Command, opts *ExecOptions, args []string) error {
	steps, err := harness.ParseOps(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid operation", err)
	}

	ctx := cmd.Context()
	env, err := opts.setupDevice(ctx, opts.Journal)
	if err != nil {
		return err
	}
	defer env.close()

	r, err := env.run(ctx, steps)
	defer r.Close(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "operation failed", err)
	}
	result := r.Result()

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		data, err := harness.MarshalTrace("exec", int(env.dev.Info().Capacity), result.Trace)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to encode trace", err)
		}
		fmt.Fprintln(out, string(data))
	} else {
		for _, ev := range result.Trace {
			fmt.Fprintf(out, "[%d] %s\n", ev.Seq, harness.FormatEvent(ev))
		}
	}

	if opts.Strict && result.Failed() {
		return NewExitError(ExitFailure, "one or more operations failed")
	}
	return nil
}
