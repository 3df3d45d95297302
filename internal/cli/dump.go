package cli

import (
	"encoding/hex"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pcd/internal/device"
	"github.com/roach88/pcd/internal/harness"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	Length int64
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump [OP...]",
		Short: "Run operations, then hex-dump the device buffer",
		Long: `Run exec-style operations on a fresh device, then read the buffer back
from offset 0 through a second handle and print a hex dump. The dump
reads themselves are not journaled.

Examples:
  pcd dump write:hello
  pcd dump fill:0xff:32 --length 48`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, opts, args)
		},
	}

	cmd.Flags().Int64Var(&opts.Length, "length", 0, "bytes to dump (0 = whole buffer)")

	return cmd
}

func runDump(cmd *cobra.Command, opts *DumpOptions, args []string) error {
	if opts.Length < 0 {
		return NewExitError(ExitCommandError, "--length must not be negative")
	}

	var steps []harness.Step
	if len(args) > 0 {
		var err error
		if steps, err = harness.ParseOps(args); err != nil {
			return WrapExitError(ExitCommandError, "invalid operation", err)
		}
	}

	ctx := cmd.Context()
	env, err := opts.setupDevice(ctx, "")
	if err != nil {
		return err
	}
	defer env.close()

	r, err := env.run(ctx, steps)
	defer r.Close(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "operation failed", err)
	}

	h, err := env.fw.OpenNode(ctx, env.dev.Info().Node)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open dump session", err)
	}
	defer env.fw.Close(ctx, h)

	sess, err := env.fw.Session(h)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open dump session", err)
	}
	stream := device.NewStream(sess)

	var src io.Reader = stream
	if opts.Length > 0 {
		src = io.LimitReader(stream, opts.Length)
	}

	out := cmd.OutOrStdout()
	dumper := hex.Dumper(out)
	n, err := io.Copy(dumper, src)
	if err != nil {
		return WrapExitError(ExitFailure, "dump failed", err)
	}
	if err := dumper.Close(); err != nil {
		return WrapExitError(ExitFailure, "dump failed", err)
	}

	opts.formatter(cmd).VerboseLog("dumped %d bytes from %s", n, env.dev.Info().Node)
	return nil
}
