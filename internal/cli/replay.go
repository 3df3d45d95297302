package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/pcd/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Device   string // optional - device ID or name
}

// ReplayDeviceResult holds the replay result for a single device instance.
type ReplayDeviceResult struct {
	DeviceID      string             `json:"device_id"`
	Name          string             `json:"name"`
	Capacity      int                `json:"capacity"`
	Sessions      int                `json:"sessions"`
	Operations    int                `json:"operations"`
	Digest        string             `json:"digest"`
	Deterministic bool               `json:"deterministic"`
	Mismatches    []journal.Mismatch `json:"mismatches,omitempty"`
}

// ReplaySummary holds the overall replay result.
type ReplaySummary struct {
	Devices          []ReplayDeviceResult `json:"devices"`
	TotalDevices     int                  `json:"total_devices"`
	AllDeterministic bool                 `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a journal and verify determinism",
		Long: `Re-execute every journaled operation against a fresh store of the same
capacity and compare each outcome (byte count, cursor, error code and
transferred bytes) with the journaled one.

Exit codes:
  0 - All devices replayed identically
  1 - One or more operations replayed differently
  2 - Command error (journal not found, unknown device, etc.)

Examples:
  pcd replay --db ./pcd.db
  pcd replay --db ./pcd.db --device pcd
  pcd replay --db ./pcd.db --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Device, "device", "", "replay one device (ID or name)")

	return cmd
}

// openJournal opens an existing journal; it never creates one.
func openJournal(path string) (*journal.Journal, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "journal not found", err)
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}

func runReplay(cmd *cobra.Command, opts *ReplayOptions) error {
	ctx := cmd.Context()

	j, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	var ids []string
	if opts.Device != "" {
		ids = []string{opts.Device}
	} else {
		devices, err := j.ListDevices(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list devices", err)
		}
		for _, d := range devices {
			ids = append(ids, d.ID)
		}
	}

	summary := ReplaySummary{
		Devices:          make([]ReplayDeviceResult, 0, len(ids)),
		TotalDevices:     len(ids),
		AllDeterministic: true,
	}
	for _, id := range ids {
		res, err := replayDevice(ctx, j, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay device %s", id), err)
		}
		summary.Devices = append(summary.Devices, res)
		if !res.Deterministic {
			summary.AllDeterministic = false
		}
	}

	f := opts.formatter(cmd)
	if !summary.AllDeterministic {
		if opts.Format == "json" {
			if err := f.encode(CLIResponse{
				Status: "error",
				Data:   summary,
				Error: &CLIError{
					Code:    "E_DETERMINISM",
					Message: "determinism verification failed",
					Details: mismatchCounts(summary),
				},
			}); err != nil {
				return err
			}
		} else {
			printReplay(f.Writer, summary, opts.Verbose)
		}
		return NewExitError(ExitFailure, "determinism verification failed")
	}

	return f.Emit(summary, func(w io.Writer) {
		printReplay(w, summary, opts.Verbose)
	})
}

func replayDevice(ctx context.Context, j *journal.Journal, id string) (ReplayDeviceResult, error) {
	res, err := journal.Replay(ctx, j, id)
	if err != nil {
		return ReplayDeviceResult{}, err
	}
	return ReplayDeviceResult{
		DeviceID:      res.Device.ID,
		Name:          res.Device.Name,
		Capacity:      res.Device.Capacity,
		Sessions:      res.Sessions,
		Operations:    res.Operations,
		Digest:        res.Digest,
		Deterministic: res.Deterministic(),
		Mismatches:    res.Mismatches,
	}, nil
}

func printReplay(w io.Writer, summary ReplaySummary, verbose bool) {
	if summary.TotalDevices == 0 {
		fmt.Fprintln(w, "No devices found in journal.")
		return
	}

	fmt.Fprintf(w, "Replay Summary: %d device(s)\n\n", summary.TotalDevices)
	for _, d := range summary.Devices {
		status := color.GreenString("✓")
		if !d.Deterministic {
			status = color.RedString("✗")
		}
		fmt.Fprintf(w, "%s Device: %s (%s)\n", status, d.Name, d.DeviceID)
		fmt.Fprintf(w, "  Operations: %d in %d session(s)\n", d.Operations, d.Sessions)
		if verbose {
			fmt.Fprintf(w, "  Capacity: %d\n", d.Capacity)
			fmt.Fprintf(w, "  Digest: %s\n", d.Digest)
		}
		for _, m := range d.Mismatches {
			fmt.Fprintf(w, "  seq %d %s: %s want %s, got %s\n", m.Seq, m.Op, m.Field, m.Want, m.Got)
		}
		fmt.Fprintln(w)
	}

	if summary.AllDeterministic {
		fmt.Fprintf(w, "%s All devices verified deterministic\n", color.GreenString("✓"))
	} else {
		fmt.Fprintf(w, "%s Determinism verification failed\n", color.RedString("✗"))
	}
}

// mismatchCounts maps each non-deterministic device ID to its mismatch count.
func mismatchCounts(summary ReplaySummary) map[string]int {
	counts := make(map[string]int)
	for _, d := range summary.Devices {
		if !d.Deterministic {
			counts[d.DeviceID] = len(d.Mismatches)
		}
	}
	return counts
}
