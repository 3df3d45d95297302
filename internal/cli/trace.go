package cli

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pcd/internal/device"
	"github.com/roach88/pcd/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string // optional - filter to one session
	Device   string // optional - filter to one device (ID or name)
}

// TraceRecord is one journaled operation as printed by trace.
type TraceRecord struct {
	Seq       int64  `json:"seq"`
	DeviceID  string `json:"device_id"`
	SessionID string `json:"session_id"`
	Op        string `json:"op"`
	Offset    int64  `json:"offset,omitempty"`
	Whence    string `json:"whence,omitempty"`
	Count     int    `json:"count,omitempty"`
	Result    int64  `json:"result"`
	PosAfter  int64  `json:"pos_after"`
	Error     string `json:"error,omitempty"`
	Hex       string `json:"hex,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Records []TraceRecord `json:"records"`
	Total   int           `json:"total"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List journaled operations",
		Long: `List journaled operations in sequence order, optionally filtered to one
session or one device instance.

Examples:
  pcd trace --db ./pcd.db
  pcd trace --db ./pcd.db --session 0190a3c4-...
  pcd trace --db ./pcd.db --device pcd --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "filter to one session ID")
	cmd.Flags().StringVar(&opts.Device, "device", "", "filter to one device (ID or name)")

	return cmd
}

func runTrace(cmd *cobra.Command, opts *TraceOptions) error {
	ctx := cmd.Context()

	j, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	var deviceID string
	if opts.Device != "" {
		dev, err := j.FindDevice(ctx, opts.Device)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find device", err)
		}
		deviceID = dev.ID
	}

	var records []journal.Record
	switch {
	case opts.Session != "":
		records, err = j.ReadSession(ctx, opts.Session)
	case deviceID != "":
		records, err = j.ReadOperations(ctx, deviceID)
	default:
		records, err = j.ReadAll(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := TraceResult{Records: make([]TraceRecord, 0, len(records))}
	for _, rec := range records {
		if deviceID != "" && rec.DeviceID != deviceID {
			continue
		}
		result.Records = append(result.Records, toTraceRecord(rec))
	}
	result.Total = len(result.Records)

	return opts.formatter(cmd).Emit(result, func(w io.Writer) {
		if len(result.Records) == 0 {
			fmt.Fprintln(w, "No operations found.")
			return
		}
		for _, r := range result.Records {
			fmt.Fprintln(w, formatTraceRecord(r))
		}
		fmt.Fprintf(w, "\n%d operation(s)\n", result.Total)
	})
}

func toTraceRecord(rec journal.Record) TraceRecord {
	tr := TraceRecord{
		Seq:       rec.Seq,
		DeviceID:  rec.DeviceID,
		SessionID: rec.SessionID,
		Op:        string(rec.Op),
		Count:     rec.Count,
		Result:    rec.Result,
		PosAfter:  rec.PosAfter,
		Error:     rec.ErrorCode,
	}
	if rec.Op == journal.OpSeek {
		tr.Offset = rec.Offset
		tr.Whence = device.Whence(rec.Whence).String()
	}
	if len(rec.Data) > 0 {
		tr.Hex = hex.EncodeToString(rec.Data)
	}
	return tr
}

func formatTraceRecord(r TraceRecord) string {
	s := fmt.Sprintf("[%d] %s %s", r.Seq, r.SessionID, r.Op)
	switch r.Op {
	case string(journal.OpSeek):
		s += fmt.Sprintf(" offset=%d whence=%s", r.Offset, r.Whence)
	case string(journal.OpRead), string(journal.OpWrite):
		s += fmt.Sprintf(" count=%d n=%d", r.Count, r.Result)
	}
	s += fmt.Sprintf(" pos=%d", r.PosAfter)
	if r.Error != "" {
		s += " error=" + r.Error
	}
	if r.Hex != "" {
		s += " hex=" + r.Hex
	}
	return s
}
