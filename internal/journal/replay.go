package journal

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/pcd/internal/device"
)

// Mismatch describes one operation whose replayed outcome differs from the
// journaled one.
type Mismatch struct {
	Seq   int64  `json:"seq"`
	Op    Op     `json:"op"`
	Field string `json:"field"`
	Want  string `json:"want"`
	Got   string `json:"got"`
}

// ReplayResult summarizes a replay of one device instance.
type ReplayResult struct {
	Device     DeviceRecord
	Operations int
	Sessions   int
	Mismatches []Mismatch

	// Digest is the sha256 of the replayed buffer, hex encoded.
	Digest string
}

// Deterministic reports whether every operation replayed identically.
func (r ReplayResult) Deterministic() bool {
	return len(r.Mismatches) == 0
}

// faultBuffer rejects every copy. Replays journaled FAULT outcomes.
type faultBuffer struct{}

func (faultBuffer) CopyToUser([]byte) error   { return errors.New("replayed fault") }
func (faultBuffer) CopyFromUser([]byte) error { return errors.New("replayed fault") }

// Replay re-executes a device instance's journaled operations against a
// fresh Store and compares every outcome.
func Replay(ctx context.Context, j *Journal, deviceID string) (ReplayResult, error) {
	dev, err := j.FindDevice(ctx, deviceID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	records, err := j.ReadOperations(ctx, dev.ID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	store, err := device.New(dev.Capacity, device.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	result := ReplayResult{Device: dev, Operations: len(records)}
	sessions := make(map[string]*device.Session)
	mismatch := func(rec Record, field string, want, got any) {
		result.Mismatches = append(result.Mismatches, Mismatch{
			Seq:   rec.Seq,
			Op:    rec.Op,
			Field: field,
			Want:  fmt.Sprint(want),
			Got:   fmt.Sprint(got),
		})
	}

	for _, rec := range records {
		if rec.Op == OpOpen {
			sess, _ := store.Open()
			sessions[rec.SessionID] = sess
			result.Sessions++
			continue
		}

		sess, ok := sessions[rec.SessionID]
		if !ok {
			mismatch(rec, "session", rec.SessionID, "not open")
			continue
		}

		var (
			got     int64
			gotData []byte
			opErr   error
		)
		switch rec.Op {
		case OpRelease:
			opErr = store.Release(sess)
		case OpSeek:
			got, opErr = store.Seek(sess, rec.Offset, device.Whence(rec.Whence))
		case OpRead:
			var dst device.Dest = faultBuffer{}
			var buf device.Bytes
			if rec.ErrorCode != string(device.ErrCodeFault) {
				buf = make(device.Bytes, max(0, min(rec.Count, dev.Capacity)))
				dst = buf
			}
			var n int
			n, opErr = store.Read(sess, dst, rec.Count)
			got = int64(n)
			if opErr == nil {
				gotData = buf[:n]
			}
		case OpWrite:
			var src device.Source = device.Bytes(rec.Data)
			if rec.ErrorCode == string(device.ErrCodeFault) {
				src = faultBuffer{}
			}
			var n int
			n, opErr = store.Write(sess, src, rec.Count)
			got = int64(n)
		default:
			mismatch(rec, "op", "known op", rec.Op)
			continue
		}

		if code := string(device.CodeOf(opErr)); code != rec.ErrorCode {
			mismatch(rec, "error_code", rec.ErrorCode, code)
		}
		if got != rec.Result {
			mismatch(rec, "result", rec.Result, got)
		}
		if rec.Op != OpRelease {
			if pos := sess.Pos(); pos != rec.PosAfter {
				mismatch(rec, "pos_after", rec.PosAfter, pos)
			}
		}
		if rec.Op == OpRead && opErr == nil && !bytes.Equal(gotData, rec.Data) {
			mismatch(rec, "data", hex.EncodeToString(rec.Data), hex.EncodeToString(gotData))
		}
	}

	sum := sha256.Sum256(store.Snapshot())
	result.Digest = hex.EncodeToString(sum[:])
	return result, nil
}
