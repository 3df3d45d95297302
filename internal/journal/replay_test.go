package journal_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pcd/internal/device"
	"github.com/roach88/pcd/internal/host"
	"github.com/roach88/pcd/internal/journal"
	"github.com/roach88/pcd/internal/testutil"
)

func journaledFramework(t *testing.T) (*host.Framework, *journal.Journal) {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "replay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	f := host.New(
		host.WithRecorder(j),
		host.WithIDGenerator(testutil.NewSequentialIDs("r")),
		host.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return f, j
}

func TestReplay_LiteralScenarioIsDeterministic(t *testing.T) {
	f, j := journaledFramework(t)
	ctx := context.Background()

	dev, err := f.Register(ctx, host.DeviceSpec{Name: "pcd", Capacity: 512})
	require.NoError(t, err)

	h, err := f.OpenNode(ctx, dev.Info().Node)
	require.NoError(t, err)
	_, err = f.Write(ctx, h, host.NewUserBuffer(testutil.Fill(0x41, 10)), 10)
	require.NoError(t, err)
	_, err = f.Lseek(ctx, h, 505, device.SeekStart)
	require.NoError(t, err)
	_, err = f.Write(ctx, h, host.NewUserBuffer(testutil.Fill(0x42, 10)), 10)
	require.NoError(t, err)
	_, err = f.Write(ctx, h, host.NewUserBuffer([]byte{0x43}), 1)
	require.ErrorIs(t, err, device.ErrOutOfSpace)
	_, err = f.Lseek(ctx, h, 0, device.SeekEnd)
	require.NoError(t, err)
	_, err = f.Lseek(ctx, h, -600, device.SeekEnd)
	require.ErrorIs(t, err, device.ErrInvalidArgument)

	// Second session reads back and trips a fault.
	h2, err := f.OpenNode(ctx, dev.Info().Node)
	require.NoError(t, err)
	buf := host.AllocUserBuffer(4)
	_, err = f.Read(ctx, h2, buf, 4)
	require.NoError(t, err)
	_, err = f.Read(ctx, h2, host.UnmappedBuffer(4), 4)
	require.True(t, device.IsFault(err))
	_, err = f.Write(ctx, h2, host.NewUserBuffer([]byte("ab")), 5)
	require.True(t, device.IsFault(err))
	require.NoError(t, f.Close(ctx, h2))
	require.NoError(t, f.Close(ctx, h))

	result, err := journal.Replay(ctx, j, dev.Info().ID)
	require.NoError(t, err)

	assert.True(t, result.Deterministic(), "mismatches: %+v", result.Mismatches)
	assert.Equal(t, 2, result.Sessions)
	assert.Equal(t, 13, result.Operations)

	sum := sha256.Sum256(dev.Store().Snapshot())
	assert.Equal(t, hex.EncodeToString(sum[:]), result.Digest)
}

func TestReplay_ByName(t *testing.T) {
	f, j := journaledFramework(t)
	ctx := context.Background()

	dev, err := f.Register(ctx, host.DeviceSpec{Name: "pcd", Capacity: 8})
	require.NoError(t, err)
	h, err := f.OpenNode(ctx, dev.Info().Node)
	require.NoError(t, err)
	_, err = f.Write(ctx, h, host.NewUserBuffer([]byte("12345678")), 8)
	require.NoError(t, err)

	result, err := journal.Replay(ctx, j, "pcd")
	require.NoError(t, err)
	assert.Equal(t, dev.Info().ID, result.Device.ID)
	assert.True(t, result.Deterministic())
}

func TestReplay_DetectsTamperedRecord(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "tamper.db"))
	require.NoError(t, err)
	defer j.Close()
	ctx := context.Background()

	_, err = j.RegisterDevice(ctx, journal.DeviceRecord{ID: "d", Name: "pcd", Capacity: 4})
	require.NoError(t, err)

	records := []journal.Record{
		{Op: journal.OpOpen},
		// A 4-byte store cannot accept 6 bytes; the journal claims it did.
		{Op: journal.OpWrite, Count: 6, Data: []byte("abcdef"), Result: 6, PosAfter: 6},
	}
	for _, rec := range records {
		rec.DeviceID, rec.SessionID = "d", "s"
		_, err := j.Record(ctx, rec)
		require.NoError(t, err)
	}

	result, err := journal.Replay(ctx, j, "d")
	require.NoError(t, err)
	require.False(t, result.Deterministic())

	fields := make([]string, 0, len(result.Mismatches))
	for _, m := range result.Mismatches {
		fields = append(fields, m.Field)
	}
	assert.Contains(t, fields, "result")
	assert.Contains(t, fields, "pos_after")
}

func TestReplay_UnopenedSession(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "orphan.db"))
	require.NoError(t, err)
	defer j.Close()
	ctx := context.Background()

	_, err = j.RegisterDevice(ctx, journal.DeviceRecord{ID: "d", Name: "pcd", Capacity: 4})
	require.NoError(t, err)
	_, err = j.Record(ctx, journal.Record{DeviceID: "d", SessionID: "ghost", Op: journal.OpSeek})
	require.NoError(t, err)

	result, err := journal.Replay(ctx, j, "d")
	require.NoError(t, err)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, "session", result.Mismatches[0].Field)
}

func TestReplay_UnknownDevice(t *testing.T) {
	_, j := journaledFramework(t)
	_, err := journal.Replay(context.Background(), j, "nope")
	assert.ErrorIs(t, err, journal.ErrDeviceNotFound)
}
