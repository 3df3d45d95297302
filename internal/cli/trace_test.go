package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pcd/internal/journal"
)

// seedJournal writes two devices with one session each.
func seedJournal(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "trace.db")
	j, err := journal.Open(db)
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	for _, d := range []journal.DeviceRecord{
		{ID: "dev-a", Name: "alpha", Capacity: 8},
		{ID: "dev-b", Name: "beta", Capacity: 8},
	} {
		_, err := j.RegisterDevice(ctx, d)
		require.NoError(t, err)
	}

	records := []journal.Record{
		{DeviceID: "dev-a", SessionID: "sa", Op: journal.OpOpen},
		{DeviceID: "dev-a", SessionID: "sa", Op: journal.OpWrite, Count: 2, Data: []byte("hi"), Result: 2, PosAfter: 2},
		{DeviceID: "dev-b", SessionID: "sb", Op: journal.OpOpen},
		{DeviceID: "dev-b", SessionID: "sb", Op: journal.OpSeek, Offset: 9, Whence: 0, ErrorCode: "INVALID_ARGUMENT"},
		{DeviceID: "dev-a", SessionID: "sa", Op: journal.OpRelease, PosAfter: 2},
	}
	for _, rec := range records {
		_, err := j.Record(ctx, rec)
		require.NoError(t, err)
	}
	return db
}

func TestTraceCommand_All(t *testing.T) {
	db := seedJournal(t)

	out, err := executeCommand(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "sa write count=2 n=2 pos=2 hex=6869\n")
	assert.Contains(t, out, "sb seek offset=9 whence=start pos=0 error=INVALID_ARGUMENT\n")
	assert.Contains(t, out, "5 operation(s)")
}

func TestTraceCommand_SessionFilter(t *testing.T) {
	db := seedJournal(t)

	out, err := executeCommand(t, "trace", "--db", db, "--session", "sb")
	require.NoError(t, err)
	assert.NotContains(t, out, " sa ")
	assert.Contains(t, out, "2 operation(s)")
}

func TestTraceCommand_DeviceFilter(t *testing.T) {
	db := seedJournal(t)

	out, err := executeCommand(t, "--format", "json", "trace", "--db", db, "--device", "alpha")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Equal(t, 3, resp.Data.Total)
	for _, r := range resp.Data.Records {
		assert.Equal(t, "dev-a", r.DeviceID)
	}
	assert.Equal(t, "6869", resp.Data.Records[1].Hex)
}

func TestTraceCommand_DeviceAndSessionFilters(t *testing.T) {
	db := seedJournal(t)

	out, err := executeCommand(t, "trace", "--db", db, "--device", "alpha", "--session", "sb")
	require.NoError(t, err)
	assert.Contains(t, out, "No operations found.")
}

func TestTraceCommand_UnknownDevice(t *testing.T) {
	db := seedJournal(t)

	_, err := executeCommand(t, "trace", "--db", db, "--device", "gamma")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceCommand_MissingDatabase(t *testing.T) {
	_, err := executeCommand(t, "trace", "--db", "/nonexistent/pcd.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
