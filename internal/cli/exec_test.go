package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecCommand_Text(t *testing.T) {
	out, err := executeCommand(t, "exec", "write:hello", "seek:start:0", "read:5")
	require.NoError(t, err)

	want := strings.Join([]string{
		"[1] s1 open pos=0",
		"[2] s1 write count=5 n=5 pos=5",
		"[3] s1 seek offset=0 whence=start pos=0",
		"[4] s1 read count=5 n=5 pos=5",
	}, "\n") + "\n"
	assert.Equal(t, want, out)
}

func TestExecCommand_SaturatesAtCapacity(t *testing.T) {
	path := writeConfig(t, "device:\n  capacity: 8\n")

	out, err := executeCommand(t, "--config", path, "exec", "fill:0x41:10", "write:x", "seek:end:-9")
	require.NoError(t, err, "errors are reported, not fatal, without --strict")

	assert.Contains(t, out, "[2] s1 write count=10 n=8 pos=8\n")
	assert.Contains(t, out, "[3] s1 write count=1 n=0 pos=8 error=OUT_OF_SPACE\n")
	assert.Contains(t, out, "[4] s1 seek offset=-9 whence=end pos=8 error=INVALID_ARGUMENT\n")
}

func TestExecCommand_Strict(t *testing.T) {
	path := writeConfig(t, "device:\n  capacity: 4\n")

	_, err := executeCommand(t, "--config", path, "exec", "--strict", "write:abcd", "write:e")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = executeCommand(t, "--config", path, "exec", "--strict", "write:abcd")
	require.NoError(t, err)
}

func TestExecCommand_Reopen(t *testing.T) {
	out, err := executeCommand(t, "exec", "write:abc", "reopen", "read:3")
	require.NoError(t, err)

	assert.Contains(t, out, "[3] s1 release\n")
	assert.Contains(t, out, "[4] s1 open pos=0\n")
	assert.Contains(t, out, "[5] s1 read count=3 n=3 pos=3\n")
}

func TestExecCommand_JSONIsCanonicalTrace(t *testing.T) {
	out, err := executeCommand(t, "--format", "json", "exec", "write:hi", "seek:start:0", "read:2")
	require.NoError(t, err)

	want := `{"capacity":512,"scenario_name":"exec","trace":[` +
		`{"op":"open","pos":0,"seq":1,"session":"s1"},` +
		`{"count":2,"n":2,"op":"write","pos":2,"seq":2,"session":"s1"},` +
		`{"offset":0,"op":"seek","pos":0,"seq":3,"session":"s1","whence":"start"},` +
		`{"count":2,"hex":"6869","n":2,"op":"read","pos":2,"seq":4,"session":"s1"}]}` + "\n"
	assert.Equal(t, want, out)
}

func TestExecCommand_InvalidOp(t *testing.T) {
	for _, op := range []string{"bogus", "read:x", "seek:sideways:1", "fill:0x100:1", "hex:zz"} {
		t.Run(op, func(t *testing.T) {
			_, err := executeCommand(t, "exec", op)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestExecCommand_RequiresOps(t *testing.T) {
	_, err := executeCommand(t, "exec")
	require.Error(t, err)
}

func TestExecCommand_Journal(t *testing.T) {
	db := filepath.Join(t.TempDir(), "pcd.db")

	_, err := executeCommand(t, "exec", "--journal", db, "write:abc")
	require.NoError(t, err)

	out, err := executeCommand(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, " open pos=0\n")
	assert.Contains(t, out, " write count=3 n=3 pos=3 hex=616263\n")
	assert.Contains(t, out, " release pos=3\n")
	assert.Contains(t, out, "3 operation(s)")
}
