package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_EmitJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Emit(map[string]string{"result": "success"}, func(io.Writer) {
		t.Fatal("text renderer called in json mode")
	})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_EmitText(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Emit(42, func(w io.Writer) {
		io.WriteString(w, "forty-two\n")
	})
	require.NoError(t, err)
	assert.Equal(t, "forty-two\n", buf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	quiet := &OutputFormatter{Writer: out, ErrWriter: errOut}
	quiet.VerboseLog("hidden %d", 1)
	assert.Empty(t, errOut.String())

	loud := &OutputFormatter{Writer: out, ErrWriter: errOut, Verbose: true}
	loud.VerboseLog("shown %d", 2)
	assert.Equal(t, "shown 2\n", errOut.String())
	assert.Empty(t, out.String())
}

func TestOutputFormatter_VerboseLogFallsBackToWriter(t *testing.T) {
	out := &bytes.Buffer{}
	f := &OutputFormatter{Writer: out, Verbose: true}
	f.VerboseLog("hello")
	assert.Equal(t, "hello\n", out.String())
}

func TestExitError(t *testing.T) {
	err := NewExitError(ExitFailure, "test error")
	assert.Equal(t, "test error", err.Error())
	assert.Equal(t, ExitFailure, err.Code)
	assert.Nil(t, err.Unwrap())
}

func TestWrapExitError(t *testing.T) {
	cause := errors.New("disk gone")
	err := WrapExitError(ExitCommandError, "failed to open journal", cause)
	assert.Equal(t, "failed to open journal: disk gone", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitFailure},
		{"exit failure", NewExitError(ExitFailure, "x"), ExitFailure},
		{"command error", NewExitError(ExitCommandError, "x"), ExitCommandError},
		{"wrapped", errors.Join(errors.New("ctx"), NewExitError(ExitCommandError, "x")), ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}
