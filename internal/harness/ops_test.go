package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOp(t *testing.T) {
	tests := []struct {
		arg  string
		want []Step
	}{
		{"write:hello", []Step{{Op: OpWrite, Data: "hello"}}},
		{"write:a:b", []Step{{Op: OpWrite, Data: "a:b"}}},
		{"hex:414243", []Step{{Op: OpWrite, Hex: "414243"}}},
		{"fill:0x41:10", []Step{{Op: OpWrite, Fill: &FillSpec{Byte: 0x41, Count: 10}}}},
		{"fill:66:2", []Step{{Op: OpWrite, Fill: &FillSpec{Byte: 66, Count: 2}}}},
		{"read:7", []Step{{Op: OpRead, Count: intp(7)}}},
		{"seek:end:-600", []Step{{Op: OpSeek, Whence: "end", Offset: -600}}},
		{"seek:1:5", []Step{{Op: OpSeek, Whence: "1", Offset: 5}}},
		{"reopen", []Step{{Op: OpRelease}, {Op: OpOpen}}},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := ParseOp(tt.arg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOp_Errors(t *testing.T) {
	for _, arg := range []string{
		"write:",
		"hex:xyz",
		"hex:",
		"fill:0x41",
		"fill:0x141:1",
		"fill:0x41:-1",
		"read:many",
		"seek:end",
		"seek:middle:0",
		"seek:start:x",
		"truncate:1",
	} {
		t.Run(arg, func(t *testing.T) {
			_, err := ParseOp(arg)
			assert.Error(t, err)
		})
	}
}

func TestParseOps_PrependsOpen(t *testing.T) {
	steps, err := ParseOps([]string{"write:AB", "seek:start:0", "read:2"})
	require.NoError(t, err)
	require.Len(t, steps, 4)
	assert.Equal(t, OpOpen, steps[0].Op)

	_, err = ParseOps([]string{"bogus"})
	assert.Error(t, err)
}
