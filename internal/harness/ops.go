package harness

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseOps turns compact command-line operations into steps on the
// default session. An open step is prepended.
//
//	write:TEXT            write the text
//	hex:414243            write decoded hex
//	fill:0x41:10          write 10 bytes of 0x41
//	read:N                read N bytes
//	seek:WHENCE:OFF       seek; WHENCE is start, current, end or 0/1/2
//	reopen                release and open the session again
func ParseOps(args []string) ([]Step, error) {
	steps := []Step{{Op: OpOpen}}
	for _, arg := range args {
		parsed, err := ParseOp(arg)
		if err != nil {
			return nil, err
		}
		steps = append(steps, parsed...)
	}
	return steps, nil
}

// ParseOp parses one compact operation. reopen yields two steps.
func ParseOp(arg string) ([]Step, error) {
	name, rest, _ := strings.Cut(arg, ":")
	switch name {
	case "write":
		if rest == "" {
			return nil, fmt.Errorf("op %q: empty payload", arg)
		}
		return []Step{{Op: OpWrite, Data: rest}}, nil

	case "hex":
		if _, err := payloadOf("", rest, nil); err != nil || rest == "" {
			return nil, fmt.Errorf("op %q: invalid hex payload", arg)
		}
		return []Step{{Op: OpWrite, Hex: rest}}, nil

	case "fill":
		b, n, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, fmt.Errorf("op %q: expected fill:BYTE:COUNT", arg)
		}
		value, err := strconv.ParseUint(b, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("op %q: byte: %w", arg, err)
		}
		count, err := strconv.Atoi(n)
		if err != nil || count < 0 {
			return nil, fmt.Errorf("op %q: invalid count %q", arg, n)
		}
		return []Step{{Op: OpWrite, Fill: &FillSpec{Byte: int(value), Count: count}}}, nil

	case "read":
		count, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("op %q: invalid count %q", arg, rest)
		}
		return []Step{{Op: OpRead, Count: &count}}, nil

	case "seek":
		whence, off, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, fmt.Errorf("op %q: expected seek:WHENCE:OFFSET", arg)
		}
		offset, err := strconv.ParseInt(off, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("op %q: invalid offset %q", arg, off)
		}
		step := Step{Op: OpSeek, Offset: offset, Whence: whence}
		if err := validateStep(step); err != nil {
			return nil, fmt.Errorf("op %q: %w", arg, err)
		}
		return []Step{step}, nil

	case "reopen":
		return []Step{{Op: OpRelease}, {Op: OpOpen}}, nil
	}
	return nil, fmt.Errorf("unknown op %q", arg)
}
