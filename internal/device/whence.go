package device

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Whence is the reference point of a seek.
// Values match io.SeekStart, io.SeekCurrent and io.SeekEnd.
type Whence int

const (
	SeekStart   Whence = io.SeekStart
	SeekCurrent Whence = io.SeekCurrent
	SeekEnd     Whence = io.SeekEnd
)

func (w Whence) String() string {
	switch w {
	case SeekStart:
		return "start"
	case SeekCurrent:
		return "current"
	case SeekEnd:
		return "end"
	default:
		return fmt.Sprintf("whence(%d)", int(w))
	}
}

// ParseWhence accepts "start"/"set", "current"/"cur", "end", or a raw integer.
// Raw integers are not range checked; Seek rejects unknown values.
func ParseWhence(s string) (Whence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "start", "set":
		return SeekStart, nil
	case "current", "cur":
		return SeekCurrent, nil
	case "end":
		return SeekEnd, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unknown whence %q", s)
	}
	return Whence(n), nil
}
