package harness

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", ev.Seq, FormatEvent(ev))
	}
	return buf.String()
}

// FormatEvent renders an event on one line.
func FormatEvent(ev TraceEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", ev.Session, ev.Op)
	switch ev.Op {
	case OpSeek:
		fmt.Fprintf(&b, " offset=%d whence=%s", ev.Offset, ev.Whence)
	case OpRead, OpWrite:
		fmt.Fprintf(&b, " count=%d n=%d", ev.Count, ev.N)
	}
	if ev.Pos != nil {
		fmt.Fprintf(&b, " pos=%d", *ev.Pos)
	}
	if ev.Error != "" {
		fmt.Fprintf(&b, " error=%s", ev.Error)
	}
	return b.String()
}

// assertBuffer checks the bytes at an offset of the device buffer.
func assertBuffer(r *Runner, a Assertion) error {
	want, err := payloadOf(a.Data, a.Hex, a.Fill)
	if err != nil {
		return err
	}

	buf := r.dev.Store().Snapshot()
	end := a.Offset + int64(len(want))
	if end > int64(len(buf)) {
		return &AssertionError{
			Type:     AssertBuffer,
			Expected: fmt.Sprintf("%d bytes at offset %d", len(want), a.Offset),
			Actual:   fmt.Sprintf("buffer is %d bytes", len(buf)),
			Trace:    r.result.Trace,
		}
	}

	got := buf[a.Offset:end]
	if !bytes.Equal(got, want) {
		return &AssertionError{
			Type:     AssertBuffer,
			Expected: fmt.Sprintf("%s at offset %d", hex.EncodeToString(want), a.Offset),
			Actual:   hex.EncodeToString(got),
			Trace:    r.result.Trace,
		}
	}
	return nil
}

// assertPosition checks a named session's cursor.
func assertPosition(r *Runner, a Assertion) error {
	session := a.Session
	if session == "" {
		session = DefaultSession
	}

	pos, err := r.Position(session)
	if err != nil {
		return &AssertionError{
			Type:     AssertPosition,
			Expected: fmt.Sprintf("session %s at %d", session, a.Pos),
			Actual:   err.Error(),
			Trace:    r.result.Trace,
		}
	}
	if pos != a.Pos {
		return &AssertionError{
			Type:     AssertPosition,
			Expected: fmt.Sprintf("session %s at %d", session, a.Pos),
			Actual:   fmt.Sprintf("at %d", pos),
			Trace:    r.result.Trace,
		}
	}
	return nil
}

// assertSessions checks the number of open sessions on the device.
func assertSessions(r *Runner, a Assertion) error {
	if got := r.dev.Store().Sessions(); got != a.Count {
		return &AssertionError{
			Type:     AssertSessions,
			Expected: fmt.Sprintf("%d open sessions", a.Count),
			Actual:   fmt.Sprintf("%d open sessions", got),
			Trace:    r.result.Trace,
		}
	}
	return nil
}

// EvaluateAssertions runs all assertions against the runner's current state
// and returns one message per failure.
func EvaluateAssertions(r *Runner, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertBuffer:
			err = assertBuffer(r, a)
		case AssertPosition:
			err = assertPosition(r, a)
		case AssertSessions:
			err = assertSessions(r, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
