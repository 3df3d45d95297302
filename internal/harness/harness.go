package harness

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/pcd/internal/device"
	"github.com/roach88/pcd/internal/host"
	"github.com/roach88/pcd/internal/testutil"
)

// DeviceName is the node name scenarios register their device under.
const DeviceName = "pcd"

// Runner executes steps against one registered device and records a trace.
// Sessions are addressed by name; each name maps to a framework handle.
//
// Thread-safety: not safe for concurrent use.
type Runner struct {
	fw      *host.Framework
	dev     *host.Device
	handles map[string]host.Handle
	seq     int64
	result  *Result
}

// NewRunner creates a runner for dev, which must be registered with fw.
func NewRunner(fw *host.Framework, dev *host.Device) *Runner {
	return &Runner{
		fw:      fw,
		dev:     dev,
		handles: make(map[string]host.Handle),
		result:  NewResult(),
	}
}

// Device returns the device under test.
func (r *Runner) Device() *host.Device {
	return r.dev
}

// Result returns the result accumulated so far. Buffer is refreshed on
// every call.
func (r *Runner) Result() *Result {
	r.result.Buffer = r.dev.Store().Snapshot()
	return r.result
}

// Run executes a scenario on a fresh device and returns the result.
//
// Each scenario gets its own framework with sequential IDs, so traces are
// identical across runs. Expectation and assertion failures are reported
// in Result.Errors; the returned error is reserved for malformed steps.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	fw := host.New(
		host.WithIDGenerator(testutil.NewSequentialIDs("session")),
		host.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	dev, err := fw.Register(ctx, host.DeviceSpec{Name: DeviceName, Capacity: scenario.Capacity})
	if err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}

	r := NewRunner(fw, dev)
	for i, step := range scenario.Steps {
		if _, err := r.Exec(ctx, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	for _, msg := range EvaluateAssertions(r, scenario.Assertions) {
		r.result.AddError(msg)
	}

	result := r.Result()
	r.Close(ctx)
	return result, nil
}

// Exec runs one step, appends its trace event and checks the step's
// expectation. Operation errors are part of the event; the returned error
// means the step itself could not be run.
func (r *Runner) Exec(ctx context.Context, step Step) (TraceEvent, error) {
	if err := validateStep(step); err != nil {
		return TraceEvent{}, err
	}

	name := step.Session
	if name == "" {
		name = DefaultSession
	}

	whence := device.SeekStart
	var payload []byte
	switch step.Op {
	case OpSeek:
		if step.Whence != "" {
			w, err := device.ParseWhence(step.Whence)
			if err != nil {
				return TraceEvent{}, err
			}
			whence = w
		}
	case OpWrite:
		p, err := payloadOf(step.Data, step.Hex, step.Fill)
		if err != nil {
			return TraceEvent{}, err
		}
		payload = p
	}

	r.seq++
	ev := TraceEvent{Seq: r.seq, Op: step.Op, Session: name}

	var opErr error
	switch step.Op {
	case OpOpen:
		if h, ok := r.handles[name]; ok {
			if _, err := r.fw.Tell(h); err == nil {
				r.seq--
				return TraceEvent{}, fmt.Errorf("session %q already open", name)
			}
		}
		var h host.Handle
		h, opErr = r.fw.OpenNode(ctx, r.dev.Info().Node)
		if opErr == nil {
			r.handles[name] = h
		}

	case OpRelease:
		opErr = r.fw.Close(ctx, r.handles[name])

	case OpSeek:
		ev.Offset = step.Offset
		ev.Whence = whence.String()
		_, opErr = r.fw.Lseek(ctx, r.handles[name], step.Offset, whence)

	case OpRead:
		count := *step.Count
		ev.Count = count
		buf := host.AllocUserBuffer(r.bufferLen(count))
		if step.Fault {
			buf = host.UnmappedBuffer(r.bufferLen(count))
		}
		ev.N, opErr = r.fw.Read(ctx, r.handles[name], buf, count)
		if opErr == nil && ev.N > 0 {
			ev.Data = bytes.Clone(buf.Bytes()[:ev.N])
		}

	case OpWrite:
		count := len(payload)
		if step.Count != nil {
			count = *step.Count
		}
		ev.Count = count
		buf := host.NewUserBuffer(payload)
		if step.Fault {
			buf = host.UnmappedBuffer(r.bufferLen(count))
		}
		ev.N, opErr = r.fw.Write(ctx, r.handles[name], buf, count)
	}

	ev.Error = string(device.CodeOf(opErr))
	if opErr != nil && ev.Error == "" {
		return TraceEvent{}, opErr
	}
	if h, ok := r.handles[name]; ok {
		if pos, err := r.fw.Tell(h); err == nil {
			ev.Pos = &pos
		}
	}

	r.result.Trace = append(r.result.Trace, ev)
	if step.Expect != nil {
		for _, msg := range checkExpect(ev, step.Expect) {
			r.result.AddError(fmt.Sprintf("step %d (%s %s): %s", ev.Seq, ev.Op, ev.Session, msg))
		}
	}
	return ev, nil
}

// bufferLen sizes a caller buffer for count bytes. The store never moves
// more than its capacity, so larger counts need no more memory.
func (r *Runner) bufferLen(count int) int {
	return int(min(max(int64(count), 0), r.dev.Store().Capacity()))
}

// Close releases every session still open. Releases are not traced.
func (r *Runner) Close(ctx context.Context) {
	for _, h := range r.handles {
		_ = r.fw.Close(ctx, h)
	}
}

// Position returns the cursor of a named session.
func (r *Runner) Position(session string) (int64, error) {
	h, ok := r.handles[session]
	if !ok {
		return 0, fmt.Errorf("session %q was never opened", session)
	}
	return r.fw.Tell(h)
}

func checkExpect(ev TraceEvent, e *Expect) []string {
	var msgs []string
	if ev.Error != e.Error {
		want, got := e.Error, ev.Error
		if want == "" {
			want = "success"
		}
		if got == "" {
			got = "success"
		}
		msgs = append(msgs, fmt.Sprintf("expected %s, got %s", want, got))
	}
	if e.N != nil && ev.N != *e.N {
		msgs = append(msgs, fmt.Sprintf("expected n=%d, got n=%d", *e.N, ev.N))
	}
	if e.Pos != nil {
		switch {
		case ev.Pos == nil:
			msgs = append(msgs, fmt.Sprintf("expected pos=%d, session is closed", *e.Pos))
		case *ev.Pos != *e.Pos:
			msgs = append(msgs, fmt.Sprintf("expected pos=%d, got pos=%d", *e.Pos, *ev.Pos))
		}
	}
	if e.Data != nil && string(ev.Data) != *e.Data {
		msgs = append(msgs, fmt.Sprintf("expected data %q, got %q", *e.Data, ev.Data))
	}
	if e.Hex != nil {
		want, _ := hex.DecodeString(*e.Hex)
		if !bytes.Equal(ev.Data, want) {
			msgs = append(msgs, fmt.Sprintf("expected hex %s, got %s", *e.Hex, hex.EncodeToString(ev.Data)))
		}
	}
	return msgs
}
