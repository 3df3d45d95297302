package cli

import (
	"context"
	"fmt"

	"github.com/roach88/pcd/internal/harness"
	"github.com/roach88/pcd/internal/host"
	"github.com/roach88/pcd/internal/journal"
)

// deviceEnv is a framework with the configured device registered on it.
type deviceEnv struct {
	fw      *host.Framework
	dev     *host.Device
	journal *journal.Journal // nil when not journaling
}

// setupDevice registers the configured device on a fresh framework.
// A non-empty journalPath overrides the configured journal.
func (o *RootOptions) setupDevice(ctx context.Context, journalPath string) (*deviceEnv, error) {
	cfg := o.config()
	if journalPath == "" {
		journalPath = cfg.Journal.Path
	}

	env := &deviceEnv{}
	opts := []host.Option{host.WithLogger(o.logger())}
	if journalPath != "" {
		j, err := journal.Open(journalPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		env.journal = j
		opts = append(opts, host.WithRecorder(j))
	}

	env.fw = host.New(opts...)
	dev, err := env.fw.Register(ctx, host.DeviceSpec{
		Name:     cfg.Device.Name,
		Class:    cfg.Device.Class,
		Capacity: cfg.Device.Capacity,
	})
	if err != nil {
		env.close()
		return nil, WrapExitError(ExitCommandError, "failed to register device", err)
	}
	env.dev = dev
	return env, nil
}

// run executes steps through a harness runner bound to the device.
func (e *deviceEnv) run(ctx context.Context, steps []harness.Step) (*harness.Runner, error) {
	r := harness.NewRunner(e.fw, e.dev)
	for _, step := range steps {
		if _, err := r.Exec(ctx, step); err != nil {
			return r, fmt.Errorf("%s: %w", step.Op, err)
		}
	}
	return r, nil
}

func (e *deviceEnv) close() {
	if e.journal != nil {
		e.journal.Close()
	}
}
