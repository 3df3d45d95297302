package host

import (
	"context"
	"fmt"

	"github.com/roach88/pcd/internal/device"
	"github.com/roach88/pcd/internal/journal"
)

// OpenNode opens the device at a node path and returns a new handle.
func (f *Framework) OpenNode(ctx context.Context, node string) (Handle, error) {
	dev, ok := f.Lookup(node)
	if !ok {
		return 0, fmt.Errorf("open %s: %w", node, ErrNoDevice)
	}

	dev.dispatch.Lock()
	defer dev.dispatch.Unlock()

	f.mu.Lock()
	if f.devices[node] != dev {
		f.mu.Unlock()
		return 0, fmt.Errorf("open %s: %w", node, ErrNoDevice)
	}
	sess, err := dev.store.Open()
	if err != nil {
		f.mu.Unlock()
		return 0, fmt.Errorf("open %s: %w", node, err)
	}
	f.nextHandle++
	h := f.nextHandle
	of := &openFile{dev: dev, sess: sess}
	f.handles[h] = of
	f.mu.Unlock()

	f.record(ctx, of, journal.Record{Op: journal.OpOpen}, nil)
	return h, nil
}

// Close releases a handle and its session.
func (f *Framework) Close(ctx context.Context, h Handle) error {
	of, err := f.lookup("close", h)
	if err != nil {
		return err
	}

	of.dev.dispatch.Lock()
	defer of.dev.dispatch.Unlock()

	f.mu.Lock()
	_, ok := f.handles[h]
	delete(f.handles, h)
	f.mu.Unlock()
	if !ok {
		// Lost a race with another Close or Unregister.
		return fmt.Errorf("close handle %d: %w", h, ErrBadHandle)
	}

	err = of.dev.store.Release(of.sess)
	f.record(ctx, of, journal.Record{Op: journal.OpRelease, PosAfter: of.sess.Pos()}, err)
	return err
}

// Lseek repositions a handle and returns the new offset.
func (f *Framework) Lseek(ctx context.Context, h Handle, offset int64, whence device.Whence) (int64, error) {
	of, err := f.lookup("lseek", h)
	if err != nil {
		return 0, err
	}

	of.dev.dispatch.Lock()
	defer of.dev.dispatch.Unlock()

	pos, err := of.dev.store.Seek(of.sess, offset, whence)
	f.record(ctx, of, journal.Record{
		Op:       journal.OpSeek,
		Offset:   offset,
		Whence:   int(whence),
		Result:   pos,
		PosAfter: of.sess.Pos(),
	}, err)
	return pos, err
}

// Read copies up to count bytes at the handle's cursor into buf.
func (f *Framework) Read(ctx context.Context, h Handle, buf *UserBuffer, count int) (int, error) {
	of, err := f.lookup("read", h)
	if err != nil {
		return 0, err
	}

	of.dev.dispatch.Lock()
	defer of.dev.dispatch.Unlock()

	n, err := of.dev.store.Read(of.sess, buf, count)
	rec := journal.Record{
		Op:       journal.OpRead,
		Count:    count,
		Result:   int64(n),
		PosAfter: of.sess.Pos(),
	}
	if err == nil {
		rec.Data = buf.Bytes()[:n]
	}
	f.record(ctx, of, rec, err)
	return n, err
}

// Write copies up to count bytes from buf to the handle's cursor.
func (f *Framework) Write(ctx context.Context, h Handle, buf *UserBuffer, count int) (int, error) {
	of, err := f.lookup("write", h)
	if err != nil {
		return 0, err
	}

	of.dev.dispatch.Lock()
	defer of.dev.dispatch.Unlock()

	n, err := of.dev.store.Write(of.sess, buf, count)
	rec := journal.Record{
		Op:       journal.OpWrite,
		Count:    count,
		Result:   int64(n),
		PosAfter: of.sess.Pos(),
	}
	if err == nil {
		rec.Data = buf.Bytes()[:n]
	}
	f.record(ctx, of, rec, err)
	return n, err
}

// Tell returns a handle's cursor without moving it.
func (f *Framework) Tell(h Handle) (int64, error) {
	of, err := f.lookup("tell", h)
	if err != nil {
		return 0, err
	}
	return of.sess.Pos(), nil
}

// Session returns the session behind a handle. Operations made directly on
// it bypass the journal.
func (f *Framework) Session(h Handle) (*device.Session, error) {
	of, err := f.lookup("session", h)
	if err != nil {
		return nil, err
	}
	return of.sess, nil
}

func (f *Framework) lookup(op string, h Handle) (*openFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	of, ok := f.handles[h]
	if !ok {
		return nil, fmt.Errorf("%s handle %d: %w", op, h, ErrBadHandle)
	}
	return of, nil
}

// record journals one dispatched operation. Caller holds of.dev.dispatch.
// Journal failures are logged, never returned: the operation has already
// taken effect.
func (f *Framework) record(ctx context.Context, of *openFile, rec journal.Record, opErr error) {
	if f.recorder == nil {
		return
	}
	rec.DeviceID = of.dev.info.ID
	rec.SessionID = of.sess.ID()
	rec.ErrorCode = string(device.CodeOf(opErr))

	if _, err := f.recorder.Record(ctx, rec); err != nil {
		f.log.Warn("journal record failed",
			"device", of.dev.info.Name,
			"session", rec.SessionID,
			"op", string(rec.Op),
			"error", err,
		)
	}
}
