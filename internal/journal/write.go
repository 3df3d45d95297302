package journal

import (
	"context"
	"fmt"
)

// RegisterDevice records a device instance and returns the seq assigned to
// it. Registering the same ID twice is a no-op that returns the original seq.
func (j *Journal) RegisterDevice(ctx context.Context, dev DeviceRecord) (int64, error) {
	if dev.ID == "" {
		return 0, fmt.Errorf("register device: id is required")
	}

	seq := j.clock.Next()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO devices (id, name, capacity, registered_seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, dev.ID, dev.Name, dev.Capacity, seq)
	if err != nil {
		return 0, fmt.Errorf("register device: %w", err)
	}

	var stored int64
	if err := j.db.QueryRowContext(ctx,
		`SELECT registered_seq FROM devices WHERE id = ?`, dev.ID,
	).Scan(&stored); err != nil {
		return 0, fmt.Errorf("register device: %w", err)
	}
	return stored, nil
}

// Record appends an operation and returns its seq. rec.Seq is ignored.
//
// The device referenced by rec.DeviceID must be registered (foreign key).
func (j *Journal) Record(ctx context.Context, rec Record) (int64, error) {
	seq := j.clock.Next()

	var data []byte
	if len(rec.Data) > 0 {
		data = rec.Data
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO operations
		(seq, device_id, session_id, op, seek_offset, whence, req_count, data, result, pos_after, error_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		seq,
		rec.DeviceID,
		rec.SessionID,
		string(rec.Op),
		rec.Offset,
		rec.Whence,
		rec.Count,
		data,
		rec.Result,
		rec.PosAfter,
		rec.ErrorCode,
	)
	if err != nil {
		return 0, fmt.Errorf("record %s: %w", rec.Op, err)
	}
	return seq, nil
}
