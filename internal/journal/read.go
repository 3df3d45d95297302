package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrDeviceNotFound is returned when no device matches a lookup.
var ErrDeviceNotFound = errors.New("device not found")

const operationColumns = `seq, device_id, session_id, op, seek_offset, whence, req_count, data, result, pos_after, error_code`

// ListDevices returns all device instances ordered by registration.
func (j *Journal) ListDevices(ctx context.Context) ([]DeviceRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, name, capacity, registered_seq
		FROM devices
		ORDER BY registered_seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	devices := []DeviceRecord{}
	for rows.Next() {
		var d DeviceRecord
		if err := rows.Scan(&d.ID, &d.Name, &d.Capacity, &d.RegisteredSeq); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate devices: %w", err)
	}
	return devices, nil
}

// FindDevice looks a device up by instance ID, falling back to the most
// recently registered instance with that name.
func (j *Journal) FindDevice(ctx context.Context, idOrName string) (DeviceRecord, error) {
	var d DeviceRecord
	err := j.db.QueryRowContext(ctx, `
		SELECT id, name, capacity, registered_seq
		FROM devices
		WHERE id = ? OR name = ?
		ORDER BY (id = ?) DESC, registered_seq DESC
		LIMIT 1
	`, idOrName, idOrName, idOrName).Scan(&d.ID, &d.Name, &d.Capacity, &d.RegisteredSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return d, fmt.Errorf("%w: %s", ErrDeviceNotFound, idOrName)
	}
	if err != nil {
		return d, fmt.Errorf("find device: %w", err)
	}
	return d, nil
}

// ReadOperations returns a device's operations in seq order.
// Returns an empty slice (not nil) if there are none.
func (j *Journal) ReadOperations(ctx context.Context, deviceID string) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+operationColumns+`
		FROM operations
		WHERE device_id = ?
		ORDER BY seq ASC
	`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	return scanRecords(rows)
}

// ReadSession returns one session's operations in seq order.
func (j *Journal) ReadSession(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+operationColumns+`
		FROM operations
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return scanRecords(rows)
}

// ReadAll returns every operation in seq order.
func (j *Journal) ReadAll(ctx context.Context) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+operationColumns+`
		FROM operations
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			r    Record
			op   string
			data []byte
		)
		if err := rows.Scan(
			&r.Seq,
			&r.DeviceID,
			&r.SessionID,
			&op,
			&r.Offset,
			&r.Whence,
			&r.Count,
			&data,
			&r.Result,
			&r.PosAfter,
			&r.ErrorCode,
		); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		r.Op = Op(op)
		r.Data = data
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return records, nil
}
