package host

import (
	"github.com/roach88/pcd/internal/device"
)

// UserBuffer models caller memory on the far side of the boundary.
// Only the first mapped bytes are accessible; touching anything beyond
// faults, which is how an oversized count or a bad pointer shows up.
type UserBuffer struct {
	data   []byte
	mapped int
}

var (
	_ device.Dest   = (*UserBuffer)(nil)
	_ device.Source = (*UserBuffer)(nil)
)

// NewUserBuffer maps all of p.
func NewUserBuffer(p []byte) *UserBuffer {
	return &UserBuffer{data: p, mapped: len(p)}
}

// AllocUserBuffer maps a zeroed buffer of n bytes.
func AllocUserBuffer(n int) *UserBuffer {
	return NewUserBuffer(make([]byte, n))
}

// UnmappedBuffer returns an n-byte buffer with nothing mapped. Every
// non-empty copy faults.
func UnmappedBuffer(n int) *UserBuffer {
	return &UserBuffer{data: make([]byte, n)}
}

// Bytes returns the underlying memory.
func (u *UserBuffer) Bytes() []byte {
	if u == nil {
		return nil
	}
	return u.data
}

// Len returns the buffer size, mapped or not.
func (u *UserBuffer) Len() int {
	if u == nil {
		return 0
	}
	return len(u.data)
}

// CopyToUser copies p to the start of the buffer.
func (u *UserBuffer) CopyToUser(p []byte) error {
	if u == nil || len(p) > u.mapped {
		return u.fault("copy_to_user", len(p))
	}
	copy(u.data, p)
	return nil
}

// CopyFromUser fills p from the start of the buffer.
func (u *UserBuffer) CopyFromUser(p []byte) error {
	if u == nil || len(p) > u.mapped {
		return u.fault("copy_from_user", len(p))
	}
	copy(p, u.data)
	return nil
}

func (u *UserBuffer) fault(op string, n int) error {
	mapped := 0
	if u != nil {
		mapped = u.mapped
	}
	return device.NewError(device.ErrCodeFault, op, "%d bytes exceed %d mapped", n, mapped)
}
