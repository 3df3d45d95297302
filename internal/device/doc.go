// Package device implements the bounded byte store behind the pcd pseudo
// character device.
//
// A Store owns a fixed-capacity buffer. Every open produces a Session with
// its own cursor; all sessions of a Store read and write the same buffer.
//
// INVARIANTS:
//   - I1: 0 <= pos <= capacity for every session, checked before a new
//     cursor value is committed.
//   - I2: a read or write of n bytes touches only [pos, pos+n) with
//     pos+n <= capacity.
//
// Boundary semantics follow POSIX character devices:
//   - Seek past either end fails with INVALID_ARGUMENT. Seeking exactly to
//     the end is legal.
//   - Read saturates at the end of the buffer. A zero-length read at the end
//     is end-of-stream, not an error.
//   - Write saturates too (short write), but a write with no room left at
//     the cursor fails with OUT_OF_SPACE.
//   - A copy rejected by the caller's memory fails with FAULT and leaves both
//     buffer and cursor untouched.
//
// Concurrency: one mutex per Store guards the buffer and every session
// cursor. Each operation is a single critical section, so concurrent
// operations behave as if applied in some serial order.
package device
