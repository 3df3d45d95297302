package device

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// DefaultCapacity is the buffer size of a pcd device.
const DefaultCapacity = 512

// MaxCapacity is the largest capacity configuration and scenarios accept.
const MaxCapacity = 1 << 20

// Dest accepts bytes copied out of the store by a read.
// CopyToUser must either copy all of p or return an error.
type Dest interface {
	CopyToUser(p []byte) error
}

// Source supplies bytes copied into the store by a write.
// CopyFromUser fills p or returns an error; p is scratch space, so a
// partial fill before an error is harmless.
type Source interface {
	CopyFromUser(p []byte) error
}

// FileOperations is the callback table a host framework dispatches to.
type FileOperations interface {
	Open() (*Session, error)
	Release(s *Session) error
	Seek(s *Session, offset int64, whence Whence) (int64, error)
	Read(s *Session, dst Dest, count int) (int, error)
	Write(s *Session, src Source, count int) (int, error)
}

var _ FileOperations = (*Store)(nil)

// Store is a fixed-capacity byte buffer shared by all of its sessions.
//
// Thread-safety: all methods are safe for concurrent use. Each operation
// runs under the store mutex.
type Store struct {
	capacity int64
	ids      IDGenerator
	log      *slog.Logger

	mu      sync.Mutex
	buf     []byte // GUARDED_BY(mu)
	staging []byte // GUARDED_BY(mu); write scratch, committed only after a clean copy
	live    int    // GUARDED_BY(mu)
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets the session ID generator.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// WithLogger sets the logger used for operation tracing.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// New creates a Store with a zeroed buffer of the given capacity.
// The buffer is allocated once and never resized.
func New(capacity int, opts ...Option) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("new store: capacity must be positive, got %d", capacity)
	}

	s := &Store{
		capacity: int64(capacity),
		ids:      UUIDv7Generator{},
		buf:      make([]byte, capacity),
		staging:  make([]byte, capacity),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s, nil
}

// Capacity returns the fixed buffer size.
func (s *Store) Capacity() int64 {
	return s.capacity
}

// Sessions returns the number of open sessions.
func (s *Store) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Snapshot returns a copy of the buffer.
func (s *Store) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out
}

// Open creates a session with its cursor at 0. It never fails.
func (s *Store) Open() (*Session, error) {
	sess := &Session{store: s, id: s.ids.Generate()}

	s.mu.Lock()
	s.live++
	s.mu.Unlock()

	s.log.Debug("session opened", "session", sess.id)
	return sess, nil
}

// Release closes a session. The buffer is not affected.
func (s *Store) Release(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSession("release", sess); err != nil {
		return err
	}
	sess.released = true
	s.live--

	s.log.Debug("session released", "session", sess.id, "pos", sess.pos)
	return nil
}

// Seek moves the session cursor and returns the new position.
// A target outside [0, capacity] fails with INVALID_ARGUMENT and leaves the
// cursor where it was.
func (s *Store) Seek(sess *Session, offset int64, whence Whence) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSession("seek", sess); err != nil {
		return 0, err
	}

	var base int64
	switch whence {
	case SeekStart:
		base = 0
	case SeekCurrent:
		base = sess.pos
	case SeekEnd:
		base = s.capacity
	default:
		return 0, NewError(ErrCodeInvalidArgument, "seek", "unknown whence %d", int(whence))
	}

	// base is in [0, capacity], so only a positive offset can overflow.
	if offset > 0 && base > math.MaxInt64-offset {
		return 0, NewError(ErrCodeInvalidArgument, "seek", "offset %d from %s overflows", offset, whence)
	}
	target := base + offset
	if target < 0 || target > s.capacity {
		s.log.Debug("seek rejected", "session", sess.id, "offset", offset, "whence", whence.String(), "target", target)
		return 0, NewError(ErrCodeInvalidArgument, "seek", "target %d outside [0, %d]", target, s.capacity)
	}

	sess.pos = target
	s.log.Debug("seek", "session", sess.id, "offset", offset, "whence", whence.String(), "pos", target)
	return target, nil
}

// Read copies min(count, capacity-pos) bytes at the cursor into dst and
// advances the cursor. Zero bytes at the end of the buffer is end-of-stream.
func (s *Store) Read(sess *Session, dst Dest, count int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSession("read", sess); err != nil {
		return 0, err
	}
	if count < 0 {
		return 0, NewError(ErrCodeInvalidArgument, "read", "negative count %d", count)
	}

	n := clamp(count, s.capacity-sess.pos)
	if n > 0 {
		if dst == nil {
			return 0, NewError(ErrCodeFault, "read", "nil destination")
		}
		if err := dst.CopyToUser(s.buf[sess.pos : sess.pos+int64(n)]); err != nil {
			s.log.Warn("read fault", "session", sess.id, "pos", sess.pos, "count", n, "error", err)
			return 0, faultError("read", err)
		}
	}

	sess.pos += int64(n)
	s.log.Debug("read", "session", sess.id, "count", count, "n", n, "pos", sess.pos)
	return n, nil
}

// Write copies min(count, capacity-pos) bytes from src to the cursor and
// advances it. Fewer bytes than count is a short write, not an error.
// No room at the cursor fails with OUT_OF_SPACE.
func (s *Store) Write(sess *Session, src Source, count int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSession("write", sess); err != nil {
		return 0, err
	}
	if count < 0 {
		return 0, NewError(ErrCodeInvalidArgument, "write", "negative count %d", count)
	}

	n := clamp(count, s.capacity-sess.pos)
	if n == 0 {
		s.log.Debug("write rejected: no space", "session", sess.id, "pos", sess.pos, "count", count)
		return 0, NewError(ErrCodeOutOfSpace, "write", "no space left at position %d (capacity %d)", sess.pos, s.capacity)
	}
	if src == nil {
		return 0, NewError(ErrCodeFault, "write", "nil source")
	}

	stage := s.staging[:n]
	if err := src.CopyFromUser(stage); err != nil {
		s.log.Warn("write fault", "session", sess.id, "pos", sess.pos, "count", n, "error", err)
		return 0, faultError("write", err)
	}
	copy(s.buf[sess.pos:], stage)

	sess.pos += int64(n)
	s.log.Debug("write", "session", sess.id, "count", count, "n", n, "pos", sess.pos)
	return n, nil
}

// checkSession rejects sessions the store must not touch. Caller holds mu.
func (s *Store) checkSession(op string, sess *Session) error {
	switch {
	case sess == nil:
		return NewError(ErrCodeInvalidArgument, op, "nil session")
	case sess.store != s:
		return NewError(ErrCodeInvalidArgument, op, "session %s belongs to another store", sess.id)
	case sess.released:
		return NewError(ErrCodeInvalidArgument, op, "session %s released", sess.id)
	}
	return nil
}

// clamp returns min(count, avail). avail is never negative (I1).
func clamp(count int, avail int64) int {
	if int64(count) > avail {
		return int(avail)
	}
	return count
}
