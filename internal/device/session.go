package device

import "fmt"

// Session is one open handle on a Store. Its cursor is guarded by the
// owning store's mutex.
type Session struct {
	store *Store
	id    string

	pos      int64 // GUARDED_BY(store.mu)
	released bool  // GUARDED_BY(store.mu)
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Store returns the store this session was opened on.
func (s *Session) Store() *Store {
	return s.store
}

// Pos returns the current cursor.
func (s *Session) Pos() int64 {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.pos
}

// Released reports whether the session has been released.
func (s *Session) Released() bool {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.released
}

// Seek is shorthand for Store.Seek on this session.
func (s *Session) Seek(offset int64, whence Whence) (int64, error) {
	return s.store.Seek(s, offset, whence)
}

// ReadInto reads up to len(p) bytes into p.
func (s *Session) ReadInto(p []byte) (int, error) {
	return s.store.Read(s, Bytes(p), len(p))
}

// WriteBytes writes up to len(p) bytes from p. Unlike io.Writer, a short
// write returns a nil error.
func (s *Session) WriteBytes(p []byte) (int, error) {
	return s.store.Write(s, Bytes(p), len(p))
}

// Close releases the session.
func (s *Session) Close() error {
	return s.store.Release(s)
}

// Bytes adapts a plain byte slice to Source and Dest. It only faults when
// asked to move more bytes than it holds.
type Bytes []byte

// CopyToUser copies p into b.
func (b Bytes) CopyToUser(p []byte) error {
	if len(p) > len(b) {
		return NewError(ErrCodeFault, "copy_to_user", "%d bytes into %d-byte buffer", len(p), len(b))
	}
	copy(b, p)
	return nil
}

// CopyFromUser fills p from b.
func (b Bytes) CopyFromUser(p []byte) error {
	if len(p) > len(b) {
		return NewError(ErrCodeFault, "copy_from_user", "%d bytes from %d-byte buffer", len(p), len(b))
	}
	copy(p, b)
	return nil
}

func (s *Session) String() string {
	return fmt.Sprintf("session(%s)", s.id)
}
