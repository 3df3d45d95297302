package device

import (
	"fmt"
	"io"
)

// Stream adapts a Session to the io interfaces. It translates the device
// conventions to Go's: end of buffer is io.EOF and a short write is
// io.ErrShortWrite.
type Stream struct {
	sess *Session
}

var _ io.ReadWriteSeeker = (*Stream)(nil)
var _ io.Closer = (*Stream)(nil)

// NewStream wraps sess.
func NewStream(sess *Session) *Stream {
	return &Stream{sess: sess}
}

// Read implements io.Reader.
func (st *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := st.sess.ReadInto(p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements io.Writer. OUT_OF_SPACE is reported as io.ErrShortWrite
// wrapping the store error.
func (st *Stream) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := st.sess.WriteBytes(p)
	if err != nil {
		if IsOutOfSpace(err) {
			return 0, fmt.Errorf("%w: %w", io.ErrShortWrite, err)
		}
		return n, err
	}
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Seek implements io.Seeker.
func (st *Stream) Seek(offset int64, whence int) (int64, error) {
	return st.sess.Seek(offset, Whence(whence))
}

// Close releases the underlying session.
func (st *Stream) Close() error {
	return st.sess.Close()
}
