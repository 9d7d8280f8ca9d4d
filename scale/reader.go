package scale

import "fmt"

// Reader is a bounds-checked cursor over an input buffer. Every read
// fails with ErrUnexpectedEOF instead of over-reading, which keeps
// truncated or hostile input from panicking or allocating unboundedly.
type Reader struct {
	data []byte
	off  int
}

// NewReader wraps data without copying it.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.off
}

// ReadByte consumes and returns one byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.off >= len(r.data) {
		return 0, fmt.Errorf("%w: need 1 byte at offset %d", ErrUnexpectedEOF, r.off)
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

// ReadBytes consumes and returns n bytes. The returned slice aliases the
// underlying buffer; callers that retain it must copy.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrUnexpectedEOF, n, r.off, r.Remaining())
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}
