// Package fast provides minimal byte buffer helpers for linear
// serialization. The Reader performs no bounds checking and panics on
// reads past the end; callers are expected to recover at the codec
// boundary.
package fast

type Reader struct {
	buf    []byte
	offset int
}

type Writer struct {
	buf []byte
}

// NewReader wraps bb for sequential consumption.
func NewReader(bb []byte) *Reader {
	return &Reader{
		buf: bb,
	}
}

// NewWriter appends to the provided initial slice. Callers usually pass
// make([]byte, 0, capacity).
func NewWriter(bb []byte) *Writer {
	return &Writer{
		buf: bb,
	}
}

func (b *Writer) WriteByte(v byte) {
	b.buf = append(b.buf, v)
}

func (b *Writer) Write(v []byte) {
	b.buf = append(b.buf, v...)
}

// Read consumes the next n bytes. The returned slice shares memory with
// the underlying buffer.
func (b *Reader) Read(n int) []byte {
	res := b.buf[b.offset : b.offset+n]
	b.offset += n
	return res
}

func (b *Reader) ReadByte() byte {
	res := b.buf[b.offset]
	b.offset++
	return res
}

// Position returns how many bytes have been consumed.
func (b *Reader) Position() int {
	return b.offset
}

func (b *Reader) Bytes() []byte {
	return b.buf
}

func (b *Writer) Bytes() []byte {
	return b.buf
}

// Remaining returns the number of unconsumed bytes.
func (b *Reader) Remaining() int {
	return len(b.buf) - b.offset
}

func (b *Reader) Empty() bool {
	return len(b.buf) == b.offset
}
