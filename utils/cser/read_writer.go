package cser

import (
	"errors"

	"github.com/peregrinenet/go-peregrine/utils/bits"
	"github.com/peregrinenet/go-peregrine/utils/fast"
)

var (
	ErrNonCanonicalEncoding = errors.New("non canonical encoding")
	ErrMalformedEncoding    = errors.New("malformed encoding")
	ErrTooLargeAlloc        = errors.New("too large allocation")
)

// MaxAlloc bounds decoded slice sizes.
const MaxAlloc = 100 * 1024

// Writer encodes into the two CSER streams.
type Writer struct {
	BitsW  *bits.Writer
	BytesW *fast.Writer
}

// Reader decodes from the two CSER streams.
type Reader struct {
	BitsR  *bits.Reader
	BytesR *fast.Reader
}

func NewWriter() *Writer {
	return &Writer{
		BitsW:  bits.NewWriter(&bits.Array{Bytes: make([]byte, 0, 32)}),
		BytesW: fast.NewWriter(make([]byte, 0, 200)),
	}
}

// writeUint64Compact is a varint with inverted continuation logic: a set
// high bit marks the final byte. Used only for the stream-split trailer.
func writeUint64Compact(bytesW *fast.Writer, v uint64) {
	for {
		chunk := v & 0x7f
		v >>= 7
		if v == 0 {
			chunk |= 0x80
		}
		bytesW.WriteByte(byte(chunk))
		if v == 0 {
			return
		}
	}
}

func readUint64Compact(bytesR *fast.Reader) uint64 {
	v := uint64(0)
	for i := 0; ; i++ {
		chunk := uint64(bytesR.ReadByte())
		stop := chunk&0x80 != 0
		word := chunk & 0x7f
		v |= word << (i * 7)
		if stop {
			if i > 0 && word == 0 {
				panic(ErrNonCanonicalEncoding)
			}
			return v
		}
	}
}

// writeUint64BitCompact writes v little-endian using the fewest bytes,
// but at least minSize. Returns the number of bytes written.
func writeUint64BitCompact(bytesW *fast.Writer, v uint64, minSize int) (size int) {
	for size < minSize || v != 0 {
		bytesW.WriteByte(byte(v))
		size++
		v >>= 8
	}
	return size
}

func readUint64BitCompact(bytesR *fast.Reader, size int) uint64 {
	var (
		v    uint64
		last byte
	)
	for i, b := range bytesR.Read(size) {
		v |= uint64(b) << uint(8*i)
		last = b
	}
	// A zero most significant byte means the value was padded.
	if size > 1 && last == 0 {
		panic(ErrNonCanonicalEncoding)
	}
	return v
}

// The integer encodings below write the value bytes to the byte stream
// and the (size - minSize) offset to the bit stream.

func (w *Writer) writeU64Bits(minSize int, bitsForSize int, v uint64) {
	size := writeUint64BitCompact(w.BytesW, v, minSize)
	w.BitsW.Write(bitsForSize, uint(size-minSize))
}

func (r *Reader) readU64Bits(minSize int, bitsForSize int) uint64 {
	size := r.BitsR.Read(bitsForSize) + uint(minSize)
	return readUint64BitCompact(r.BytesR, int(size))
}

func (w *Writer) U8(v uint8) {
	w.BytesW.WriteByte(v)
}

func (r *Reader) U8() uint8 {
	return r.BytesR.ReadByte()
}

func (w *Writer) U16(v uint16) {
	w.writeU64Bits(1, 1, uint64(v))
}

func (r *Reader) U16() uint16 {
	return uint16(r.readU64Bits(1, 1))
}

func (w *Writer) U32(v uint32) {
	w.writeU64Bits(1, 2, uint64(v))
}

func (r *Reader) U32() uint32 {
	return uint32(r.readU64Bits(1, 2))
}

func (w *Writer) U64(v uint64) {
	w.writeU64Bits(1, 3, v)
}

func (r *Reader) U64() uint64 {
	return r.readU64Bits(1, 3)
}

// U56 encodes slice lengths; 7 bytes bound the value.
func (w *Writer) U56(v uint64) {
	const max = 1<<56 - 1
	if v > max {
		panic("cser: U56 value out of range")
	}
	w.writeU64Bits(0, 3, v)
}

func (r *Reader) U56() uint64 {
	return r.readU64Bits(0, 3)
}

func (w *Writer) Bool(v bool) {
	u := uint(0)
	if v {
		u = 1
	}
	w.BitsW.Write(1, u)
}

func (r *Reader) Bool() bool {
	return r.BitsR.Read(1) != 0
}

// FixedBytes writes raw bytes without a length prefix.
func (w *Writer) FixedBytes(v []byte) {
	w.BytesW.Write(v)
}

func (r *Reader) FixedBytes(v []byte) {
	copy(v, r.BytesR.Read(len(v)))
}

// SliceBytes writes a U56 length prefix followed by the raw bytes.
func (w *Writer) SliceBytes(v []byte) {
	w.U56(uint64(len(v)))
	w.FixedBytes(v)
}

func (r *Reader) SliceBytes(maxLen int) []byte {
	size := r.U56()
	if size > uint64(maxLen) {
		panic(ErrTooLargeAlloc)
	}
	buf := make([]byte, size)
	r.FixedBytes(buf)
	return buf
}
