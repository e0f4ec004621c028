// Package bits implements a bit-granular stream over a byte slice.
// It backs the compact serializer, where boolean flags and small size
// fields are packed into a side stream instead of whole bytes.
package bits

type (
	// Array is the backing byte slice of a bitstream.
	Array struct {
		Bytes []byte
	}

	// Writer appends bits to an Array, LSB first within each byte.
	Writer struct {
		*Array
		bitOffset int
	}

	// Reader consumes bits from an Array in the order Writer produced them.
	Reader struct {
		*Array
		byteOffset int
		bitOffset  int
	}
)

func NewWriter(arr *Array) *Writer {
	return &Writer{
		Array: arr,
	}
}

func NewReader(arr *Array) *Reader {
	return &Reader{
		Array: arr,
	}
}

func (a *Writer) byteBitsFree() int {
	return 8 - a.bitOffset
}

func (a *Writer) writeIntoLastByte(v uint) {
	a.Bytes[len(a.Bytes)-1] |= byte(v << a.bitOffset)
}

// maskLow keeps the low 8-clear bits of v.
func maskLow(v uint, clear int) uint {
	return v & (uint(0xff) >> clear)
}

// Write appends the lowest n bits of v.
func (a *Writer) Write(n int, v uint) {
	if a.bitOffset == 0 {
		a.Bytes = append(a.Bytes, byte(0))
	}

	free := a.byteBitsFree()
	if n <= free {
		a.writeIntoLastByte(v)
		if n == free {
			a.bitOffset = 0
		} else {
			a.bitOffset += n
		}
		return
	}

	// Spill: fill the current byte, then continue with the rest.
	a.writeIntoLastByte(maskLow(v, a.bitOffset))
	a.bitOffset = 0
	a.Write(n-free, v>>free)
}

func (a *Reader) byteBitsFree() int {
	return 8 - a.bitOffset
}

// Read consumes n bits and returns them as an integer.
func (a *Reader) Read(n int) (v uint) {
	if n == 0 {
		return 0
	}

	free := a.byteBitsFree()
	if n <= free {
		clear := 8 - (a.bitOffset + n)
		v = maskLow(uint(a.Bytes[a.byteOffset]), clear) >> a.bitOffset
		if n == free {
			a.bitOffset = 0
			a.byteOffset++
		} else {
			a.bitOffset += n
		}
		return v
	}

	v = uint(a.Bytes[a.byteOffset]) >> a.bitOffset
	a.bitOffset = 0
	a.byteOffset++
	rest := a.Read(n - free)
	v |= rest << free
	return v
}

// View peeks at the next n bits without advancing the cursor.
func (a *Reader) View(n int) (v uint) {
	cp := *a
	return (&cp).Read(n)
}

// NonReadBytes returns the number of bytes not yet fully consumed.
func (a *Reader) NonReadBytes() int {
	return len(a.Bytes) - a.byteOffset
}

// NonReadBits returns the number of bits not yet consumed.
func (a *Reader) NonReadBits() int {
	return a.NonReadBytes()*8 - a.bitOffset
}
