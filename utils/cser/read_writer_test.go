package cser

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, marshal func(*Writer) error, unmarshal func(*Reader) error) {
	raw, err := MarshalBinaryAdapter(marshal)
	require.NoError(t, err)
	require.NoError(t, UnmarshalBinaryAdapter(raw, unmarshal))
}

func TestIntegersRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 0x7f, 0x80, 0xffff, 1 << 30, math.MaxUint64} {
		v := v
		roundTrip(t,
			func(w *Writer) error {
				w.U64(v)
				return nil
			},
			func(r *Reader) error {
				assert.Equal(t, v, r.U64())
				return nil
			})
	}
}

func TestMixedRoundTrip(t *testing.T) {
	blob := []byte{0xde, 0xad, 0xbe, 0xef}
	fixed := []byte{1, 2, 3}

	roundTrip(t,
		func(w *Writer) error {
			w.Bool(true)
			w.U8(0x42)
			w.U16(1234)
			w.U32(math.MaxUint32)
			w.Bool(false)
			w.SliceBytes(blob)
			w.FixedBytes(fixed)
			return nil
		},
		func(r *Reader) error {
			assert.True(t, r.Bool())
			assert.Equal(t, uint8(0x42), r.U8())
			assert.Equal(t, uint16(1234), r.U16())
			assert.Equal(t, uint32(math.MaxUint32), r.U32())
			assert.False(t, r.Bool())
			assert.Equal(t, blob, r.SliceBytes(MaxAlloc))
			got := make([]byte, len(fixed))
			r.FixedBytes(got)
			assert.Equal(t, fixed, got)
			return nil
		})
}

func TestRejectsTrailingBytes(t *testing.T) {
	raw, err := MarshalBinaryAdapter(func(w *Writer) error {
		w.U32(7)
		w.U8(9)
		return nil
	})
	require.NoError(t, err)

	err = UnmarshalBinaryAdapter(raw, func(r *Reader) error {
		_ = r.U32()
		return nil
	})
	assert.Equal(t, ErrNonCanonicalEncoding, err)
}

func TestRejectsTruncated(t *testing.T) {
	raw, err := MarshalBinaryAdapter(func(w *Writer) error {
		w.SliceBytes([]byte{1, 2, 3, 4, 5})
		return nil
	})
	require.NoError(t, err)

	err = UnmarshalBinaryAdapter(raw[:2], func(r *Reader) error {
		_ = r.SliceBytes(MaxAlloc)
		return nil
	})
	assert.Error(t, err)
}
