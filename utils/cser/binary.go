// Package cser implements a compact canonical serializer. Values are
// split across two streams: raw bytes go to a byte stream, while boolean
// flags and the byte-lengths of integers go to a bit stream. The two
// streams are packed into a single blob with a reversed varint trailer
// so the reader can locate the split from the end.
//
// Encodings are canonical: a value has exactly one valid wire form, and
// decoding rejects padded integers, non-zero unused bits, and trailing
// garbage. The ledger uses it for receipts, where byte-identical
// round-trips are load-bearing.
package cser

import (
	"github.com/peregrinenet/go-peregrine/utils/bits"
	"github.com/peregrinenet/go-peregrine/utils/fast"
)

// MarshalBinaryAdapter runs marshal against a fresh Writer and packs the
// resulting streams into one byte slice.
func MarshalBinaryAdapter(marshal func(*Writer) error) ([]byte, error) {
	w := NewWriter()
	err := marshal(w)
	if err != nil {
		return nil, err
	}
	return binaryFromCSER(w.BitsW.Array, w.BytesW.Bytes())
}

// Layout: [body bytes] [bit-stream bytes] [reversed varint: len(bit-stream)]
func binaryFromCSER(bbits *bits.Array, bbytes []byte) ([]byte, error) {
	body := fast.NewWriter(bbytes)
	body.Write(bbits.Bytes)

	sizeWriter := fast.NewWriter(make([]byte, 0, 4))
	writeUint64Compact(sizeWriter, uint64(len(bbits.Bytes)))
	// The trailer is reversed so it can be parsed backwards from the end.
	body.Write(reversed(sizeWriter.Bytes()))

	return body.Bytes(), nil
}

func binaryToCSER(raw []byte) (bbits *bits.Array, bbytes []byte, err error) {
	sizeBuf := reversed(tail(raw, 9))
	sizeReader := fast.NewReader(sizeBuf)
	bitsSize := readUint64Compact(sizeReader)

	raw = raw[:len(raw)-sizeReader.Position()]
	if uint64(len(raw)) < bitsSize {
		return nil, nil, ErrMalformedEncoding
	}

	bbits = &bits.Array{Bytes: raw[uint64(len(raw))-bitsSize:]}
	bbytes = raw[:uint64(len(raw))-bitsSize]
	return bbits, bbytes, nil
}

// UnmarshalBinaryAdapter splits raw into its two streams and runs
// unmarshal over them, enforcing full consumption.
func UnmarshalBinaryAdapter(raw []byte, unmarshal func(*Reader) error) (err error) {
	// The fast reader panics instead of returning errors.
	defer func() {
		if r := recover(); r != nil {
			err = ErrMalformedEncoding
		}
	}()

	bbits, bbytes, err := binaryToCSER(raw)
	if err != nil {
		return err
	}

	reader := &Reader{
		BitsR:  bits.NewReader(bbits),
		BytesR: fast.NewReader(bbytes),
	}
	err = unmarshal(reader)
	if err != nil {
		return err
	}

	if reader.BitsR.NonReadBytes() > 1 {
		return ErrNonCanonicalEncoding
	}
	if reader.BitsR.Read(reader.BitsR.NonReadBits()) != 0 {
		return ErrNonCanonicalEncoding
	}
	if !reader.BytesR.Empty() {
		return ErrNonCanonicalEncoding
	}
	return nil
}

func tail(b []byte, max int) []byte {
	if len(b) > max {
		return b[len(b)-max:]
	}
	return b
}

func reversed(b []byte) []byte {
	res := make([]byte, len(b))
	for i, v := range b {
		res[len(b)-1-i] = v
	}
	return res
}
