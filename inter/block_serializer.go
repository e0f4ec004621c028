package inter

import (
	"errors"
	"fmt"
	"math"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/peregrinenet/go-peregrine/utils/fast"
)

// The on-disk block record is a fixed big-endian layout:
//
//	version:    u16
//	number:     u32
//	view:       u32
//	timestamp:  u64 (ms)
//	parentHash: 32B
//	seed:       65B
//	extraData:  u8 length prefix + bytes (<= 32)
//	stateRoot:  32B
//	bodyRoot:   32B
//	historyRoot:32B
//
// followed, for full block records, by u32-length-prefixed justification
// and body sections. Header identity hashes are computed over this exact
// encoding.

var (
	ErrExtraDataTooLarge = errors.New("header extra data exceeds 32 bytes")
	ErrBlockNumberRange  = errors.New("block number exceeds u32 range")
	ErrCorruptedRecord   = errors.New("corrupted block record")
	ErrIncompleteBlock   = errors.New("block lacks justification or body")
)

const headerMinSize = 2 + 4 + 4 + 8 + common.HashLength + SeedSize + 1 + 3*common.HashLength

func writeU16(w *fast.Writer, v uint16) {
	w.WriteByte(byte(v >> 8))
	w.WriteByte(byte(v))
}

func writeU32(w *fast.Writer, v uint32) {
	w.WriteByte(byte(v >> 24))
	w.WriteByte(byte(v >> 16))
	w.WriteByte(byte(v >> 8))
	w.WriteByte(byte(v))
}

func writeU64(w *fast.Writer, v uint64) {
	writeU32(w, uint32(v>>32))
	writeU32(w, uint32(v))
}

func readU16(r *fast.Reader) uint16 {
	b := r.Read(2)
	return uint16(b[0])<<8 | uint16(b[1])
}

func readU32(r *fast.Reader) uint32 {
	b := r.Read(4)
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func readU64(r *fast.Reader) uint64 {
	return uint64(readU32(r))<<32 | uint64(readU32(r))
}

// MarshalBinary encodes the header into its canonical record form.
func (h *Header) MarshalBinary() ([]byte, error) {
	if len(h.ExtraData) > MaxExtraDataSize {
		return nil, ErrExtraDataTooLarge
	}
	if uint64(h.Number) > math.MaxUint32 {
		return nil, ErrBlockNumberRange
	}

	w := fast.NewWriter(make([]byte, 0, headerMinSize+len(h.ExtraData)))
	writeU16(w, h.Version)
	writeU32(w, uint32(h.Number))
	writeU32(w, h.View)
	writeU64(w, uint64(h.Time))
	w.Write(h.ParentHash.Bytes())
	w.Write(h.Seed[:])
	w.WriteByte(uint8(len(h.ExtraData)))
	w.Write(h.ExtraData)
	w.Write(h.StateRoot.Bytes())
	w.Write(h.BodyRoot.Bytes())
	w.Write(h.HistoryRoot.Bytes())
	return w.Bytes(), nil
}

func unmarshalHeader(r *fast.Reader) (h Header, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = ErrCorruptedRecord
		}
	}()

	h.Version = readU16(r)
	h.Number = idx.Block(readU32(r))
	h.View = readU32(r)
	h.Time = Timestamp(readU64(r))
	h.ParentHash = common.BytesToHash(r.Read(common.HashLength))
	copy(h.Seed[:], r.Read(SeedSize))
	extraLen := int(r.ReadByte())
	if extraLen > MaxExtraDataSize {
		return h, ErrExtraDataTooLarge
	}
	h.ExtraData = append([]byte{}, r.Read(extraLen)...)
	h.StateRoot = common.BytesToHash(r.Read(common.HashLength))
	h.BodyRoot = common.BytesToHash(r.Read(common.HashLength))
	h.HistoryRoot = common.BytesToHash(r.Read(common.HashLength))
	return h, nil
}

// UnmarshalBinary decodes a header record produced by MarshalBinary.
func (h *Header) UnmarshalBinary(raw []byte) error {
	r := fast.NewReader(raw)
	decoded, err := unmarshalHeader(r)
	if err != nil {
		return err
	}
	if !r.Empty() {
		return ErrCorruptedRecord
	}
	*h = decoded
	return nil
}

// section appends a u32-length-prefixed RLP blob.
func writeSection(w *fast.Writer, v interface{}) error {
	data, err := rlp.EncodeToBytes(v)
	if err != nil {
		return err
	}
	writeU32(w, uint32(len(data)))
	w.Write(data)
	return nil
}

func readSection(r *fast.Reader, v interface{}) error {
	size := int(readU32(r))
	if size > r.Remaining() {
		return ErrCorruptedRecord
	}
	return rlp.DecodeBytes(r.Read(size), v)
}

// MarshalBlock encodes a full block record: a type byte, the header, and
// the justification and body sections.
func MarshalBlock(b Block) ([]byte, error) {
	w := fast.NewWriter(make([]byte, 0, 512))
	w.WriteByte(uint8(b.BlockType()))

	switch blk := b.(type) {
	case *MicroBlock:
		if blk.Justification == nil || blk.Body == nil {
			return nil, ErrIncompleteBlock
		}
		raw, err := blk.Header.MarshalBinary()
		if err != nil {
			return nil, err
		}
		w.Write(raw)
		if err := writeSection(w, blk.Justification); err != nil {
			return nil, err
		}
		if err := writeSection(w, blk.Body); err != nil {
			return nil, err
		}
	case *MacroBlock:
		if blk.Justification == nil || blk.Body == nil {
			return nil, ErrIncompleteBlock
		}
		raw, err := blk.Header.MarshalBinary()
		if err != nil {
			return nil, err
		}
		w.Write(raw)
		if blk.IsElection {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
		if err := writeSection(w, blk.Justification); err != nil {
			return nil, err
		}
		if err := writeSection(w, blk.Body); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown block type %d", b.BlockType())
	}
	return w.Bytes(), nil
}

// UnmarshalBlock decodes a record produced by MarshalBlock.
func UnmarshalBlock(raw []byte) (b Block, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			b, err = nil, ErrCorruptedRecord
		}
	}()

	r := fast.NewReader(raw)
	switch BlockType(r.ReadByte()) {
	case BlockTypeMicro:
		blk := &MicroBlock{}
		blk.Header, err = unmarshalHeader(r)
		if err != nil {
			return nil, err
		}
		blk.Justification = &MicroJustification{}
		if err := readSection(r, blk.Justification); err != nil {
			return nil, err
		}
		blk.Body = &MicroBody{}
		if err := readSection(r, blk.Body); err != nil {
			return nil, err
		}
		return blk, nil
	case BlockTypeMacro:
		blk := &MacroBlock{}
		blk.Header, err = unmarshalHeader(r)
		if err != nil {
			return nil, err
		}
		blk.IsElection = r.ReadByte() == 1
		blk.Justification = &MacroJustification{}
		if err := readSection(r, blk.Justification); err != nil {
			return nil, err
		}
		blk.Body = &MacroBody{}
		if err := readSection(r, blk.Body); err != nil {
			return nil, err
		}
		return blk, nil
	default:
		return nil, ErrCorruptedRecord
	}
}
