package ledger

import (
	"github.com/peregrinenet/go-peregrine/peregrine"
	"github.com/peregrinenet/go-peregrine/utils/cser"
)

// OpKind distinguishes transaction receipts from inherent receipts in
// the per-block receipt log.
type OpKind uint8

const (
	OpTransaction OpKind = 0
	OpInherent    OpKind = 1
)

// undoEntry records one state key touched by an operation together with
// the value it held before. Restoring entries in reverse order restores
// the exact prior state.
type undoEntry struct {
	Key     []byte
	Existed bool
	Prev    []byte
}

// Receipt is the undo record of one applied transaction or inherent.
// Index is the operation's position within its kind in the block.
type Receipt struct {
	Kind    OpKind
	Index   uint32
	Entries []undoEntry
}

// ReceiptLog is all receipts of one block, in apply order. Revert walks
// it strictly backwards.
type ReceiptLog []*Receipt

const (
	maxReceiptEntries = 1024
	maxStateKeyLen    = 64
	maxStateValueLen  = 4096
)

// MarshalReceipts encodes a receipt log into its canonical binary form
// for the receipts bucket.
func MarshalReceipts(log ReceiptLog) ([]byte, error) {
	return cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.U32(uint32(len(log)))
		for _, r := range log {
			w.U8(uint8(r.Kind))
			w.U32(r.Index)
			w.U32(uint32(len(r.Entries)))
			for _, e := range r.Entries {
				w.SliceBytes(e.Key)
				w.Bool(e.Existed)
				if e.Existed {
					w.SliceBytes(e.Prev)
				}
			}
		}
		return nil
	})
}

// UnmarshalReceipts decodes a receipt log written by MarshalReceipts.
func UnmarshalReceipts(b []byte) (ReceiptLog, error) {
	var log ReceiptLog
	err := cser.UnmarshalBinaryAdapter(b, func(r *cser.Reader) error {
		count := r.U32()
		if count > maxReceiptEntries {
			return cser.ErrTooLargeAlloc
		}
		log = make(ReceiptLog, count)
		for i := range log {
			rec := &Receipt{
				Kind:  OpKind(r.U8()),
				Index: r.U32(),
			}
			if rec.Kind != OpTransaction && rec.Kind != OpInherent {
				return peregrine.ErrInvalidReceipt
			}
			entries := r.U32()
			if entries > maxReceiptEntries {
				return cser.ErrTooLargeAlloc
			}
			rec.Entries = make([]undoEntry, entries)
			for j := range rec.Entries {
				e := &rec.Entries[j]
				e.Key = r.SliceBytes(maxStateKeyLen)
				e.Existed = r.Bool()
				if e.Existed {
					e.Prev = r.SliceBytes(maxStateValueLen)
				}
			}
			log[i] = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return log, nil
}
