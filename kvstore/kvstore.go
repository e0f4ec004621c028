// Package kvstore opens and lays out the bolt database shared by the
// ledger and the chain store. Everything the node persists lives in one
// file so a block push (state changes, receipts, chain records) commits
// in a single write transaction.
package kvstore

import (
	"errors"
	"time"

	bolt "github.com/coreos/bbolt"
)

var (
	// BucketAccounts maps state keys to serialized accounts. Plain
	// accounts are keyed by their 20-byte address; validator and staker
	// records of the staking contract use prefixed composite keys.
	BucketAccounts = []byte("Accounts")

	// BucketBlocks maps block hashes to chain info records: the
	// serialized block plus per-branch consensus totals.
	BucketBlocks = []byte("Blocks")

	// BucketHeights maps big-endian block numbers to the hash of the
	// main-chain block at that height. Only main-chain blocks appear.
	BucketHeights = []byte("Heights")

	// BucketReceipts maps block hashes to the receipts produced when
	// the block was applied, in apply order. Needed only for blocks
	// above the prune depth, so revert stays possible.
	BucketReceipts = []byte("Receipts")

	// BucketForkProofs records hashes of fork proofs already included
	// on the main chain, so each offense is penalized exactly once.
	BucketForkProofs = []byte("ForkProofs")

	// BucketMeta carries the head hash, the database version and other
	// single-value fields.
	BucketMeta = []byte("Meta")
)

var (
	fieldVersion = []byte("Version")
	valueVersion = []byte("peregrine/1")
)

// ErrWrongVersion is returned by Open when the database was written by
// an incompatible layout version.
var ErrWrongVersion = errors.New("database layout version mismatch")

// Store is the node's database handle. Update transactions are
// exclusive; View transactions run concurrently against a consistent
// snapshot, which is what lets speculative block production read state
// while a push is being committed.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the database at path and ensures all
// buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			BucketAccounts,
			BucketBlocks,
			BucketHeights,
			BucketReceipts,
			BucketForkProofs,
			BucketMeta,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		meta := tx.Bucket(BucketMeta)
		if v := meta.Get(fieldVersion); v == nil {
			return meta.Put(fieldVersion, valueVersion)
		} else if string(v) != string(valueVersion) {
			return ErrWrongVersion
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Update runs fn in an exclusive read-write transaction.
func (s *Store) Update(fn func(tx *bolt.Tx) error) error {
	return s.db.Update(fn)
}

// View runs fn in a read-only snapshot transaction.
func (s *Store) View(fn func(tx *bolt.Tx) error) error {
	return s.db.View(fn)
}

// Speculate runs fn in a write transaction that is always rolled back,
// whatever fn returns. Block producers use it to compute the state root
// of a candidate block without committing anything.
func (s *Store) Speculate(fn func(tx *bolt.Tx) error) error {
	tx, err := s.db.Begin(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(tx)
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
