package kvstore

import (
	"path/filepath"
	"testing"

	bolt "github.com/coreos/bbolt"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesBuckets(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "chain.db")
	s, err := Open(path)
	require.NoError(err)
	defer s.Close()

	err = s.View(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{
			BucketAccounts, BucketBlocks, BucketHeights,
			BucketReceipts, BucketForkProofs, BucketMeta,
		} {
			require.NotNil(tx.Bucket(b), "missing bucket %s", b)
		}
		return nil
	})
	require.NoError(err)
}

func TestReopenKeepsData(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "chain.db")
	s, err := Open(path)
	require.NoError(err)

	err = s.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketMeta).Put([]byte("k"), []byte("v"))
	})
	require.NoError(err)
	require.NoError(s.Close())

	s, err = Open(path)
	require.NoError(err)
	defer s.Close()

	err = s.View(func(tx *bolt.Tx) error {
		require.Equal([]byte("v"), tx.Bucket(BucketMeta).Get([]byte("k")))
		return nil
	})
	require.NoError(err)
}

func TestOpenRejectsWrongVersion(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "chain.db")
	s, err := Open(path)
	require.NoError(err)
	err = s.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketMeta).Put(fieldVersion, []byte("other/9"))
	})
	require.NoError(err)
	require.NoError(s.Close())

	_, err = Open(path)
	require.Equal(ErrWrongVersion, err)
}
