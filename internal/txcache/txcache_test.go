package txcache

import (
	"path/filepath"
	"testing"

	"github.com/AlexZinkM/exchange-json-rpc/internal/crypto"
	"github.com/AlexZinkM/exchange-json-rpc/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), store.FileName), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s)
}

func signedTransaction(t *testing.T) *crypto.Transaction {
	t.Helper()
	network, err := crypto.NetworkByName("devnet")
	require.NoError(t, err)

	tx, err := crypto.NewTransfer(network, "D61mfSggzbvQgTUe6JhYKH2doHaqJ3Dyib", 5, "memo")
	require.NoError(t, err)
	tx.Nonce = 1
	require.NoError(t, tx.Sign("this is a top secret passphrase"))
	return tx
}

func TestPutAndTake(t *testing.T) {
	c := newTestCache(t)
	tx := signedTransaction(t)

	require.NoError(t, c.Put(tx))

	got, err := c.TakeForBroadcast(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx, got)
	assert.True(t, got.VerifyHash())

	// reading does not remove the entry
	again, err := c.TakeForBroadcast(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, again.ID)
}

func TestTakeUnknown(t *testing.T) {
	c := newTestCache(t)

	_, err := c.TakeForBroadcast("deadbeef")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutWithoutID(t *testing.T) {
	c := newTestCache(t)
	assert.Error(t, c.Put(&crypto.Transaction{}))
	assert.Error(t, c.Put(nil))
}
