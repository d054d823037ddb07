package vault

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/AlexZinkM/exchange-json-rpc/internal/crypto"
	"github.com/AlexZinkM/exchange-json-rpc/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) (*Vault, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), store.FileName), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	network, err := crypto.NetworkByName("devnet")
	require.NoError(t, err)
	return New(s, network, nil), s
}

func TestCreateIsIdempotent(t *testing.T) {
	v, s := newTestVault(t)

	first, err := v.Create("user-1", "secret")
	require.NoError(t, err)

	var stored string
	ok, err := s.Get(Key("user-1"), &stored)
	require.NoError(t, err)
	require.True(t, ok)

	second, err := v.Create("user-1", "secret")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var storedAgain string
	_, err = s.Get(Key("user-1"), &storedAgain)
	require.NoError(t, err)
	assert.Equal(t, stored, storedAgain)

	network, _ := crypto.NetworkByName("devnet")
	assert.True(t, crypto.ValidateAddress(first.Address, network))
	keys, err := crypto.KeysFromWIF(first.WIF, network)
	require.NoError(t, err)
	assert.Equal(t, first.PublicKey, keys.PublicKeyHex())
}

func TestLookup(t *testing.T) {
	v, _ := newTestVault(t)

	_, err := v.Lookup("nobody", "secret")
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := v.Create("user-2", "secret")
	require.NoError(t, err)

	found, err := v.Lookup("user-2", "secret")
	require.NoError(t, err)
	assert.Equal(t, created, found)

	_, err = v.Lookup("user-2", "wrong")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestCreateWithWrongPasswordDoesNotOverwrite(t *testing.T) {
	v, _ := newTestVault(t)

	created, err := v.Create("user-3", "secret")
	require.NoError(t, err)

	_, err = v.Create("user-3", "wrong")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	found, err := v.Lookup("user-3", "secret")
	require.NoError(t, err)
	assert.Equal(t, created.Address, found.Address)
}

func TestKeyIsHashedUserID(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Key(""))
	assert.Len(t, Key("user"), 64)
}

func TestConcurrentCreateKeepsOneWallet(t *testing.T) {
	v, _ := newTestVault(t)

	const callers = 4
	wallets := make([]*Wallet, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := v.Create("abcd", "pw")
			assert.NoError(t, err)
			wallets[i] = w
		}(i)
	}
	wg.Wait()

	stored, err := v.Lookup("abcd", "pw")
	require.NoError(t, err)
	for _, w := range wallets {
		require.NotNil(t, w)
		assert.Equal(t, stored, w)
	}
}

func TestEncrypted(t *testing.T) {
	v, _ := newTestVault(t)

	_, err := v.Encrypted("user-4")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = v.Create("user-4", "secret")
	require.NoError(t, err)

	encrypted, err := v.Encrypted("user-4")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encrypted, "6P"))
}
