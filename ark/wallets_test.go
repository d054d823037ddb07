package ark

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWallet(t *testing.T) {
	svc, _ := newTestService(t, newFakeNode())

	wallet, err := svc.CreateWallet(testPassphrase)
	require.NoError(t, err)
	assert.Equal(t, testPublicKey, wallet.PublicKey)
	assert.Equal(t, testAddress, wallet.Address)

	png, err := base64.StdEncoding.DecodeString(wallet.QR)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestWalletInfo(t *testing.T) {
	node := newFakeNode()
	svc, _ := newTestService(t, node)

	wallet, err := svc.WalletInfo(context.Background(), testAddress)
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":"`+testAddress+`","nonce":"5"}`, string(wallet))

	node.set(func(n *fakeNode) { n.nonce = "" })
	_, err = svc.WalletInfo(context.Background(), testAddress)
	requireRPCError(t, err, 404, "Wallet "+testAddress+" could not be found.")
}

func TestWalletTransactions(t *testing.T) {
	node := newFakeNode()
	svc, _ := newTestService(t, node)

	list, err := svc.WalletTransactions(context.Background(), testAddress, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Count)
	assert.Equal(t, "0", node.query("wallet-transactions").Get("offset"))

	node.set(func(n *fakeNode) { n.walletTxs = `[]` })
	_, err = svc.WalletTransactions(context.Background(), testAddress, nil)
	requireRPCError(t, err, 404, "Wallet "+testAddress+" could not be found.")
}

func TestBIP38Wallets(t *testing.T) {
	svc, _ := newTestService(t, newFakeNode())

	_, err := svc.BIP38WalletInfo(testUserID, "secret")
	requireRPCError(t, err, 404, "User "+testUserID+" could not be found.")

	created, err := svc.BIP38CreateWallet(testUserID, "secret")
	require.NoError(t, err)

	again, err := svc.BIP38CreateWallet(testUserID, "secret")
	require.NoError(t, err)
	assert.Equal(t, created, again)

	info, err := svc.BIP38WalletInfo(testUserID, "secret")
	require.NoError(t, err)
	assert.Equal(t, created, info)

	_, err = svc.BIP38WalletInfo(testUserID, "wrong")
	requireRPCError(t, err, 404, "User "+testUserID+" could not be found.")
}
