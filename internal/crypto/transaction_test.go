package crypto

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedTransfer(t *testing.T) *Transaction {
	t.Helper()
	tx, err := NewTransfer(devnet(t), testAddress, 100000000, "exchange")
	require.NoError(t, err)
	tx.Nonce = 7
	require.NoError(t, tx.Sign(testPassphrase))
	return tx
}

func TestTransferSignAndVerify(t *testing.T) {
	tx := signedTransfer(t)

	assert.Equal(t, testPublicKey, tx.SenderPublicKey)
	assert.Len(t, tx.ID, 64)
	assert.NotEmpty(t, tx.Signature)
	assert.True(t, tx.VerifyHash())

	id, err := tx.ComputeID()
	require.NoError(t, err)
	assert.Equal(t, tx.ID, id)
}

func TestTamperedTransactionFailsVerification(t *testing.T) {
	tx := signedTransfer(t)
	tx.Amount++
	assert.False(t, tx.VerifyHash())

	tx = signedTransfer(t)
	tx.ID = "00"
	assert.False(t, tx.VerifyHash())

	tx = signedTransfer(t)
	tx.Signature = ""
	assert.False(t, tx.VerifyHash())
}

func TestSignWithWIF(t *testing.T) {
	network := devnet(t)
	tx, err := NewTransfer(network, testAddress, 1, "")
	require.NoError(t, err)

	require.NoError(t, tx.SignWithWIF(KeysFromPassphrase(testPassphrase).WIF(network), network))
	assert.Equal(t, testPublicKey, tx.SenderPublicKey)
	assert.True(t, tx.VerifyHash())
}

func TestTransactionJSONKeepsSignatureValid(t *testing.T) {
	tx := signedTransfer(t)

	raw, err := json.Marshal(tx)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "100000000", fields["amount"])
	assert.Equal(t, "7", fields["nonce"])
	assert.Equal(t, "10000000", fields["fee"])
	assert.Equal(t, testAddress, fields["recipientId"])

	var decoded Transaction
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, *tx, decoded)
	assert.True(t, decoded.VerifyHash())
}

func TestSerializeHeader(t *testing.T) {
	tx := signedTransfer(t)
	raw, err := tx.Serialize(false)
	require.NoError(t, err)

	assert.Equal(t, byte(0xff), raw[0])
	assert.Equal(t, byte(2), raw[1])
	assert.Equal(t, byte(0x1e), raw[2])
	assert.Equal(t, []byte{1, 0, 0, 0}, raw[3:7])
	assert.Equal(t, []byte{0, 0}, raw[7:9])
	assert.Equal(t, byte(7), raw[9])

	withSig, err := tx.Serialize(true)
	require.NoError(t, err)
	assert.Greater(t, len(withSig), len(raw))
}

func TestNewTransferValidation(t *testing.T) {
	network := devnet(t)

	_, err := NewTransfer(network, "nope", 1, "")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	_, err = NewTransfer(network, testAddress, 1, string(long))
	assert.ErrorIs(t, err, ErrVendorFieldTooLong)
}

func TestVoteAndDelegateRegistration(t *testing.T) {
	network := devnet(t)

	vote, err := NewVote(network, "+"+testPublicKey)
	require.NoError(t, err)
	require.NoError(t, vote.Sign(testPassphrase))
	assert.True(t, vote.VerifyHash())
	assert.Equal(t, uint64(100000000), vote.Fee)

	unvote, err := NewVote(network, "-"+testPublicKey)
	require.NoError(t, err)
	require.NoError(t, unvote.Sign(testPassphrase))
	assert.NotEqual(t, vote.ID, unvote.ID)

	_, err = NewVote(network, testPublicKey)
	assert.ErrorIs(t, err, ErrInvalidVote)

	// right length and prefix, but x=0 is not on the curve
	_, err = NewVote(network, "+02"+strings.Repeat("00", 32))
	assert.ErrorIs(t, err, ErrInvalidVote)

	reg, err := NewDelegateRegistration(network, "exchange")
	require.NoError(t, err)
	require.NoError(t, reg.Sign(testPassphrase))
	assert.True(t, reg.VerifyHash())
	assert.Equal(t, "delegateRegistration", TypeName(reg.Type))
	assert.Equal(t, uint64(2500000000), DefaultFee(reg.Type))

	_, err = NewDelegateRegistration(network, "")
	assert.Error(t, err)
}
