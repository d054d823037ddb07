package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Transaction types of the core type group
const (
	TypeTransfer             uint16 = 0
	TypeDelegateRegistration uint16 = 2
	TypeVote                 uint16 = 3
)

const (
	transactionHeader  = 0xff
	transactionVersion = 2
	coreTypeGroup      = 1

	maxVendorFieldLen = 255
	publicKeyLen      = 33
)

// Default fees in arktoshi, used when the network average is unavailable
var defaultFees = map[uint16]uint64{
	TypeTransfer:             10000000,
	TypeDelegateRegistration: 2500000000,
	TypeVote:                 100000000,
}

var typeNames = map[uint16]string{
	TypeTransfer:             "transfer",
	TypeDelegateRegistration: "delegateRegistration",
	TypeVote:                 "vote",
}

var (
	// ErrUnsupportedType is returned when serializing a type this package cannot build
	ErrUnsupportedType = errors.New("unsupported transaction type")

	// ErrVendorFieldTooLong is returned for a vendor field over 255 bytes
	ErrVendorFieldTooLong = errors.New("vendor field exceeds 255 bytes")

	// ErrInvalidVote is returned for a vote that is not +publicKey or -publicKey
	ErrInvalidVote = errors.New("invalid vote")

	// ErrNotSigned is returned when an operation needs a signature that is missing
	ErrNotSigned = errors.New("transaction is not signed")
)

// Asset carries the type specific payload
type Asset struct {
	Votes    []string       `json:"votes,omitempty"`
	Delegate *DelegateAsset `json:"delegate,omitempty"`
}

// DelegateAsset is the payload of a delegate registration
type DelegateAsset struct {
	Username string `json:"username"`
}

// Transaction is a version 2 transaction of the core type group
type Transaction struct {
	ID              string `json:"id"`
	Version         uint8  `json:"version"`
	Network         uint8  `json:"network"`
	TypeGroup       uint32 `json:"typeGroup"`
	Type            uint16 `json:"type"`
	Nonce           uint64 `json:"nonce,string"`
	SenderPublicKey string `json:"senderPublicKey"`
	Fee             uint64 `json:"fee,string"`
	Amount          uint64 `json:"amount,string"`
	Expiration      uint32 `json:"expiration,omitempty"`
	RecipientID     string `json:"recipientId,omitempty"`
	VendorField     string `json:"vendorField,omitempty"`
	Asset           *Asset `json:"asset,omitempty"`
	Signature       string `json:"signature,omitempty"`
}

// TypeName returns the name the node API uses for a transaction type, e.g. in fee statistics
func TypeName(t uint16) string {
	return typeNames[t]
}

// DefaultFee returns the static fee of a transaction type
func DefaultFee(t uint16) uint64 {
	return defaultFees[t]
}

func newTransaction(network Network, t uint16) *Transaction {
	return &Transaction{
		Version:   transactionVersion,
		Network:   network.PubKeyHash,
		TypeGroup: coreTypeGroup,
		Type:      t,
		Fee:       defaultFees[t],
	}
}

// NewTransfer builds an unsigned transfer
func NewTransfer(network Network, recipientID string, amount uint64, vendorField string) (*Transaction, error) {
	if _, err := DecodeAddress(recipientID, network); err != nil {
		return nil, err
	}
	if len(vendorField) > maxVendorFieldLen {
		return nil, ErrVendorFieldTooLong
	}

	tx := newTransaction(network, TypeTransfer)
	tx.RecipientID = recipientID
	tx.Amount = amount
	tx.VendorField = vendorField
	return tx, nil
}

// NewDelegateRegistration builds an unsigned delegate registration
func NewDelegateRegistration(network Network, username string) (*Transaction, error) {
	if username == "" || len(username) > 20 {
		return nil, fmt.Errorf("invalid delegate username %q", username)
	}

	tx := newTransaction(network, TypeDelegateRegistration)
	tx.Asset = &Asset{Delegate: &DelegateAsset{Username: username}}
	return tx, nil
}

// NewVote builds an unsigned vote. Each vote is "+publicKey" or "-publicKey".
func NewVote(network Network, votes ...string) (*Transaction, error) {
	for _, vote := range votes {
		if _, _, err := parseVote(vote); err != nil {
			return nil, err
		}
	}

	tx := newTransaction(network, TypeVote)
	tx.Asset = &Asset{Votes: votes}
	return tx, nil
}

// Sign signs the transaction with the keypair derived from passphrase
func (tx *Transaction) Sign(passphrase string) error {
	return tx.signWith(KeysFromPassphrase(passphrase))
}

// SignWithWIF signs the transaction with a WIF encoded private key
func (tx *Transaction) SignWithWIF(wif string, network Network) error {
	keys, err := KeysFromWIF(wif, network)
	if err != nil {
		return err
	}
	return tx.signWith(keys)
}

func (tx *Transaction) signWith(keys *KeyPair) error {
	tx.SenderPublicKey = keys.PublicKeyHex()
	tx.Signature = ""

	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	tx.Signature = hex.EncodeToString(ecdsa.Sign(keys.PrivateKey, hash).Serialize())

	id, err := tx.ComputeID()
	if err != nil {
		return err
	}
	tx.ID = id
	return nil
}

// Hash is the sha256 of the serialized transaction without its signature
func (tx *Transaction) Hash() ([]byte, error) {
	raw, err := tx.Serialize(false)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	return sum[:], nil
}

// ComputeID is the hex sha256 of the fully serialized, signed transaction
func (tx *Transaction) ComputeID() (string, error) {
	if tx.Signature == "" {
		return "", ErrNotSigned
	}
	raw, err := tx.Serialize(true)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyHash checks the signature against the sender public key and the id against the content
func (tx *Transaction) VerifyHash() bool {
	if tx.Signature == "" {
		return false
	}
	pub, err := hex.DecodeString(tx.SenderPublicKey)
	if err != nil {
		return false
	}
	publicKey, err := btcec.ParsePubKey(pub)
	if err != nil {
		return false
	}
	rawSig, err := hex.DecodeString(tx.Signature)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(rawSig)
	if err != nil {
		return false
	}
	hash, err := tx.Hash()
	if err != nil {
		return false
	}
	if !sig.Verify(hash, publicKey) {
		return false
	}

	id, err := tx.ComputeID()
	return err == nil && id == tx.ID
}

// Serialize encodes the transaction in the version 2 wire format
func (tx *Transaction) Serialize(withSignature bool) ([]byte, error) {
	var buf bytes.Buffer

	sender, err := hex.DecodeString(tx.SenderPublicKey)
	if err != nil || len(sender) != publicKeyLen {
		return nil, fmt.Errorf("invalid sender public key %q", tx.SenderPublicKey)
	}
	if len(tx.VendorField) > maxVendorFieldLen {
		return nil, ErrVendorFieldTooLong
	}

	buf.WriteByte(transactionHeader)
	buf.WriteByte(tx.Version)
	buf.WriteByte(tx.Network)
	_ = binary.Write(&buf, binary.LittleEndian, tx.TypeGroup)
	_ = binary.Write(&buf, binary.LittleEndian, tx.Type)
	_ = binary.Write(&buf, binary.LittleEndian, tx.Nonce)
	buf.Write(sender)
	_ = binary.Write(&buf, binary.LittleEndian, tx.Fee)
	buf.WriteByte(byte(len(tx.VendorField)))
	buf.WriteString(tx.VendorField)

	switch tx.Type {
	case TypeTransfer:
		recipient, err := decodeCheck(tx.RecipientID)
		if err != nil || len(recipient) != addressLen {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, tx.RecipientID)
		}
		_ = binary.Write(&buf, binary.LittleEndian, tx.Amount)
		_ = binary.Write(&buf, binary.LittleEndian, tx.Expiration)
		buf.Write(recipient)

	case TypeDelegateRegistration:
		if tx.Asset == nil || tx.Asset.Delegate == nil {
			return nil, errors.New("delegate registration without username")
		}
		buf.WriteByte(byte(len(tx.Asset.Delegate.Username)))
		buf.WriteString(tx.Asset.Delegate.Username)

	case TypeVote:
		if tx.Asset == nil || len(tx.Asset.Votes) == 0 {
			return nil, fmt.Errorf("%w: no votes", ErrInvalidVote)
		}
		buf.WriteByte(byte(len(tx.Asset.Votes)))
		for _, vote := range tx.Asset.Votes {
			prefix, key, err := parseVote(vote)
			if err != nil {
				return nil, err
			}
			buf.WriteByte(prefix)
			buf.Write(key)
		}

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedType, tx.Type)
	}

	if withSignature && tx.Signature != "" {
		sig, err := hex.DecodeString(tx.Signature)
		if err != nil {
			return nil, fmt.Errorf("invalid signature: %w", err)
		}
		buf.Write(sig)
	}

	return buf.Bytes(), nil
}

// parseVote splits "+pk"/"-pk" into its wire prefix (1 for vote, 0 for unvote) and key bytes
func parseVote(vote string) (byte, []byte, error) {
	var prefix byte
	switch {
	case strings.HasPrefix(vote, "+"):
		prefix = 1
	case strings.HasPrefix(vote, "-"):
		prefix = 0
	default:
		return 0, nil, fmt.Errorf("%w: %q", ErrInvalidVote, vote)
	}

	key, err := hex.DecodeString(vote[1:])
	if err != nil || len(key) != publicKeyLen {
		return 0, nil, fmt.Errorf("%w: %q", ErrInvalidVote, vote)
	}
	if _, err := btcec.ParsePubKey(key); err != nil {
		return 0, nil, fmt.Errorf("%w: %q is not a valid public key", ErrInvalidVote, vote)
	}
	return prefix, key, nil
}
