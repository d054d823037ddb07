package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
)

var (
	// ErrInvalidChecksum is returned when a base58check string fails its checksum
	ErrInvalidChecksum = errors.New("invalid base58 checksum")

	// ErrInvalidWIF is returned for a malformed WIF or one from another network
	ErrInvalidWIF = errors.New("invalid WIF")

	// ErrInvalidAddress is returned for a malformed address or one from another network
	ErrInvalidAddress = errors.New("invalid address")
)

const (
	privateKeyLen = 32
	addressLen    = 21 // version byte + RIPEMD-160
)

// KeyPair is a secp256k1 keypair
type KeyPair struct {
	PrivateKey *btcec.PrivateKey
	PublicKey  *btcec.PublicKey
	Compressed bool
}

// KeysFromPassphrase derives a compressed keypair whose private key is sha256(passphrase)
func KeysFromPassphrase(passphrase string) *KeyPair {
	sum := sha256.Sum256([]byte(passphrase))
	defer clear(sum[:])
	return KeysFromPrivateKey(sum[:], true)
}

// KeysFromPrivateKey wraps raw 32-byte private key material
func KeysFromPrivateKey(privateKey []byte, compressed bool) *KeyPair {
	priv, pub := btcec.PrivKeyFromBytes(privateKey)
	return &KeyPair{PrivateKey: priv, PublicKey: pub, Compressed: compressed}
}

// KeysFromWIF decodes a WIF for the given network
func KeysFromWIF(wif string, network Network) (*KeyPair, error) {
	payload, err := decodeCheck(wif)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWIF, err)
	}
	defer clear(payload)

	switch {
	case len(payload) == 1+privateKeyLen+1 && payload[1+privateKeyLen] == 0x01:
	case len(payload) == 1+privateKeyLen:
	default:
		return nil, fmt.Errorf("%w: unexpected length %d", ErrInvalidWIF, len(payload))
	}
	if payload[0] != network.WIF {
		return nil, fmt.Errorf("%w: version %d does not belong to %s", ErrInvalidWIF, payload[0], network.Name)
	}

	return KeysFromPrivateKey(payload[1:1+privateKeyLen], len(payload) == 1+privateKeyLen+1), nil
}

// PublicKeyBytes serializes the public key honouring the compression flag
func (k *KeyPair) PublicKeyBytes() []byte {
	if k.Compressed {
		return k.PublicKey.SerializeCompressed()
	}
	return k.PublicKey.SerializeUncompressed()
}

// PublicKeyHex is the hex form used in transactions and API results
func (k *KeyPair) PublicKeyHex() string {
	return hex.EncodeToString(k.PublicKeyBytes())
}

// Address returns the network address of the keypair
func (k *KeyPair) Address(network Network) string {
	return AddressFromPublicKey(k.PublicKeyBytes(), network)
}

// WIF encodes the private key for the given network
func (k *KeyPair) WIF(network Network) string {
	payload := make([]byte, 0, 1+privateKeyLen+1)
	payload = append(payload, network.WIF)
	payload = append(payload, k.PrivateKey.Serialize()...)
	if k.Compressed {
		payload = append(payload, 0x01)
	}
	defer clear(payload)
	return encodeCheck(payload)
}

// AddressFromPublicKey builds version byte + RIPEMD-160(publicKey), base58check encoded
func AddressFromPublicKey(publicKey []byte, network Network) string {
	h := ripemd160.New()
	h.Write(publicKey)
	return encodeCheck(append([]byte{network.PubKeyHash}, h.Sum(nil)...))
}

// AddressFromPublicKeyHex is AddressFromPublicKey for a hex encoded key
func AddressFromPublicKeyHex(publicKey string, network Network) (string, error) {
	raw, err := hex.DecodeString(publicKey)
	if err != nil {
		return "", fmt.Errorf("invalid public key: %w", err)
	}
	if _, err := btcec.ParsePubKey(raw); err != nil {
		return "", fmt.Errorf("invalid public key: %w", err)
	}
	return AddressFromPublicKey(raw, network), nil
}

// DecodeAddress returns the 21 raw address bytes after checking the network version
func DecodeAddress(address string, network Network) ([]byte, error) {
	payload, err := decodeCheck(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(payload) != addressLen {
		return nil, fmt.Errorf("%w: unexpected length %d", ErrInvalidAddress, len(payload))
	}
	if payload[0] != network.PubKeyHash {
		return nil, fmt.Errorf("%w: version %d does not belong to %s", ErrInvalidAddress, payload[0], network.Name)
	}
	return payload, nil
}

// ValidateAddress reports whether address is a well-formed address of the network
func ValidateAddress(address string, network Network) bool {
	_, err := DecodeAddress(address, network)
	return err == nil
}

func doubleSHA256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

func encodeCheck(payload []byte) string {
	sum := doubleSHA256(payload)
	buf := make([]byte, 0, len(payload)+4)
	buf = append(buf, payload...)
	buf = append(buf, sum[:4]...)
	return base58.Encode(buf)
}

func decodeCheck(s string) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(raw) < 5 {
		return nil, ErrInvalidChecksum
	}
	payload, checksum := raw[:len(raw)-4], raw[len(raw)-4:]
	sum := doubleSHA256(payload)
	if !bytes.Equal(sum[:4], checksum) {
		return nil, ErrInvalidChecksum
	}
	return payload, nil
}
