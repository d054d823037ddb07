package crypto

import (
	"bytes"
	"crypto/aes"
	"fmt"

	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"
)

// BIP38Decrypt decrypts a BIP38 key and returns the raw private key and its compression flag.
// Caller must zero the returned private key after use.
func BIP38Decrypt(encrypted string, passphrase string) ([]byte, bool, error) {
	payload, err := decodeCheck(encrypted)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidBIP38, err)
	}
	if len(payload) != bip38EncryptedLength || payload[0] != bip38Prefix {
		return nil, false, ErrInvalidBIP38
	}
	if payload[1] == bip38TypeECMult {
		return nil, false, ErrUnsupportedBIP38
	}
	if payload[1] != bip38TypeNonECMult {
		return nil, false, ErrInvalidBIP38
	}

	compressed := payload[2]&bip38FlagCompressed != 0
	salt := payload[3 : 3+bip38AddressHashLen]
	encrypted1 := payload[7:23]
	encrypted2 := payload[23:39]

	// Derive key from passphrase
	derived, err := scrypt.Key([]byte(norm.NFC.String(passphrase)), salt, bip38ScryptN, bip38ScryptR, bip38ScryptP, bip38ScryptKeyLen)
	if err != nil {
		return nil, false, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(derived)

	block, err := aes.NewCipher(derived[32:])
	if err != nil {
		return nil, false, fmt.Errorf("failed to create cipher: %w", err)
	}

	decrypted := make([]byte, privateKeyLen)
	defer clear(decrypted)
	block.Decrypt(decrypted[:16], encrypted1)
	block.Decrypt(decrypted[16:], encrypted2)

	privateKey := make([]byte, privateKeyLen)
	for i := range privateKey {
		privateKey[i] = decrypted[i] ^ derived[i]
	}

	// A wrong passphrase yields a key whose address hash does not match the salt
	if !bytes.Equal(bip38AddressHash(KeysFromPrivateKey(privateKey, compressed)), salt) {
		clear(privateKey)
		return nil, false, ErrInvalidPassphrase
	}

	return privateKey, compressed, nil
}

// DecryptWIF decrypts a BIP38 key straight into a keypair for network
func DecryptWIF(encrypted string, passphrase string, network Network) (*KeyPair, string, error) {
	privateKey, compressed, err := BIP38Decrypt(encrypted, passphrase)
	if err != nil {
		return nil, "", err
	}
	defer clear(privateKey)

	keys := KeysFromPrivateKey(privateKey, compressed)
	return keys, keys.WIF(network), nil
}
