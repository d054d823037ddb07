package crypto

import (
	"crypto/aes"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"
)

const (
	// BIP38 fixes the scrypt parameters so that any implementation can
	// decrypt a key produced by another one.
	bip38ScryptN      = 16384
	bip38ScryptR      = 8
	bip38ScryptP      = 8
	bip38ScryptKeyLen = 64

	bip38Prefix          = 0x01
	bip38TypeNonECMult   = 0x42
	bip38TypeECMult      = 0x43
	bip38FlagNonECMult   = 0xc0
	bip38FlagCompressed  = 0x20
	bip38AddressHashLen  = 4
	bip38EncryptedLength = 39
)

var (
	// ErrInvalidBIP38 is returned for strings that are not BIP38 encrypted keys
	ErrInvalidBIP38 = errors.New("invalid BIP38 encrypted key")

	// ErrUnsupportedBIP38 is returned for EC-multiplied keys
	ErrUnsupportedBIP38 = errors.New("EC-multiplied BIP38 keys are not supported")

	// ErrInvalidPassphrase is returned when the decrypted key does not match the address hash
	ErrInvalidPassphrase = errors.New("invalid passphrase")
)

// BIP38Encrypt encrypts a 32-byte private key with passphrase (non EC-multiplied mode).
// privateKey must be []byte for security (caller should zero it after use)
func BIP38Encrypt(privateKey []byte, compressed bool, passphrase string) (string, error) {
	if len(privateKey) != privateKeyLen {
		return "", fmt.Errorf("invalid private key length: expected %d bytes", privateKeyLen)
	}

	// The address hash doubles as the scrypt salt
	salt := bip38AddressHash(KeysFromPrivateKey(privateKey, compressed))

	derived, err := scrypt.Key([]byte(norm.NFC.String(passphrase)), salt, bip38ScryptN, bip38ScryptR, bip38ScryptP, bip38ScryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(derived)

	block, err := aes.NewCipher(derived[32:])
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	xored := make([]byte, privateKeyLen)
	defer clear(xored)
	for i := range xored {
		xored[i] = privateKey[i] ^ derived[i]
	}

	// AES-256 in ECB mode over the two 16 byte halves
	encrypted := make([]byte, privateKeyLen)
	block.Encrypt(encrypted[:16], xored[:16])
	block.Encrypt(encrypted[16:], xored[16:])

	flag := byte(bip38FlagNonECMult)
	if compressed {
		flag |= bip38FlagCompressed
	}

	payload := make([]byte, 0, bip38EncryptedLength)
	payload = append(payload, bip38Prefix, bip38TypeNonECMult, flag)
	payload = append(payload, salt...)
	payload = append(payload, encrypted...)

	return encodeCheck(payload), nil
}

// bip38AddressHash is the first 4 bytes of sha256d over the legacy
// (version 0x00, hash160) address string of the key.
func bip38AddressHash(keys *KeyPair) []byte {
	sum := sha256.Sum256(keys.PublicKeyBytes())
	h := ripemd160.New()
	h.Write(sum[:])
	address := encodeCheck(append([]byte{0x00}, h.Sum(nil)...))

	check := doubleSHA256([]byte(address))
	return check[:bip38AddressHashLen]
}
