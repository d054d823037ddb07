package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/AlexZinkM/exchange-json-rpc/internal/crypto"

	"github.com/cosmos/go-bip39"
	"go.uber.org/zap"
)

const entropyBits = 128

var (
	// ErrNotFound is returned when no entry exists for the user
	ErrNotFound = errors.New("vault entry not found")

	// ErrDecryptionFailed is returned when the password does not open the entry
	ErrDecryptionFailed = errors.New("vault entry could not be decrypted")
)

// Storage is the subset of the key-value store the vault needs
type Storage interface {
	Get(key string, value interface{}) (bool, error)
	// SetIfAbsent writes value only when key is free, atomically
	SetIfAbsent(key string, value interface{}) (bool, error)
}

// Wallet is a decrypted vault entry
type Wallet struct {
	PublicKey string `json:"publicKey"`
	Address   string `json:"address"`
	WIF       string `json:"wif"`
}

// Vault keeps one BIP38 encrypted key per user id
type Vault struct {
	storage Storage
	network crypto.Network
	log     *zap.Logger
}

// New creates a vault on top of storage
func New(storage Storage, network crypto.Network, log *zap.Logger) *Vault {
	if log == nil {
		log = zap.NewNop()
	}
	return &Vault{storage: storage, network: network, log: log}
}

// Key is the storage key of a user's entry
func Key(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}

// Create returns the user's wallet, generating and storing a new one on first use.
// An existing entry is never overwritten, so concurrent first calls all get the stored wallet.
func (v *Vault) Create(userID, password string) (*Wallet, error) {
	wallet, err := v.Lookup(userID, password)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return wallet, err
	}

	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate entropy: %w", err)
	}
	defer clear(entropy)

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	keys := crypto.KeysFromPassphrase(mnemonic)
	privateKey := keys.PrivateKey.Serialize()
	defer clear(privateKey)

	encrypted, err := crypto.BIP38Encrypt(privateKey, true, password+userID)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt wallet: %w", err)
	}

	created, err := v.storage.SetIfAbsent(Key(userID), encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to store wallet: %w", err)
	}
	if !created {
		// a concurrent Create stored its key first
		return v.Lookup(userID, password)
	}

	address := keys.Address(v.network)
	v.log.Info("created vault entry", zap.String("address", address))

	return &Wallet{
		PublicKey: keys.PublicKeyHex(),
		Address:   address,
		WIF:       keys.WIF(v.network),
	}, nil
}

// Lookup decrypts the user's entry
func (v *Vault) Lookup(userID, password string) (*Wallet, error) {
	var encrypted string
	ok, err := v.storage.Get(Key(userID), &encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	keys, wif, err := crypto.DecryptWIF(encrypted, password+userID, v.network)
	if err != nil {
		v.log.Debug("vault entry did not decrypt", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return &Wallet{
		PublicKey: keys.PublicKeyHex(),
		Address:   keys.Address(v.network),
		WIF:       wif,
	}, nil
}

// Encrypted returns the raw BIP38 string of the user's entry
func (v *Vault) Encrypted(userID string) (string, error) {
	var encrypted string
	ok, err := v.storage.Get(Key(userID), &encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to read wallet: %w", err)
	}
	if !ok {
		return "", ErrNotFound
	}
	return encrypted, nil
}
