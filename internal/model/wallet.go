package model

// WalletCreateParams derives a wallet from a passphrase
type WalletCreateParams struct {
	Passphrase string `json:"passphrase" validate:"required"`
}

// AddressParams selects a wallet by address
type AddressParams struct {
	Address string `json:"address" validate:"required,address"`
}

// WalletTransactionsParams pages the transactions of a wallet
type WalletTransactionsParams struct {
	Address string `json:"address" validate:"required,address"`
	Offset  *int   `json:"offset" validate:"omitempty,min=0"`
}

// BIP38Params identifies a vault entry and its password
type BIP38Params struct {
	UserID string `json:"userId" validate:"required,hexadecimal"`
	BIP38  string `json:"bip38" validate:"required"`
}

// WalletResponse is the result of wallets.create.
// QR is a base64 PNG of the address.
type WalletResponse struct {
	PublicKey string `json:"publicKey"`
	Address   string `json:"address"`
	QR        string `json:"qr"`
}
