package model

import (
	"encoding/json"

	"github.com/AlexZinkM/exchange-json-rpc/internal/common"
)

// IDParams selects a block or transaction by id
type IDParams struct {
	ID string `json:"id" validate:"required,blockid"`
}

// TransactionIDParams selects a transaction by id
type TransactionIDParams struct {
	ID string `json:"id" validate:"required,hexadecimal,len=64"`
}

// BlockTransactionsParams pages the transactions of a block
type BlockTransactionsParams struct {
	ID     string `json:"id" validate:"required,blockid"`
	Offset *int   `json:"offset" validate:"omitempty,min=0"`
}

// TransferParams creates a transfer signed with a passphrase
type TransferParams struct {
	RecipientID string        `json:"recipientId" validate:"required,address"`
	Amount      common.Amount `json:"amount" validate:"gt=0"`
	Passphrase  string        `json:"passphrase" validate:"required"`
	VendorField string        `json:"vendorField" validate:"max=255"`
	Fee         common.Amount `json:"fee"`
}

// DelegateRegistrationParams registers the sender as a delegate
type DelegateRegistrationParams struct {
	Username   string        `json:"username" validate:"required,max=20"`
	Passphrase string        `json:"passphrase" validate:"required"`
	Fee        common.Amount `json:"fee"`
}

// VoteParams votes for or unvotes a delegate
type VoteParams struct {
	PublicKey  string        `json:"publicKey" validate:"required,hexadecimal,len=66"`
	Passphrase string        `json:"passphrase" validate:"required"`
	Fee        common.Amount `json:"fee"`
}

// BIP38TransferParams creates a transfer signed with a vault key
type BIP38TransferParams struct {
	UserID      string        `json:"userId" validate:"required,hexadecimal"`
	BIP38       string        `json:"bip38" validate:"required"`
	RecipientID string        `json:"recipientId" validate:"required,address"`
	Amount      common.Amount `json:"amount" validate:"gt=0"`
	VendorField string        `json:"vendorField" validate:"max=255"`
	Fee         common.Amount `json:"fee"`
}

// TransactionList is a page of node transactions
type TransactionList struct {
	Count int64           `json:"count"`
	Data  json.RawMessage `json:"data"`
}
