package ark

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/AlexZinkM/exchange-json-rpc/internal/crypto"
	"github.com/AlexZinkM/exchange-json-rpc/internal/model"
	"github.com/AlexZinkM/exchange-json-rpc/internal/vault"

	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// CreateWallet derives the public key and address of a passphrase. Nothing is stored.
func (s *Service) CreateWallet(passphrase string) (*model.WalletResponse, error) {
	keys := crypto.KeysFromPassphrase(passphrase)
	address := keys.Address(s.network)

	qr, err := generateQRCode(address)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	return &model.WalletResponse{
		PublicKey: keys.PublicKeyHex(),
		Address:   address,
		QR:        qr,
	}, nil
}

// WalletInfo returns the node's view of a wallet
func (s *Service) WalletInfo(ctx context.Context, address string) (json.RawMessage, error) {
	wallet, ok := data(s.relay.Get(ctx, "wallets/"+address, nil))
	if !ok {
		return nil, model.NotFound("Wallet %s could not be found.", address)
	}
	return raw(wallet), nil
}

// WalletTransactions returns a page of a wallet's transactions, newest first.
// A wallet without transactions is reported as not found.
func (s *Service) WalletTransactions(ctx context.Context, address string, offset *int) (*model.TransactionList, error) {
	from := 0
	if offset != nil {
		from = *offset
	}
	query := url.Values{
		"offset":  {strconv.Itoa(from)},
		"orderBy": {"timestamp:desc"},
	}

	resp := s.relay.Get(ctx, "wallets/"+address+"/transactions", query)
	txs, ok := data(resp)
	if !ok || len(txs.Array()) == 0 {
		return nil, model.NotFound("Wallet %s could not be found.", address)
	}

	return &model.TransactionList{
		Count: resp.Get("meta.totalCount").Int(),
		Data:  raw(txs),
	}, nil
}

// BIP38CreateWallet returns the user's vault wallet, creating it on first use
func (s *Service) BIP38CreateWallet(userID, password string) (*vault.Wallet, error) {
	wallet, err := s.vault.Create(userID, password)
	if err != nil {
		return nil, s.vaultError(userID, err)
	}
	return wallet, nil
}

// BIP38WalletInfo opens the user's vault wallet
func (s *Service) BIP38WalletInfo(userID, password string) (*vault.Wallet, error) {
	wallet, err := s.vault.Lookup(userID, password)
	if err != nil {
		return nil, s.vaultError(userID, err)
	}
	return wallet, nil
}

// generateQRCode generates QR code of address in base64
func generateQRCode(address string) (string, error) {
	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := qr.PNG(qrSize)
	if err != nil {
		return "", fmt.Errorf("failed to generate PNG: %w", err)
	}

	return base64.StdEncoding.EncodeToString(png), nil
}
