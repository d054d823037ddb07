package ark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/AlexZinkM/exchange-json-rpc/internal/common"
	"github.com/AlexZinkM/exchange-json-rpc/internal/crypto"
	"github.com/AlexZinkM/exchange-json-rpc/internal/model"
	"github.com/AlexZinkM/exchange-json-rpc/internal/txcache"
	"github.com/AlexZinkM/exchange-json-rpc/internal/vault"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// signer signs with either a passphrase or a WIF, both known before the nonce lookup
type signer struct {
	address string
	sign    func(tx *crypto.Transaction) error
}

func (s *Service) passphraseSigner(passphrase string) signer {
	return signer{
		address: crypto.KeysFromPassphrase(passphrase).Address(s.network),
		sign:    func(tx *crypto.Transaction) error { return tx.Sign(passphrase) },
	}
}

func (s *Service) wifSigner(wif string) (signer, error) {
	keys, err := crypto.KeysFromWIF(wif, s.network)
	if err != nil {
		return signer{}, err
	}
	return signer{
		address: keys.Address(s.network),
		sign:    func(tx *crypto.Transaction) error { return tx.SignWithWIF(wif, s.network) },
	}, nil
}

// TransactionInfo returns a transaction by id
func (s *Service) TransactionInfo(ctx context.Context, id string) (json.RawMessage, error) {
	tx, ok := data(s.relay.Get(ctx, "transactions/"+id, nil))
	if !ok {
		return nil, model.NotFound("Transaction %s could not be found.", id)
	}
	return raw(tx), nil
}

// CreateTransfer signs a transfer with a passphrase and caches it for broadcast
func (s *Service) CreateTransfer(ctx context.Context, p *model.TransferParams) (*crypto.Transaction, error) {
	tx, err := crypto.NewTransfer(s.network, p.RecipientID, uint64(p.Amount), p.VendorField)
	if err != nil {
		return nil, model.Unprocessable(err.Error())
	}
	return s.build(ctx, tx, p.Fee, s.passphraseSigner(p.Passphrase))
}

// CreateDelegateRegistration signs a delegate registration and caches it for broadcast
func (s *Service) CreateDelegateRegistration(ctx context.Context, p *model.DelegateRegistrationParams) (*crypto.Transaction, error) {
	tx, err := crypto.NewDelegateRegistration(s.network, p.Username)
	if err != nil {
		return nil, model.Unprocessable(err.Error())
	}
	return s.build(ctx, tx, p.Fee, s.passphraseSigner(p.Passphrase))
}

// CreateVote signs a vote for p.PublicKey and caches it for broadcast
func (s *Service) CreateVote(ctx context.Context, p *model.VoteParams) (*crypto.Transaction, error) {
	return s.createVote(ctx, "+"+p.PublicKey, p)
}

// CreateUnvote signs an unvote for p.PublicKey and caches it for broadcast
func (s *Service) CreateUnvote(ctx context.Context, p *model.VoteParams) (*crypto.Transaction, error) {
	return s.createVote(ctx, "-"+p.PublicKey, p)
}

func (s *Service) createVote(ctx context.Context, vote string, p *model.VoteParams) (*crypto.Transaction, error) {
	delegate, err := crypto.AddressFromPublicKeyHex(p.PublicKey, s.network)
	if err != nil {
		return nil, model.Unprocessable(fmt.Sprintf("Delegate public key %s is invalid.", p.PublicKey))
	}

	tx, err := crypto.NewVote(s.network, vote)
	if err != nil {
		return nil, model.Unprocessable(err.Error())
	}
	s.log.Debug("building vote", zap.String("vote", vote[:1]), zap.String("delegate", delegate))
	return s.build(ctx, tx, p.Fee, s.passphraseSigner(p.Passphrase))
}

// CreateBIP38Transfer signs a transfer with the user's vault key and caches it for broadcast
func (s *Service) CreateBIP38Transfer(ctx context.Context, p *model.BIP38TransferParams) (*crypto.Transaction, error) {
	wallet, err := s.vault.Lookup(p.UserID, p.BIP38)
	if err != nil {
		return nil, s.vaultError(p.UserID, err)
	}

	sign, err := s.wifSigner(wallet.WIF)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vault key: %w", err)
	}

	tx, err := crypto.NewTransfer(s.network, p.RecipientID, uint64(p.Amount), p.VendorField)
	if err != nil {
		return nil, model.Unprocessable(err.Error())
	}
	return s.build(ctx, tx, p.Fee, sign)
}

// build resolves fee and nonce, signs, verifies and caches tx
func (s *Service) build(ctx context.Context, tx *crypto.Transaction, fee common.Amount, sign signer) (*crypto.Transaction, error) {
	s.applyFee(ctx, tx, fee)

	nonce, err := s.nextNonce(ctx, sign.address)
	if err != nil {
		return nil, err
	}
	tx.Nonce = nonce

	if err := sign.sign(tx); err != nil {
		return nil, model.Unprocessable(err.Error())
	}
	if !s.verify(tx) {
		return nil, model.Unprocessable("Failed to verify the transaction.")
	}

	if err := s.txs.Put(tx); err != nil {
		return nil, err
	}

	s.log.Info("created transaction",
		zap.String("id", tx.ID),
		zap.String("type", crypto.TypeName(tx.Type)),
		zap.String("sender", sign.address),
		zap.Stringer("amount", common.Amount(tx.Amount)),
		zap.Stringer("fee", common.Amount(tx.Fee)),
		zap.Uint64("nonce", tx.Nonce))
	return tx, nil
}

// nextNonce is the sender's current nonce plus one
func (s *Service) nextNonce(ctx context.Context, address string) (uint64, error) {
	failed := model.Unprocessable(fmt.Sprintf("Failed to retrieve the nonce for %s.", address))

	wallet, ok := data(s.relay.Get(ctx, "wallets/"+address, nil))
	if !ok || !wallet.Get("nonce").Exists() {
		return 0, failed
	}

	nonce, err := strconv.ParseUint(wallet.Get("nonce").String(), 10, 64)
	if err != nil {
		return 0, failed
	}
	return nonce + 1, nil
}

// Broadcast sends a cached transaction to the network
func (s *Service) Broadcast(ctx context.Context, id string) (*crypto.Transaction, error) {
	tx, err := s.txs.TakeForBroadcast(id)
	if errors.Is(err, txcache.ErrNotFound) {
		return nil, model.NotFound("Transaction %s could not be found.", id)
	}
	if err != nil {
		return nil, err
	}

	if !s.verify(tx) {
		return nil, model.Unprocessable("")
	}

	resp := s.relay.Post(ctx, "transactions", map[string]interface{}{
		"transactions": []*crypto.Transaction{tx},
	})
	if resp == nil {
		return nil, model.NotFound("Transaction %s could not be found.", id)
	}

	if rejected := resp.Get("errors"); rejected.IsObject() && len(rejected.Map()) > 0 {
		message := rejected.Get(tx.ID + ".0.message").String()
		if message == "" {
			rejected.ForEach(func(_, errs gjson.Result) bool {
				message = errs.Get("0.message").String()
				return message == ""
			})
		}
		s.log.Warn("node rejected transaction", zap.String("id", tx.ID), zap.String("reason", message))
		return nil, model.Unprocessable(message)
	}
	if !resp.OK() {
		s.log.Warn("node refused broadcast", zap.String("id", tx.ID), zap.Int("status", resp.Status))
		return nil, model.Unprocessable(resp.Get("message").String())
	}

	s.log.Info("broadcast transaction", zap.String("id", tx.ID))
	return tx, nil
}

func (s *Service) vaultError(userID string, err error) error {
	if errors.Is(err, vault.ErrNotFound) || errors.Is(err, vault.ErrDecryptionFailed) {
		return model.NotFound("User %s could not be found.", userID)
	}
	return err
}
