package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/AlexZinkM/exchange-json-rpc/ark"
	"github.com/AlexZinkM/exchange-json-rpc/internal/crypto"
	"github.com/AlexZinkM/exchange-json-rpc/internal/metrics"
	"github.com/AlexZinkM/exchange-json-rpc/internal/model"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var blockIDPattern = regexp.MustCompile(`^([0-9a-fA-F]{64}|[0-9]{1,20})$`)

// method decodes and validates its params, then calls the service
type method func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Methods is the JSON-RPC method table
type Methods struct {
	svc      *ark.Service
	validate *validator.Validate
	table    map[string]method
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewMethods registers every gateway method
func NewMethods(svc *ark.Service, log *zap.Logger, m *metrics.Metrics) *Methods {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Methods{
		svc:      svc,
		validate: newValidator(svc.Network()),
		log:      log,
		metrics:  m,
	}

	h.table = map[string]method{
		"blocks.info": withParams(h, func(ctx context.Context, p *model.IDParams) (interface{}, error) {
			return svc.BlockInfo(ctx, p.ID)
		}),
		"blocks.latest": func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
			return svc.LatestBlock(ctx)
		},
		"blocks.transactions": withParams(h, func(ctx context.Context, p *model.BlockTransactionsParams) (interface{}, error) {
			return svc.BlockTransactions(ctx, p.ID, p.Offset)
		}),
		"transactions.info": withParams(h, func(ctx context.Context, p *model.TransactionIDParams) (interface{}, error) {
			return svc.TransactionInfo(ctx, p.ID)
		}),
		"transactions.broadcast": withParams(h, func(ctx context.Context, p *model.TransactionIDParams) (interface{}, error) {
			return svc.Broadcast(ctx, p.ID)
		}),
		"transactions.create": withParams(h, func(ctx context.Context, p *model.TransferParams) (interface{}, error) {
			return svc.CreateTransfer(ctx, p)
		}),
		"transactions.transfer.create": withParams(h, func(ctx context.Context, p *model.TransferParams) (interface{}, error) {
			return svc.CreateTransfer(ctx, p)
		}),
		"transactions.delegateRegistration.create": withParams(h, func(ctx context.Context, p *model.DelegateRegistrationParams) (interface{}, error) {
			return svc.CreateDelegateRegistration(ctx, p)
		}),
		"transactions.vote.create": withParams(h, func(ctx context.Context, p *model.VoteParams) (interface{}, error) {
			return svc.CreateVote(ctx, p)
		}),
		"transactions.unvote.create": withParams(h, func(ctx context.Context, p *model.VoteParams) (interface{}, error) {
			return svc.CreateUnvote(ctx, p)
		}),
		"transactions.bip38.create": withParams(h, func(ctx context.Context, p *model.BIP38TransferParams) (interface{}, error) {
			return svc.CreateBIP38Transfer(ctx, p)
		}),
		"wallets.create": withParams(h, func(_ context.Context, p *model.WalletCreateParams) (interface{}, error) {
			return svc.CreateWallet(p.Passphrase)
		}),
		"wallets.info": withParams(h, func(ctx context.Context, p *model.AddressParams) (interface{}, error) {
			return svc.WalletInfo(ctx, p.Address)
		}),
		"wallets.transactions": withParams(h, func(ctx context.Context, p *model.WalletTransactionsParams) (interface{}, error) {
			return svc.WalletTransactions(ctx, p.Address, p.Offset)
		}),
		"wallets.bip38.create": withParams(h, func(_ context.Context, p *model.BIP38Params) (interface{}, error) {
			return svc.BIP38CreateWallet(p.UserID, p.BIP38)
		}),
		"wallets.bip38.info": withParams(h, func(_ context.Context, p *model.BIP38Params) (interface{}, error) {
			return svc.BIP38WalletInfo(p.UserID, p.BIP38)
		}),
	}
	return h
}

// Names lists the registered methods
func (h *Methods) Names() []string {
	names := make([]string, 0, len(h.table))
	for name := range h.table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call runs a method. Every failure is returned as an RPC error:
// unknown method, invalid params (422), domain errors as is, anything else 500.
func (h *Methods) Call(ctx context.Context, name string, params json.RawMessage) (interface{}, *model.RPCError) {
	fn, ok := h.table[name]
	if !ok {
		h.metrics.ObserveRPC("unknown", model.CodeMethodNotFound)
		return nil, model.MethodNotFound(name)
	}

	result, err := fn(ctx, params)
	if err != nil {
		var rpcErr *model.RPCError
		if !errors.As(err, &rpcErr) {
			h.log.Error("method failed", zap.String("method", name), zap.Error(err))
			rpcErr = model.Internal()
		}
		h.metrics.ObserveRPC(name, rpcErr.Code)
		return nil, rpcErr
	}

	h.metrics.ObserveRPC(name, 0)
	return result, nil
}

// withParams decodes params into P and validates it before calling fn
func withParams[P any](h *Methods, fn func(ctx context.Context, p *P) (interface{}, error)) method {
	return func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		p := new(P)
		if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			if err := json.Unmarshal(raw, p); err != nil {
				return nil, model.Unprocessable(fmt.Sprintf("invalid params: %v", err))
			}
		}
		if err := h.validate.Struct(p); err != nil {
			return nil, model.Unprocessable(validationMessage(err))
		}
		return fn(ctx, p)
	}
}

func newValidator(network crypto.Network) *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("address", func(fl validator.FieldLevel) bool {
		return crypto.ValidateAddress(fl.Field().String(), network)
	})
	_ = v.RegisterValidation("blockid", func(fl validator.FieldLevel) bool {
		return blockIDPattern.MatchString(fl.Field().String())
	})
	return v
}

// validationMessage renders validator errors as "params.id is required; ..."
func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := "params." + fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "address":
			msgs = append(msgs, field+" must be a valid address")
		case "blockid":
			msgs = append(msgs, field+" must be a valid block id")
		case "hexadecimal":
			msgs = append(msgs, field+" must be hexadecimal")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(msgs, "; ")
}
