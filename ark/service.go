package ark

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/AlexZinkM/exchange-json-rpc/internal/client"
	"github.com/AlexZinkM/exchange-json-rpc/internal/crypto"
	"github.com/AlexZinkM/exchange-json-rpc/internal/txcache"
	"github.com/AlexZinkM/exchange-json-rpc/internal/vault"

	"github.com/patrickmn/go-cache"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const defaultFeeTTL = time.Minute

// Relay sends requests to the node API.
// A nil response means no peer answered.
type Relay interface {
	Get(ctx context.Context, path string, query url.Values) *client.Response
	Post(ctx context.Context, path string, body interface{}) *client.Response
}

// Service implements the gateway operations on top of the node API,
// the transaction cache and the vault.
type Service struct {
	relay   Relay
	txs     *txcache.Cache
	vault   *vault.Vault
	network crypto.Network
	fees    *cache.Cache
	log     *zap.Logger

	// verify checks a signed transaction before it is cached or broadcast
	verify func(*crypto.Transaction) bool
}

// Options for NewService
type Options struct {
	Network     crypto.Network
	FeeCacheTTL time.Duration
	Logger      *zap.Logger
}

// NewService wires the domain operations
func NewService(relay Relay, txs *txcache.Cache, v *vault.Vault, opts Options) *Service {
	if opts.FeeCacheTTL <= 0 {
		opts.FeeCacheTTL = defaultFeeTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		relay:   relay,
		txs:     txs,
		vault:   v,
		network: opts.Network,
		fees:    cache.New(opts.FeeCacheTTL, 2*opts.FeeCacheTTL),
		log:     opts.Logger,
		verify:  (*crypto.Transaction).VerifyHash,
	}
}

// Network the service signs for
func (s *Service) Network() crypto.Network {
	return s.network
}

// data returns the "data" member of a successful node response
func data(resp *client.Response) (gjson.Result, bool) {
	if !resp.OK() {
		return gjson.Result{}, false
	}
	d := resp.Data()
	return d, d.Exists() && d.Type != gjson.Null
}

func raw(r gjson.Result) json.RawMessage {
	return json.RawMessage(r.Raw)
}
