package ark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/AlexZinkM/exchange-json-rpc/internal/client"
	"github.com/AlexZinkM/exchange-json-rpc/internal/crypto"
	"github.com/AlexZinkM/exchange-json-rpc/internal/model"
	"github.com/AlexZinkM/exchange-json-rpc/internal/store"
	"github.com/AlexZinkM/exchange-json-rpc/internal/txcache"
	"github.com/AlexZinkM/exchange-json-rpc/internal/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPassphrase = "this is a top secret passphrase"
	testAddress    = "D61mfSggzbvQgTUe6JhYKH2doHaqJ3Dyib"
	testPublicKey  = "034151a3ec46b5670a682b0a63394f863587d1bc97483b1b6c70eb58e7f0aed192"
	testUserID     = "abcdef0123"
)

// fakeNode answers the node API endpoints the service uses
type fakeNode struct {
	mu sync.Mutex

	blocks     map[string]string
	nonce      string
	feeAvg     string
	feeCalls   int
	walletTxs  string
	rejectWith string
	broadcasts []json.RawMessage
	queries    map[string]url.Values
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		blocks:    map[string]string{"1234": `{"id":"1234","height":10}`},
		nonce:     "5",
		feeAvg:    "9000000",
		walletTxs: `[{"id":"a"},{"id":"b"}]`,
		queries:   map[string]url.Values{},
	}
}

func (n *fakeNode) notFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprint(w, `{"statusCode":404,"error":"Not Found","message":"Not Found"}`)
}

func (n *fakeNode) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/blocks", func(w http.ResponseWriter, r *http.Request) {
		n.record("blocks", r)
		fmt.Fprint(w, `{"data":[{"id":"latest","height":99}]}`)
	})
	mux.HandleFunc("GET /api/blocks/{id}", func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		block, ok := n.blocks[r.PathValue("id")]
		n.mu.Unlock()
		if !ok {
			n.notFound(w)
			return
		}
		fmt.Fprintf(w, `{"data":%s}`, block)
	})
	mux.HandleFunc("GET /api/blocks/{id}/transactions", func(w http.ResponseWriter, r *http.Request) {
		n.record("block-transactions", r)
		fmt.Fprint(w, `{"meta":{"totalCount":42},"data":[{"id":"t1"}]}`)
	})
	mux.HandleFunc("GET /api/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "feed" {
			n.notFound(w)
			return
		}
		fmt.Fprint(w, `{"data":{"id":"feed"}}`)
	})
	mux.HandleFunc("GET /api/node/fees", func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		n.feeCalls++
		avg := n.feeAvg
		n.mu.Unlock()
		n.record("fees", r)
		if avg == "" {
			fmt.Fprint(w, `{"data":{}}`)
			return
		}
		fmt.Fprintf(w, `{"data":{"1":{"transfer":{"avg":%q},"vote":{"avg":%q}}}}`, avg, avg)
	})
	mux.HandleFunc("GET /api/wallets/{address}", func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		nonce := n.nonce
		n.mu.Unlock()
		if nonce == "" {
			n.notFound(w)
			return
		}
		fmt.Fprintf(w, `{"data":{"address":%q,"nonce":%q}}`, r.PathValue("address"), nonce)
	})
	mux.HandleFunc("GET /api/wallets/{address}/transactions", func(w http.ResponseWriter, r *http.Request) {
		n.record("wallet-transactions", r)
		n.mu.Lock()
		txs := n.walletTxs
		n.mu.Unlock()
		fmt.Fprintf(w, `{"meta":{"totalCount":2},"data":%s}`, txs)
	})
	mux.HandleFunc("POST /api/transactions", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		n.mu.Lock()
		n.broadcasts = append(n.broadcasts, body)
		reject := n.rejectWith
		n.mu.Unlock()

		var req struct {
			Transactions []crypto.Transaction `json:"transactions"`
		}
		_ = json.Unmarshal(body, &req)
		id := req.Transactions[0].ID

		if reject != "" {
			fmt.Fprintf(w, `{"data":{"accept":[],"invalid":[%q]},"errors":{%q:[{"type":"ERR_APPLY","message":%q}]}}`, id, id, reject)
			return
		}
		fmt.Fprintf(w, `{"data":{"accept":[%q],"broadcast":[%q]}}`, id, id)
	})
	return mux
}

func (n *fakeNode) set(fn func(n *fakeNode)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fn(n)
}

func (n *fakeNode) query(name string) url.Values {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.queries[name]
}

func (n *fakeNode) feeRequests() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.feeCalls
}

func (n *fakeNode) sent() []json.RawMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]json.RawMessage(nil), n.broadcasts...)
}

func (n *fakeNode) record(name string, r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queries[name] = r.URL.Query()
}

func newTestService(t *testing.T, node *fakeNode) (*Service, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(node.handler())
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	dir := client.NewDirectory(client.DirectoryOptions{Network: "devnet", Peer: "127.0.0.1", PeerPort: port}, srv.Client(), nil, nil, nil)
	require.NoError(t, dir.Init(context.Background()))
	relay := client.NewRelay(dir, srv.Client(), client.RelayOptions{}, nil, nil)

	s, err := store.Open(filepath.Join(t.TempDir(), store.FileName), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	network, err := crypto.NetworkByName("devnet")
	require.NoError(t, err)

	svc := NewService(relay, txcache.New(s), vault.New(s, network, nil), Options{Network: network})
	return svc, srv
}

func requireRPCError(t *testing.T, err error, code int, message string) {
	t.Helper()
	var rpcErr *model.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, code, rpcErr.Code)
	if message != "" {
		assert.Equal(t, message, rpcErr.Message)
	}
}
