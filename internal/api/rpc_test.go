package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/AlexZinkM/exchange-json-rpc/ark"
	"github.com/AlexZinkM/exchange-json-rpc/internal/client"
	"github.com/AlexZinkM/exchange-json-rpc/internal/crypto"
	"github.com/AlexZinkM/exchange-json-rpc/internal/handler"
	"github.com/AlexZinkM/exchange-json-rpc/internal/metrics"
	"github.com/AlexZinkM/exchange-json-rpc/internal/model"
	"github.com/AlexZinkM/exchange-json-rpc/internal/store"
	"github.com/AlexZinkM/exchange-json-rpc/internal/txcache"
	"github.com/AlexZinkM/exchange-json-rpc/internal/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nodeStub answers relay GETs from a table of paths
type nodeStub map[string]string

func (n nodeStub) Get(_ context.Context, path string, _ url.Values) *client.Response {
	body, ok := n[path]
	if !ok {
		return nil
	}
	return &client.Response{Status: http.StatusOK, Body: []byte(body)}
}

func (n nodeStub) Post(context.Context, string, interface{}) *client.Response {
	return nil
}

func newTestRouter(t *testing.T, opts Options) http.Handler {
	t.Helper()

	network, err := crypto.NetworkByName("devnet")
	require.NoError(t, err)

	s, err := store.Open(t.TempDir()+"/"+store.FileName, store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	relay := nodeStub{
		"blocks/1234": `{"data":{"id":"1234","height":7}}`,
		"blocks":      `{"data":[{"id":"top","height":8}]}`,
	}
	svc := ark.NewService(relay, txcache.New(s), vault.New(s, network, nil), ark.Options{Network: network})
	return SetupRouter(handler.NewMethods(svc, nil, opts.Metrics), opts)
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.RemoteAddr = "127.0.0.1:50000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) model.Response {
	t.Helper()
	var resp struct {
		model.Response
		Result json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	resp.Response.Result = resp.Result
	return resp.Response
}

func TestRPCBlockInfo(t *testing.T) {
	h := newTestRouter(t, Options{})

	rec := post(t, h, `{"jsonrpc":"2.0","id":1,"method":"blocks.info","params":{"id":"1234"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{"id":"1234","height":7}}`, rec.Body.String())

	rec = post(t, h, `{"jsonrpc":"2.0","id":"abc","method":"blocks.info","params":{"id":"99"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"abc","error":{"code":404,"message":"Block 99 could not be found."}}`, rec.Body.String())
}

func TestRPCProtocolErrors(t *testing.T) {
	h := newTestRouter(t, Options{})

	tests := []struct {
		name string
		body string
		code int
		id   string
	}{
		{"not json", `{"jsonrpc":`, model.CodeParseError, "null"},
		{"empty body", ``, model.CodeParseError, "null"},
		{"wrong version", `{"jsonrpc":"1.0","id":2,"method":"blocks.latest"}`, model.CodeInvalidRequest, "2"},
		{"missing method", `{"jsonrpc":"2.0","id":3}`, model.CodeInvalidRequest, "3"},
		{"not an object", `"blocks.latest"`, model.CodeInvalidRequest, "null"},
		{"empty batch", `[]`, model.CodeInvalidRequest, "null"},
		{"unknown method", `{"jsonrpc":"2.0","id":4,"method":"blocks.burn"}`, model.CodeMethodNotFound, "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, tt.body)
			require.Equal(t, http.StatusOK, rec.Code)

			resp := decodeResponse(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.id, string(resp.ID))
		})
	}
}

func TestRPCBatch(t *testing.T) {
	h := newTestRouter(t, Options{})

	rec := post(t, h, `[
		{"jsonrpc":"2.0","id":1,"method":"blocks.latest"},
		{"jsonrpc":"2.0","id":2,"method":"blocks.info","params":{"id":"nope"}},
		42
	]`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"jsonrpc":"2.0","id":1,"result":{"id":"top","height":8}},
		{"jsonrpc":"2.0","id":2,"error":{"code":422,"message":"params.id must be a valid block id"}},
		{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"Invalid Request"}}
	]`, rec.Body.String())
}

func TestRPCBodyLimit(t *testing.T) {
	h := newTestRouter(t, Options{})

	huge := `{"jsonrpc":"2.0","id":1,"method":"blocks.latest","params":{"pad":"` + strings.Repeat("a", maxBodySize) + `"}}`
	rec := post(t, h, huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRPCOnlyAcceptsPost(t *testing.T) {
	h := newTestRouter(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:50000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsAndSwagger(t *testing.T) {
	h := newTestRouter(t, Options{Metrics: metrics.New()})
	post(t, h, `{"jsonrpc":"2.0","id":1,"method":"blocks.latest"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "127.0.0.1:50000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `exchange_json_rpc_rpc_calls_total{code="0",method="blocks.latest"} 1`)

	req = httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
	req.RemoteAddr = "127.0.0.1:50000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "JSON-RPC 2.0 endpoint")
}
