package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/AlexZinkM/exchange-json-rpc/internal/model"

	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

// Caller runs one JSON-RPC method
type Caller interface {
	Call(ctx context.Context, method string, params json.RawMessage) (interface{}, *model.RPCError)
}

// RPCHandler serves JSON-RPC 2.0 requests, single or batched.
// Every answer is sent with HTTP 200, failures live in the error member.
type RPCHandler struct {
	methods Caller
	log     *zap.Logger
}

// NewRPCHandler creates the JSON-RPC endpoint
func NewRPCHandler(methods Caller, log *zap.Logger) *RPCHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RPCHandler{methods: methods, log: log}
}

// ServeHTTP handles POST /
// @Summary      JSON-RPC 2.0 endpoint
// @Description  Runs one request object or a batch array. Method errors use HTTP-style codes (404, 422, 500) inside the error member.
// @Tags         rpc
// @Accept       json
// @Produce      json
// @Param        request  body      model.Request   true  "JSON-RPC request"
// @Success      200      {object}  model.Response
// @Failure      403      "remote address is not whitelisted"
// @Failure      413      {object}  model.Response
// @Router       / [post]
func (h *RPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, model.NewError(nil, model.InvalidRequest("Request body too large")))
			return
		}
		writeJSON(w, http.StatusOK, model.NewError(nil, model.ParseError()))
		return
	}

	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		writeJSON(w, http.StatusOK, model.NewError(nil, model.ParseError()))
		return
	}

	if body[0] != '[' {
		writeJSON(w, http.StatusOK, h.process(r.Context(), body))
		return
	}

	var batch []json.RawMessage
	if err := json.Unmarshal(body, &batch); err != nil || len(batch) == 0 {
		writeJSON(w, http.StatusOK, model.NewError(nil, model.InvalidRequest("")))
		return
	}

	responses := make([]*model.Response, 0, len(batch))
	for _, raw := range batch {
		responses = append(responses, h.process(r.Context(), raw))
	}
	writeJSON(w, http.StatusOK, responses)
}

// process answers one request object
func (h *RPCHandler) process(ctx context.Context, raw json.RawMessage) *model.Response {
	var req model.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return model.NewError(nil, model.InvalidRequest(""))
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return model.NewError(req.ID, model.InvalidRequest(""))
	}

	result, rpcErr := h.methods.Call(ctx, req.Method, req.Params)
	if rpcErr != nil {
		h.log.Debug("rpc call failed",
			zap.String("method", req.Method),
			zap.Int("code", rpcErr.Code),
			zap.String("message", rpcErr.Message))
		return model.NewError(req.ID, rpcErr)
	}
	return model.NewResult(req.ID, result)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
