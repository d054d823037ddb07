package model

import "encoding/json"

// Request is a JSON-RPC 2.0 request object
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response object
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// NewResult wraps a method result
func NewResult(id json.RawMessage, result interface{}) *Response {
	return &Response{JSONRPC: "2.0", ID: nullID(id), Result: result}
}

// NewError wraps an error
func NewError(id json.RawMessage, err *RPCError) *Response {
	return &Response{JSONRPC: "2.0", ID: nullID(id), Error: err}
}

func nullID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
