package model

import (
	"fmt"
	"net/http"
)

// JSON-RPC protocol error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
)

// RPCError is the error member of a JSON-RPC response.
// Method failures use HTTP status codes.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// NotFound is a 404 error
func NotFound(format string, args ...interface{}) *RPCError {
	return &RPCError{Code: http.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unprocessable is a 422 error; an empty message uses the status text
func Unprocessable(message string) *RPCError {
	if message == "" {
		message = http.StatusText(http.StatusUnprocessableEntity)
	}
	return &RPCError{Code: http.StatusUnprocessableEntity, Message: message}
}

// Internal is the 500 error returned for unexpected failures
func Internal() *RPCError {
	return &RPCError{Code: http.StatusInternalServerError, Message: "An internal server error occurred"}
}

// ParseError is returned for a body that is not JSON
func ParseError() *RPCError {
	return &RPCError{Code: CodeParseError, Message: "Parse error"}
}

// InvalidRequest is returned for a malformed request object
func InvalidRequest(message string) *RPCError {
	if message == "" {
		message = "Invalid Request"
	}
	return &RPCError{Code: CodeInvalidRequest, Message: message}
}

// MethodNotFound is returned for an unknown method
func MethodNotFound(method string) *RPCError {
	return &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("The method %q does not exist.", method)}
}
