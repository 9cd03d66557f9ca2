package lsp

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Standard errors returned by the LSP client.
var (
	// ErrShutdown indicates the connection has been shut down.
	ErrShutdown = errors.New("lsp connection shut down")

	// ErrNotStarted indicates the server process has not been started.
	ErrNotStarted = errors.New("lsp server not started")

	// ErrNotSupported indicates the server does not support the requested feature.
	ErrNotSupported = errors.New("feature not supported by server")

	// ErrInvalidResponse indicates an invalid response from the server.
	ErrInvalidResponse = errors.New("invalid response from server")

	// ErrRangeInvalid indicates a position or range outside the document.
	ErrRangeInvalid = errors.New("range outside document")

	// ErrEditsOverlap indicates two edits of one batch touch the same text.
	ErrEditsOverlap = errors.New("overlapping edits")
)

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsCancelled reports whether the server answered a request as cancelled.
func (e *RPCError) IsCancelled() bool {
	return e.Code == CodeRequestCancelled || e.Code == CodeServerCancelled
}

// Standard JSON-RPC error codes.
const (
	// JSON-RPC standard errors
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// LSP-specific errors
	CodeServerNotInitialized = -32002
	CodeUnknownErrorCode     = -32001
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
	CodeServerCancelled      = -32802
	CodeRequestFailed        = -32803
)

// ServerError represents an error related to server lifecycle.
type ServerError struct {
	LanguageID string
	Err        error
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("server %s: %v", e.LanguageID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ServerError) Unwrap() error {
	return e.Err
}
