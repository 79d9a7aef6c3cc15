package jsonrpcx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/IcodeNet/employee-scheduling-api/internal/domain/auth"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/document"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/shared"
)

// Version is the only protocol version accepted
const Version = "2.0"

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// JSONRPCRequest represents a JSON-RPC 2.0 request
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	Result  any           `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
	ID      any           `json:"id,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JsonRpcNotification is a server-pushed JSON-RPC 2.0 notification (no id)
type JsonRpcNotification struct {
	Jsonrpc string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// NewNotification builds a notification for method
func NewNotification(method string, params interface{}) JsonRpcNotification {
	return JsonRpcNotification{Jsonrpc: Version, Method: method, Params: params}
}

// JSON-RPC 2.0 error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Application error codes in the implementation-defined server range
const (
	Unauthorized    = -32001
	NotFound        = -32004
	AlreadyExists   = -32009
	VersionConflict = -32010
	RateLimited     = -32029
)

// ParseRequest parses JSON-RPC 2.0 request from HTTP request body
func ParseRequest(r *http.Request) (*JSONRPCRequest, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}

	if req.JSONRPC != Version {
		return nil, fmt.Errorf("unsupported jsonrpc version %q", req.JSONRPC)
	}

	return &req, nil
}

// DecodeParams unmarshals the request params into v
func (req *JSONRPCRequest) DecodeParams(v any) error {
	if len(req.Params) == 0 {
		return fmt.Errorf("missing params")
	}
	return json.Unmarshal(req.Params, v)
}

// Success sends a successful JSON-RPC 2.0 response
func Success(w http.ResponseWriter, id any, result any) {
	response := JSONRPCResponse{
		JSONRPC: Version,
		Result:  result,
		ID:      id,
	}

	Response(w, response)
}

type errorSlotKey struct{}

// errorSlot is installed once per request by the error adapter middleware.
// Handlers deeper in the chain write into it, so the error survives any
// r.WithContext copies made in between.
type errorSlot struct {
	response *JSONRPCResponse
}

// WithErrorSlot returns r carrying an empty error slot
func WithErrorSlot(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), errorSlotKey{}, &errorSlot{}))
}

// ErrorFrom returns the error response recorded for the request, if any
func ErrorFrom(ctx context.Context) (*JSONRPCResponse, bool) {
	slot, ok := ctx.Value(errorSlotKey{}).(*errorSlot)
	if !ok || slot.response == nil {
		return nil, false
	}
	return slot.response, true
}

// WithError records an error response for the error adapter middleware to send
func WithError(r *http.Request, id any, code int, message string) {
	response := &JSONRPCResponse{
		JSONRPC: Version,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
		ID: id,
	}

	if slot, ok := r.Context().Value(errorSlotKey{}).(*errorSlot); ok {
		slot.response = response
		return
	}

	// no adapter upstream; attach a slot to this request so callers holding r still see it
	slot := &errorSlot{response: response}
	*r = *r.WithContext(context.WithValue(r.Context(), errorSlotKey{}, slot))
}

// WithDomainError records err translated by FromError
func WithDomainError(r *http.Request, id any, err error) {
	code, message := FromError(err)
	WithError(r, id, code, message)
}

// FromError maps a domain error onto a JSON-RPC error code and client message
func FromError(err error) (int, string) {
	switch {
	case err == nil:
		return InternalError, "Internal server error"
	case document.IsNotFound(err), errors.Is(err, shared.ErrKindNotFound):
		return NotFound, "Not found"
	case document.IsAlreadyExists(err), errors.Is(err, shared.ErrKindAlreadyExists):
		return AlreadyExists, "Already exists"
	case document.IsVersionConflict(err):
		return VersionConflict, "Version conflict: document was modified, re-read and retry"
	case shared.IsInvalidInput(err):
		return InvalidParams, err.Error()
	case auth.IsInvalidCredentials(err):
		return Unauthorized, "Invalid credentials"
	case shared.IsUnauthorized(err):
		return Unauthorized, "Unauthorized"
	case document.IsDurabilityUnconfirmed(err):
		return InternalError, "Write not confirmed durable: re-read before retrying"
	case document.IsBackend(err):
		return InternalError, "Storage backend error"
	default:
		return InternalError, "Internal server error"
	}
}

// ErrorAdapter interface for middleware to send error responses
type ErrorAdapter interface {
	SendError(w http.ResponseWriter, id any, code int, message string)
}

type errorAdapter struct{}

// NewErrorAdapter creates a new error adapter for middleware use
func NewErrorAdapter() ErrorAdapter {
	return &errorAdapter{}
}

// SendError sends an error JSON-RPC 2.0 response
func (ea *errorAdapter) SendError(w http.ResponseWriter, id any, code int, message string) {
	response := JSONRPCResponse{
		JSONRPC: Version,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
		ID: id,
	}

	Response(w, response)
}

// Response sends a JSON-RPC 2.0 response (always HTTP 200)
func Response(w http.ResponseWriter, response JSONRPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	_ = json.NewEncoder(w).Encode(response)
}
