package handlers

import (
	"net/http"

	"github.com/IcodeNet/employee-scheduling-api/internal/api/jsonrpcx"
)

// decodeRequest parses the JSON-RPC envelope and, when params is non-nil,
// its params. On failure the error is recorded on r and ok is false.
func decodeRequest(r *http.Request, params any) (*jsonrpcx.JSONRPCRequest, bool) {
	if r.Method != http.MethodPost {
		jsonrpcx.WithError(r, nil, jsonrpcx.MethodNotFound, "Method not allowed")
		return nil, false
	}

	req, err := jsonrpcx.ParseRequest(r)
	if err != nil {
		jsonrpcx.WithError(r, nil, jsonrpcx.ParseError, "Invalid JSON-RPC request")
		return nil, false
	}

	if params != nil {
		if err := req.DecodeParams(params); err != nil {
			jsonrpcx.WithError(r, req.ID, jsonrpcx.InvalidParams, "Invalid params")
			return nil, false
		}
	}
	return req, true
}
