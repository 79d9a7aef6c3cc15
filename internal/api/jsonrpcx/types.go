package jsonrpcx

// RequestT is the typed request envelope used in API documentation
type RequestT[T any] struct {
	JSONRPC string `json:"jsonrpc" example:"2.0"`
	Method  string `json:"method" example:"setting.Get"`
	Params  T      `json:"params"`
	ID      any    `json:"id" swaggertype:"integer" example:"1"`
}

// ResponseT is the typed success envelope used in API documentation
type ResponseT[T any] struct {
	JSONRPC string `json:"jsonrpc" example:"2.0"`
	Result  T      `json:"result"`
	ID      any    `json:"id" swaggertype:"integer" example:"1"`
}

// ErrorResponse is the error envelope used in API documentation
type ErrorResponse struct {
	JSONRPC string       `json:"jsonrpc" example:"2.0"`
	Error   JSONRPCError `json:"error"`
	ID      any          `json:"id" swaggertype:"integer" example:"1"`
}
