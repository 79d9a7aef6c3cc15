package handlers

import (
	"net/http"
	"time"

	"github.com/IcodeNet/employee-scheduling-api/internal/api/jsonrpcx"
)

// ServerInfoResponse represents server information
type ServerInfoResponse struct {
	Version   string    `json:"version"`
	Backend   string    `json:"backend"`
	Events    string    `json:"events"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

// ServerHandler handles server information requests
type ServerHandler struct {
	version   string
	backend   string
	events    string
	startedAt time.Time
}

// NewServerHandler creates a new server handler. events is "enabled" or
// "disabled".
func NewServerHandler(version, backend, events string) *ServerHandler {
	return &ServerHandler{
		version:   version,
		backend:   backend,
		events:    events,
		startedAt: time.Now().UTC(),
	}
}

// Info handles POST /api/v1/server.Info
// @Summary Server information
// @Tags server
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[any] true "JSON-RPC request, params ignored"
// @Success 200 {object} jsonrpcx.ResponseT[ServerInfoResponse]
// @Router /api/v1/server.Info [post]
func (h *ServerHandler) Info(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(r, nil)
	if !ok {
		return
	}

	jsonrpcx.Success(w, req.ID, ServerInfoResponse{
		Version:   h.version,
		Backend:   h.backend,
		Events:    h.events,
		StartedAt: h.startedAt,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
	})
}
