package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/IcodeNet/employee-scheduling-api/internal/api/jsonrpcx"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/document"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/setting"
	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
)

// SettingHandler exposes setting.Service over JSON-RPC 2.0
type SettingHandler struct {
	logger  *logger.Logger
	service *setting.Service
}

// NewSettingHandler creates a new setting handler
func NewSettingHandler(logger *logger.Logger, service *setting.Service) *SettingHandler {
	return &SettingHandler{
		logger:  logger.WithComponent("setting-handler"),
		service: service,
	}
}

// Request parameter structures
type GetSettingRequest struct {
	ID string `json:"id"`
}

type CreateSettingRequest struct {
	ID             string `json:"id,omitempty"` // generated when empty
	Language       string `json:"language"`
	Avatar         string `json:"avatar,omitempty"`
	CurrencyCode   string `json:"currencyCode"`
	CurrencySymbol string `json:"currencySymbol"`
}

type UpdateSettingRequest struct {
	ID             string           `json:"id"`
	Version        document.Version `json:"version" swaggertype:"string" example:"42"`
	Language       string           `json:"language"`
	Avatar         string           `json:"avatar,omitempty"`
	CurrencyCode   string           `json:"currencyCode"`
	CurrencySymbol string           `json:"currencySymbol"`
}

type PatchSettingRequest struct {
	ID      string           `json:"id"`
	Version document.Version `json:"version" swaggertype:"string" example:"42"`
	// RFC 7396 merge patch applied to the stored fields
	Patch json.RawMessage `json:"patch" swaggertype:"object"`
}

type RemoveSettingRequest struct {
	ID string `json:"id"`
}

// Response structures for Swagger documentation
type SettingResponse = setting.Setting

type ListSettingResponse struct {
	Settings []*setting.Setting `json:"settings"`
	Total    int                `json:"total"`
}

type RemoveSettingResponse struct {
	ID      string `json:"id"`
	Removed bool   `json:"removed"`
}

// Get handles POST /api/v1/setting.Get
// @Summary Get a setting
// @Tags setting
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[GetSettingRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[SettingResponse]
// @Failure default {object} jsonrpcx.ErrorResponse "-32004 not found"
// @Security BearerAuth
// @Router /api/v1/setting.Get [post]
func (h *SettingHandler) Get(w http.ResponseWriter, r *http.Request) {
	var params GetSettingRequest
	req, ok := decodeRequest(r, &params)
	if !ok {
		return
	}

	s, err := h.service.Get(r.Context(), strings.TrimSpace(params.ID))
	if err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}
	jsonrpcx.Success(w, req.ID, s)
}

// List handles POST /api/v1/setting.List
// @Summary List settings
// @Tags setting
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[any] true "JSON-RPC request, params ignored"
// @Success 200 {object} jsonrpcx.ResponseT[ListSettingResponse]
// @Security BearerAuth
// @Router /api/v1/setting.List [post]
func (h *SettingHandler) List(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(r, nil)
	if !ok {
		return
	}

	settings, err := h.service.List(r.Context())
	if err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}
	jsonrpcx.Success(w, req.ID, ListSettingResponse{Settings: settings, Total: len(settings)})
}

// Create handles POST /api/v1/setting.Create
// @Summary Create a setting
// @Description Inserts a new setting. Fails with -32009 when the id is taken.
// @Tags setting
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[CreateSettingRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[SettingResponse]
// @Failure default {object} jsonrpcx.ErrorResponse "-32602 invalid params, -32009 already exists"
// @Security BearerAuth
// @Router /api/v1/setting.Create [post]
func (h *SettingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var params CreateSettingRequest
	req, ok := decodeRequest(r, &params)
	if !ok {
		return
	}

	created, err := h.service.Create(r.Context(), &setting.Setting{
		Language:       params.Language,
		Avatar:         params.Avatar,
		CurrencyCode:   params.CurrencyCode,
		CurrencySymbol: params.CurrencySymbol,
	}, strings.TrimSpace(params.ID))
	if err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	h.logger.Info("Setting created",
		zap.String("id", created.ID),
		zap.Stringer("version", created.Version))
	jsonrpcx.Success(w, req.ID, created)
}

// Update handles POST /api/v1/setting.Update
// @Summary Replace a setting
// @Description Replaces every field. version must be the one last read, otherwise -32010.
// @Tags setting
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[UpdateSettingRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[SettingResponse]
// @Failure default {object} jsonrpcx.ErrorResponse "-32004 not found, -32010 version conflict"
// @Security BearerAuth
// @Router /api/v1/setting.Update [post]
func (h *SettingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var params UpdateSettingRequest
	req, ok := decodeRequest(r, &params)
	if !ok {
		return
	}

	updated, err := h.service.Update(r.Context(), &setting.Setting{
		ID:             strings.TrimSpace(params.ID),
		Version:        params.Version,
		Language:       params.Language,
		Avatar:         params.Avatar,
		CurrencyCode:   params.CurrencyCode,
		CurrencySymbol: params.CurrencySymbol,
	})
	if err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}
	jsonrpcx.Success(w, req.ID, updated)
}

// Patch handles POST /api/v1/setting.Patch
// @Summary Merge-patch a setting
// @Description Applies an RFC 7396 merge patch to the stored fields, guarded by version.
// @Tags setting
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[PatchSettingRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[SettingResponse]
// @Failure default {object} jsonrpcx.ErrorResponse "-32602 invalid patch, -32010 version conflict"
// @Security BearerAuth
// @Router /api/v1/setting.Patch [post]
func (h *SettingHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var params PatchSettingRequest
	req, ok := decodeRequest(r, &params)
	if !ok {
		return
	}
	if len(params.Patch) == 0 {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.InvalidParams, "patch is required")
		return
	}

	patched, err := h.service.Patch(r.Context(), strings.TrimSpace(params.ID), params.Version, params.Patch)
	if err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}
	jsonrpcx.Success(w, req.ID, patched)
}

// Remove handles POST /api/v1/setting.Remove
// @Summary Remove a setting
// @Tags setting
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[RemoveSettingRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[RemoveSettingResponse]
// @Failure default {object} jsonrpcx.ErrorResponse "-32004 not found"
// @Security BearerAuth
// @Router /api/v1/setting.Remove [post]
func (h *SettingHandler) Remove(w http.ResponseWriter, r *http.Request) {
	var params RemoveSettingRequest
	req, ok := decodeRequest(r, &params)
	if !ok {
		return
	}

	id := strings.TrimSpace(params.ID)
	if err := h.service.Remove(r.Context(), id); err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	h.logger.Info("Setting removed", zap.String("id", id))
	jsonrpcx.Success(w, req.ID, RemoveSettingResponse{ID: id, Removed: true})
}
