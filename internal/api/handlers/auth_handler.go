package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/IcodeNet/employee-scheduling-api/internal/api/jsonrpcx"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/auth"
	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
)

// AuthHandler handles local username/password authentication
type AuthHandler struct {
	logger  *logger.Logger
	service *auth.Service
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(logger *logger.Logger, service *auth.Service) *AuthHandler {
	return &AuthHandler{
		logger:  logger.WithComponent("auth-handler"),
		service: service,
	}
}

// CredentialsRequest carries a username and password
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse represents a newly registered user
type RegisterResponse = auth.User

// LoginResponse represents a successful login
type LoginResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

// Register handles POST /api/v1/auth.Register
// @Summary Register a local user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[CredentialsRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[RegisterResponse]
// @Failure default {object} jsonrpcx.ErrorResponse "-32602 invalid params, -32009 username taken"
// @Router /api/v1/auth.Register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var params CredentialsRequest
	req, ok := decodeRequest(r, &params)
	if !ok {
		return
	}

	user, err := h.service.Register(r.Context(), params.Username, params.Password)
	if err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	h.logger.Info("User registered",
		zap.String("userId", user.ID),
		zap.String("username", user.Username))
	jsonrpcx.Success(w, req.ID, user)
}

// Login handles POST /api/v1/auth.Login
// @Summary Log in with username and password
// @Description Returns a bearer token for the setting endpoints. Unknown users and wrong passwords both fail with -32001.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[CredentialsRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[LoginResponse]
// @Failure default {object} jsonrpcx.ErrorResponse "-32001 invalid credentials"
// @Router /api/v1/auth.Login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var params CredentialsRequest
	req, ok := decodeRequest(r, &params)
	if !ok {
		return
	}

	token, user, err := h.service.Login(r.Context(), params.Username, params.Password)
	if err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}
	jsonrpcx.Success(w, req.ID, LoginResponse{Token: token, User: user})
}
