package handler

import (
	"net/http"

	"capture-service/internal/audit"
	"capture-service/internal/service"

	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	authService *service.AuthService
	auditLogger *audit.Logger
}

func NewAuthHandler(authService *service.AuthService, auditLogger *audit.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, auditLogger: auditLogger}
}

type SignupRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

type SignupResponse struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}

	u, err := h.authService.Signup(c.Request().Context(), req.Email, req.FullName, req.Password)
	if err != nil {
		return err
	}

	if h.auditLogger != nil {
		h.auditLogger.LogFromContext(c, audit.ResourceTypeUser, &u.ID, audit.ActionSignup, audit.StatusSuccess, nil)
	}

	return c.JSON(http.StatusCreated, SignupResponse{
		UserID:   u.ID.String(),
		Email:    u.Email,
		FullName: u.FullName,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}

	token, u, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	if h.auditLogger != nil {
		h.auditLogger.LogFromContext(c, audit.ResourceTypeUser, &u.ID, audit.ActionLogin, audit.StatusSuccess, nil)
	}

	return c.JSON(http.StatusOK, LoginResponse{Token: token})
}
