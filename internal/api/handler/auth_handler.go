package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/service"
	"github.com/khalilhajj/PfeManagement/pkg/response"
)

// AuthHandler authentication endpoints.
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Login issues a token pair.
// POST /api/v1/auth/login/
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, result)
}

// RefreshToken rotates the refresh token.
// POST /api/v1/auth/refresh/
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, result)
}

// Logout revokes the access token of the request.
// POST /api/v1/auth/logout/
func (h *AuthHandler) Logout(c *gin.Context) {
	jti, exp := tokenOf(c)
	if err := h.authSvc.Logout(c.Request.Context(), jti, exp); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, nil)
}

// GetCurrentUser returns the caller's profile.
// GET /api/v1/auth/me/
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	me, err := h.authSvc.Me(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, me)
}

// ChangePassword PUT /api/v1/auth/password/
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.authSvc.ChangePassword(c.Request.Context(), p, &req); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, nil)
}
