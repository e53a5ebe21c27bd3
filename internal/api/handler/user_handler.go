package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/service"
	"github.com/khalilhajj/PfeManagement/pkg/response"
)

// UserHandler account endpoints.
type UserHandler struct {
	userSvc service.UserService
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// CreateUser registers an account of any role.
// POST /api/v1/admin/users/
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userSvc.Create(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, user)
}

// GetUser returns one account.
// GET /api/v1/admin/users/:id/
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, user)
}

// ListTeachers lists the teachers a student can invite.
// GET /api/v1/internship/teachers/
func (h *UserHandler) ListTeachers(c *gin.Context) {
	list, err := h.userSvc.ListTeachers(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// ListUsers pages through every account.
// GET /api/v1/admin/users/?role=&is_active=&keyword=&page=&page_size=
func (h *UserHandler) ListUsers(c *gin.Context) {
	var req dto.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	list, total, err := h.userSvc.List(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// UpdateUser PUT /api/v1/admin/users/:id/
func (h *UserHandler) UpdateUser(c *gin.Context) {
	h.update(c, c.Param("id"))
}

// UpdateProfile edits the caller's own account.
// PUT /api/v1/auth/me/
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	h.update(c, p.UserID)
}

func (h *UserHandler) update(c *gin.Context, id string) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userSvc.Update(c.Request.Context(), p, id, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, user)
}

// DeleteUser soft-deletes an account.
// DELETE /api/v1/admin/users/:id/
func (h *UserHandler) DeleteUser(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	if err := h.userSvc.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, nil)
}

// ResetPassword sets a temporary password and returns it once.
// POST /api/v1/admin/users/:id/reset-password/
func (h *UserHandler) ResetPassword(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	resp, err := h.userSvc.ResetPassword(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, resp)
}

// ImportUsers creates accounts from an xlsx sheet sent as the "file" part.
// POST /api/v1/admin/users/import/
func (h *UserHandler) ImportUsers(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	withUpload(c, "file", func(up *service.Upload) {
		if up == nil {
			handleError(c, service.ErrFileRequired)
			return
		}
		rows, err := h.userSvc.ParseImportFile(up.Body)
		if err != nil {
			handleError(c, err)
			return
		}
		resp, err := h.userSvc.ImportUsers(c.Request.Context(), p, rows)
		if err != nil {
			handleError(c, err)
			return
		}
		response.OK(c, resp)
	})
}
