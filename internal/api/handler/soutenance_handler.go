package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/service"
	"github.com/khalilhajj/PfeManagement/pkg/response"
)

// SoutenanceHandler defense planning endpoints.
type SoutenanceHandler struct {
	soutenanceSvc service.SoutenanceService
}

// NewSoutenanceHandler creates a SoutenanceHandler.
func NewSoutenanceHandler(soutenanceSvc service.SoutenanceService) *SoutenanceHandler {
	return &SoutenanceHandler{soutenanceSvc: soutenanceSvc}
}

// Plan POST /api/v1/internship/soutenances/
func (h *SoutenanceHandler) Plan(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.PlanSoutenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	s, err := h.soutenanceSvc.Plan(c.Request.Context(), p, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, s)
}

// List returns the soutenances visible to the caller.
// GET /api/v1/internship/soutenances/
func (h *SoutenanceHandler) List(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	list, err := h.soutenanceSvc.List(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// Get GET /api/v1/internship/soutenances/:id/
func (h *SoutenanceHandler) Get(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	s, err := h.soutenanceSvc.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, s)
}

// Update PUT /api/v1/internship/soutenances/:id/
func (h *SoutenanceHandler) Update(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.UpdateSoutenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	s, err := h.soutenanceSvc.Update(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, s)
}

// Delete DELETE /api/v1/internship/soutenances/:id/
func (h *SoutenanceHandler) Delete(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	if err := h.soutenanceSvc.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, nil)
}

// Complete POST /api/v1/internship/soutenances/:id/complete/
func (h *SoutenanceHandler) Complete(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	s, err := h.soutenanceSvc.Complete(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, s)
}
