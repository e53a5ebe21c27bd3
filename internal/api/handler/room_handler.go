package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/service"
	"github.com/khalilhajj/PfeManagement/pkg/response"
)

// RoomHandler room administration endpoints.
type RoomHandler struct {
	roomSvc service.RoomService
}

// NewRoomHandler creates a RoomHandler.
func NewRoomHandler(roomSvc service.RoomService) *RoomHandler {
	return &RoomHandler{roomSvc: roomSvc}
}

// Create POST /api/v1/admin/rooms/
func (h *RoomHandler) Create(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	room, err := h.roomSvc.Create(c.Request.Context(), p, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, room)
}

// List GET /api/v1/admin/rooms/
func (h *RoomHandler) List(c *gin.Context) {
	h.list(c, false)
}

// ListAvailable GET /api/v1/admin/rooms/available/
func (h *RoomHandler) ListAvailable(c *gin.Context) {
	h.list(c, true)
}

func (h *RoomHandler) list(c *gin.Context, onlyAvailable bool) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	list, err := h.roomSvc.List(c.Request.Context(), p, onlyAvailable)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// Update PUT /api/v1/admin/rooms/:id/
func (h *RoomHandler) Update(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	room, err := h.roomSvc.Update(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, room)
}

// Delete DELETE /api/v1/admin/rooms/:id/
func (h *RoomHandler) Delete(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	if err := h.roomSvc.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, nil)
}
