package handler

import (
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/service"
	"github.com/khalilhajj/PfeManagement/pkg/response"
)

const (
	sseRetryMillis = 3000
	sseHeartbeat   = 25 * time.Second
)

// NotificationHandler in-app notification endpoints.
type NotificationHandler struct {
	notificationSvc service.NotificationService
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(notificationSvc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationSvc: notificationSvc}
}

// List GET /api/v1/internship/notifications/?unread=&page=&page_size=
func (h *NotificationHandler) List(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.NotificationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	list, total, err := h.notificationSvc.List(c.Request.Context(), p, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// UnreadCount GET /api/v1/internship/notifications/unread-count/
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	res, err := h.notificationSvc.UnreadCount(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, res)
}

// MarkRead PATCH /api/v1/internship/notifications/:id/read/
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	if err := h.notificationSvc.MarkRead(c.Request.Context(), p, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, nil)
}

// MarkAllRead POST /api/v1/internship/notifications/read-all/
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	res, err := h.notificationSvc.MarkAllRead(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, res)
}

// Stream pushes new notifications as server-sent events until the client
// disconnects. Each frame carries one JSON notification.
// GET /api/v1/internship/notifications/stream/
func (h *NotificationHandler) Stream(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	sub, err := h.notificationSvc.Subscribe(ctx, p)
	if err != nil {
		handleError(c, err)
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	fmt.Fprintf(c.Writer, "retry: %d\n\n", sseRetryMillis)
	c.Writer.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			return true
		case frame, open := <-sub.C:
			if !open {
				return false
			}
			fmt.Fprintf(w, "event: notification\ndata: %s\n\n", frame)
			return true
		}
	})
}
