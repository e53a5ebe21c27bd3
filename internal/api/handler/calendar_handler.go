package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/khalilhajj/PfeManagement/internal/service"
)

// CalendarHandler serves personal iCalendar feeds.
type CalendarHandler struct {
	calendarSvc service.CalendarService
}

// NewCalendarHandler creates a CalendarHandler.
func NewCalendarHandler(calendarSvc service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarSvc: calendarSvc}
}

// Me returns the caller's interviews and soutenances as an ICS document.
// GET /api/v1/calendar/me.ics
func (h *CalendarHandler) Me(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	ics, err := h.calendarSvc.ForUser(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="pfe.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(ics))
}
