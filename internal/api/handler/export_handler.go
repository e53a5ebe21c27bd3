package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/internal/service"
	"github.com/khalilhajj/PfeManagement/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler platform statistics and spreadsheet exports.
type AdminHandler struct {
	statsSvc  service.StatisticsService
	exportSvc service.ExportService
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(statsSvc service.StatisticsService, exportSvc service.ExportService) *AdminHandler {
	return &AdminHandler{statsSvc: statsSvc, exportSvc: exportSvc}
}

// Statistics GET /api/v1/admin/statistics/
func (h *AdminHandler) Statistics(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	stats, err := h.statsSvc.Get(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, stats)
}

// ExportSoutenances GET /api/v1/admin/exports/soutenances.xlsx
func (h *AdminHandler) ExportSoutenances(c *gin.Context) {
	h.export(c, h.exportSvc.ExportSoutenances)
}

// ExportStatistics GET /api/v1/admin/exports/statistics.xlsx
func (h *AdminHandler) ExportStatistics(c *gin.Context) {
	h.export(c, h.exportSvc.ExportStatistics)
}

type exportFunc func(ctx context.Context, p authz.Principal) (*bytes.Buffer, string, error)

func (h *AdminHandler) export(c *gin.Context, build exportFunc) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	buf, filename, err := build(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
