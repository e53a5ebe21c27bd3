package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/service"
	"github.com/khalilhajj/PfeManagement/pkg/response"
)

// ReportHandler report, version and comment endpoints.
type ReportHandler struct {
	reportSvc service.ReportService
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(reportSvc service.ReportService) *ReportHandler {
	return &ReportHandler{reportSvc: reportSvc}
}

// Create POST /api/v1/report/reports/
func (h *ReportHandler) Create(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	report, err := h.reportSvc.Create(c.Request.Context(), p, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, report)
}

// ListMine GET /api/v1/report/reports/mine/
func (h *ReportHandler) ListMine(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	list, err := h.reportSvc.ListMine(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// Get GET /api/v1/report/reports/:id/
func (h *ReportHandler) Get(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	report, err := h.reportSvc.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, report)
}

// Delete DELETE /api/v1/report/reports/:id/
func (h *ReportHandler) Delete(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	if err := h.reportSvc.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, nil)
}

// UploadVersion stores a new draft version of the report.
// POST /api/v1/report/reports/:id/upload-version/ (multipart: file)
func (h *ReportHandler) UploadVersion(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	withUpload(c, "file", func(file *service.Upload) {
		v, err := h.reportSvc.UploadVersion(c.Request.Context(), p, c.Param("id"), file)
		if err != nil {
			handleError(c, err)
			return
		}
		response.Created(c, v)
	})
}

// Submit POST /api/v1/report/reports/versions/:id/submit/
func (h *ReportHandler) Submit(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	v, err := h.reportSvc.Submit(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, v)
}

// ListPendingVersions GET /api/v1/report/reports/versions/pending/
func (h *ReportHandler) ListPendingVersions(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	list, err := h.reportSvc.ListPendingVersions(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// Review POST /api/v1/report/reports/versions/:id/review/
func (h *ReportHandler) Review(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.ReviewVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	v, err := h.reportSvc.Review(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, v)
}

// AddComment POST /api/v1/report/reports/versions/:id/comment/
func (h *ReportHandler) AddComment(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	cm, err := h.reportSvc.AddComment(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, cm)
}

// ResolveComment POST /api/v1/report/reports/comments/:id/resolve/
func (h *ReportHandler) ResolveComment(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	cm, err := h.reportSvc.ResolveComment(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, cm)
}

// AssignGrade POST /api/v1/report/reports/:id/assign-grade/
func (h *ReportHandler) AssignGrade(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.AssignGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	report, err := h.reportSvc.AssignGrade(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, report)
}
