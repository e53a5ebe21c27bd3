package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/service"
	"github.com/khalilhajj/PfeManagement/pkg/response"
)

// ApplicationHandler application workflow endpoints.
type ApplicationHandler struct {
	appSvc service.ApplicationService
}

// NewApplicationHandler creates an ApplicationHandler.
func NewApplicationHandler(appSvc service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{appSvc: appSvc}
}

// Apply submits an application with its CV.
// POST /api/v1/internship/apply/ (multipart: offer_id, cover_letter, cv_file)
func (h *ApplicationHandler) Apply(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.ApplyRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	withUpload(c, "cv_file", func(cv *service.Upload) {
		app, err := h.appSvc.Apply(c.Request.Context(), p, &req, cv)
		if err != nil {
			handleError(c, err)
			return
		}
		response.Created(c, app)
	})
}

// ListMine GET /api/v1/internship/applications/mine/
func (h *ApplicationHandler) ListMine(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	list, err := h.appSvc.ListMine(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// ListByOffer GET /api/v1/internship/offers/:id/applications/?status=
func (h *ApplicationHandler) ListByOffer(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.ApplicationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	list, err := h.appSvc.ListByOffer(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// Get GET /api/v1/internship/applications/:id/
func (h *ApplicationHandler) Get(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	app, err := h.appSvc.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, app)
}

// Review moves a pending application to interview or rejected.
// PATCH /api/v1/internship/applications/:id/review/
func (h *ApplicationHandler) Review(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.ReviewApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	app, err := h.appSvc.Review(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, app)
}

// SelectSlot books an interview slot for the applicant.
// POST /api/v1/internship/applications/:id/select-slot/
func (h *ApplicationHandler) SelectSlot(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.SelectSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	app, err := h.appSvc.SelectSlot(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, app)
}

// Decide records the post-interview decision.
// POST /api/v1/internship/applications/:id/decision/
func (h *ApplicationHandler) Decide(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	app, err := h.appSvc.Decide(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, app)
}

// CalculateMatch POST /api/v1/internship/applications/:id/match/
func (h *ApplicationHandler) CalculateMatch(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	app, err := h.appSvc.CalculateMatch(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, app)
}

// BatchCalculateMatches scores every application of an offer.
// POST /api/v1/internship/offers/:id/match/
func (h *ApplicationHandler) BatchCalculateMatches(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	res, err := h.appSvc.BatchCalculateMatches(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, res)
}
