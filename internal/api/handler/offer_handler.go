package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/service"
	"github.com/khalilhajj/PfeManagement/pkg/response"
)

// OfferHandler offer endpoints for companies, students and administrators.
type OfferHandler struct {
	offerSvc service.OfferService
}

// NewOfferHandler creates an OfferHandler.
func NewOfferHandler(offerSvc service.OfferService) *OfferHandler {
	return &OfferHandler{offerSvc: offerSvc}
}

// Submit POST /api/v1/internship/offers/
func (h *OfferHandler) Submit(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	offer, err := h.offerSvc.Submit(c.Request.Context(), p, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, offer)
}

// ListMine GET /api/v1/internship/offers/mine/
func (h *OfferHandler) ListMine(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	list, err := h.offerSvc.ListMine(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// Browse lists approved offers with filters.
// GET /api/v1/internship/offers/browse/?type=&location=&keyword=&page=&page_size=
func (h *OfferHandler) Browse(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.BrowseOffersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	list, total, err := h.offerSvc.Browse(c.Request.Context(), p, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Get GET /api/v1/internship/offers/:id/
func (h *OfferHandler) Get(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	offer, err := h.offerSvc.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, offer)
}

// Update edits a pending offer.
// PUT /api/v1/internship/offers/:id/
func (h *OfferHandler) Update(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.UpdateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	offer, err := h.offerSvc.Update(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, offer)
}

// Delete DELETE /api/v1/internship/offers/:id/
func (h *OfferHandler) Delete(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	if err := h.offerSvc.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, nil)
}

// Close POST /api/v1/internship/offers/:id/close/
func (h *OfferHandler) Close(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	offer, err := h.offerSvc.Close(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, offer)
}

// ListForReview GET /api/v1/internship/admin/offers/?status=
func (h *OfferHandler) ListForReview(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.OfferListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	list, err := h.offerSvc.ListForReview(c.Request.Context(), p, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// Review approves or rejects a pending offer.
// PATCH /api/v1/internship/admin/offers/:id/review/
func (h *OfferHandler) Review(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.ReviewOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	offer, err := h.offerSvc.Review(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, offer)
}
