package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/service"
	"github.com/khalilhajj/PfeManagement/pkg/response"
)

// InternshipHandler internship and supervisor invitation endpoints.
type InternshipHandler struct {
	internshipSvc service.InternshipService
}

// NewInternshipHandler creates an InternshipHandler.
func NewInternshipHandler(internshipSvc service.InternshipService) *InternshipHandler {
	return &InternshipHandler{internshipSvc: internshipSvc}
}

// Propose submits a student proposal with an optional specification file
// under the "cahier_de_charges" part.
// POST /api/v1/internship/create/ (multipart)
func (h *InternshipHandler) Propose(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.ProposeInternshipRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	withUpload(c, "cahier_de_charges", func(spec *service.Upload) {
		in, err := h.internshipSvc.Propose(c.Request.Context(), p, &req, spec)
		if err != nil {
			handleError(c, err)
			return
		}
		response.Created(c, in)
	})
}

// ListMine GET /api/v1/internship/my-internships/
func (h *InternshipHandler) ListMine(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	list, err := h.internshipSvc.ListMine(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// Get GET /api/v1/internship/:id/
func (h *InternshipHandler) Get(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	in, err := h.internshipSvc.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, in)
}

// ListPending GET /api/v1/internship/admin/pending/
func (h *InternshipHandler) ListPending(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	list, err := h.internshipSvc.ListPending(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// Review PATCH /api/v1/internship/admin/:id/review/
func (h *InternshipHandler) Review(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.ReviewInternshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	in, err := h.internshipSvc.Review(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, in)
}

// InviteTeacher POST /api/v1/internship/invite/
func (h *InternshipHandler) InviteTeacher(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.InviteTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	inv, err := h.internshipSvc.InviteTeacher(c.Request.Context(), p, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, inv)
}

// ListInvitations GET /api/v1/internship/invitations/
func (h *InternshipHandler) ListInvitations(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	list, err := h.internshipSvc.ListInvitations(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// RespondInvitation POST /api/v1/internship/invitation/:id/respond/
func (h *InternshipHandler) RespondInvitation(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.RespondInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	inv, err := h.internshipSvc.RespondInvitation(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, inv)
}

// ListSoutenanceCandidates GET /api/v1/internship/soutenances/candidates/
func (h *InternshipHandler) ListSoutenanceCandidates(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	list, err := h.internshipSvc.ListSoutenanceCandidates(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}
