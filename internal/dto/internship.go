package dto

// ── Internships ──

// ProposeInternshipRequest multipart form of a student proposal; the
// specification file arrives as the optional "cahier_de_charges" part.
type ProposeInternshipRequest struct {
	Title       string `form:"title"        binding:"required,max=255"`
	Type        string `form:"type"         binding:"required,max=100"`
	CompanyName string `form:"company_name" binding:"required,max=255"`
	Description string `form:"description"`
	StartDate   string `form:"start_date"   binding:"required,datetime=2006-01-02"`
	EndDate     string `form:"end_date"     binding:"required,datetime=2006-01-02"`
}

// ReviewInternshipRequest admin decision on a proposal.
type ReviewInternshipRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	Feedback string `json:"feedback"`
}

// InternshipResponse internship view.
type InternshipResponse struct {
	ID            string        `json:"id"`
	Student       *UserResponse `json:"student,omitempty"`
	StudentID     string        `json:"student_id"`
	Teacher       *UserResponse `json:"teacher,omitempty"`
	OfferID       string        `json:"offer_id,omitempty"`
	ApplicationID string        `json:"application_id,omitempty"`
	Title         string        `json:"title"`
	Type          string        `json:"type"`
	CompanyName   string        `json:"company_name"`
	Description   string        `json:"description,omitempty"`
	SpecFile      string        `json:"spec_file,omitempty"`
	Status        string        `json:"status"`
	StartDate     string        `json:"start_date"`
	EndDate       string        `json:"end_date"`
	AdminFeedback string        `json:"admin_feedback,omitempty"`
	Version       int           `json:"version"`
	CreatedAt     string        `json:"created_at"`
}

// ── Teacher invitations ──

// InviteTeacherRequest student invitation.
type InviteTeacherRequest struct {
	InternshipID string `json:"internship_id" binding:"required,uuid"`
	TeacherID    string `json:"teacher_id"    binding:"required,uuid"`
	Message      string `json:"message"       binding:"omitempty,max=2000"`
}

// RespondInvitationRequest teacher answer.
type RespondInvitationRequest struct {
	Decision string `json:"decision" binding:"required,oneof=accept decline"`
}

// InvitationResponse invitation view.
type InvitationResponse struct {
	ID          string              `json:"id"`
	Internship  *InternshipResponse `json:"internship,omitempty"`
	Student     *UserResponse       `json:"student,omitempty"`
	Teacher     *UserResponse       `json:"teacher,omitempty"`
	Message     string              `json:"message,omitempty"`
	Status      string              `json:"status"`
	RespondedAt string              `json:"responded_at,omitempty"`
	CreatedAt   string              `json:"created_at"`
}
