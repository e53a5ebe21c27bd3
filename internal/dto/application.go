package dto

// ── Applications ──

// ApplyRequest multipart form of POST /internship/apply/. The CV arrives as
// the "cv_file" part and is stored before the service is called.
type ApplyRequest struct {
	OfferID     string `form:"offer_id"     binding:"required,uuid"`
	CoverLetter string `form:"cover_letter"`
}

// ReviewApplicationRequest company decision on a pending application.
type ReviewApplicationRequest struct {
	Decision string `json:"decision" binding:"required,oneof=interview reject"`
	Feedback string `json:"feedback"`
}

// SelectSlotRequest student slot choice.
type SelectSlotRequest struct {
	SlotID string `json:"slot_id" binding:"required,uuid"`
}

// DecisionRequest company decision after the interview.
type DecisionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=accept reject"`
	Notes    string `json:"notes"`
	Feedback string `json:"feedback"`
}

// ApplicationListRequest optional status filter for an offer's applications.
type ApplicationListRequest struct {
	Status *int `form:"status" binding:"omitempty,min=0,max=3"`
}

// ApplicationResponse application view.
type ApplicationResponse struct {
	ID              string         `json:"id"`
	OfferID         string         `json:"offer_id"`
	Offer           *OfferResponse `json:"offer,omitempty"`
	Student         *UserResponse  `json:"student,omitempty"`
	CVFile          string         `json:"cv_file"`
	CoverLetter     string         `json:"cover_letter,omitempty"`
	Status          int            `json:"status"`
	StatusName      string         `json:"status_name"`
	CompanyFeedback string         `json:"company_feedback,omitempty"`
	InterviewNotes  string         `json:"interview_notes,omitempty"`
	SelectedSlot    *SlotResponse  `json:"selected_slot,omitempty"`
	Match           *MatchResponse `json:"match,omitempty"`
	InternshipID    string         `json:"internship_id,omitempty"`
	Version         int            `json:"version"`
	CreatedAt       string         `json:"created_at"`
}

// MatchResponse stored AI match result.
type MatchResponse struct {
	Score     int         `json:"score"`
	Analysis  string      `json:"analysis"`
	Breakdown interface{} `json:"breakdown,omitempty"`
	MatchedAt string      `json:"matched_at,omitempty"`
}

// BatchMatchResult outcome for one application of a batch scoring run.
type BatchMatchResult struct {
	ApplicationID string `json:"application_id"`
	Score         *int   `json:"score,omitempty"`
	Error         string `json:"error,omitempty"`
}

// BatchMatchResponse outcome of scoring every open application of an offer.
type BatchMatchResponse struct {
	Total     int                `json:"total"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Results   []BatchMatchResult `json:"results"`
}

// ── Interview slots ──

// CreateSlotRequest company slot creation.
type CreateSlotRequest struct {
	Date      string `json:"date"       binding:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" binding:"required,datetime=15:04"`
	EndTime   string `json:"end_time"   binding:"required,datetime=15:04"`
	Location  string `json:"location"   binding:"omitempty,max=255"`
}

// SlotResponse slot view. BookedBy is only shown to the owning company.
type SlotResponse struct {
	ID        string `json:"id"`
	OfferID   string `json:"offer_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Location  string `json:"location,omitempty"`
	IsBooked  bool   `json:"is_booked"`
	BookedBy  string `json:"booked_by_application_id,omitempty"`
}
