package dto

// ── Offers ──

// CreateOfferRequest company offer submission.
type CreateOfferRequest struct {
	Title              string `json:"title"               binding:"required,max=255"`
	Description        string `json:"description"         binding:"required"`
	Requirements       string `json:"requirements"`
	Type               string `json:"type"                binding:"required,oneof=Stage PFE Internship"`
	Location           string `json:"location"            binding:"omitempty,max=255"`
	Duration           string `json:"duration"            binding:"omitempty,max=100"`
	StartDate          string `json:"start_date"          binding:"required,datetime=2006-01-02"`
	EndDate            string `json:"end_date"            binding:"required,datetime=2006-01-02"`
	PositionsAvailable int    `json:"positions_available" binding:"required,min=1"`
}

// UpdateOfferRequest partial update of a pending offer.
type UpdateOfferRequest struct {
	Title              *string `json:"title"               binding:"omitempty,max=255"`
	Description        *string `json:"description"`
	Requirements       *string `json:"requirements"`
	Type               *string `json:"type"                binding:"omitempty,oneof=Stage PFE Internship"`
	Location           *string `json:"location"            binding:"omitempty,max=255"`
	Duration           *string `json:"duration"            binding:"omitempty,max=100"`
	StartDate          *string `json:"start_date"          binding:"omitempty,datetime=2006-01-02"`
	EndDate            *string `json:"end_date"            binding:"omitempty,datetime=2006-01-02"`
	PositionsAvailable *int    `json:"positions_available" binding:"omitempty,min=1"`
	Version            int     `json:"version"             binding:"required,min=1"`
}

// ReviewOfferRequest admin decision on a pending offer.
type ReviewOfferRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	Feedback string `json:"feedback"`
}

// BrowseOffersRequest student browse filters.
type BrowseOffersRequest struct {
	PaginationRequest
	Type     string `form:"type"     binding:"omitempty,oneof=Stage PFE Internship"`
	Location string `form:"location" binding:"omitempty,max=255"`
	Keyword  string `form:"keyword"  binding:"omitempty,max=100"`
}

// OfferListRequest admin review list filter.
type OfferListRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=pending approved rejected closed"`
}

// OfferResponse offer view.
type OfferResponse struct {
	ID                 string        `json:"id"`
	Company            *UserResponse `json:"company,omitempty"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	Requirements       string        `json:"requirements,omitempty"`
	Type               string        `json:"type"`
	Location           string        `json:"location,omitempty"`
	Duration           string        `json:"duration,omitempty"`
	StartDate          string        `json:"start_date"`
	EndDate            string        `json:"end_date"`
	PositionsAvailable int           `json:"positions_available"`
	Status             string        `json:"status"`
	AdminFeedback      string        `json:"admin_feedback,omitempty"`
	ReviewedAt         string        `json:"reviewed_at,omitempty"`
	ApplicationCount   *int64        `json:"application_count,omitempty"`
	HasApplied         *bool         `json:"has_applied,omitempty"`
	Version            int           `json:"version"`
	CreatedAt          string        `json:"created_at"`
}
