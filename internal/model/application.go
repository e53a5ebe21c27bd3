package model

import (
	"time"

	"gorm.io/datatypes"
)

// ApplicationStatus keeps the integer codes exposed by the API.
type ApplicationStatus int

const (
	ApplicationPending   ApplicationStatus = 0
	ApplicationInterview ApplicationStatus = 1
	ApplicationAccepted  ApplicationStatus = 2
	ApplicationRejected  ApplicationStatus = 3
)

func (s ApplicationStatus) String() string {
	switch s {
	case ApplicationPending:
		return "pending"
	case ApplicationInterview:
		return "interview"
	case ApplicationAccepted:
		return "accepted"
	case ApplicationRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the four known codes.
func (s ApplicationStatus) Valid() bool {
	return s >= ApplicationPending && s <= ApplicationRejected
}

// Application a student's application to an offer (table internship_applications)
type Application struct {
	ApplicationID   string            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"     json:"application_id"`
	OfferID         string            `gorm:"type:uuid;not null;uniqueIndex:uq_application_offer_student" json:"offer_id"`
	StudentID       string            `gorm:"type:uuid;not null;uniqueIndex:uq_application_offer_student" json:"student_id"`
	CVFile          string            `gorm:"type:varchar(500);not null"                         json:"cv_file"`
	CoverLetter     string            `gorm:"type:text"                                          json:"cover_letter,omitempty"`
	Status          ApplicationStatus `gorm:"type:smallint;not null;default:0"                   json:"status"`
	CompanyFeedback string            `gorm:"type:text"                                          json:"company_feedback,omitempty"`
	InterviewNotes  string            `gorm:"type:text"                                          json:"interview_notes,omitempty"`
	SelectedSlotID  *string           `gorm:"type:uuid;uniqueIndex"                              json:"selected_slot_id,omitempty"`
	MatchScore      *int              `gorm:"type:smallint"                                      json:"match_score,omitempty"`
	MatchAnalysis   string            `gorm:"type:text"                                          json:"match_analysis,omitempty"`
	MatchBreakdown  datatypes.JSON    `gorm:"type:jsonb"                                         json:"match_breakdown,omitempty"`
	MatchedAt       *time.Time        `json:"matched_at,omitempty"`
	ReviewedAt      *time.Time        `json:"reviewed_at,omitempty"`
	DecidedAt       *time.Time        `json:"decided_at,omitempty"`
	VersionedModel

	Offer        *Offer         `gorm:"foreignKey:OfferID;references:OfferID"       json:"offer,omitempty"`
	Student      *User          `gorm:"foreignKey:StudentID;references:UserID"      json:"student,omitempty"`
	SelectedSlot *InterviewSlot `gorm:"foreignKey:SelectedSlotID;references:SlotID" json:"selected_slot,omitempty"`
}

// TableName overrides the table name.
func (Application) TableName() string { return "internship_applications" }

// IsTerminal reports whether no further transition is allowed.
func (a *Application) IsTerminal() bool {
	return a.Status == ApplicationAccepted || a.Status == ApplicationRejected
}
