package model

import "time"

// OfferStatus lifecycle of a company offer.
type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferApproved OfferStatus = "approved"
	OfferRejected OfferStatus = "rejected"
	OfferClosed   OfferStatus = "closed"
)

// OfferType kinds of position a company can post.
type OfferType string

const (
	OfferTypeStage      OfferType = "Stage"
	OfferTypePFE        OfferType = "PFE"
	OfferTypeInternship OfferType = "Internship"
)

// Offer company-submitted internship offer (table internship_offers)
type Offer struct {
	OfferID            string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"offer_id"`
	CompanyID          string      `gorm:"type:uuid;not null;index"                       json:"company_id"`
	Title              string      `gorm:"type:varchar(255);not null"                     json:"title"`
	Description        string      `gorm:"type:text;not null"                             json:"description"`
	Requirements       string      `gorm:"type:text"                                      json:"requirements,omitempty"`
	Type               OfferType   `gorm:"type:varchar(20);not null"                      json:"type"`
	Location           string      `gorm:"type:varchar(255)"                              json:"location,omitempty"`
	Duration           string      `gorm:"type:varchar(100)"                              json:"duration,omitempty"`
	StartDate          time.Time   `gorm:"type:date;not null"                             json:"start_date"`
	EndDate            time.Time   `gorm:"type:date;not null"                             json:"end_date"`
	PositionsAvailable int         `gorm:"not null;default:1"                             json:"positions_available"`
	Status             OfferStatus `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	AdminFeedback      string      `gorm:"type:text"                                      json:"admin_feedback,omitempty"`
	ReviewedBy         *string     `gorm:"type:uuid"                                      json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time  `json:"reviewed_at,omitempty"`
	VersionedModel

	Company *User `gorm:"foreignKey:CompanyID;references:UserID" json:"company,omitempty"`
}

// TableName overrides the table name.
func (Offer) TableName() string { return "internship_offers" }

// IsVisibleToStudents reports whether the offer appears in the browse listing.
func (o *Offer) IsVisibleToStudents() bool { return o.Status == OfferApproved }
