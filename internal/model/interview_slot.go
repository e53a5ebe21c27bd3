package model

import "time"

// InterviewSlot a bookable interview window of an offer (table interview_slots)
//
// BookedByApplicationID mirrors Application.SelectedSlotID and is only ever set
// through a conditional update, which is what makes booking exclusive.
type InterviewSlot struct {
	SlotID                string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"slot_id"`
	OfferID               string    `gorm:"type:uuid;not null;index"                       json:"offer_id"`
	Date                  time.Time `gorm:"type:date;not null"                             json:"date"`
	StartTime             string    `gorm:"type:varchar(5);not null"                       json:"start_time"`
	EndTime               string    `gorm:"type:varchar(5);not null"                       json:"end_time"`
	Location              string    `gorm:"type:varchar(255)"                              json:"location,omitempty"`
	BookedByApplicationID *string   `gorm:"type:uuid;uniqueIndex"                          json:"booked_by_application_id,omitempty"`
	BaseModel

	Offer *Offer `gorm:"foreignKey:OfferID;references:OfferID" json:"offer,omitempty"`
}

// TableName overrides the table name.
func (InterviewSlot) TableName() string { return "interview_slots" }

// IsBooked reports whether an application holds the slot.
func (s *InterviewSlot) IsBooked() bool { return s.BookedByApplicationID != nil }

// StartsAt combines Date and StartTime in loc.
func (s *InterviewSlot) StartsAt(loc *time.Location) time.Time {
	return combine(s.Date, s.StartTime, loc)
}

// EndsAt combines Date and EndTime in loc.
func (s *InterviewSlot) EndsAt(loc *time.Location) time.Time {
	return combine(s.Date, s.EndTime, loc)
}

func combine(day time.Time, clock string, loc *time.Location) time.Time {
	t, err := time.Parse(ClockLayout, clock)
	if err != nil {
		return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}
