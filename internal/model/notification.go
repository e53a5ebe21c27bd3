package model

import "gorm.io/datatypes"

// NotificationType event kinds fanned out to users.
const (
	NotifyOfferReviewed       = "offer_reviewed"
	NotifyApplicationReceived = "application_received"
	NotifyApplicationReviewed = "application_reviewed"
	NotifyInterviewScheduled  = "interview_scheduled"
	NotifyApplicationDecided  = "application_decided"
	NotifyInternshipReviewed  = "internship_reviewed"
	NotifyTeacherInvited      = "teacher_invited"
	NotifyInvitationAnswered  = "invitation_answered"
	NotifyVersionSubmitted    = "version_submitted"
	NotifyVersionReviewed     = "version_reviewed"
	NotifyCommentAdded        = "comment_added"
	NotifyGradeAssigned       = "grade_assigned"
	NotifySoutenancePlanned   = "soutenance_planned"
	NotifySoutenanceUpdated   = "soutenance_updated"
	NotifySoutenanceCancelled = "soutenance_cancelled"
	NotifySoutenanceCompleted = "soutenance_completed"
)

// Notification an in-app message (table notifications)
type Notification struct {
	NotificationID string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	UserID         string         `gorm:"type:uuid;not null;index"                       json:"user_id"`
	Type           string         `gorm:"type:varchar(50);not null"                      json:"type"`
	Title          string         `gorm:"type:varchar(200);not null"                     json:"title"`
	Content        string         `gorm:"type:text;not null"                             json:"content"`
	IsRead         bool           `gorm:"not null;default:false"                         json:"is_read"`
	RelatedType    *string        `gorm:"type:varchar(20)"                               json:"related_type,omitempty"` // offer | application | internship | report | soutenance
	RelatedID      *string        `gorm:"type:uuid"                                      json:"related_id,omitempty"`
	Payload        datatypes.JSON `gorm:"type:jsonb"                                     json:"payload,omitempty"`
	SoftDeleteModel
}

// TableName overrides the table name.
func (Notification) TableName() string { return "notifications" }
