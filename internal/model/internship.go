package model

import "time"

// InternshipStatus admission state of an internship.
type InternshipStatus string

const (
	InternshipPending  InternshipStatus = "pending"
	InternshipApproved InternshipStatus = "approved"
	InternshipRejected InternshipStatus = "rejected"
)

// Internship an internship held by a student, either proposed directly or
// created when a company accepts an application (table internships)
type Internship struct {
	InternshipID  string           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"internship_id"`
	StudentID     string           `gorm:"type:uuid;not null;index"                       json:"student_id"`
	TeacherID     *string          `gorm:"type:uuid;index"                                json:"teacher_id,omitempty"` // supervisor
	OfferID       *string          `gorm:"type:uuid"                                      json:"offer_id,omitempty"`
	ApplicationID *string          `gorm:"type:uuid;uniqueIndex"                          json:"application_id,omitempty"`
	Title         string           `gorm:"type:varchar(255);not null"                     json:"title"`
	Type          string           `gorm:"type:varchar(100);not null"                     json:"type"`
	CompanyName   string           `gorm:"type:varchar(255);not null"                     json:"company_name"`
	Description   string           `gorm:"type:text"                                      json:"description,omitempty"`
	SpecFile      string           `gorm:"type:varchar(500)"                              json:"spec_file,omitempty"` // cahier de charges
	Status        InternshipStatus `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	StartDate     time.Time        `gorm:"type:date;not null"                             json:"start_date"`
	EndDate       time.Time        `gorm:"type:date;not null"                             json:"end_date"`
	AdminFeedback string           `gorm:"type:text"                                      json:"admin_feedback,omitempty"`
	ReviewedBy    *string          `gorm:"type:uuid"                                      json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time       `json:"reviewed_at,omitempty"`
	VersionedModel

	Student *User `gorm:"foreignKey:StudentID;references:UserID" json:"student,omitempty"`
	Teacher *User `gorm:"foreignKey:TeacherID;references:UserID" json:"teacher,omitempty"`
}

// TableName overrides the table name.
func (Internship) TableName() string { return "internships" }

// IsSupervisedBy reports whether teacherID supervises the internship.
func (i *Internship) IsSupervisedBy(teacherID string) bool {
	return i.TeacherID != nil && *i.TeacherID == teacherID
}

// InvitationStatus answer state of a supervision invitation.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

// TeacherInvitation a student's request that a teacher supervise an
// internship (table teacher_invitations)
type TeacherInvitation struct {
	InvitationID string           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"invitation_id"`
	InternshipID string           `gorm:"type:uuid;not null;index"                       json:"internship_id"`
	StudentID    string           `gorm:"type:uuid;not null"                             json:"student_id"`
	TeacherID    string           `gorm:"type:uuid;not null;index"                       json:"teacher_id"`
	Message      string           `gorm:"type:text"                                      json:"message,omitempty"`
	Status       InvitationStatus `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	RespondedAt  *time.Time       `json:"responded_at,omitempty"`
	BaseModel

	Internship *Internship `gorm:"foreignKey:InternshipID;references:InternshipID" json:"internship,omitempty"`
	Student    *User       `gorm:"foreignKey:StudentID;references:UserID"          json:"student,omitempty"`
	Teacher    *User       `gorm:"foreignKey:TeacherID;references:UserID"          json:"teacher,omitempty"`
}

// TableName overrides the table name.
func (TeacherInvitation) TableName() string { return "teacher_invitations" }
