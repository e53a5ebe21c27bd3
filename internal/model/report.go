package model

import "time"

// Report the internship report, one per internship (table reports)
type Report struct {
	ReportID     string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"report_id"`
	InternshipID string     `gorm:"type:uuid;not null;uniqueIndex"                 json:"internship_id"`
	StudentID    string     `gorm:"type:uuid;not null;index"                       json:"student_id"`
	Title        string     `gorm:"type:varchar(255);not null"                     json:"title"`
	Description  string     `gorm:"type:text"                                      json:"description,omitempty"`
	IsFinal      bool       `gorm:"not null;default:false"                         json:"is_final"`
	FinalGrade   *float64   `gorm:"type:numeric(4,2)"                              json:"final_grade,omitempty"`
	GradedBy     *string    `gorm:"type:uuid"                                      json:"graded_by,omitempty"`
	GradedAt     *time.Time `json:"graded_at,omitempty"`
	VersionedModel

	Internship *Internship     `gorm:"foreignKey:InternshipID;references:InternshipID" json:"internship,omitempty"`
	Versions   []ReportVersion `gorm:"foreignKey:ReportID;references:ReportID"         json:"versions,omitempty"`
}

// TableName overrides the table name.
func (Report) TableName() string { return "reports" }

// VersionStatus review state of one uploaded version.
type VersionStatus string

const (
	VersionDraft    VersionStatus = "draft"
	VersionPending  VersionStatus = "pending"
	VersionApproved VersionStatus = "approved"
	VersionRejected VersionStatus = "rejected"
)

// ReportVersion one uploaded file of a report (table report_versions)
type ReportVersion struct {
	VersionID     string        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"            json:"version_id"`
	ReportID      string        `gorm:"type:uuid;not null;uniqueIndex:uq_report_version_number"   json:"report_id"`
	VersionNumber int           `gorm:"not null;uniqueIndex:uq_report_version_number"             json:"version_number"`
	File          string        `gorm:"type:varchar(500);not null"                                json:"file"`
	Status        VersionStatus `gorm:"type:varchar(20);not null;default:'draft'"                 json:"status"`
	IsFinal       bool          `gorm:"not null;default:false"                                    json:"is_final"`
	SubmittedAt   *time.Time    `json:"submitted_at,omitempty"`
	ReviewedAt    *time.Time    `json:"reviewed_at,omitempty"`
	ReviewedBy    *string       `gorm:"type:uuid"                                                 json:"reviewed_by,omitempty"`
	BaseModel

	Report   *Report         `gorm:"foreignKey:ReportID;references:ReportID"   json:"report,omitempty"`
	Comments []ReviewComment `gorm:"foreignKey:VersionID;references:VersionID" json:"comments,omitempty"`
}

// TableName overrides the table name.
func (ReportVersion) TableName() string { return "report_versions" }

// ReviewComment a teacher remark on a version (table report_comments)
type ReviewComment struct {
	CommentID  string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"comment_id"`
	VersionID  string     `gorm:"type:uuid;not null;index"                       json:"version_id"`
	TeacherID  string     `gorm:"type:uuid;not null"                             json:"teacher_id"`
	Comment    string     `gorm:"type:text;not null"                             json:"comment"`
	PageNumber *int       `json:"page_number,omitempty"`
	Section    string     `gorm:"type:varchar(255)"                              json:"section,omitempty"`
	IsResolved bool       `gorm:"not null;default:false"                         json:"is_resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	BaseModel
}

// TableName overrides the table name.
func (ReviewComment) TableName() string { return "report_comments" }
