package dto

// ── Reports ──

// CreateReportRequest student report creation.
type CreateReportRequest struct {
	InternshipID string `json:"internship_id" binding:"required,uuid"`
	Title        string `json:"title"         binding:"required,max=255"`
	Description  string `json:"description"`
}

// ReviewVersionRequest teacher decision on a pending version.
type ReviewVersionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	IsFinal  bool   `json:"is_final"`
	Comment  string `json:"comment"`
}

// AddCommentRequest teacher remark.
type AddCommentRequest struct {
	Comment    string `json:"comment"     binding:"required"`
	PageNumber *int   `json:"page_number" binding:"omitempty,min=1"`
	Section    string `json:"section"     binding:"omitempty,max=255"`
}

// AssignGradeRequest final grade on the 0-20 scale.
type AssignGradeRequest struct {
	Grade *float64 `json:"grade" binding:"required"`
}

// ReportResponse report view with its versions.
type ReportResponse struct {
	ID           string            `json:"id"`
	InternshipID string            `json:"internship_id"`
	StudentID    string            `json:"student_id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	IsFinal      bool              `json:"is_final"`
	FinalGrade   *float64          `json:"final_grade,omitempty"`
	GradedAt     string            `json:"graded_at,omitempty"`
	Versions     []VersionResponse `json:"versions"`
	Version      int               `json:"version"`
	CreatedAt    string            `json:"created_at"`
}

// VersionResponse one uploaded version.
type VersionResponse struct {
	ID            string            `json:"id"`
	ReportID      string            `json:"report_id"`
	ReportTitle   string            `json:"report_title,omitempty"`
	VersionNumber int               `json:"version_number"`
	File          string            `json:"file"`
	Status        string            `json:"status"`
	IsFinal       bool              `json:"is_final"`
	SubmittedAt   string            `json:"submitted_at,omitempty"`
	ReviewedAt    string            `json:"reviewed_at,omitempty"`
	ReviewedBy    string            `json:"reviewed_by,omitempty"`
	Comments      []CommentResponse `json:"comments"`
	CreatedAt     string            `json:"created_at"`
}

// CommentResponse review comment.
type CommentResponse struct {
	ID         string `json:"id"`
	VersionID  string `json:"version_id"`
	TeacherID  string `json:"teacher_id"`
	Comment    string `json:"comment"`
	PageNumber *int   `json:"page_number,omitempty"`
	Section    string `json:"section,omitempty"`
	IsResolved bool   `json:"is_resolved"`
	ResolvedAt string `json:"resolved_at,omitempty"`
	CreatedAt  string `json:"created_at"`
}
