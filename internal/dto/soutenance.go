package dto

// ── Soutenances ──

// PlanSoutenanceRequest admin planning request. EndTime defaults to StartTime
// plus the configured soutenance duration.
type PlanSoutenanceRequest struct {
	InternshipID string `json:"internship_id" binding:"required,uuid"`
	Date         string `json:"date"          binding:"required,datetime=2006-01-02"`
	StartTime    string `json:"start_time"    binding:"required,datetime=15:04"`
	EndTime      string `json:"end_time"      binding:"omitempty,datetime=15:04"`
	RoomID       string `json:"room_id"       binding:"required,uuid"`
	Jury1ID      string `json:"jury1_id"      binding:"required,uuid"`
	Jury2ID      string `json:"jury2_id"      binding:"required,uuid"`
}

// UpdateSoutenanceRequest replaces the schedule of a planned soutenance.
type UpdateSoutenanceRequest struct {
	Date      string `json:"date"       binding:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" binding:"required,datetime=15:04"`
	EndTime   string `json:"end_time"   binding:"omitempty,datetime=15:04"`
	RoomID    string `json:"room_id"    binding:"required,uuid"`
	Jury1ID   string `json:"jury1_id"   binding:"required,uuid"`
	Jury2ID   string `json:"jury2_id"   binding:"required,uuid"`
	Version   int    `json:"version"    binding:"required,min=1"`
}

// SoutenanceResponse soutenance view.
type SoutenanceResponse struct {
	ID           string         `json:"id"`
	InternshipID string         `json:"internship_id"`
	Title        string         `json:"title,omitempty"`
	Student      *UserResponse  `json:"student,omitempty"`
	Room         *RoomResponse  `json:"room,omitempty"`
	Date         string         `json:"date"`
	StartTime    string         `json:"start_time"`
	EndTime      string         `json:"end_time"`
	StartsAt     string         `json:"starts_at"`
	EndsAt       string         `json:"ends_at"`
	Status       string         `json:"status"`
	Jury         []UserResponse `json:"jury"`
	CompletedAt  string         `json:"completed_at,omitempty"`
	Version      int            `json:"version"`
}

// SoutenanceCandidate internship ready for planning.
type SoutenanceCandidate struct {
	InternshipID string        `json:"internship_id"`
	Title        string        `json:"title"`
	CompanyName  string        `json:"company_name"`
	Student      *UserResponse `json:"student,omitempty"`
	Supervisor   *UserResponse `json:"supervisor,omitempty"`
}
