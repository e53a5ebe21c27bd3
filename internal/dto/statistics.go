package dto

// ── Statistics ──

// StatisticsResponse admin dashboard counters.
type StatisticsResponse struct {
	UsersByRole          map[string]int64 `json:"users_by_role"`
	OffersByStatus       map[string]int64 `json:"offers_by_status"`
	ApplicationsByStatus map[string]int64 `json:"applications_by_status"`
	InternshipsByStatus  map[string]int64 `json:"internships_by_status"`
	ReportsFinal         int64            `json:"reports_final"`
	ReportsInProgress    int64            `json:"reports_in_progress"`
	SoutenancesByStatus  map[string]int64 `json:"soutenances_by_status"`
	AverageFinalGrade    *float64         `json:"average_final_grade,omitempty"`
	RoomsAvailable       int64            `json:"rooms_available"`
	RoomsUnavailable     int64            `json:"rooms_unavailable"`
}
