package model

import "time"

// SoutenanceStatus state of a defence. Done is terminal.
type SoutenanceStatus string

const (
	SoutenancePlanned SoutenanceStatus = "planned"
	SoutenanceDone    SoutenanceStatus = "done"
)

// Soutenance the oral defence of an internship (table soutenances)
//
// A database exclusion constraint on (room_id, tstzrange(starts_at, ends_at))
// for planned rows backs the overlap check done under row locks.
type Soutenance struct {
	SoutenanceID string           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"soutenance_id"`
	InternshipID string           `gorm:"type:uuid;not null;uniqueIndex"                 json:"internship_id"`
	RoomID       string           `gorm:"type:uuid;not null;index"                       json:"room_id"`
	StartsAt     time.Time        `gorm:"not null"                                       json:"starts_at"`
	EndsAt       time.Time        `gorm:"not null"                                       json:"ends_at"`
	Status       SoutenanceStatus `gorm:"type:varchar(20);not null;default:'planned'"    json:"status"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	VersionedModel

	Internship *Internship      `gorm:"foreignKey:InternshipID;references:InternshipID" json:"internship,omitempty"`
	Room       *Room            `gorm:"foreignKey:RoomID;references:RoomID"             json:"room,omitempty"`
	Jury       []SoutenanceJury `gorm:"foreignKey:SoutenanceID;references:SoutenanceID" json:"jury,omitempty"`
}

// TableName overrides the table name.
func (Soutenance) TableName() string { return "soutenances" }

// Overlaps reports whether the half-open windows [StartsAt, EndsAt) and
// [start, end) intersect.
func (s *Soutenance) Overlaps(start, end time.Time) bool {
	return s.StartsAt.Before(end) && s.EndsAt.After(start)
}

// JuryIDs returns the teacher IDs ordered by position.
func (s *Soutenance) JuryIDs() []string {
	ids := make([]string, len(s.Jury))
	for _, j := range s.Jury {
		if j.Position >= 1 && j.Position <= len(ids) {
			ids[j.Position-1] = j.TeacherID
		}
	}
	return ids
}

// SoutenanceJury one juror seat (table soutenance_juries)
type SoutenanceJury struct {
	SoutenanceID string           `gorm:"type:uuid;primaryKey"       json:"soutenance_id"`
	TeacherID    string           `gorm:"type:uuid;primaryKey;index" json:"teacher_id"`
	Position     int              `gorm:"not null"                   json:"position"` // 1 or 2
	StartsAt     time.Time        `gorm:"not null"                   json:"-"`
	EndsAt       time.Time        `gorm:"not null"                   json:"-"`
	Status       SoutenanceStatus `gorm:"type:varchar(20);not null;default:'planned'" json:"-"`

	Teacher *User `gorm:"foreignKey:TeacherID;references:UserID" json:"teacher,omitempty"`
}

// TableName overrides the table name.
func (SoutenanceJury) TableName() string { return "soutenance_juries" }
