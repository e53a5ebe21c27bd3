package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/khalilhajj/PfeManagement/internal/model"
)

// SoutenanceFilter narrows List. Empty fields are ignored.
type SoutenanceFilter struct {
	StudentID string
	TeacherID string // juror
	Status    model.SoutenanceStatus
}

// SoutenanceRepository soutenance and jury data access.
//
// Writes touching the time window or the room are expected to run inside a
// transaction that already holds the room and juror row locks
// (RoomRepository.GetForUpdate, UserRepository.LockByIDs).
type SoutenanceRepository interface {
	// Create inserts the soutenance with its jury rows. ErrOverlap when an
	// exclusion constraint fires, ErrDuplicate for a second soutenance of the
	// same internship.
	Create(ctx context.Context, s *model.Soutenance) error
	GetByID(ctx context.Context, id string) (*model.Soutenance, error)
	GetForUpdate(ctx context.Context, id string) (*model.Soutenance, error)
	GetByInternship(ctx context.Context, internshipID string) (*model.Soutenance, error)
	List(ctx context.Context, filter SoutenanceFilter) ([]model.Soutenance, error)
	// FindConflicts returns planned soutenances overlapping [start, end) that
	// use roomID or seat one of teacherIDs. excludeID is skipped.
	FindConflicts(ctx context.Context, roomID string, teacherIDs []string, start, end time.Time, excludeID string) ([]model.Soutenance, error)
	// Update rewrites room, window and jury of a planned soutenance whose row
	// version still equals s.Version.
	Update(ctx context.Context, s *model.Soutenance) error
	Delete(ctx context.Context, id string) error
	// Complete moves a planned soutenance to done.
	Complete(ctx context.Context, id string, at time.Time) error
	// ListDue returns planned soutenances that ended at or before now.
	ListDue(ctx context.Context, now time.Time) ([]model.Soutenance, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	CountPlannedByRoom(ctx context.Context, roomID string) (int64, error)
}

type soutenanceRepo struct {
	db *gorm.DB
}

// NewSoutenanceRepo creates a SoutenanceRepository.
func NewSoutenanceRepo(db *gorm.DB) SoutenanceRepository {
	return &soutenanceRepo{db: db}
}

func (r *soutenanceRepo) withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Internship").
		Preload("Internship.Student").
		Preload("Room").
		Preload("Jury", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Jury.Teacher")
}

// Create inserts the jury rows explicitly: association upserts would use
// ON CONFLICT DO NOTHING and swallow the juror exclusion constraint.
func (r *soutenanceRepo) Create(ctx context.Context, s *model.Soutenance) error {
	db := r.db.WithContext(ctx)
	if err := translate(db.Omit("Jury", "Internship", "Room").Create(s).Error); err != nil {
		return err
	}
	syncJury(s)
	if len(s.Jury) == 0 {
		return nil
	}
	return translate(db.Create(&s.Jury).Error)
}

func (r *soutenanceRepo) GetByID(ctx context.Context, id string) (*model.Soutenance, error) {
	var s model.Soutenance
	err := r.withDetails(r.db.WithContext(ctx)).
		Where("soutenance_id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *soutenanceRepo) GetForUpdate(ctx context.Context, id string) (*model.Soutenance, error) {
	var s model.Soutenance
	err := forUpdate(r.db.WithContext(ctx)).
		Preload("Jury").
		Where("soutenance_id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *soutenanceRepo) GetByInternship(ctx context.Context, internshipID string) (*model.Soutenance, error) {
	var s model.Soutenance
	err := r.db.WithContext(ctx).
		Where("internship_id = ?", internshipID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *soutenanceRepo) List(ctx context.Context, filter SoutenanceFilter) ([]model.Soutenance, error) {
	var list []model.Soutenance
	db := r.withDetails(r.db.WithContext(ctx))
	if filter.StudentID != "" {
		db = db.Where("internship_id IN (SELECT internship_id FROM internships WHERE student_id = ?)", filter.StudentID)
	}
	if filter.TeacherID != "" {
		db = db.Where("soutenance_id IN (SELECT soutenance_id FROM soutenance_juries WHERE teacher_id = ?)", filter.TeacherID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	err := db.Order("starts_at ASC").Find(&list).Error
	return list, err
}

func (r *soutenanceRepo) FindConflicts(ctx context.Context, roomID string, teacherIDs []string, start, end time.Time, excludeID string) ([]model.Soutenance, error) {
	var list []model.Soutenance
	db := r.db.WithContext(ctx).
		Preload("Jury").
		Where("status = ? AND starts_at < ? AND ends_at > ?", model.SoutenancePlanned, end, start)
	if excludeID != "" {
		db = db.Where("soutenance_id <> ?", excludeID)
	}
	if len(teacherIDs) > 0 {
		db = db.Where("room_id = ? OR soutenance_id IN (SELECT soutenance_id FROM soutenance_juries WHERE teacher_id IN ?)", roomID, teacherIDs)
	} else {
		db = db.Where("room_id = ?", roomID)
	}
	err := db.Order("starts_at ASC").Find(&list).Error
	return list, err
}

func (r *soutenanceRepo) Update(ctx context.Context, s *model.Soutenance) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&model.Soutenance{}).
		Where("soutenance_id = ? AND version = ? AND status = ?", s.SoutenanceID, s.Version, model.SoutenancePlanned).
		Updates(bump(map[string]interface{}{
			"room_id":   s.RoomID,
			"starts_at": s.StartsAt,
			"ends_at":   s.EndsAt,
		}))
	if err := conditional(res); err != nil {
		return err
	}
	s.Version++

	if err := db.Where("soutenance_id = ?", s.SoutenanceID).Delete(&model.SoutenanceJury{}).Error; err != nil {
		return err
	}
	syncJury(s)
	if len(s.Jury) == 0 {
		return nil
	}
	return translate(db.Create(&s.Jury).Error)
}

// Delete is a hard delete so the internship can be planned again.
func (r *soutenanceRepo) Delete(ctx context.Context, id string) error {
	return conditional(r.db.WithContext(ctx).
		Unscoped().
		Where("soutenance_id = ?", id).
		Delete(&model.Soutenance{}))
}

// Complete writes the soutenance row and then its jury rows; callers run it
// inside a transaction.
func (r *soutenanceRepo) Complete(ctx context.Context, id string, at time.Time) error {
	db := r.db.WithContext(ctx)
	err := conditional(db.Model(&model.Soutenance{}).
		Where("soutenance_id = ? AND status = ?", id, model.SoutenancePlanned).
		Updates(bump(map[string]interface{}{
			"status":       model.SoutenanceDone,
			"completed_at": at,
		})))
	if err != nil {
		return err
	}
	return db.Model(&model.SoutenanceJury{}).
		Where("soutenance_id = ?", id).
		Update("status", model.SoutenanceDone).Error
}

func (r *soutenanceRepo) ListDue(ctx context.Context, now time.Time) ([]model.Soutenance, error) {
	var list []model.Soutenance
	err := r.db.WithContext(ctx).
		Preload("Internship").
		Preload("Jury").
		Where("status = ? AND ends_at <= ?", model.SoutenancePlanned, now).
		Order("ends_at ASC").
		Find(&list).Error
	return list, err
}

func (r *soutenanceRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&model.Soutenance{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toCountMap(rows), nil
}

func (r *soutenanceRepo) CountPlannedByRoom(ctx context.Context, roomID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Soutenance{}).
		Where("room_id = ? AND status = ?", roomID, model.SoutenancePlanned).
		Count(&n).Error
	return n, err
}

// syncJury copies the window and status onto the jury rows, which carry them
// for the juror exclusion constraint.
func syncJury(s *model.Soutenance) {
	for i := range s.Jury {
		s.Jury[i].SoutenanceID = s.SoutenanceID
		s.Jury[i].StartsAt = s.StartsAt
		s.Jury[i].EndsAt = s.EndsAt
		s.Jury[i].Status = s.Status
		if s.Jury[i].Status == "" {
			s.Jury[i].Status = model.SoutenancePlanned
		}
	}
}
