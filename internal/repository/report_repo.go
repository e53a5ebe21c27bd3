package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/khalilhajj/PfeManagement/internal/model"
)

// ReportRepository report data access.
type ReportRepository interface {
	// Create returns ErrDuplicate when the internship already has a report.
	Create(ctx context.Context, report *model.Report) error
	// GetByID loads the report with its versions and their comments in order.
	GetByID(ctx context.Context, id string) (*model.Report, error)
	GetByInternship(ctx context.Context, internshipID string) (*model.Report, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.Report, error)
	// GetForUpdate locks the report row until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*model.Report, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	// Delete removes a non-final report with its versions and comments.
	Delete(ctx context.Context, id string) error
	CountByFinal(ctx context.Context) (final int64, notFinal int64, err error)
	// AverageGrade returns nil when no report is graded.
	AverageGrade(ctx context.Context) (*float64, error)
}

type reportRepo struct {
	db *gorm.DB
}

// NewReportRepo creates a ReportRepository.
func NewReportRepo(db *gorm.DB) ReportRepository {
	return &reportRepo{db: db}
}

func (r *reportRepo) Create(ctx context.Context, report *model.Report) error {
	return translate(r.db.WithContext(ctx).Create(report).Error)
}

func (r *reportRepo) GetByID(ctx context.Context, id string) (*model.Report, error) {
	var report model.Report
	err := r.db.WithContext(ctx).
		Preload("Internship").
		Preload("Versions", func(db *gorm.DB) *gorm.DB {
			return db.Order("version_number ASC")
		}).
		Preload("Versions.Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("report_id = ?", id).
		First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *reportRepo) GetByInternship(ctx context.Context, internshipID string) (*model.Report, error) {
	var report model.Report
	err := r.db.WithContext(ctx).
		Where("internship_id = ?", internshipID).
		First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *reportRepo) ListByStudent(ctx context.Context, studentID string) ([]model.Report, error) {
	var list []model.Report
	err := r.db.WithContext(ctx).
		Preload("Internship").
		Preload("Versions", func(db *gorm.DB) *gorm.DB {
			return db.Order("version_number ASC")
		}).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *reportRepo) GetForUpdate(ctx context.Context, id string) (*model.Report, error) {
	var report model.Report
	err := forUpdate(r.db.WithContext(ctx)).
		Where("report_id = ?", id).
		First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *reportRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.Report{}).
		Where("report_id = ?", id).
		Updates(bump(fields)))
}

// Delete is a hard delete: internship_id is unique across all rows, so a soft
// deleted report would block a new one for the same internship.
func (r *reportRepo) Delete(ctx context.Context, id string) error {
	return conditional(r.db.WithContext(ctx).
		Unscoped().
		Where("report_id = ? AND is_final = FALSE", id).
		Delete(&model.Report{}))
}

func (r *reportRepo) CountByFinal(ctx context.Context) (int64, int64, error) {
	var rows []struct {
		IsFinal bool
		Count   int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Report{}).
		Select("is_final, COUNT(*) AS count").
		Group("is_final").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, err
	}
	var final, notFinal int64
	for _, row := range rows {
		if row.IsFinal {
			final = row.Count
		} else {
			notFinal = row.Count
		}
	}
	return final, notFinal, nil
}

func (r *reportRepo) AverageGrade(ctx context.Context) (*float64, error) {
	var avg *float64
	err := r.db.WithContext(ctx).
		Model(&model.Report{}).
		Select("AVG(final_grade)").
		Where("final_grade IS NOT NULL").
		Scan(&avg).Error
	return avg, err
}

// ── Versions ──

// ReportVersionRepository report version data access.
type ReportVersionRepository interface {
	// Create returns ErrDuplicate when the version number is taken.
	Create(ctx context.Context, v *model.ReportVersion) error
	// GetByID loads the version with its report.
	GetByID(ctx context.Context, id string) (*model.ReportVersion, error)
	// MaxVersionNumber returns 0 for a report without versions.
	MaxVersionNumber(ctx context.Context, reportID string) (int, error)
	CountByStatus(ctx context.Context, reportID string, status model.VersionStatus) (int64, error)
	UpdateIfStatus(ctx context.Context, id string, status model.VersionStatus, fields map[string]interface{}) error
	// ClearFinal drops the final flag from every version of the report but keepID.
	ClearFinal(ctx context.Context, reportID, keepID string) error
	// ListPendingForTeacher returns versions awaiting review on internships
	// supervised by teacherID, oldest submission first.
	ListPendingForTeacher(ctx context.Context, teacherID string) ([]model.ReportVersion, error)
}

type reportVersionRepo struct {
	db *gorm.DB
}

// NewReportVersionRepo creates a ReportVersionRepository.
func NewReportVersionRepo(db *gorm.DB) ReportVersionRepository {
	return &reportVersionRepo{db: db}
}

func (r *reportVersionRepo) Create(ctx context.Context, v *model.ReportVersion) error {
	return translate(r.db.WithContext(ctx).Create(v).Error)
}

func (r *reportVersionRepo) GetByID(ctx context.Context, id string) (*model.ReportVersion, error) {
	var v model.ReportVersion
	err := r.db.WithContext(ctx).
		Preload("Report").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("version_id = ?", id).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *reportVersionRepo) MaxVersionNumber(ctx context.Context, reportID string) (int, error) {
	var n int
	err := r.db.WithContext(ctx).
		Model(&model.ReportVersion{}).
		Select("COALESCE(MAX(version_number), 0)").
		Where("report_id = ?", reportID).
		Scan(&n).Error
	return n, err
}

func (r *reportVersionRepo) CountByStatus(ctx context.Context, reportID string, status model.VersionStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.ReportVersion{}).
		Where("report_id = ? AND status = ?", reportID, status).
		Count(&n).Error
	return n, err
}

func (r *reportVersionRepo) UpdateIfStatus(ctx context.Context, id string, status model.VersionStatus, fields map[string]interface{}) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.ReportVersion{}).
		Where("version_id = ? AND status = ?", id, status).
		Updates(fields))
}

func (r *reportVersionRepo) ClearFinal(ctx context.Context, reportID, keepID string) error {
	return r.db.WithContext(ctx).
		Model(&model.ReportVersion{}).
		Where("report_id = ? AND version_id <> ? AND is_final", reportID, keepID).
		Update("is_final", false).Error
}

func (r *reportVersionRepo) ListPendingForTeacher(ctx context.Context, teacherID string) ([]model.ReportVersion, error) {
	var list []model.ReportVersion
	err := r.db.WithContext(ctx).
		Preload("Report").
		Joins("JOIN reports ON reports.report_id = report_versions.report_id AND reports.deleted_at IS NULL").
		Joins("JOIN internships ON internships.internship_id = reports.internship_id").
		Where("internships.teacher_id = ? AND report_versions.status = ?", teacherID, model.VersionPending).
		Order("report_versions.submitted_at ASC").
		Find(&list).Error
	return list, err
}

// ── Comments ──

// CommentRepository review comment data access.
type CommentRepository interface {
	Create(ctx context.Context, c *model.ReviewComment) error
	GetByID(ctx context.Context, id string) (*model.ReviewComment, error)
	// Resolve flips is_resolved once; ErrNotMatched when already resolved.
	Resolve(ctx context.Context, id string, at time.Time) error
}

type commentRepo struct {
	db *gorm.DB
}

// NewCommentRepo creates a CommentRepository.
func NewCommentRepo(db *gorm.DB) CommentRepository {
	return &commentRepo{db: db}
}

func (r *commentRepo) Create(ctx context.Context, c *model.ReviewComment) error {
	return translate(r.db.WithContext(ctx).Create(c).Error)
}

func (r *commentRepo) GetByID(ctx context.Context, id string) (*model.ReviewComment, error) {
	var c model.ReviewComment
	err := r.db.WithContext(ctx).
		Where("comment_id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *commentRepo) Resolve(ctx context.Context, id string, at time.Time) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.ReviewComment{}).
		Where("comment_id = ? AND is_resolved = FALSE", id).
		Updates(map[string]interface{}{
			"is_resolved": true,
			"resolved_at": at,
		}))
}
