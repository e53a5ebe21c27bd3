package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/khalilhajj/PfeManagement/internal/model"
)

// InternshipRepository internship data access.
type InternshipRepository interface {
	Create(ctx context.Context, in *model.Internship) error
	GetByID(ctx context.Context, id string) (*model.Internship, error)
	GetByApplication(ctx context.Context, applicationID string) (*model.Internship, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.Internship, error)
	ListBySupervisor(ctx context.Context, teacherID string) ([]model.Internship, error)
	ListByStatus(ctx context.Context, status model.InternshipStatus) ([]model.Internship, error)
	UpdateIfStatus(ctx context.Context, id string, status model.InternshipStatus, fields map[string]interface{}) error
	// SetSupervisor assigns the teacher while the internship has none.
	SetSupervisor(ctx context.Context, id, teacherID string) error
	// ListSoutenanceCandidates returns approved internships whose report is
	// final and that have no soutenance yet.
	ListSoutenanceCandidates(ctx context.Context) ([]model.Internship, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type internshipRepo struct {
	db *gorm.DB
}

// NewInternshipRepo creates an InternshipRepository.
func NewInternshipRepo(db *gorm.DB) InternshipRepository {
	return &internshipRepo{db: db}
}

func (r *internshipRepo) Create(ctx context.Context, in *model.Internship) error {
	return translate(r.db.WithContext(ctx).Create(in).Error)
}

func (r *internshipRepo) GetByID(ctx context.Context, id string) (*model.Internship, error) {
	var in model.Internship
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Teacher").
		Where("internship_id = ?", id).
		First(&in).Error
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (r *internshipRepo) GetByApplication(ctx context.Context, applicationID string) (*model.Internship, error) {
	var in model.Internship
	err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		First(&in).Error
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (r *internshipRepo) ListByStudent(ctx context.Context, studentID string) ([]model.Internship, error) {
	var list []model.Internship
	err := r.db.WithContext(ctx).
		Preload("Teacher").
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *internshipRepo) ListBySupervisor(ctx context.Context, teacherID string) ([]model.Internship, error) {
	var list []model.Internship
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("teacher_id = ?", teacherID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *internshipRepo) ListByStatus(ctx context.Context, status model.InternshipStatus) ([]model.Internship, error) {
	var list []model.Internship
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *internshipRepo) UpdateIfStatus(ctx context.Context, id string, status model.InternshipStatus, fields map[string]interface{}) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.Internship{}).
		Where("internship_id = ? AND status = ?", id, status).
		Updates(bump(fields)))
}

func (r *internshipRepo) SetSupervisor(ctx context.Context, id, teacherID string) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.Internship{}).
		Where("internship_id = ? AND teacher_id IS NULL", id).
		Updates(bump(map[string]interface{}{"teacher_id": teacherID})))
}

func (r *internshipRepo) ListSoutenanceCandidates(ctx context.Context) ([]model.Internship, error) {
	var list []model.Internship
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Teacher").
		Where("status = ?", model.InternshipApproved).
		Where("EXISTS (SELECT 1 FROM reports r WHERE r.internship_id = internships.internship_id AND r.is_final AND r.deleted_at IS NULL)").
		Where("NOT EXISTS (SELECT 1 FROM soutenances s WHERE s.internship_id = internships.internship_id)").
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *internshipRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&model.Internship{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toCountMap(rows), nil
}

// ── Invitations ──

// InvitationRepository teacher invitation data access.
type InvitationRepository interface {
	// Create returns ErrDuplicate while a pending invitation to the same
	// teacher exists for the internship.
	Create(ctx context.Context, inv *model.TeacherInvitation) error
	GetByID(ctx context.Context, id string) (*model.TeacherInvitation, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.TeacherInvitation, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]model.TeacherInvitation, error)
	HasPending(ctx context.Context, internshipID, teacherID string) (bool, error)
	UpdateIfStatus(ctx context.Context, id string, status model.InvitationStatus, fields map[string]interface{}) error
	// DeclineOtherPending declines every other pending invitation of the internship.
	DeclineOtherPending(ctx context.Context, internshipID, keepID string) error
}

type invitationRepo struct {
	db *gorm.DB
}

// NewInvitationRepo creates an InvitationRepository.
func NewInvitationRepo(db *gorm.DB) InvitationRepository {
	return &invitationRepo{db: db}
}

func (r *invitationRepo) Create(ctx context.Context, inv *model.TeacherInvitation) error {
	return translate(r.db.WithContext(ctx).Create(inv).Error)
}

func (r *invitationRepo) GetByID(ctx context.Context, id string) (*model.TeacherInvitation, error) {
	var inv model.TeacherInvitation
	err := r.db.WithContext(ctx).
		Preload("Internship").
		Preload("Student").
		Preload("Teacher").
		Where("invitation_id = ?", id).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invitationRepo) ListByStudent(ctx context.Context, studentID string) ([]model.TeacherInvitation, error) {
	var list []model.TeacherInvitation
	err := r.db.WithContext(ctx).
		Preload("Internship").
		Preload("Teacher").
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *invitationRepo) ListByTeacher(ctx context.Context, teacherID string) ([]model.TeacherInvitation, error) {
	var list []model.TeacherInvitation
	err := r.db.WithContext(ctx).
		Preload("Internship").
		Preload("Student").
		Where("teacher_id = ?", teacherID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *invitationRepo) HasPending(ctx context.Context, internshipID, teacherID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.TeacherInvitation{}).
		Where("internship_id = ? AND teacher_id = ? AND status = ?", internshipID, teacherID, model.InvitationPending).
		Count(&n).Error
	return n > 0, err
}

func (r *invitationRepo) UpdateIfStatus(ctx context.Context, id string, status model.InvitationStatus, fields map[string]interface{}) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.TeacherInvitation{}).
		Where("invitation_id = ? AND status = ?", id, status).
		Updates(fields))
}

func (r *invitationRepo) DeclineOtherPending(ctx context.Context, internshipID, keepID string) error {
	return r.db.WithContext(ctx).
		Model(&model.TeacherInvitation{}).
		Where("internship_id = ? AND invitation_id <> ? AND status = ?", internshipID, keepID, model.InvitationPending).
		Updates(map[string]interface{}{
			"status":       model.InvitationDeclined,
			"responded_at": gorm.Expr("NOW()"),
		}).Error
}
