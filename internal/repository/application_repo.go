package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/khalilhajj/PfeManagement/internal/model"
)

// ApplicationRepository application data access.
type ApplicationRepository interface {
	// Create returns ErrDuplicate when the student already applied to the offer.
	Create(ctx context.Context, app *model.Application) error
	GetByID(ctx context.Context, id string) (*model.Application, error)
	GetByOfferAndStudent(ctx context.Context, offerID, studentID string) (*model.Application, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.Application, error)
	ListByOffer(ctx context.Context, offerID string, status *model.ApplicationStatus) ([]model.Application, error)
	CountByOfferAndStatus(ctx context.Context, offerID string, status model.ApplicationStatus) (int64, error)
	// CountByOffers returns the number of applications per offer ID.
	CountByOffers(ctx context.Context, offerIDs []string) (map[string]int64, error)
	// AppliedOfferIDs returns the subset of offerIDs the student applied to.
	AppliedOfferIDs(ctx context.Context, studentID string, offerIDs []string) (map[string]bool, error)
	// UpdateIfStatus applies fields only while the application is in status.
	UpdateIfStatus(ctx context.Context, id string, status model.ApplicationStatus, fields map[string]interface{}) error
	// AttachSlot sets selected_slot_id while the application is in Interview
	// and holds no slot yet.
	AttachSlot(ctx context.Context, id, slotID string) error
	SaveMatch(ctx context.Context, id string, score int, analysis string, breakdown datatypes.JSON, at time.Time) error
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type applicationRepo struct {
	db *gorm.DB
}

// NewApplicationRepo creates an ApplicationRepository.
func NewApplicationRepo(db *gorm.DB) ApplicationRepository {
	return &applicationRepo{db: db}
}

func (r *applicationRepo) Create(ctx context.Context, app *model.Application) error {
	return translate(r.db.WithContext(ctx).Create(app).Error)
}

func (r *applicationRepo) GetByID(ctx context.Context, id string) (*model.Application, error) {
	var app model.Application
	err := r.db.WithContext(ctx).
		Preload("Offer").
		Preload("Student").
		Preload("SelectedSlot").
		Where("application_id = ?", id).
		First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepo) GetByOfferAndStudent(ctx context.Context, offerID, studentID string) (*model.Application, error) {
	var app model.Application
	err := r.db.WithContext(ctx).
		Where("offer_id = ? AND student_id = ?", offerID, studentID).
		First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepo) ListByStudent(ctx context.Context, studentID string) ([]model.Application, error) {
	var apps []model.Application
	err := r.db.WithContext(ctx).
		Preload("Offer").
		Preload("Offer.Company").
		Preload("SelectedSlot").
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&apps).Error
	return apps, err
}

func (r *applicationRepo) ListByOffer(ctx context.Context, offerID string, status *model.ApplicationStatus) ([]model.Application, error) {
	var apps []model.Application
	db := r.db.WithContext(ctx).
		Preload("Student").
		Preload("SelectedSlot").
		Where("offer_id = ?", offerID)
	if status != nil {
		db = db.Where("status = ?", *status)
	}
	err := db.Order("match_score DESC NULLS LAST, created_at ASC").Find(&apps).Error
	return apps, err
}

func (r *applicationRepo) CountByOfferAndStatus(ctx context.Context, offerID string, status model.ApplicationStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Application{}).
		Where("offer_id = ? AND status = ?", offerID, status).
		Count(&n).Error
	return n, err
}

func (r *applicationRepo) CountByOffers(ctx context.Context, offerIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(offerIDs))
	if len(offerIDs) == 0 {
		return counts, nil
	}
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&model.Application{}).
		Select("offer_id AS status, COUNT(*) AS count").
		Where("offer_id IN ?", offerIDs).
		Group("offer_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *applicationRepo) AppliedOfferIDs(ctx context.Context, studentID string, offerIDs []string) (map[string]bool, error) {
	applied := make(map[string]bool)
	if len(offerIDs) == 0 {
		return applied, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Application{}).
		Where("student_id = ? AND offer_id IN ?", studentID, offerIDs).
		Pluck("offer_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		applied[id] = true
	}
	return applied, nil
}

func (r *applicationRepo) UpdateIfStatus(ctx context.Context, id string, status model.ApplicationStatus, fields map[string]interface{}) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.Application{}).
		Where("application_id = ? AND status = ?", id, status).
		Updates(bump(fields)))
}

func (r *applicationRepo) AttachSlot(ctx context.Context, id, slotID string) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.Application{}).
		Where("application_id = ? AND status = ? AND selected_slot_id IS NULL", id, model.ApplicationInterview).
		Updates(bump(map[string]interface{}{"selected_slot_id": slotID})))
}

func (r *applicationRepo) SaveMatch(ctx context.Context, id string, score int, analysis string, breakdown datatypes.JSON, at time.Time) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.Application{}).
		Where("application_id = ?", id).
		Updates(map[string]interface{}{
			"match_score":     score,
			"match_analysis":  analysis,
			"match_breakdown": breakdown,
			"matched_at":      at,
		}))
}

func (r *applicationRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&model.Application{}).
		Select("status::text AS status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toCountMap(rows), nil
}
