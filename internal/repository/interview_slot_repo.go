package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/khalilhajj/PfeManagement/internal/model"
)

// InterviewSlotRepository interview slot data access.
type InterviewSlotRepository interface {
	Create(ctx context.Context, slot *model.InterviewSlot) error
	GetByID(ctx context.Context, id string) (*model.InterviewSlot, error)
	ListByOffer(ctx context.Context, offerID string, onlyFree bool) ([]model.InterviewSlot, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.InterviewSlot, error)
	// Book claims a free slot for an application. The claim is a single
	// conditional UPDATE; ErrNotMatched means another application won.
	Book(ctx context.Context, slotID, applicationID string) error
	// Release frees a slot held by applicationID.
	Release(ctx context.Context, slotID, applicationID string) error
	// Delete removes a slot only while it is free; ErrNotMatched otherwise.
	Delete(ctx context.Context, id string) error
}

type interviewSlotRepo struct {
	db *gorm.DB
}

// NewInterviewSlotRepo creates an InterviewSlotRepository.
func NewInterviewSlotRepo(db *gorm.DB) InterviewSlotRepository {
	return &interviewSlotRepo{db: db}
}

func (r *interviewSlotRepo) Create(ctx context.Context, slot *model.InterviewSlot) error {
	return translate(r.db.WithContext(ctx).Create(slot).Error)
}

func (r *interviewSlotRepo) GetByID(ctx context.Context, id string) (*model.InterviewSlot, error) {
	var slot model.InterviewSlot
	err := r.db.WithContext(ctx).
		Where("slot_id = ?", id).
		First(&slot).Error
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *interviewSlotRepo) ListByOffer(ctx context.Context, offerID string, onlyFree bool) ([]model.InterviewSlot, error) {
	var slots []model.InterviewSlot
	db := r.db.WithContext(ctx).Where("offer_id = ?", offerID)
	if onlyFree {
		db = db.Where("booked_by_application_id IS NULL")
	}
	err := db.Order("date ASC, start_time ASC").Find(&slots).Error
	return slots, err
}

func (r *interviewSlotRepo) ListByIDs(ctx context.Context, ids []string) ([]model.InterviewSlot, error) {
	var slots []model.InterviewSlot
	if len(ids) == 0 {
		return slots, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Offer").
		Where("slot_id IN ?", ids).
		Order("date ASC, start_time ASC").
		Find(&slots).Error
	return slots, err
}

func (r *interviewSlotRepo) Book(ctx context.Context, slotID, applicationID string) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.InterviewSlot{}).
		Where("slot_id = ? AND booked_by_application_id IS NULL", slotID).
		Updates(map[string]interface{}{
			"booked_by_application_id": applicationID,
			"updated_at":               gorm.Expr("NOW()"),
		}))
}

func (r *interviewSlotRepo) Release(ctx context.Context, slotID, applicationID string) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.InterviewSlot{}).
		Where("slot_id = ? AND booked_by_application_id = ?", slotID, applicationID).
		Updates(map[string]interface{}{
			"booked_by_application_id": nil,
			"updated_at":               gorm.Expr("NOW()"),
		}))
}

func (r *interviewSlotRepo) Delete(ctx context.Context, id string) error {
	return conditional(r.db.WithContext(ctx).
		Where("slot_id = ? AND booked_by_application_id IS NULL", id).
		Delete(&model.InterviewSlot{}))
}
