package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/khalilhajj/PfeManagement/internal/model"
	pkgerrors "github.com/khalilhajj/PfeManagement/pkg/errors"
)

// OfferFilter browse filters for students.
type OfferFilter struct {
	Type     string
	Location string
	Keyword  string
	Offset   int
	Limit    int
}

// OfferRepository offer data access.
type OfferRepository interface {
	Create(ctx context.Context, offer *model.Offer) error
	GetByID(ctx context.Context, id string) (*model.Offer, error)
	// GetForUpdate reads and locks the offer row.
	GetForUpdate(ctx context.Context, id string) (*model.Offer, error)
	// Update saves editable fields guarded by version and status.
	Update(ctx context.Context, offer *model.Offer, status model.OfferStatus) error
	// UpdateIfStatus applies fields only while the offer is still in status.
	UpdateIfStatus(ctx context.Context, id string, status model.OfferStatus, fields map[string]interface{}) error
	Delete(ctx context.Context, id, deletedBy string) error
	ListByCompany(ctx context.Context, companyID string) ([]model.Offer, error)
	ListByStatus(ctx context.Context, status string) ([]model.Offer, error)
	Browse(ctx context.Context, f OfferFilter) ([]model.Offer, int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type offerRepo struct {
	db *gorm.DB
}

// NewOfferRepo creates an OfferRepository.
func NewOfferRepo(db *gorm.DB) OfferRepository {
	return &offerRepo{db: db}
}

func (r *offerRepo) Create(ctx context.Context, offer *model.Offer) error {
	return translate(r.db.WithContext(ctx).Create(offer).Error)
}

func (r *offerRepo) GetByID(ctx context.Context, id string) (*model.Offer, error) {
	var offer model.Offer
	err := r.db.WithContext(ctx).
		Preload("Company").
		Where("offer_id = ?", id).
		First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *offerRepo) GetForUpdate(ctx context.Context, id string) (*model.Offer, error) {
	var offer model.Offer
	err := forUpdate(r.db.WithContext(ctx)).
		Where("offer_id = ?", id).
		First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *offerRepo) Update(ctx context.Context, offer *model.Offer, status model.OfferStatus) error {
	oldVersion := offer.Version
	result := r.db.WithContext(ctx).
		Model(&model.Offer{}).
		Where("offer_id = ? AND version = ? AND status = ?", offer.OfferID, oldVersion, status).
		Updates(map[string]interface{}{
			"title":               offer.Title,
			"description":         offer.Description,
			"requirements":        offer.Requirements,
			"type":                offer.Type,
			"location":            offer.Location,
			"duration":            offer.Duration,
			"start_date":          offer.StartDate,
			"end_date":            offer.EndDate,
			"positions_available": offer.PositionsAvailable,
			"updated_by":          offer.UpdatedBy,
			"version":             oldVersion + 1,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	offer.Version = oldVersion + 1
	return nil
}

func (r *offerRepo) UpdateIfStatus(ctx context.Context, id string, status model.OfferStatus, fields map[string]interface{}) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.Offer{}).
		Where("offer_id = ? AND status = ?", id, status).
		Updates(bump(fields)))
}

func (r *offerRepo) Delete(ctx context.Context, id, deletedBy string) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.Offer{}).
		Where("offer_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}))
}

func (r *offerRepo) ListByCompany(ctx context.Context, companyID string) ([]model.Offer, error) {
	var offers []model.Offer
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Find(&offers).Error
	return offers, err
}

func (r *offerRepo) ListByStatus(ctx context.Context, status string) ([]model.Offer, error) {
	var offers []model.Offer
	db := r.db.WithContext(ctx).Preload("Company")
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Order("created_at DESC").Find(&offers).Error
	return offers, err
}

func (r *offerRepo) Browse(ctx context.Context, f OfferFilter) ([]model.Offer, int64, error) {
	var offers []model.Offer
	var total int64

	db := r.db.WithContext(ctx).
		Model(&model.Offer{}).
		Where("status = ?", model.OfferApproved)
	if f.Type != "" {
		db = db.Where("type = ?", f.Type)
	}
	if f.Location != "" {
		db = db.Where("location ILIKE ?", "%"+f.Location+"%")
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		like := "%" + kw + "%"
		db = db.Where("(title ILIKE ? OR description ILIKE ? OR requirements ILIKE ?)", like, like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("Company").
		Offset(f.Offset).Limit(f.Limit).
		Order("created_at DESC").
		Find(&offers).Error; err != nil {
		return nil, 0, err
	}

	return offers, total, nil
}

func (r *offerRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&model.Offer{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toCountMap(rows), nil
}
