package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/khalilhajj/PfeManagement/internal/model"
)

// RoomRepository room data access.
type RoomRepository interface {
	// Create returns ErrDuplicate when the name is taken.
	Create(ctx context.Context, room *model.Room) error
	GetByID(ctx context.Context, id string) (*model.Room, error)
	// GetForUpdate locks the room row, serialising bookings of the room.
	GetForUpdate(ctx context.Context, id string) (*model.Room, error)
	List(ctx context.Context, onlyAvailable bool) ([]model.Room, error)
	Update(ctx context.Context, room *model.Room) error
	Delete(ctx context.Context, id string, deletedBy string) error
	CountByAvailability(ctx context.Context) (available int64, unavailable int64, err error)
}

type roomRepo struct {
	db *gorm.DB
}

// NewRoomRepo creates a RoomRepository.
func NewRoomRepo(db *gorm.DB) RoomRepository {
	return &roomRepo{db: db}
}

func (r *roomRepo) Create(ctx context.Context, room *model.Room) error {
	return translate(r.db.WithContext(ctx).Create(room).Error)
}

func (r *roomRepo) GetByID(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).
		Where("room_id = ?", id).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepo) GetForUpdate(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	err := forUpdate(r.db.WithContext(ctx)).
		Where("room_id = ?", id).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepo) List(ctx context.Context, onlyAvailable bool) ([]model.Room, error) {
	var rooms []model.Room
	db := r.db.WithContext(ctx)

	if onlyAvailable {
		db = db.Where("is_available = ?", true)
	}

	err := db.Order("building ASC, name ASC").Find(&rooms).Error
	return rooms, err
}

func (r *roomRepo) Update(ctx context.Context, room *model.Room) error {
	return translate(r.db.WithContext(ctx).Save(room).Error)
}

func (r *roomRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.Room{}).
		Where("room_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}))
}

func (r *roomRepo) CountByAvailability(ctx context.Context) (int64, int64, error) {
	var rows []struct {
		IsAvailable bool
		Count       int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Room{}).
		Select("is_available, COUNT(*) AS count").
		Group("is_available").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, err
	}
	var available, unavailable int64
	for _, row := range rows {
		if row.IsAvailable {
			available = row.Count
		} else {
			unavailable = row.Count
		}
	}
	return available, unavailable, nil
}
