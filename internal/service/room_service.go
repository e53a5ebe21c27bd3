package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/model"
	"github.com/khalilhajj/PfeManagement/internal/repository"
)

// RoomService room management.
type RoomService interface {
	Create(ctx context.Context, p authz.Principal, req *dto.CreateRoomRequest) (*dto.RoomResponse, error)
	List(ctx context.Context, p authz.Principal, onlyAvailable bool) ([]dto.RoomResponse, error)
	Update(ctx context.Context, p authz.Principal, id string, req *dto.UpdateRoomRequest) (*dto.RoomResponse, error)
	Delete(ctx context.Context, p authz.Principal, id string) error
}

type roomService struct {
	*base
}

// NewRoomService creates a RoomService.
func NewRoomService(b *base) RoomService {
	return &roomService{base: b}
}

// ────────────────────── Create ──────────────────────

func (s *roomService) Create(ctx context.Context, p authz.Principal, req *dto.CreateRoomRequest) (*dto.RoomResponse, error) {
	if err := authz.Require(p, authz.RoomManage); err != nil {
		return nil, err
	}

	room := &model.Room{
		Name:        strings.TrimSpace(req.Name),
		Building:    req.Building,
		Capacity:    req.Capacity,
		Equipment:   req.Equipment,
		IsAvailable: true,
	}
	if req.IsAvailable != nil {
		room.IsAvailable = *req.IsAvailable
	}
	room.CreatedBy = &p.UserID
	room.UpdatedBy = &p.UserID

	if err := s.repo.Room.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrRoomNameTaken
		}
		s.logger.Error("create room failed", zap.String("name", room.Name), zap.Error(err))
		return nil, err
	}

	return toRoomResponse(room), nil
}

// ────────────────────── List ──────────────────────

func (s *roomService) List(ctx context.Context, p authz.Principal, onlyAvailable bool) ([]dto.RoomResponse, error) {
	if err := authz.Require(p, authz.RoomRead); err != nil {
		return nil, err
	}

	rooms, err := s.repo.Room.List(ctx, onlyAvailable)
	if err != nil {
		s.logger.Error("list rooms failed", zap.Error(err))
		return nil, err
	}

	result := make([]dto.RoomResponse, 0, len(rooms))
	for i := range rooms {
		result = append(result, *toRoomResponse(&rooms[i]))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *roomService) Update(ctx context.Context, p authz.Principal, id string, req *dto.UpdateRoomRequest) (*dto.RoomResponse, error) {
	if err := authz.Require(p, authz.RoomManage); err != nil {
		return nil, err
	}

	room, err := s.repo.Room.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookup(err, ErrRoomNotFound, "room", zap.String("id", id))
	}

	if req.Name != nil {
		room.Name = strings.TrimSpace(*req.Name)
	}
	if req.Building != nil {
		room.Building = *req.Building
	}
	if req.Capacity != nil {
		room.Capacity = *req.Capacity
	}
	if req.Equipment != nil {
		room.Equipment = *req.Equipment
	}
	if req.IsAvailable != nil {
		room.IsAvailable = *req.IsAvailable
	}
	room.UpdatedBy = &p.UserID

	if err := s.repo.Room.Update(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrRoomNameTaken
		}
		s.logger.Error("update room failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return toRoomResponse(room), nil
}

// ────────────────────── Delete ──────────────────────

// Delete refuses rooms a planned soutenance still uses. The room row lock
// keeps a concurrent planning from slipping in between the count and the
// delete.
func (s *roomService) Delete(ctx context.Context, p authz.Principal, id string) error {
	if err := authz.Require(p, authz.RoomManage); err != nil {
		return err
	}

	return s.repo.Tx.Run(ctx, func(tx *repository.Repository) error {
		if _, err := tx.Room.GetForUpdate(ctx, id); err != nil {
			return s.lookup(err, ErrRoomNotFound, "room", zap.String("id", id))
		}
		planned, err := tx.Soutenance.CountPlannedByRoom(ctx, id)
		if err != nil {
			s.logger.Error("count room soutenances failed", zap.String("id", id), zap.Error(err))
			return err
		}
		if planned > 0 {
			return ErrRoomInUse
		}
		if err := tx.Room.Delete(ctx, id, p.UserID); err != nil {
			if errors.Is(err, repository.ErrNotMatched) {
				return ErrRoomNotFound
			}
			s.logger.Error("delete room failed", zap.String("id", id), zap.Error(err))
			return err
		}
		return nil
	})
}
