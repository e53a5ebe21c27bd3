package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/model"
	"github.com/khalilhajj/PfeManagement/internal/repository"
	apperrors "github.com/khalilhajj/PfeManagement/pkg/errors"
)

// SlotService interview slot pool of an offer.
type SlotService interface {
	Create(ctx context.Context, p authz.Principal, offerID string, req *dto.CreateSlotRequest) (*dto.SlotResponse, error)
	// List is chronological. Companies and administrators see every slot with
	// its booking; students only see free slots of offers where they hold an
	// application in Interview.
	List(ctx context.Context, p authz.Principal, offerID string) ([]dto.SlotResponse, error)
	Delete(ctx context.Context, p authz.Principal, slotID string) error
}

type slotService struct {
	*base
}

// NewSlotService creates a SlotService.
func NewSlotService(b *base) SlotService {
	return &slotService{base: b}
}

// ────────────────────── Create ──────────────────────

func (s *slotService) Create(ctx context.Context, p authz.Principal, offerID string, req *dto.CreateSlotRequest) (*dto.SlotResponse, error) {
	if err := authz.Require(p, authz.SlotManage); err != nil {
		return nil, err
	}

	offer, err := s.repo.Offer.GetByID(ctx, offerID)
	if err != nil {
		return nil, s.lookup(err, ErrOfferNotFound, "offer", zap.String("id", offerID))
	}
	if !p.Owns(offer.CompanyID) {
		return nil, authz.ErrForbidden
	}
	if offer.Status != model.OfferPending && offer.Status != model.OfferApproved {
		return nil, ErrSlotOfferClosed
	}

	slot, err := s.buildSlot(offerID, req)
	if err != nil {
		return nil, err
	}
	slot.CreatedBy = &p.UserID
	slot.UpdatedBy = &p.UserID

	if err := s.repo.Slot.Create(ctx, slot); err != nil {
		s.logger.Error("create slot failed", zap.String("offer_id", offerID), zap.Error(err))
		return nil, err
	}
	return toSlotResponse(slot, true), nil
}

func (s *slotService) buildSlot(offerID string, req *dto.CreateSlotRequest) (*model.InterviewSlot, error) {
	var fields []apperrors.FieldError

	date, err := parseDate(req.Date)
	if err != nil {
		fields = append(fields, apperrors.Field("date", "must be a date formatted YYYY-MM-DD"))
	}
	start, errStart := time.Parse(model.ClockLayout, req.StartTime)
	if errStart != nil {
		fields = append(fields, apperrors.Field("start_time", "must be formatted HH:MM"))
	}
	end, errEnd := time.Parse(model.ClockLayout, req.EndTime)
	if errEnd != nil {
		fields = append(fields, apperrors.Field("end_time", "must be formatted HH:MM"))
	}
	if errStart == nil && errEnd == nil && !end.After(start) {
		fields = append(fields, apperrors.Field("end_time", "must be after start_time"))
	}
	if err == nil {
		now := s.now().In(s.loc)
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if date.Before(today) {
			fields = append(fields, apperrors.Field("date", "must not be in the past"))
		}
	}
	if len(fields) > 0 {
		return nil, ErrSlotInvalid.WithFields(fields...)
	}

	return &model.InterviewSlot{
		OfferID:   offerID,
		Date:      date,
		StartTime: start.Format(model.ClockLayout),
		EndTime:   end.Format(model.ClockLayout),
		Location:  req.Location,
	}, nil
}

// ────────────────────── List ──────────────────────

func (s *slotService) List(ctx context.Context, p authz.Principal, offerID string) ([]dto.SlotResponse, error) {
	if err := authz.Require(p, authz.SlotList); err != nil {
		return nil, err
	}

	offer, err := s.repo.Offer.GetByID(ctx, offerID)
	if err != nil {
		return nil, s.lookup(err, ErrOfferNotFound, "offer", zap.String("id", offerID))
	}

	withBooking := p.Owns(offer.CompanyID) || p.Is(authz.RoleAdministrator)
	if !withBooking {
		app, err := s.repo.Application.GetByOfferAndStudent(ctx, offerID, p.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, authz.ErrForbidden
			}
			s.logger.Error("load application failed", zap.String("offer_id", offerID), zap.Error(err))
			return nil, err
		}
		if app.Status != model.ApplicationInterview {
			return nil, authz.ErrForbidden
		}
	}

	slots, err := s.repo.Slot.ListByOffer(ctx, offerID, !withBooking)
	if err != nil {
		s.logger.Error("list slots failed", zap.String("offer_id", offerID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.SlotResponse, 0, len(slots))
	for i := range slots {
		result = append(result, *toSlotResponse(&slots[i], withBooking))
	}
	return result, nil
}

// ────────────────────── Delete ──────────────────────

func (s *slotService) Delete(ctx context.Context, p authz.Principal, slotID string) error {
	if err := authz.Require(p, authz.SlotManage); err != nil {
		return err
	}

	slot, err := s.repo.Slot.GetByID(ctx, slotID)
	if err != nil {
		return s.lookup(err, ErrSlotNotFound, "slot", zap.String("id", slotID))
	}
	offer, err := s.repo.Offer.GetByID(ctx, slot.OfferID)
	if err != nil {
		return s.lookup(err, ErrOfferNotFound, "offer", zap.String("id", slot.OfferID))
	}
	if !p.Owns(offer.CompanyID) {
		return authz.ErrForbidden
	}
	if slot.IsBooked() {
		return ErrSlotBooked
	}

	err = s.repo.Slot.Delete(ctx, slotID)
	if errors.Is(err, repository.ErrNotMatched) {
		return ErrSlotBooked
	}
	if err != nil {
		s.logger.Error("delete slot failed", zap.String("id", slotID), zap.Error(err))
	}
	return err
}
