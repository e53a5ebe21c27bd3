package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/model"
	"github.com/khalilhajj/PfeManagement/internal/repository"
	"github.com/khalilhajj/PfeManagement/internal/workflow"
	apperrors "github.com/khalilhajj/PfeManagement/pkg/errors"
)

// OfferService offer admission use cases.
type OfferService interface {
	Submit(ctx context.Context, p authz.Principal, req *dto.CreateOfferRequest) (*dto.OfferResponse, error)
	Update(ctx context.Context, p authz.Principal, id string, req *dto.UpdateOfferRequest) (*dto.OfferResponse, error)
	Delete(ctx context.Context, p authz.Principal, id string) error
	Review(ctx context.Context, p authz.Principal, id string, req *dto.ReviewOfferRequest) (*dto.OfferResponse, error)
	Close(ctx context.Context, p authz.Principal, id string) (*dto.OfferResponse, error)
	Get(ctx context.Context, p authz.Principal, id string) (*dto.OfferResponse, error)
	ListMine(ctx context.Context, p authz.Principal) ([]dto.OfferResponse, error)
	Browse(ctx context.Context, p authz.Principal, req *dto.BrowseOffersRequest) ([]dto.OfferResponse, int64, error)
	ListForReview(ctx context.Context, p authz.Principal, req *dto.OfferListRequest) ([]dto.OfferResponse, error)
}

type offerService struct {
	*base
}

// NewOfferService creates an OfferService.
func NewOfferService(b *base) OfferService {
	return &offerService{base: b}
}

// ────────────────────── Submit ──────────────────────

func (s *offerService) Submit(ctx context.Context, p authz.Principal, req *dto.CreateOfferRequest) (*dto.OfferResponse, error) {
	if err := authz.Require(p, authz.OfferSubmit); err != nil {
		return nil, err
	}

	offer := &model.Offer{
		CompanyID:          p.UserID,
		Title:              strings.TrimSpace(req.Title),
		Description:        strings.TrimSpace(req.Description),
		Requirements:       req.Requirements,
		Type:               model.OfferType(req.Type),
		Location:           req.Location,
		Duration:           req.Duration,
		PositionsAvailable: req.PositionsAvailable,
		Status:             model.OfferPending,
	}
	var fields []apperrors.FieldError
	offer.StartDate, fields = parseDateField("start_date", req.StartDate, fields)
	offer.EndDate, fields = parseDateField("end_date", req.EndDate, fields)
	if err := validateOffer(offer, fields); err != nil {
		return nil, err
	}
	offer.CreatedBy = &p.UserID
	offer.UpdatedBy = &p.UserID

	if err := s.repo.Offer.Create(ctx, offer); err != nil {
		s.logger.Error("create offer failed", zap.String("company_id", p.UserID), zap.Error(err))
		return nil, err
	}

	s.transition(workflow.Offer.Entity(), string(offer.Status))
	return toOfferResponse(offer), nil
}

// ────────────────────── Update ──────────────────────

func (s *offerService) Update(ctx context.Context, p authz.Principal, id string, req *dto.UpdateOfferRequest) (*dto.OfferResponse, error) {
	if err := authz.Require(p, authz.OfferManage); err != nil {
		return nil, err
	}

	offer, err := s.repo.Offer.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookup(err, ErrOfferNotFound, "offer", zap.String("id", id))
	}
	if !p.Owns(offer.CompanyID) {
		return nil, authz.ErrForbidden
	}
	if offer.Status != model.OfferPending {
		return nil, ErrOfferNotPending
	}

	var fields []apperrors.FieldError
	if req.Title != nil {
		offer.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		offer.Description = strings.TrimSpace(*req.Description)
	}
	if req.Requirements != nil {
		offer.Requirements = *req.Requirements
	}
	if req.Type != nil {
		offer.Type = model.OfferType(*req.Type)
	}
	if req.Location != nil {
		offer.Location = *req.Location
	}
	if req.Duration != nil {
		offer.Duration = *req.Duration
	}
	if req.StartDate != nil {
		offer.StartDate, fields = parseDateField("start_date", *req.StartDate, fields)
	}
	if req.EndDate != nil {
		offer.EndDate, fields = parseDateField("end_date", *req.EndDate, fields)
	}
	if req.PositionsAvailable != nil {
		offer.PositionsAvailable = *req.PositionsAvailable
	}
	if err := validateOffer(offer, fields); err != nil {
		return nil, err
	}

	offer.Version = req.Version
	offer.UpdatedBy = &p.UserID
	if err := s.repo.Offer.Update(ctx, offer, model.OfferPending); err != nil {
		if !errors.Is(err, apperrors.ErrOptimisticLock) {
			s.logger.Error("update offer failed", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	return toOfferResponse(offer), nil
}

// ────────────────────── Delete ──────────────────────

func (s *offerService) Delete(ctx context.Context, p authz.Principal, id string) error {
	if err := authz.Require(p, authz.OfferManage); err != nil {
		return err
	}

	return s.repo.Tx.Run(ctx, func(tx *repository.Repository) error {
		offer, err := tx.Offer.GetForUpdate(ctx, id)
		if err != nil {
			return s.lookup(err, ErrOfferNotFound, "offer", zap.String("id", id))
		}
		if !p.Owns(offer.CompanyID) {
			return authz.ErrForbidden
		}

		accepted, err := tx.Application.CountByOfferAndStatus(ctx, id, model.ApplicationAccepted)
		if err != nil {
			s.logger.Error("count accepted applications failed", zap.String("offer_id", id), zap.Error(err))
			return err
		}
		if accepted > 0 {
			return ErrOfferHasAccepted
		}

		if err := tx.Offer.Delete(ctx, id, p.UserID); err != nil {
			s.logger.Error("delete offer failed", zap.String("id", id), zap.Error(err))
			return err
		}
		return nil
	})
}

// ────────────────────── Review ──────────────────────

func (s *offerService) Review(ctx context.Context, p authz.Principal, id string, req *dto.ReviewOfferRequest) (*dto.OfferResponse, error) {
	if err := authz.Require(p, authz.OfferReview); err != nil {
		return nil, err
	}

	target := model.OfferApproved
	if req.Decision == dto.DecisionReject {
		target = model.OfferRejected
	}

	offer, err := s.repo.Offer.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookup(err, ErrOfferNotFound, "offer", zap.String("id", id))
	}
	if offer.Status != model.OfferPending {
		return nil, ErrOfferNotPending
	}
	if err := workflow.Offer.Transition(offer.Status, target); err != nil {
		return nil, err
	}

	now := s.now()
	err = s.repo.Offer.UpdateIfStatus(ctx, id, model.OfferPending, map[string]interface{}{
		"status":         target,
		"admin_feedback": req.Feedback,
		"reviewed_by":    p.UserID,
		"reviewed_at":    now,
		"updated_by":     p.UserID,
	})
	if errors.Is(err, repository.ErrNotMatched) {
		return nil, ErrOfferNotPending
	}
	if err != nil {
		s.logger.Error("review offer failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	offer.Status = target
	offer.AdminFeedback = req.Feedback
	offer.ReviewedBy = &p.UserID
	offer.ReviewedAt = &now
	offer.Version++
	s.transition(workflow.Offer.Entity(), string(target))

	s.notify.Notify(ctx, Event{
		UserID:      offer.CompanyID,
		Type:        model.NotifyOfferReviewed,
		Title:       "Offer " + string(target),
		Content:     "Your offer \"" + offer.Title + "\" was " + string(target) + ".",
		RelatedType: "offer",
		RelatedID:   offer.OfferID,
		Payload:     map[string]interface{}{"status": target, "feedback": req.Feedback},
	})

	return toOfferResponse(offer), nil
}

// ────────────────────── Close ──────────────────────

func (s *offerService) Close(ctx context.Context, p authz.Principal, id string) (*dto.OfferResponse, error) {
	if err := authz.Require(p, authz.OfferClose); err != nil {
		return nil, err
	}

	offer, err := s.repo.Offer.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookup(err, ErrOfferNotFound, "offer", zap.String("id", id))
	}
	if !p.Is(authz.RoleAdministrator) && !p.Owns(offer.CompanyID) {
		return nil, authz.ErrForbidden
	}
	if err := workflow.Offer.Transition(offer.Status, model.OfferClosed); err != nil {
		return nil, err
	}

	err = s.repo.Offer.UpdateIfStatus(ctx, id, model.OfferApproved, map[string]interface{}{
		"status":     model.OfferClosed,
		"updated_by": p.UserID,
	})
	if errors.Is(err, repository.ErrNotMatched) {
		return nil, workflow.ErrInvalidTransition
	}
	if err != nil {
		s.logger.Error("close offer failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	offer.Status = model.OfferClosed
	offer.Version++
	s.transition(workflow.Offer.Entity(), string(model.OfferClosed))
	return toOfferResponse(offer), nil
}

// ────────────────────── Queries ──────────────────────

func (s *offerService) Get(ctx context.Context, p authz.Principal, id string) (*dto.OfferResponse, error) {
	offer, err := s.repo.Offer.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookup(err, ErrOfferNotFound, "offer", zap.String("id", id))
	}
	if !offer.IsVisibleToStudents() && !p.Owns(offer.CompanyID) && !p.Is(authz.RoleAdministrator) {
		return nil, ErrOfferNotFound
	}
	return toOfferResponse(offer), nil
}

func (s *offerService) ListMine(ctx context.Context, p authz.Principal) ([]dto.OfferResponse, error) {
	if err := authz.Require(p, authz.OfferManage); err != nil {
		return nil, err
	}

	offers, err := s.repo.Offer.ListByCompany(ctx, p.UserID)
	if err != nil {
		s.logger.Error("list company offers failed", zap.String("company_id", p.UserID), zap.Error(err))
		return nil, err
	}

	ids := make([]string, len(offers))
	for i := range offers {
		ids[i] = offers[i].OfferID
	}
	counts, err := s.repo.Application.CountByOffers(ctx, ids)
	if err != nil {
		s.logger.Error("count applications failed", zap.Error(err))
		return nil, err
	}

	result := make([]dto.OfferResponse, 0, len(offers))
	for i := range offers {
		resp := toOfferResponse(&offers[i])
		n := counts[offers[i].OfferID]
		resp.ApplicationCount = &n
		result = append(result, *resp)
	}
	return result, nil
}

func (s *offerService) Browse(ctx context.Context, p authz.Principal, req *dto.BrowseOffersRequest) ([]dto.OfferResponse, int64, error) {
	if err := authz.Require(p, authz.OfferBrowse); err != nil {
		return nil, 0, err
	}

	offers, total, err := s.repo.Offer.Browse(ctx, repository.OfferFilter{
		Type:     req.Type,
		Location: req.Location,
		Keyword:  req.Keyword,
		Offset:   req.GetOffset(),
		Limit:    req.GetPageSize(),
	})
	if err != nil {
		s.logger.Error("browse offers failed", zap.Error(err))
		return nil, 0, err
	}

	var applied map[string]bool
	if p.Is(authz.RoleStudent) {
		ids := make([]string, len(offers))
		for i := range offers {
			ids[i] = offers[i].OfferID
		}
		applied, err = s.repo.Application.AppliedOfferIDs(ctx, p.UserID, ids)
		if err != nil {
			s.logger.Error("load applied offers failed", zap.String("student_id", p.UserID), zap.Error(err))
			return nil, 0, err
		}
	}

	result := make([]dto.OfferResponse, 0, len(offers))
	for i := range offers {
		resp := toOfferResponse(&offers[i])
		if applied != nil {
			has := applied[offers[i].OfferID]
			resp.HasApplied = &has
		}
		result = append(result, *resp)
	}
	return result, total, nil
}

func (s *offerService) ListForReview(ctx context.Context, p authz.Principal, req *dto.OfferListRequest) ([]dto.OfferResponse, error) {
	if err := authz.Require(p, authz.OfferReview); err != nil {
		return nil, err
	}

	offers, err := s.repo.Offer.ListByStatus(ctx, req.Status)
	if err != nil {
		s.logger.Error("list offers failed", zap.String("status", req.Status), zap.Error(err))
		return nil, err
	}

	result := make([]dto.OfferResponse, 0, len(offers))
	for i := range offers {
		result = append(result, *toOfferResponse(&offers[i]))
	}
	return result, nil
}

// ── helpers ──

func parseDateField(name, value string, fields []apperrors.FieldError) (time.Time, []apperrors.FieldError) {
	t, err := parseDate(value)
	if err != nil {
		return time.Time{}, append(fields, apperrors.Field(name, "must be a date formatted YYYY-MM-DD"))
	}
	return t, fields
}

func validateOffer(o *model.Offer, fields []apperrors.FieldError) error {
	if o.Title == "" {
		fields = append(fields, apperrors.Field("title", "is required"))
	}
	if o.Description == "" {
		fields = append(fields, apperrors.Field("description", "is required"))
	}
	if o.PositionsAvailable < 1 {
		fields = append(fields, apperrors.Field("positions_available", "must be at least 1"))
	}
	if !o.StartDate.IsZero() && !o.EndDate.IsZero() && !o.StartDate.Before(o.EndDate) {
		fields = append(fields, apperrors.Field("end_date", "must be after start_date"))
	}
	if len(fields) > 0 {
		return ErrOfferInvalid.WithFields(fields...)
	}
	return nil
}
