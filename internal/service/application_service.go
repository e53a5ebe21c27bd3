package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/model"
	"github.com/khalilhajj/PfeManagement/internal/repository"
	"github.com/khalilhajj/PfeManagement/internal/workflow"
	apperrors "github.com/khalilhajj/PfeManagement/pkg/errors"
	"github.com/khalilhajj/PfeManagement/pkg/matcher"
	"github.com/khalilhajj/PfeManagement/pkg/storage"
)

// ApplicationService the application pipeline:
// Pending → Interview | Rejected, Interview → Accepted | Rejected.
type ApplicationService interface {
	Apply(ctx context.Context, p authz.Principal, req *dto.ApplyRequest, cv *Upload) (*dto.ApplicationResponse, error)
	Review(ctx context.Context, p authz.Principal, id string, req *dto.ReviewApplicationRequest) (*dto.ApplicationResponse, error)
	// SelectSlot books a free slot of the application's offer. Of several
	// concurrent callers racing for one slot exactly one succeeds; the others
	// get ErrSlotBooked.
	SelectSlot(ctx context.Context, p authz.Principal, id string, req *dto.SelectSlotRequest) (*dto.ApplicationResponse, error)
	// Decide closes an application after its interview. Accepting creates the
	// student's internship in the same transaction.
	Decide(ctx context.Context, p authz.Principal, id string, req *dto.DecisionRequest) (*dto.ApplicationResponse, error)
	CalculateMatch(ctx context.Context, p authz.Principal, id string) (*dto.ApplicationResponse, error)
	BatchCalculateMatches(ctx context.Context, p authz.Principal, offerID string) (*dto.BatchMatchResponse, error)
	Get(ctx context.Context, p authz.Principal, id string) (*dto.ApplicationResponse, error)
	ListMine(ctx context.Context, p authz.Principal) ([]dto.ApplicationResponse, error)
	ListByOffer(ctx context.Context, p authz.Principal, offerID string, req *dto.ApplicationListRequest) ([]dto.ApplicationResponse, error)
}

type applicationService struct {
	*base
	scorer matcher.Scorer
}

// NewApplicationService creates an ApplicationService. scorer may be nil.
func NewApplicationService(b *base, scorer matcher.Scorer) ApplicationService {
	return &applicationService{base: b, scorer: scorer}
}

// ────────────────────── Apply ──────────────────────

func (s *applicationService) Apply(ctx context.Context, p authz.Principal, req *dto.ApplyRequest, cv *Upload) (*dto.ApplicationResponse, error) {
	if err := authz.Require(p, authz.AppCreate); err != nil {
		return nil, err
	}
	if cv == nil || cv.Body == nil || cv.Size == 0 {
		return nil, ErrCVRequired.WithFields(apperrors.Field("cv_file", "is required"))
	}

	// Cheap checks first so a doomed request never reaches storage.
	offer, err := s.repo.Offer.GetByID(ctx, req.OfferID)
	if err != nil {
		return nil, s.lookup(err, ErrOfferNotFound, "offer", zap.String("id", req.OfferID))
	}
	if err := s.admit(ctx, s.repo, offer, p.UserID); err != nil {
		return nil, err
	}

	var app *model.Application
	err = s.withStoredFile(ctx, "cvs", cv, func(obj *storage.Object) error {
		return s.repo.Tx.Run(ctx, func(tx *repository.Repository) error {
			locked, err := tx.Offer.GetForUpdate(ctx, req.OfferID)
			if err != nil {
				return s.lookup(err, ErrOfferNotFound, "offer", zap.String("id", req.OfferID))
			}
			if err := s.admit(ctx, tx, locked, p.UserID); err != nil {
				return err
			}

			app = &model.Application{
				OfferID:     req.OfferID,
				StudentID:   p.UserID,
				CVFile:      obj.Key,
				CoverLetter: req.CoverLetter,
				Status:      model.ApplicationPending,
			}
			app.CreatedBy = &p.UserID
			app.UpdatedBy = &p.UserID
			if err := tx.Application.Create(ctx, app); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return ErrAlreadyApplied
				}
				s.logger.Error("create application failed", zap.String("offer_id", req.OfferID), zap.Error(err))
				return err
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.transition(workflow.Application.Entity(), app.Status.String())
	s.notify.Notify(ctx, Event{
		UserID:      offer.CompanyID,
		Type:        model.NotifyApplicationReceived,
		Title:       "New application",
		Content:     "A new application was submitted for \"" + offer.Title + "\".",
		RelatedType: "application",
		RelatedID:   app.ApplicationID,
	})

	app.Offer = offer
	return s.toApplicationResponse(app), nil
}

// admit checks that studentID may still apply to offer: the offer is open,
// not full, and the student has no application on it yet. Inside a
// transaction the offer row is locked so the capacity count is stable.
func (s *applicationService) admit(ctx context.Context, repo *repository.Repository, offer *model.Offer, studentID string) error {
	switch offer.Status {
	case model.OfferApproved:
	case model.OfferClosed:
		return ErrOfferClosed
	default:
		return ErrOfferNotOpen
	}

	accepted, err := repo.Application.CountByOfferAndStatus(ctx, offer.OfferID, model.ApplicationAccepted)
	if err != nil {
		s.logger.Error("count accepted applications failed", zap.String("offer_id", offer.OfferID), zap.Error(err))
		return err
	}
	if accepted >= int64(offer.PositionsAvailable) {
		return ErrOfferFull
	}

	_, err = repo.Application.GetByOfferAndStudent(ctx, offer.OfferID, studentID)
	if err == nil {
		return ErrAlreadyApplied
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("load application failed", zap.String("offer_id", offer.OfferID), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Review ──────────────────────

func (s *applicationService) Review(ctx context.Context, p authz.Principal, id string, req *dto.ReviewApplicationRequest) (*dto.ApplicationResponse, error) {
	if err := authz.Require(p, authz.AppReview); err != nil {
		return nil, err
	}

	app, err := s.repo.Application.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookup(err, ErrApplicationNotFound, "application", zap.String("id", id))
	}
	if app.Offer == nil || !p.Owns(app.Offer.CompanyID) {
		return nil, authz.ErrForbidden
	}

	target := model.ApplicationInterview
	if req.Decision == dto.DecisionReject {
		target = model.ApplicationRejected
	}
	if app.Status != model.ApplicationPending {
		return nil, workflow.ErrInvalidTransition.WithMessage("application was already reviewed")
	}
	if err := workflow.Application.Transition(app.Status, target); err != nil {
		return nil, err
	}

	now := s.now()
	err = s.repo.Application.UpdateIfStatus(ctx, id, model.ApplicationPending, map[string]interface{}{
		"status":           target,
		"company_feedback": req.Feedback,
		"reviewed_at":      now,
		"updated_by":       p.UserID,
	})
	if errors.Is(err, repository.ErrNotMatched) {
		return nil, workflow.ErrInvalidTransition.WithMessage("application was already reviewed")
	}
	if err != nil {
		s.logger.Error("review application failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	app.Status = target
	app.CompanyFeedback = req.Feedback
	app.ReviewedAt = &now
	app.Version++
	s.transition(workflow.Application.Entity(), target.String())

	content := "Your application for \"" + app.Offer.Title + "\" moved to the interview stage. Please select an interview slot."
	if target == model.ApplicationRejected {
		content = "Your application for \"" + app.Offer.Title + "\" was not retained."
	}
	s.notify.Notify(ctx, Event{
		UserID:      app.StudentID,
		Type:        model.NotifyApplicationReviewed,
		Title:       "Application " + target.String(),
		Content:     content,
		RelatedType: "application",
		RelatedID:   app.ApplicationID,
		Payload:     map[string]interface{}{"status": int(target), "feedback": req.Feedback},
	})

	return s.toApplicationResponse(app), nil
}

// ────────────────────── SelectSlot ──────────────────────

func (s *applicationService) SelectSlot(ctx context.Context, p authz.Principal, id string, req *dto.SelectSlotRequest) (*dto.ApplicationResponse, error) {
	if err := authz.Require(p, authz.AppSelect); err != nil {
		return nil, err
	}

	var (
		app  *model.Application
		slot *model.InterviewSlot
	)
	err := s.repo.Tx.Run(ctx, func(tx *repository.Repository) error {
		var err error
		app, err = tx.Application.GetByID(ctx, id)
		if err != nil {
			return s.lookup(err, ErrApplicationNotFound, "application", zap.String("id", id))
		}
		if !p.Owns(app.StudentID) || app.Offer == nil {
			return authz.ErrForbidden
		}
		if app.Status != model.ApplicationInterview {
			return workflow.ErrInvalidTransition.WithMessage("a slot can only be selected while the application is in interview")
		}
		if app.SelectedSlotID != nil {
			return ErrSlotAlreadyChosen
		}

		slot, err = tx.Slot.GetByID(ctx, req.SlotID)
		if err != nil {
			return s.lookup(err, ErrSlotNotFound, "slot", zap.String("id", req.SlotID))
		}
		if slot.OfferID != app.OfferID {
			return ErrSlotOtherOffer
		}
		if slot.IsBooked() {
			return ErrSlotBooked
		}

		// The conditional claim is the serialisation point: a concurrent
		// booker blocks on the row and then matches nothing.
		if err := tx.Slot.Book(ctx, slot.SlotID, app.ApplicationID); err != nil {
			switch {
			case errors.Is(err, repository.ErrNotMatched):
				return ErrSlotBooked
			case errors.Is(err, repository.ErrDuplicate):
				return ErrSlotAlreadyChosen
			}
			s.logger.Error("book slot failed", zap.String("slot_id", slot.SlotID), zap.Error(err))
			return err
		}
		if err := tx.Application.AttachSlot(ctx, app.ApplicationID, slot.SlotID); err != nil {
			switch {
			case errors.Is(err, repository.ErrNotMatched):
				return ErrSlotAlreadyChosen
			case errors.Is(err, repository.ErrDuplicate):
				return ErrSlotBooked
			}
			s.logger.Error("attach slot failed", zap.String("application_id", app.ApplicationID), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slot.BookedByApplicationID = &app.ApplicationID
	app.SelectedSlotID = &slot.SlotID
	app.SelectedSlot = slot
	app.Version++

	when := formatDate(slot.Date) + " " + slot.StartTime + "-" + slot.EndTime
	s.notify.Notify(ctx, Event{
		UserID:      app.StudentID,
		Type:        model.NotifyInterviewScheduled,
		Title:       "Interview scheduled",
		Content:     "Your interview for \"" + app.Offer.Title + "\" is scheduled on " + when + ".",
		RelatedType: "application",
		RelatedID:   app.ApplicationID,
		Payload:     map[string]interface{}{"slot_id": slot.SlotID},
	}, Event{
		UserID:      app.Offer.CompanyID,
		Type:        model.NotifyInterviewScheduled,
		Title:       "Interview slot selected",
		Content:     app.Student.DisplayName() + " selected the interview slot on " + when + ".",
		RelatedType: "application",
		RelatedID:   app.ApplicationID,
		Payload:     map[string]interface{}{"slot_id": slot.SlotID},
	})

	return s.toApplicationResponse(app), nil
}

// ────────────────────── Decide ──────────────────────

func (s *applicationService) Decide(ctx context.Context, p authz.Principal, id string, req *dto.DecisionRequest) (*dto.ApplicationResponse, error) {
	if err := authz.Require(p, authz.AppReview); err != nil {
		return nil, err
	}

	target := model.ApplicationAccepted
	if req.Decision == dto.DecisionReject {
		target = model.ApplicationRejected
	}

	var (
		app        *model.Application
		internship *model.Internship
	)
	now := s.now()
	err := s.repo.Tx.Run(ctx, func(tx *repository.Repository) error {
		var err error
		app, err = tx.Application.GetByID(ctx, id)
		if err != nil {
			return s.lookup(err, ErrApplicationNotFound, "application", zap.String("id", id))
		}
		if app.Offer == nil || !p.Owns(app.Offer.CompanyID) {
			return authz.ErrForbidden
		}
		if err := workflow.Application.Transition(app.Status, target); err != nil {
			return err
		}
		if app.SelectedSlotID == nil {
			return ErrSlotNotSelected
		}

		fields := map[string]interface{}{
			"status":           target,
			"interview_notes":  req.Notes,
			"company_feedback": req.Feedback,
			"decided_at":       now,
			"updated_by":       p.UserID,
		}

		if target == model.ApplicationAccepted {
			internship, err = s.accept(ctx, tx, app)
			if err != nil {
				return err
			}
		} else if s.cfg.Workflow.ReleaseSlotOnReject {
			if err := tx.Slot.Release(ctx, *app.SelectedSlotID, app.ApplicationID); err != nil && !errors.Is(err, repository.ErrNotMatched) {
				s.logger.Error("release slot failed", zap.String("slot_id", *app.SelectedSlotID), zap.Error(err))
				return err
			}
			fields["selected_slot_id"] = nil
		}

		err = tx.Application.UpdateIfStatus(ctx, id, model.ApplicationInterview, fields)
		if errors.Is(err, repository.ErrNotMatched) {
			return workflow.ErrInvalidTransition.WithMessage("application was already decided")
		}
		if err != nil {
			s.logger.Error("decide application failed", zap.String("id", id), zap.Error(err))
			return err
		}

		if internship != nil {
			if err := tx.Internship.Create(ctx, internship); err != nil {
				s.logger.Error("create internship failed", zap.String("application_id", id), zap.Error(err))
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	app.Status = target
	app.InterviewNotes = req.Notes
	app.CompanyFeedback = req.Feedback
	app.DecidedAt = &now
	app.Version++
	if target == model.ApplicationRejected && s.cfg.Workflow.ReleaseSlotOnReject {
		app.SelectedSlotID = nil
		app.SelectedSlot = nil
	}
	s.transition(workflow.Application.Entity(), target.String())

	ev := Event{
		UserID:      app.StudentID,
		Type:        model.NotifyApplicationDecided,
		Title:       "Application " + target.String(),
		RelatedType: "application",
		RelatedID:   app.ApplicationID,
		Payload:     map[string]interface{}{"status": int(target)},
	}
	if internship != nil {
		s.transition(workflow.Internship.Entity(), string(internship.Status))
		ev.Content = "Congratulations! You have been accepted for \"" + app.Offer.Title + "\". Your internship has been created."
		ev.Payload["internship_id"] = internship.InternshipID
	} else {
		ev.Content = "Thank you for interviewing for \"" + app.Offer.Title + "\". Unfortunately the company decided not to proceed. " + req.Feedback
	}
	s.notify.Notify(ctx, ev)

	resp := s.toApplicationResponse(app)
	if internship != nil {
		resp.InternshipID = internship.InternshipID
	}
	return resp, nil
}

// accept re-checks capacity under the offer lock and builds the internship
// the accepted student will hold.
func (s *applicationService) accept(ctx context.Context, tx *repository.Repository, app *model.Application) (*model.Internship, error) {
	offer, err := tx.Offer.GetForUpdate(ctx, app.OfferID)
	if err != nil {
		return nil, s.lookup(err, ErrOfferNotFound, "offer", zap.String("id", app.OfferID))
	}
	accepted, err := tx.Application.CountByOfferAndStatus(ctx, offer.OfferID, model.ApplicationAccepted)
	if err != nil {
		s.logger.Error("count accepted applications failed", zap.String("offer_id", offer.OfferID), zap.Error(err))
		return nil, err
	}
	if accepted >= int64(offer.PositionsAvailable) {
		return nil, ErrOfferFull
	}

	companyName := ""
	if company, err := tx.User.GetByID(ctx, offer.CompanyID); err == nil {
		companyName = company.FirstName
		if companyName == "" {
			companyName = company.Username
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("load company failed", zap.String("company_id", offer.CompanyID), zap.Error(err))
		return nil, err
	}

	in := &model.Internship{
		StudentID:     app.StudentID,
		OfferID:       &offer.OfferID,
		ApplicationID: &app.ApplicationID,
		Title:         offer.Title,
		Type:          string(offer.Type),
		CompanyName:   companyName,
		Description:   offer.Description,
		SpecFile:      app.CVFile,
		Status:        model.InternshipApproved,
		StartDate:     offer.StartDate,
		EndDate:       offer.EndDate,
	}
	in.CreatedBy = &offer.CompanyID
	in.UpdatedBy = &offer.CompanyID
	return in, nil
}

// ────────────────────── Match scoring ──────────────────────

func (s *applicationService) CalculateMatch(ctx context.Context, p authz.Principal, id string) (*dto.ApplicationResponse, error) {
	if err := authz.Require(p, authz.AppMatch); err != nil {
		return nil, err
	}

	app, err := s.repo.Application.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookup(err, ErrApplicationNotFound, "application", zap.String("id", id))
	}
	if app.Offer == nil || (!p.Owns(app.Offer.CompanyID) && !p.Is(authz.RoleAdministrator)) {
		return nil, authz.ErrForbidden
	}

	if err := s.score(ctx, app); err != nil {
		return nil, err
	}
	return s.toApplicationResponse(app), nil
}

func (s *applicationService) BatchCalculateMatches(ctx context.Context, p authz.Principal, offerID string) (*dto.BatchMatchResponse, error) {
	if err := authz.Require(p, authz.AppMatch); err != nil {
		return nil, err
	}

	offer, err := s.repo.Offer.GetByID(ctx, offerID)
	if err != nil {
		return nil, s.lookup(err, ErrOfferNotFound, "offer", zap.String("id", offerID))
	}
	if !p.Owns(offer.CompanyID) && !p.Is(authz.RoleAdministrator) {
		return nil, authz.ErrForbidden
	}
	if s.scorer == nil {
		return nil, ErrMatchDisabled
	}

	apps, err := s.repo.Application.ListByOffer(ctx, offerID, nil)
	if err != nil {
		s.logger.Error("list applications failed", zap.String("offer_id", offerID), zap.Error(err))
		return nil, err
	}

	resp := &dto.BatchMatchResponse{Results: make([]dto.BatchMatchResult, 0, len(apps))}
	for i := range apps {
		app := &apps[i]
		if app.IsTerminal() {
			continue
		}
		app.Offer = offer
		resp.Total++

		result := dto.BatchMatchResult{ApplicationID: app.ApplicationID}
		if err := s.score(ctx, app); err != nil {
			resp.Failed++
			result.Error = err.Error()
		} else {
			resp.Succeeded++
			result.Score = app.MatchScore
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, nil
}

// score asks the scorer about app and stores the result. It never touches
// the application status.
func (s *applicationService) score(ctx context.Context, app *model.Application) error {
	if s.scorer == nil {
		return ErrMatchDisabled
	}

	req := matcher.Request{
		ApplicantName: app.Student.DisplayName(),
		CoverLetter:   app.CoverLetter,
		CVText:        "CV document: " + s.fileURL(app.CVFile),
		OfferTitle:    app.Offer.Title,
		Description:   app.Offer.Description,
		Requirements:  app.Offer.Requirements,
		Type:          string(app.Offer.Type),
		Location:      app.Offer.Location,
		Duration:      app.Offer.Duration,
		StartDate:     formatDate(app.Offer.StartDate),
		EndDate:       formatDate(app.Offer.EndDate),
	}
	if app.Student != nil {
		req.Email = app.Student.Email
	}
	if company, err := s.repo.User.GetByID(ctx, app.Offer.CompanyID); err == nil {
		req.CompanyName = company.DisplayName()
	}

	result, err := s.scorer.Score(ctx, req)
	if err != nil {
		if errors.Is(err, matcher.ErrDisabled) {
			return ErrMatchDisabled
		}
		s.logger.Warn("match scoring failed", zap.String("application_id", app.ApplicationID), zap.Error(err))
		return ErrMatchFailed.Wrap(err)
	}

	breakdown, err := json.Marshal(result.Breakdown)
	if err != nil {
		return fmt.Errorf("encode match breakdown: %w", err)
	}
	now := s.now()
	if err := s.repo.Application.SaveMatch(ctx, app.ApplicationID, result.Score, result.Analysis, datatypes.JSON(breakdown), now); err != nil {
		s.logger.Error("save match failed", zap.String("application_id", app.ApplicationID), zap.Error(err))
		return err
	}

	app.MatchScore = &result.Score
	app.MatchAnalysis = result.Analysis
	app.MatchBreakdown = datatypes.JSON(breakdown)
	app.MatchedAt = &now
	return nil
}

// ────────────────────── Queries ──────────────────────

func (s *applicationService) Get(ctx context.Context, p authz.Principal, id string) (*dto.ApplicationResponse, error) {
	if err := authz.Require(p, authz.AppRead); err != nil {
		return nil, err
	}

	app, err := s.repo.Application.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookup(err, ErrApplicationNotFound, "application", zap.String("id", id))
	}
	isCompany := app.Offer != nil && p.Owns(app.Offer.CompanyID)
	if !p.Owns(app.StudentID) && !isCompany && !p.Is(authz.RoleAdministrator) {
		return nil, authz.ErrForbidden
	}

	resp := s.toApplicationResponse(app)
	if app.Status == model.ApplicationAccepted {
		if in, err := s.repo.Internship.GetByApplication(ctx, app.ApplicationID); err == nil {
			resp.InternshipID = in.InternshipID
		}
	}
	return resp, nil
}

func (s *applicationService) ListMine(ctx context.Context, p authz.Principal) ([]dto.ApplicationResponse, error) {
	if err := authz.Require(p, authz.AppCreate); err != nil {
		return nil, err
	}

	apps, err := s.repo.Application.ListByStudent(ctx, p.UserID)
	if err != nil {
		s.logger.Error("list student applications failed", zap.String("student_id", p.UserID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.ApplicationResponse, 0, len(apps))
	for i := range apps {
		result = append(result, *s.toApplicationResponse(&apps[i]))
	}
	return result, nil
}

func (s *applicationService) ListByOffer(ctx context.Context, p authz.Principal, offerID string, req *dto.ApplicationListRequest) ([]dto.ApplicationResponse, error) {
	if err := authz.Require(p, authz.AppReview); err != nil {
		return nil, err
	}

	offer, err := s.repo.Offer.GetByID(ctx, offerID)
	if err != nil {
		return nil, s.lookup(err, ErrOfferNotFound, "offer", zap.String("id", offerID))
	}
	if !p.Owns(offer.CompanyID) {
		return nil, authz.ErrForbidden
	}

	var status *model.ApplicationStatus
	if req.Status != nil {
		st := model.ApplicationStatus(*req.Status)
		status = &st
	}
	apps, err := s.repo.Application.ListByOffer(ctx, offerID, status)
	if err != nil {
		s.logger.Error("list offer applications failed", zap.String("offer_id", offerID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.ApplicationResponse, 0, len(apps))
	for i := range apps {
		result = append(result, *s.toApplicationResponse(&apps[i]))
	}
	return result, nil
}
