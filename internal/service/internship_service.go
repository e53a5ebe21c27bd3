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
	"github.com/khalilhajj/PfeManagement/internal/workflow"
	apperrors "github.com/khalilhajj/PfeManagement/pkg/errors"
	"github.com/khalilhajj/PfeManagement/pkg/storage"
)

// InternshipService internship admission and supervision use cases.
type InternshipService interface {
	Propose(ctx context.Context, p authz.Principal, req *dto.ProposeInternshipRequest, spec *Upload) (*dto.InternshipResponse, error)
	Review(ctx context.Context, p authz.Principal, id string, req *dto.ReviewInternshipRequest) (*dto.InternshipResponse, error)
	Get(ctx context.Context, p authz.Principal, id string) (*dto.InternshipResponse, error)
	// ListMine returns the student's internships, or the ones a teacher supervises.
	ListMine(ctx context.Context, p authz.Principal) ([]dto.InternshipResponse, error)
	ListPending(ctx context.Context, p authz.Principal) ([]dto.InternshipResponse, error)
	InviteTeacher(ctx context.Context, p authz.Principal, req *dto.InviteTeacherRequest) (*dto.InvitationResponse, error)
	RespondInvitation(ctx context.Context, p authz.Principal, id string, req *dto.RespondInvitationRequest) (*dto.InvitationResponse, error)
	ListInvitations(ctx context.Context, p authz.Principal) ([]dto.InvitationResponse, error)
	ListSoutenanceCandidates(ctx context.Context, p authz.Principal) ([]dto.InternshipResponse, error)
}

type internshipService struct {
	*base
}

// NewInternshipService creates an InternshipService.
func NewInternshipService(b *base) InternshipService {
	return &internshipService{base: b}
}

// ────────────────────── Proposal ──────────────────────

func (s *internshipService) Propose(ctx context.Context, p authz.Principal, req *dto.ProposeInternshipRequest, spec *Upload) (*dto.InternshipResponse, error) {
	if err := authz.Require(p, authz.InternPropose); err != nil {
		return nil, err
	}

	in := &model.Internship{
		StudentID:   p.UserID,
		Title:       strings.TrimSpace(req.Title),
		Type:        strings.TrimSpace(req.Type),
		CompanyName: strings.TrimSpace(req.CompanyName),
		Description: req.Description,
		Status:      model.InternshipPending,
	}
	var fields []apperrors.FieldError
	in.StartDate, fields = parseDateField("start_date", req.StartDate, fields)
	in.EndDate, fields = parseDateField("end_date", req.EndDate, fields)
	if in.Title == "" {
		fields = append(fields, apperrors.Field("title", "is required"))
	}
	if in.CompanyName == "" {
		fields = append(fields, apperrors.Field("company_name", "is required"))
	}
	if !in.StartDate.IsZero() && !in.EndDate.IsZero() && !in.StartDate.Before(in.EndDate) {
		fields = append(fields, apperrors.Field("end_date", "must be after start_date"))
	}
	if len(fields) > 0 {
		return nil, ErrInternshipInvalid.WithFields(fields...)
	}
	in.CreatedBy = &p.UserID
	in.UpdatedBy = &p.UserID

	create := func() error {
		if err := s.repo.Internship.Create(ctx, in); err != nil {
			s.logger.Error("create internship failed", zap.String("student_id", p.UserID), zap.Error(err))
			return err
		}
		return nil
	}

	var err error
	if spec != nil && spec.Body != nil && spec.Size > 0 {
		err = s.withStoredFile(ctx, "specs", spec, func(obj *storage.Object) error {
			in.SpecFile = obj.Key
			return create()
		})
	} else {
		err = create()
	}
	if err != nil {
		return nil, err
	}

	s.transition(workflow.Internship.Entity(), string(in.Status))
	s.notifyAdmins(ctx, Event{
		Type:        model.NotifyInternshipReviewed,
		Title:       "Internship proposal",
		Content:     "A new internship \"" + in.Title + "\" at " + in.CompanyName + " awaits review.",
		RelatedType: "internship",
		RelatedID:   in.InternshipID,
	})

	return s.toInternshipResponse(in), nil
}

// notifyAdmins sends ev to every administrator.
func (s *internshipService) notifyAdmins(ctx context.Context, ev Event) {
	admins, err := s.repo.User.ListByRole(ctx, string(authz.RoleAdministrator))
	if err != nil {
		s.logger.Warn("list administrators failed", zap.Error(err))
		return
	}
	events := make([]Event, 0, len(admins))
	for _, a := range admins {
		e := ev
		e.UserID = a.UserID
		events = append(events, e)
	}
	s.notify.Notify(ctx, events...)
}

func (s *internshipService) Review(ctx context.Context, p authz.Principal, id string, req *dto.ReviewInternshipRequest) (*dto.InternshipResponse, error) {
	if err := authz.Require(p, authz.InternReview); err != nil {
		return nil, err
	}

	in, err := s.repo.Internship.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookup(err, ErrInternshipNotFound, "internship", zap.String("id", id))
	}

	target := model.InternshipApproved
	if req.Decision == dto.DecisionReject {
		target = model.InternshipRejected
	}
	if err := workflow.Internship.Transition(in.Status, target); err != nil {
		return nil, err
	}

	now := s.now()
	err = s.repo.Internship.UpdateIfStatus(ctx, id, model.InternshipPending, map[string]interface{}{
		"status":         target,
		"admin_feedback": req.Feedback,
		"reviewed_by":    p.UserID,
		"reviewed_at":    now,
		"updated_by":     p.UserID,
	})
	if errors.Is(err, repository.ErrNotMatched) {
		return nil, workflow.ErrInvalidTransition.WithMessage("internship was already reviewed")
	}
	if err != nil {
		s.logger.Error("review internship failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	in.Status = target
	in.AdminFeedback = req.Feedback
	in.ReviewedBy = &p.UserID
	in.ReviewedAt = &now
	in.Version++
	s.transition(workflow.Internship.Entity(), string(target))

	s.notify.Notify(ctx, Event{
		UserID:      in.StudentID,
		Type:        model.NotifyInternshipReviewed,
		Title:       "Internship " + string(target),
		Content:     "Your internship \"" + in.Title + "\" was " + string(target) + ". " + req.Feedback,
		RelatedType: "internship",
		RelatedID:   in.InternshipID,
		Payload:     map[string]interface{}{"status": string(target)},
	})

	return s.toInternshipResponse(in), nil
}

// ────────────────────── Queries ──────────────────────

func (s *internshipService) Get(ctx context.Context, p authz.Principal, id string) (*dto.InternshipResponse, error) {
	if err := authz.Require(p, authz.InternRead); err != nil {
		return nil, err
	}

	in, err := s.repo.Internship.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookup(err, ErrInternshipNotFound, "internship", zap.String("id", id))
	}
	if !p.Owns(in.StudentID) && !in.IsSupervisedBy(p.UserID) && !p.Is(authz.RoleAdministrator) {
		return nil, authz.ErrForbidden
	}
	return s.toInternshipResponse(in), nil
}

func (s *internshipService) ListMine(ctx context.Context, p authz.Principal) ([]dto.InternshipResponse, error) {
	if err := authz.Require(p, authz.InternRead); err != nil {
		return nil, err
	}

	var (
		list []model.Internship
		err  error
	)
	switch p.Role {
	case authz.RoleStudent:
		list, err = s.repo.Internship.ListByStudent(ctx, p.UserID)
	case authz.RoleTeacher:
		list, err = s.repo.Internship.ListBySupervisor(ctx, p.UserID)
	default:
		list, err = s.repo.Internship.ListByStatus(ctx, model.InternshipApproved)
	}
	if err != nil {
		s.logger.Error("list internships failed", zap.String("user_id", p.UserID), zap.Error(err))
		return nil, err
	}
	return s.toInternshipList(list), nil
}

func (s *internshipService) ListPending(ctx context.Context, p authz.Principal) ([]dto.InternshipResponse, error) {
	if err := authz.Require(p, authz.InternReview); err != nil {
		return nil, err
	}

	list, err := s.repo.Internship.ListByStatus(ctx, model.InternshipPending)
	if err != nil {
		s.logger.Error("list pending internships failed", zap.Error(err))
		return nil, err
	}
	return s.toInternshipList(list), nil
}

func (s *internshipService) ListSoutenanceCandidates(ctx context.Context, p authz.Principal) ([]dto.InternshipResponse, error) {
	if err := authz.Require(p, authz.SoutenancePlan); err != nil {
		return nil, err
	}

	list, err := s.repo.Internship.ListSoutenanceCandidates(ctx)
	if err != nil {
		s.logger.Error("list soutenance candidates failed", zap.Error(err))
		return nil, err
	}
	return s.toInternshipList(list), nil
}

func (s *internshipService) toInternshipList(list []model.Internship) []dto.InternshipResponse {
	result := make([]dto.InternshipResponse, 0, len(list))
	for i := range list {
		result = append(result, *s.toInternshipResponse(&list[i]))
	}
	return result
}

// ────────────────────── Invitations ──────────────────────

func (s *internshipService) InviteTeacher(ctx context.Context, p authz.Principal, req *dto.InviteTeacherRequest) (*dto.InvitationResponse, error) {
	if err := authz.Require(p, authz.InviteSend); err != nil {
		return nil, err
	}

	in, err := s.repo.Internship.GetByID(ctx, req.InternshipID)
	if err != nil {
		return nil, s.lookup(err, ErrInternshipNotFound, "internship", zap.String("id", req.InternshipID))
	}
	if !p.Owns(in.StudentID) {
		return nil, authz.ErrForbidden
	}
	if in.Status != model.InternshipApproved {
		return nil, ErrInternshipNotApproved
	}
	if in.TeacherID != nil {
		return nil, ErrAlreadySupervised
	}

	teacher, err := s.repo.User.GetByID(ctx, req.TeacherID)
	if err != nil {
		return nil, s.lookup(err, ErrUserNotFound, "teacher", zap.String("id", req.TeacherID))
	}
	if teacher.Role != string(authz.RoleTeacher) || !teacher.IsActive {
		return nil, ErrNotATeacher
	}

	pending, err := s.repo.Invitation.HasPending(ctx, in.InternshipID, teacher.UserID)
	if err != nil {
		s.logger.Error("check pending invitation failed", zap.String("internship_id", in.InternshipID), zap.Error(err))
		return nil, err
	}
	if pending {
		return nil, ErrInvitationPending
	}

	inv := &model.TeacherInvitation{
		InternshipID: in.InternshipID,
		StudentID:    p.UserID,
		TeacherID:    teacher.UserID,
		Message:      req.Message,
		Status:       model.InvitationPending,
	}
	inv.CreatedBy = &p.UserID
	inv.UpdatedBy = &p.UserID
	if err := s.repo.Invitation.Create(ctx, inv); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrInvitationPending
		}
		s.logger.Error("create invitation failed", zap.String("internship_id", in.InternshipID), zap.Error(err))
		return nil, err
	}

	s.transition(workflow.Invitation.Entity(), string(inv.Status))
	s.notify.Notify(ctx, Event{
		UserID:      teacher.UserID,
		Type:        model.NotifyTeacherInvited,
		Title:       "Supervision request",
		Content:     in.Student.DisplayName() + " invited you to supervise \"" + in.Title + "\".",
		RelatedType: "internship",
		RelatedID:   in.InternshipID,
		Payload:     map[string]interface{}{"invitation_id": inv.InvitationID},
	})

	inv.Internship = in
	inv.Student = in.Student
	inv.Teacher = teacher
	return s.toInvitationResponse(inv), nil
}

func (s *internshipService) RespondInvitation(ctx context.Context, p authz.Principal, id string, req *dto.RespondInvitationRequest) (*dto.InvitationResponse, error) {
	if err := authz.Require(p, authz.InviteAnswer); err != nil {
		return nil, err
	}

	target := model.InvitationDeclined
	if req.Decision == dto.DecisionAccept {
		target = model.InvitationAccepted
	}

	var inv *model.TeacherInvitation
	now := s.now()
	err := s.repo.Tx.Run(ctx, func(tx *repository.Repository) error {
		var err error
		inv, err = tx.Invitation.GetByID(ctx, id)
		if err != nil {
			return s.lookup(err, ErrInvitationNotFound, "invitation", zap.String("id", id))
		}
		if !p.Owns(inv.TeacherID) {
			return authz.ErrForbidden
		}
		if err := workflow.Invitation.Transition(inv.Status, target); err != nil {
			return err
		}

		err = tx.Invitation.UpdateIfStatus(ctx, id, model.InvitationPending, map[string]interface{}{
			"status":       target,
			"responded_at": now,
			"updated_by":   p.UserID,
		})
		if errors.Is(err, repository.ErrNotMatched) {
			return workflow.ErrInvalidTransition.WithMessage("invitation was already answered")
		}
		if err != nil {
			s.logger.Error("answer invitation failed", zap.String("id", id), zap.Error(err))
			return err
		}
		if target != model.InvitationAccepted {
			return nil
		}

		if err := tx.Internship.SetSupervisor(ctx, inv.InternshipID, p.UserID); err != nil {
			if errors.Is(err, repository.ErrNotMatched) {
				return ErrAlreadySupervised
			}
			s.logger.Error("assign supervisor failed", zap.String("internship_id", inv.InternshipID), zap.Error(err))
			return err
		}
		if err := tx.Invitation.DeclineOtherPending(ctx, inv.InternshipID, inv.InvitationID); err != nil {
			s.logger.Error("decline sibling invitations failed", zap.String("internship_id", inv.InternshipID), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	inv.Status = target
	inv.RespondedAt = &now
	if target == model.InvitationAccepted && inv.Internship != nil {
		inv.Internship.TeacherID = &p.UserID
	}
	s.transition(workflow.Invitation.Entity(), string(target))

	title := ""
	if inv.Internship != nil {
		title = inv.Internship.Title
	}
	s.notify.Notify(ctx, Event{
		UserID:      inv.StudentID,
		Type:        model.NotifyInvitationAnswered,
		Title:       "Supervision request " + string(target),
		Content:     inv.Teacher.DisplayName() + " " + string(target) + " to supervise \"" + title + "\".",
		RelatedType: "internship",
		RelatedID:   inv.InternshipID,
		Payload:     map[string]interface{}{"invitation_id": inv.InvitationID, "status": string(target)},
	})

	return s.toInvitationResponse(inv), nil
}

// ListInvitations returns the invitations a student sent or a teacher received.
func (s *internshipService) ListInvitations(ctx context.Context, p authz.Principal) ([]dto.InvitationResponse, error) {
	if err := authz.Require(p, authz.InviteList); err != nil {
		return nil, err
	}

	var (
		list []model.TeacherInvitation
		err  error
	)
	if p.Is(authz.RoleTeacher) {
		list, err = s.repo.Invitation.ListByTeacher(ctx, p.UserID)
	} else {
		list, err = s.repo.Invitation.ListByStudent(ctx, p.UserID)
	}
	if err != nil {
		s.logger.Error("list invitations failed", zap.String("user_id", p.UserID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.InvitationResponse, 0, len(list))
	for i := range list {
		result = append(result, *s.toInvitationResponse(&list[i]))
	}
	return result, nil
}
