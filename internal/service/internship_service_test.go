package service

import (
	"context"
	"errors"
	"testing"

	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/model"
	"github.com/khalilhajj/PfeManagement/internal/workflow"
	apperrors "github.com/khalilhajj/PfeManagement/pkg/errors"
)

func setupTestInternshipService() (InternshipService, *testEnv) {
	env := newTestEnv()
	return NewInternshipService(env.base), env
}

func validProposal() *dto.ProposeInternshipRequest {
	return &dto.ProposeInternshipRequest{
		Title:       "Fraud detection pipeline",
		Type:        "PFE",
		CompanyName: "Acme",
		StartDate:   "2026-02-01",
		EndDate:     "2026-07-31",
	}
}

// ── Propose ──

func TestInternshipService_Propose(t *testing.T) {
	svc, env := setupTestInternshipService()
	ctx := context.Background()

	student := env.store.addUser("student", "amira")
	admin := env.store.addUser("administrator", "root")

	resp, err := svc.Propose(ctx, as(student), validProposal(), upload("spec.pdf", "scope"))
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if resp.Status != string(model.InternshipPending) {
		t.Errorf("status = %q, want pending", resp.Status)
	}
	if resp.SpecFile == "" || env.files.count() != 1 {
		t.Errorf("spec file not stored: %q, %d objects", resp.SpecFile, env.files.count())
	}
	if got := env.notes.to(admin.UserID, model.NotifyInternshipReviewed); len(got) != 1 {
		t.Errorf("admin notifications = %d, want 1", len(got))
	}
}

func TestInternshipService_Propose_Invalid(t *testing.T) {
	svc, env := setupTestInternshipService()
	student := env.store.addUser("student", "amira")

	req := validProposal()
	req.Title = "  "
	req.EndDate = "2026-01-01"

	_, err := svc.Propose(context.Background(), as(student), req, nil)
	assertKind(t, err, apperrors.KindValidation)

	appErr, ok := apperrors.As(err)
	if !ok || len(appErr.Fields) != 2 {
		t.Fatalf("expected two field errors, got %v", err)
	}
}

func TestInternshipService_Propose_WrongRole(t *testing.T) {
	svc, env := setupTestInternshipService()
	company := env.store.addUser("company", "acme")

	_, err := svc.Propose(context.Background(), as(company), validProposal(), nil)
	if !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

// ── Review ──

func TestInternshipService_Review(t *testing.T) {
	tests := []struct {
		decision string
		want     model.InternshipStatus
	}{
		{dto.DecisionApprove, model.InternshipApproved},
		{dto.DecisionReject, model.InternshipRejected},
	}

	for _, tt := range tests {
		t.Run(tt.decision, func(t *testing.T) {
			svc, env := setupTestInternshipService()
			ctx := context.Background()
			student := env.store.addUser("student", "amira")
			admin := env.store.addUser("administrator", "root")

			in, err := svc.Propose(ctx, as(student), validProposal(), nil)
			if err != nil {
				t.Fatalf("Propose: %v", err)
			}

			resp, err := svc.Review(ctx, as(admin), in.ID, &dto.ReviewInternshipRequest{Decision: tt.decision, Feedback: "ok"})
			if err != nil {
				t.Fatalf("Review: %v", err)
			}
			if resp.Status != string(tt.want) {
				t.Errorf("status = %q, want %q", resp.Status, tt.want)
			}
			if got := env.notes.to(student.UserID, model.NotifyInternshipReviewed); len(got) != 1 {
				t.Errorf("student notifications = %d, want 1", len(got))
			}

			_, err = svc.Review(ctx, as(admin), in.ID, &dto.ReviewInternshipRequest{Decision: dto.DecisionApprove})
			if !errors.Is(err, workflow.ErrInvalidTransition) {
				t.Errorf("second review: expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestInternshipService_Review_NotFound(t *testing.T) {
	svc, env := setupTestInternshipService()
	admin := env.store.addUser("administrator", "root")

	_, err := svc.Review(context.Background(), as(admin), "missing", &dto.ReviewInternshipRequest{Decision: dto.DecisionApprove})
	if !errors.Is(err, ErrInternshipNotFound) {
		t.Fatalf("expected ErrInternshipNotFound, got %v", err)
	}
}

// ── Queries ──

func TestInternshipService_Get_Visibility(t *testing.T) {
	svc, env := setupTestInternshipService()
	ctx := context.Background()

	student := env.store.addUser("student", "amira")
	other := env.store.addUser("student", "sami")
	teacher := env.store.addUser("teacher", "prof")
	in := env.store.addInternship(student.UserID, teacher.UserID)

	if _, err := svc.Get(ctx, as(student), in.InternshipID); err != nil {
		t.Errorf("owner: %v", err)
	}
	if _, err := svc.Get(ctx, as(teacher), in.InternshipID); err != nil {
		t.Errorf("supervisor: %v", err)
	}
	if _, err := svc.Get(ctx, as(other), in.InternshipID); !errors.Is(err, authz.ErrForbidden) {
		t.Errorf("stranger: expected ErrForbidden, got %v", err)
	}
}

func TestInternshipService_ListMine(t *testing.T) {
	svc, env := setupTestInternshipService()
	ctx := context.Background()

	student := env.store.addUser("student", "amira")
	teacher := env.store.addUser("teacher", "prof")
	env.store.addInternship(student.UserID, teacher.UserID)
	env.store.addInternship(student.UserID, "")

	mine, err := svc.ListMine(ctx, as(student))
	if err != nil || len(mine) != 2 {
		t.Fatalf("student list = %d (%v), want 2", len(mine), err)
	}
	supervised, err := svc.ListMine(ctx, as(teacher))
	if err != nil || len(supervised) != 1 {
		t.Fatalf("teacher list = %d (%v), want 1", len(supervised), err)
	}
}

// ── Invitations ──

func TestInternshipService_InviteTeacher_Rules(t *testing.T) {
	svc, env := setupTestInternshipService()
	ctx := context.Background()

	student := env.store.addUser("student", "amira")
	teacher := env.store.addUser("teacher", "prof")
	company := env.store.addUser("company", "acme")

	supervised := env.store.addInternship(student.UserID, teacher.UserID)
	free := env.store.addInternship(student.UserID, "")

	pending, err := svc.Propose(ctx, as(student), validProposal(), nil)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	tests := []struct {
		name         string
		internshipID string
		teacherID    string
		want         error
	}{
		{"not approved", pending.ID, teacher.UserID, ErrInternshipNotApproved},
		{"already supervised", supervised.InternshipID, teacher.UserID, ErrAlreadySupervised},
		{"not a teacher", free.InternshipID, company.UserID, ErrNotATeacher},
		{"unknown teacher", free.InternshipID, "missing", ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.InviteTeacher(ctx, as(student), &dto.InviteTeacherRequest{
				InternshipID: tt.internshipID,
				TeacherID:    tt.teacherID,
			})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestInternshipService_InviteTeacher_Duplicate(t *testing.T) {
	svc, env := setupTestInternshipService()
	ctx := context.Background()

	student := env.store.addUser("student", "amira")
	teacher := env.store.addUser("teacher", "prof")
	in := env.store.addInternship(student.UserID, "")
	req := &dto.InviteTeacherRequest{InternshipID: in.InternshipID, TeacherID: teacher.UserID, Message: "Would you supervise me?"}

	inv, err := svc.InviteTeacher(ctx, as(student), req)
	if err != nil {
		t.Fatalf("InviteTeacher: %v", err)
	}
	if inv.Status != string(model.InvitationPending) {
		t.Errorf("status = %q, want pending", inv.Status)
	}
	if got := env.notes.to(teacher.UserID, model.NotifyTeacherInvited); len(got) != 1 {
		t.Errorf("teacher notifications = %d, want 1", len(got))
	}

	_, err = svc.InviteTeacher(ctx, as(student), req)
	if !errors.Is(err, ErrInvitationPending) {
		t.Fatalf("expected ErrInvitationPending, got %v", err)
	}
}

func TestInternshipService_InviteTeacher_NotOwner(t *testing.T) {
	svc, env := setupTestInternshipService()

	student := env.store.addUser("student", "amira")
	other := env.store.addUser("student", "sami")
	teacher := env.store.addUser("teacher", "prof")
	in := env.store.addInternship(student.UserID, "")

	_, err := svc.InviteTeacher(context.Background(), as(other), &dto.InviteTeacherRequest{
		InternshipID: in.InternshipID,
		TeacherID:    teacher.UserID,
	})
	if !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestInternshipService_RespondInvitation_Accept(t *testing.T) {
	svc, env := setupTestInternshipService()
	ctx := context.Background()

	student := env.store.addUser("student", "amira")
	first := env.store.addUser("teacher", "prof")
	second := env.store.addUser("teacher", "mentor")
	in := env.store.addInternship(student.UserID, "")

	inv1, err := svc.InviteTeacher(ctx, as(student), &dto.InviteTeacherRequest{InternshipID: in.InternshipID, TeacherID: first.UserID})
	if err != nil {
		t.Fatalf("invite first: %v", err)
	}
	inv2, err := svc.InviteTeacher(ctx, as(student), &dto.InviteTeacherRequest{InternshipID: in.InternshipID, TeacherID: second.UserID})
	if err != nil {
		t.Fatalf("invite second: %v", err)
	}

	resp, err := svc.RespondInvitation(ctx, as(first), inv1.ID, &dto.RespondInvitationRequest{Decision: dto.DecisionAccept})
	if err != nil {
		t.Fatalf("RespondInvitation: %v", err)
	}
	if resp.Status != string(model.InvitationAccepted) {
		t.Errorf("status = %q, want accepted", resp.Status)
	}

	stored := env.store.internships[in.InternshipID]
	if stored.TeacherID == nil || *stored.TeacherID != first.UserID {
		t.Errorf("supervisor = %v, want %s", stored.TeacherID, first.UserID)
	}
	if got := env.store.invitations[inv2.ID].Status; got != model.InvitationDeclined {
		t.Errorf("sibling invitation = %q, want declined", got)
	}
	if got := env.notes.to(student.UserID, model.NotifyInvitationAnswered); len(got) != 1 {
		t.Errorf("student notifications = %d, want 1", len(got))
	}

	_, err = svc.RespondInvitation(ctx, as(second), inv2.ID, &dto.RespondInvitationRequest{Decision: dto.DecisionAccept})
	if !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Fatalf("answering a declined invitation: expected ErrInvalidTransition, got %v", err)
	}
}

func TestInternshipService_RespondInvitation_Decline(t *testing.T) {
	svc, env := setupTestInternshipService()
	ctx := context.Background()

	student := env.store.addUser("student", "amira")
	teacher := env.store.addUser("teacher", "prof")
	in := env.store.addInternship(student.UserID, "")

	inv, err := svc.InviteTeacher(ctx, as(student), &dto.InviteTeacherRequest{InternshipID: in.InternshipID, TeacherID: teacher.UserID})
	if err != nil {
		t.Fatalf("InviteTeacher: %v", err)
	}

	if _, err := svc.RespondInvitation(ctx, as(student), inv.ID, &dto.RespondInvitationRequest{Decision: dto.DecisionDecline}); err == nil {
		t.Fatal("a student must not answer an invitation")
	}

	resp, err := svc.RespondInvitation(ctx, as(teacher), inv.ID, &dto.RespondInvitationRequest{Decision: dto.DecisionDecline})
	if err != nil {
		t.Fatalf("RespondInvitation: %v", err)
	}
	if resp.Status != string(model.InvitationDeclined) {
		t.Errorf("status = %q, want declined", resp.Status)
	}
	if env.store.internships[in.InternshipID].TeacherID != nil {
		t.Error("declining must not assign a supervisor")
	}

	// a new invitation may follow a declined one
	if _, err := svc.InviteTeacher(ctx, as(student), &dto.InviteTeacherRequest{InternshipID: in.InternshipID, TeacherID: teacher.UserID}); err != nil {
		t.Fatalf("re-invite: %v", err)
	}

	list, err := svc.ListInvitations(ctx, as(teacher))
	if err != nil || len(list) != 2 {
		t.Fatalf("teacher invitations = %d (%v), want 2", len(list), err)
	}
}
