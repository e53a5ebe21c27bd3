package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/model"
	apperrors "github.com/khalilhajj/PfeManagement/pkg/errors"
)

// ── Helpers ──

func setupTestSoutenanceService() (SoutenanceService, *testEnv) {
	env := newTestEnv()
	return NewSoutenanceService(env.base), env
}

type soutenanceFixture struct {
	admin    *model.User
	teachers []*model.User
	rooms    []*model.Room
}

func newSoutenanceFixture(env *testEnv) *soutenanceFixture {
	f := &soutenanceFixture{admin: env.store.addUser("administrator", "root")}
	for _, name := range []string{"ali", "bechir", "chedly", "dora"} {
		f.teachers = append(f.teachers, env.store.addUser("teacher", name))
	}
	f.rooms = []*model.Room{env.store.addRoom("A101", true), env.store.addRoom("B202", true)}
	return f
}

// readyInternship stores an approved internship with a final report.
func readyInternship(env *testEnv, student string) *model.Internship {
	s := env.store.addUser("student", student)
	in := env.store.addInternship(s.UserID, "")
	env.store.addReport(in, true)
	return in
}

func planRequest(in *model.Internship, room *model.Room, start string, j1, j2 *model.User) *dto.PlanSoutenanceRequest {
	return &dto.PlanSoutenanceRequest{
		InternshipID: in.InternshipID,
		Date:         "2026-06-15",
		StartTime:    start,
		RoomID:       room.RoomID,
		Jury1ID:      j1.UserID,
		Jury2ID:      j2.UserID,
	}
}

// ── Plan ──

func TestSoutenanceService_Plan(t *testing.T) {
	svc, env := setupTestSoutenanceService()
	f := newSoutenanceFixture(env)
	in := readyInternship(env, "amira")

	resp, err := svc.Plan(context.Background(), as(f.admin), planRequest(in, f.rooms[0], "10:00", f.teachers[0], f.teachers[1]))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if resp.Status != string(model.SoutenancePlanned) {
		t.Errorf("status = %q, want planned", resp.Status)
	}
	if resp.StartTime != "10:00" || resp.EndTime != "11:00" {
		t.Errorf("window = %s-%s, want 10:00-11:00", resp.StartTime, resp.EndTime)
	}
	if len(resp.Jury) != 2 {
		t.Errorf("jury = %d, want 2", len(resp.Jury))
	}
	for _, u := range []string{in.StudentID, f.teachers[0].UserID, f.teachers[1].UserID} {
		if got := env.notes.to(u, model.NotifySoutenancePlanned); len(got) != 1 {
			t.Errorf("notifications to %s = %d, want 1", u, len(got))
		}
	}
}

func TestSoutenanceService_Plan_Conflicts(t *testing.T) {
	tests := []struct {
		name  string
		room  int
		start string
		jury  [2]int
		want  error
	}{
		{"same room overlapping", 0, "10:30", [2]int{2, 3}, ErrRoomBooked},
		{"same juror other room", 1, "10:30", [2]int{1, 3}, ErrJuryBooked},
		{"adjacent window", 0, "11:00", [2]int{0, 1}, nil},
		{"other room and jury", 1, "10:00", [2]int{2, 3}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, env := setupTestSoutenanceService()
			f := newSoutenanceFixture(env)
			ctx := context.Background()

			first := readyInternship(env, "amira")
			if _, err := svc.Plan(ctx, as(f.admin), planRequest(first, f.rooms[0], "10:00", f.teachers[0], f.teachers[1])); err != nil {
				t.Fatalf("first Plan: %v", err)
			}

			second := readyInternship(env, "sami")
			req := planRequest(second, f.rooms[tt.room], tt.start, f.teachers[tt.jury[0]], f.teachers[tt.jury[1]])
			_, err := svc.Plan(ctx, as(f.admin), req)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSoutenanceService_Plan_Rules(t *testing.T) {
	svc, env := setupTestSoutenanceService()
	f := newSoutenanceFixture(env)
	ctx := context.Background()

	student := env.store.addUser("student", "amira")
	notFinal := env.store.addInternship(student.UserID, "")
	env.store.addReport(notFinal, false)
	noReport := env.store.addInternship(student.UserID, "")
	ready := readyInternship(env, "sami")
	closed := env.store.addRoom("C303", false)

	tests := []struct {
		name string
		req  *dto.PlanSoutenanceRequest
		want error
	}{
		{"report not final", planRequest(notFinal, f.rooms[0], "09:00", f.teachers[0], f.teachers[1]), ErrNotReadyForDefence},
		{"no report", planRequest(noReport, f.rooms[0], "09:00", f.teachers[0], f.teachers[1]), ErrNotReadyForDefence},
		{"same juror twice", planRequest(ready, f.rooms[0], "09:00", f.teachers[0], f.teachers[0]), ErrSameJury},
		{"room unavailable", planRequest(ready, closed, "09:00", f.teachers[0], f.teachers[1]), ErrRoomUnavailable},
		{"juror not a teacher", planRequest(ready, f.rooms[0], "09:00", f.teachers[0], student), ErrNotATeacher},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Plan(ctx, as(f.admin), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	bad := planRequest(ready, f.rooms[0], "09:00", f.teachers[0], f.teachers[1])
	bad.EndTime = "08:30"
	_, err := svc.Plan(ctx, as(f.admin), bad)
	assertKind(t, err, apperrors.KindValidation)

	if _, err := svc.Plan(ctx, as(f.admin), planRequest(ready, f.rooms[0], "09:00", f.teachers[0], f.teachers[1])); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	_, err = svc.Plan(ctx, as(f.admin), planRequest(ready, f.rooms[1], "14:00", f.teachers[2], f.teachers[3]))
	if !errors.Is(err, ErrSoutenanceExists) {
		t.Fatalf("second soutenance: expected ErrSoutenanceExists, got %v", err)
	}

	if _, err := svc.Plan(ctx, as(f.teachers[0]), planRequest(ready, f.rooms[0], "16:00", f.teachers[2], f.teachers[3])); !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("teacher planning: expected ErrForbidden, got %v", err)
	}
}

func TestSoutenanceService_Plan_ConcurrentSameRoom(t *testing.T) {
	svc, env := setupTestSoutenanceService()
	f := newSoutenanceFixture(env)
	ctx := context.Background()

	reqs := []*dto.PlanSoutenanceRequest{
		planRequest(readyInternship(env, "amira"), f.rooms[0], "10:00", f.teachers[0], f.teachers[1]),
		planRequest(readyInternship(env, "sami"), f.rooms[0], "10:15", f.teachers[2], f.teachers[3]),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(reqs))
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req *dto.PlanSoutenanceRequest) {
			defer wg.Done()
			_, errs[i] = svc.Plan(ctx, as(f.admin), req)
		}(i, req)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case !errors.Is(err, ErrRoomBooked):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("winners = %d, want 1", won)
	}
}

// ── Update ──

func TestSoutenanceService_Update(t *testing.T) {
	svc, env := setupTestSoutenanceService()
	f := newSoutenanceFixture(env)
	ctx := context.Background()

	in := readyInternship(env, "amira")
	planned, err := svc.Plan(ctx, as(f.admin), planRequest(in, f.rooms[0], "10:00", f.teachers[0], f.teachers[1]))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	req := &dto.UpdateSoutenanceRequest{
		Date:      "2026-06-15",
		StartTime: "10:30",
		EndTime:   "11:30",
		RoomID:    f.rooms[0].RoomID,
		Jury1ID:   f.teachers[0].UserID,
		Jury2ID:   f.teachers[2].UserID,
		Version:   planned.Version,
	}
	// moving over its own window is not a conflict
	updated, err := svc.Update(ctx, as(f.admin), planned.ID, req)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.StartTime != "10:30" || updated.Version != planned.Version+1 {
		t.Errorf("updated = %s v%d", updated.StartTime, updated.Version)
	}
	if got := env.notes.to(f.teachers[1].UserID, model.NotifySoutenanceUpdated); len(got) != 1 {
		t.Errorf("former juror notifications = %d, want 1", len(got))
	}
	if got := env.notes.to(f.teachers[2].UserID, model.NotifySoutenanceUpdated); len(got) != 1 {
		t.Errorf("new juror notifications = %d, want 1", len(got))
	}

	// stale version
	_, err = svc.Update(ctx, as(f.admin), planned.ID, req)
	if !errors.Is(err, apperrors.ErrOptimisticLock) {
		t.Fatalf("stale update: expected ErrOptimisticLock, got %v", err)
	}
}

func TestSoutenanceService_Update_Conflict(t *testing.T) {
	svc, env := setupTestSoutenanceService()
	f := newSoutenanceFixture(env)
	ctx := context.Background()

	if _, err := svc.Plan(ctx, as(f.admin), planRequest(readyInternship(env, "amira"), f.rooms[0], "10:00", f.teachers[0], f.teachers[1])); err != nil {
		t.Fatalf("Plan first: %v", err)
	}
	second, err := svc.Plan(ctx, as(f.admin), planRequest(readyInternship(env, "sami"), f.rooms[1], "14:00", f.teachers[2], f.teachers[3]))
	if err != nil {
		t.Fatalf("Plan second: %v", err)
	}

	_, err = svc.Update(ctx, as(f.admin), second.ID, &dto.UpdateSoutenanceRequest{
		Date:      "2026-06-15",
		StartTime: "10:30",
		RoomID:    f.rooms[1].RoomID,
		Jury1ID:   f.teachers[0].UserID,
		Jury2ID:   f.teachers[3].UserID,
		Version:   second.Version,
	})
	if !errors.Is(err, ErrJuryBooked) {
		t.Fatalf("expected ErrJuryBooked, got %v", err)
	}
}

// ── Complete / Delete ──

func TestSoutenanceService_CompleteAndDelete(t *testing.T) {
	svc, env := setupTestSoutenanceService()
	f := newSoutenanceFixture(env)
	ctx := context.Background()

	planned, err := svc.Plan(ctx, as(f.admin), planRequest(readyInternship(env, "amira"), f.rooms[0], "10:00", f.teachers[0], f.teachers[1]))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	done, err := svc.Complete(ctx, as(f.admin), planned.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != string(model.SoutenanceDone) || done.CompletedAt == "" {
		t.Errorf("completed = %s at %q", done.Status, done.CompletedAt)
	}

	if _, err := svc.Complete(ctx, as(f.admin), planned.ID); !errors.Is(err, ErrSoutenanceDone) {
		t.Errorf("second complete: expected ErrSoutenanceDone, got %v", err)
	}
	if err := svc.Delete(ctx, as(f.admin), planned.ID); !errors.Is(err, ErrSoutenanceDone) {
		t.Errorf("delete done: expected ErrSoutenanceDone, got %v", err)
	}

	// a done soutenance frees the room
	if _, err := svc.Plan(ctx, as(f.admin), planRequest(readyInternship(env, "sami"), f.rooms[0], "10:00", f.teachers[0], f.teachers[1])); err != nil {
		t.Fatalf("Plan over a done soutenance: %v", err)
	}
}

func TestSoutenanceService_Delete(t *testing.T) {
	svc, env := setupTestSoutenanceService()
	f := newSoutenanceFixture(env)
	ctx := context.Background()

	in := readyInternship(env, "amira")
	planned, err := svc.Plan(ctx, as(f.admin), planRequest(in, f.rooms[0], "10:00", f.teachers[0], f.teachers[1]))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if err := svc.Delete(ctx, as(f.admin), planned.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := env.notes.to(in.StudentID, model.NotifySoutenanceCancelled); len(got) != 1 {
		t.Errorf("cancel notifications = %d, want 1", len(got))
	}
	if _, err := svc.Get(ctx, as(f.admin), planned.ID); !errors.Is(err, ErrSoutenanceNotFound) {
		t.Errorf("expected ErrSoutenanceNotFound, got %v", err)
	}
}

func TestSoutenanceService_CompleteDue(t *testing.T) {
	svc, env := setupTestSoutenanceService()
	f := newSoutenanceFixture(env)
	ctx := context.Background()

	past := planRequest(readyInternship(env, "amira"), f.rooms[0], "10:00", f.teachers[0], f.teachers[1])
	future := planRequest(readyInternship(env, "sami"), f.rooms[1], "10:00", f.teachers[2], f.teachers[3])
	future.Date = "2026-06-20"
	for _, req := range []*dto.PlanSoutenanceRequest{past, future} {
		if _, err := svc.Plan(ctx, as(f.admin), req); err != nil {
			t.Fatalf("Plan: %v", err)
		}
	}

	env.now = time.Date(2026, 6, 16, 8, 0, 0, 0, time.UTC)
	n, err := svc.CompleteDue(ctx)
	if err != nil {
		t.Fatalf("CompleteDue: %v", err)
	}
	if n != 1 {
		t.Fatalf("completed = %d, want 1", n)
	}

	n, err = svc.CompleteDue(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second run completed %d (%v), want 0", n, err)
	}
}

func TestSoutenanceService_Complete_JuryWriteFails(t *testing.T) {
	svc, env := setupTestSoutenanceService()
	f := newSoutenanceFixture(env)
	ctx := context.Background()

	planned, err := svc.Plan(ctx, as(f.admin), planRequest(readyInternship(env, "amira"), f.rooms[0], "10:00", f.teachers[0], f.teachers[1]))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	env.store.failJuryUpdate = errors.New("connection reset")
	if _, err := svc.Complete(ctx, as(f.admin), planned.ID); err == nil {
		t.Fatal("expected the jury write failure to surface")
	}

	sout, err := env.repo.Soutenance.GetByID(ctx, planned.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if sout.Status != model.SoutenancePlanned || sout.CompletedAt != nil {
		t.Errorf("soutenance must stay planned after a failed completion, got %s", sout.Status)
	}
	for _, j := range env.store.juries[planned.ID] {
		if j.Status != model.SoutenancePlanned {
			t.Errorf("jury row %s = %s, want planned", j.TeacherID, j.Status)
		}
	}

	env.store.failJuryUpdate = nil
	if _, err := svc.Complete(ctx, as(f.admin), planned.ID); err != nil {
		t.Fatalf("Complete after recovery: %v", err)
	}
	for _, j := range env.store.juries[planned.ID] {
		if j.Status != model.SoutenanceDone {
			t.Errorf("jury row %s = %s, want done", j.TeacherID, j.Status)
		}
	}
}

// ── Queries ──

func TestSoutenanceService_ListAndGet(t *testing.T) {
	svc, env := setupTestSoutenanceService()
	f := newSoutenanceFixture(env)
	ctx := context.Background()

	in := readyInternship(env, "amira")
	planned, err := svc.Plan(ctx, as(f.admin), planRequest(in, f.rooms[0], "10:00", f.teachers[0], f.teachers[1]))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	student := env.store.users[in.StudentID]

	tests := []struct {
		name string
		who  *model.User
		want int
	}{
		{"administrator", f.admin, 1},
		{"student", &student, 1},
		{"juror", f.teachers[0], 1},
		{"other teacher", f.teachers[3], 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := svc.List(ctx, as(tt.who))
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(list) != tt.want {
				t.Errorf("len = %d, want %d", len(list), tt.want)
			}
		})
	}

	if _, err := svc.Get(ctx, as(f.teachers[3]), planned.ID); !errors.Is(err, authz.ErrForbidden) {
		t.Errorf("outsider Get: expected ErrForbidden, got %v", err)
	}
}
