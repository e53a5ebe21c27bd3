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
	"github.com/khalilhajj/PfeManagement/internal/workflow"
	apperrors "github.com/khalilhajj/PfeManagement/pkg/errors"
)

// SoutenanceService defence planning. A room and a teacher each hold at most
// one planned soutenance at any instant.
type SoutenanceService interface {
	Plan(ctx context.Context, p authz.Principal, req *dto.PlanSoutenanceRequest) (*dto.SoutenanceResponse, error)
	Update(ctx context.Context, p authz.Principal, id string, req *dto.UpdateSoutenanceRequest) (*dto.SoutenanceResponse, error)
	Delete(ctx context.Context, p authz.Principal, id string) error
	Complete(ctx context.Context, p authz.Principal, id string) (*dto.SoutenanceResponse, error)
	Get(ctx context.Context, p authz.Principal, id string) (*dto.SoutenanceResponse, error)
	// List returns every soutenance to an administrator, the caller's own to a
	// student and the ones a teacher sits on.
	List(ctx context.Context, p authz.Principal) ([]dto.SoutenanceResponse, error)
	// CompleteDue marks planned soutenances that already ended as done.
	CompleteDue(ctx context.Context) (int, error)
}

type soutenanceService struct {
	*base
}

// NewSoutenanceService creates a SoutenanceService.
func NewSoutenanceService(b *base) SoutenanceService {
	return &soutenanceService{base: b}
}

// booking is a validated planning request.
type booking struct {
	roomID string
	jury   []string
	start  time.Time
	end    time.Time
}

func (s *soutenanceService) parseBooking(date, startClock, endClock, roomID, jury1, jury2 string) (*booking, error) {
	var fields []apperrors.FieldError
	day, err := time.ParseInLocation(model.DateLayout, date, s.loc)
	if err != nil {
		fields = append(fields, apperrors.Field("date", "must be a date formatted YYYY-MM-DD"))
	}
	start, err := time.Parse(model.ClockLayout, startClock)
	if err != nil {
		fields = append(fields, apperrors.Field("start_time", "must be formatted HH:MM"))
	}
	var end time.Time
	if endClock != "" {
		if end, err = time.Parse(model.ClockLayout, endClock); err != nil {
			fields = append(fields, apperrors.Field("end_time", "must be formatted HH:MM"))
		}
	}
	if len(fields) > 0 {
		return nil, ErrSoutenanceInvalid.WithFields(fields...)
	}
	if jury1 == jury2 {
		return nil, ErrSameJury
	}

	b := &booking{
		roomID: roomID,
		jury:   []string{jury1, jury2},
		start:  time.Date(day.Year(), day.Month(), day.Day(), start.Hour(), start.Minute(), 0, 0, s.loc),
	}
	if endClock == "" {
		b.end = b.start.Add(s.cfg.Workflow.SoutenanceDuration)
	} else {
		b.end = time.Date(day.Year(), day.Month(), day.Day(), end.Hour(), end.Minute(), 0, 0, s.loc)
	}
	if !b.end.After(b.start) {
		return nil, ErrSoutenanceInvalid.WithFields(apperrors.Field("end_time", "must be after start_time"))
	}
	return b, nil
}

// reserve takes the room and juror row locks and checks the window is free.
// Every writer touching the same room or teacher queues on those locks, so the
// overlap check below sees all committed bookings.
func (s *soutenanceService) reserve(ctx context.Context, tx *repository.Repository, b *booking, excludeID string) error {
	room, err := tx.Room.GetForUpdate(ctx, b.roomID)
	if err != nil {
		return s.lookup(err, ErrRoomNotFound, "room", zap.String("id", b.roomID))
	}
	if !room.IsAvailable {
		return ErrRoomUnavailable
	}

	jurors, err := tx.User.LockByIDs(ctx, b.jury)
	if err != nil {
		s.logger.Error("lock jurors failed", zap.Strings("ids", b.jury), zap.Error(err))
		return err
	}
	if len(jurors) != len(b.jury) {
		return ErrUserNotFound.WithMessage("jury member not found")
	}
	for _, j := range jurors {
		if j.Role != string(authz.RoleTeacher) || !j.IsActive {
			return ErrNotATeacher.WithMessage(j.DisplayName() + " is not a teacher")
		}
	}

	conflicts, err := tx.Soutenance.FindConflicts(ctx, b.roomID, b.jury, b.start, b.end, excludeID)
	if err != nil {
		s.logger.Error("find soutenance conflicts failed", zap.String("room_id", b.roomID), zap.Error(err))
		return err
	}
	for _, c := range conflicts {
		if c.RoomID == b.roomID {
			return ErrRoomBooked
		}
	}
	if len(conflicts) > 0 {
		return ErrJuryBooked
	}
	return nil
}

func (b *booking) juryRows() []model.SoutenanceJury {
	rows := make([]model.SoutenanceJury, len(b.jury))
	for i, id := range b.jury {
		rows[i] = model.SoutenanceJury{TeacherID: id, Position: i + 1}
	}
	return rows
}

// ────────────────────── Plan ──────────────────────

func (s *soutenanceService) Plan(ctx context.Context, p authz.Principal, req *dto.PlanSoutenanceRequest) (*dto.SoutenanceResponse, error) {
	if err := authz.Require(p, authz.SoutenancePlan); err != nil {
		return nil, err
	}
	b, err := s.parseBooking(req.Date, req.StartTime, req.EndTime, req.RoomID, req.Jury1ID, req.Jury2ID)
	if err != nil {
		return nil, err
	}

	var sout *model.Soutenance
	err = s.repo.Tx.Run(ctx, func(tx *repository.Repository) error {
		in, err := tx.Internship.GetByID(ctx, req.InternshipID)
		if err != nil {
			return s.lookup(err, ErrInternshipNotFound, "internship", zap.String("id", req.InternshipID))
		}
		if in.Status != model.InternshipApproved {
			return ErrInternshipNotApproved
		}
		report, err := tx.Report.GetByInternship(ctx, in.InternshipID)
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !report.IsFinal) {
			return ErrNotReadyForDefence
		}
		if err != nil {
			s.logger.Error("load report failed", zap.String("internship_id", in.InternshipID), zap.Error(err))
			return err
		}
		if _, err := tx.Soutenance.GetByInternship(ctx, in.InternshipID); err == nil {
			return ErrSoutenanceExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("load soutenance failed", zap.String("internship_id", in.InternshipID), zap.Error(err))
			return err
		}

		if err := s.reserve(ctx, tx, b, ""); err != nil {
			return err
		}

		sout = &model.Soutenance{
			InternshipID: in.InternshipID,
			RoomID:       b.roomID,
			StartsAt:     b.start,
			EndsAt:       b.end,
			Status:       model.SoutenancePlanned,
			Jury:         b.juryRows(),
		}
		sout.CreatedBy = &p.UserID
		sout.UpdatedBy = &p.UserID
		if err := tx.Soutenance.Create(ctx, sout); err != nil {
			return s.mapWriteError(err, "create soutenance", zap.String("internship_id", in.InternshipID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.transition(workflow.Soutenance.Entity(), string(sout.Status))
	return s.reloadAndNotify(ctx, sout.SoutenanceID, model.NotifySoutenancePlanned, "Soutenance planned")
}

func (s *soutenanceService) mapWriteError(err error, what string, fields ...zap.Field) error {
	switch {
	case errors.Is(err, repository.ErrOverlap):
		return ErrRoomBooked.WithMessage("room or jury member is already booked at that time")
	case errors.Is(err, repository.ErrDuplicate):
		return ErrSoutenanceExists
	case errors.Is(err, repository.ErrNotMatched):
		return apperrors.ErrOptimisticLock
	}
	s.logger.Error(what+" failed", append(fields, zap.Error(err))...)
	return err
}

// ────────────────────── Update ──────────────────────

func (s *soutenanceService) Update(ctx context.Context, p authz.Principal, id string, req *dto.UpdateSoutenanceRequest) (*dto.SoutenanceResponse, error) {
	if err := authz.Require(p, authz.SoutenancePlan); err != nil {
		return nil, err
	}
	b, err := s.parseBooking(req.Date, req.StartTime, req.EndTime, req.RoomID, req.Jury1ID, req.Jury2ID)
	if err != nil {
		return nil, err
	}

	var previous []string
	err = s.repo.Tx.Run(ctx, func(tx *repository.Repository) error {
		sout, err := tx.Soutenance.GetForUpdate(ctx, id)
		if err != nil {
			return s.lookup(err, ErrSoutenanceNotFound, "soutenance", zap.String("id", id))
		}
		if sout.Status != model.SoutenancePlanned {
			return ErrSoutenanceDone
		}
		if sout.Version != req.Version {
			return apperrors.ErrOptimisticLock
		}
		previous = sout.JuryIDs()

		if err := s.reserve(ctx, tx, b, id); err != nil {
			return err
		}

		sout.RoomID = b.roomID
		sout.StartsAt = b.start
		sout.EndsAt = b.end
		sout.Jury = b.juryRows()
		sout.UpdatedBy = &p.UserID
		if err := tx.Soutenance.Update(ctx, sout); err != nil {
			return s.mapWriteError(err, "update soutenance", zap.String("id", id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.reloadAndNotify(ctx, id, model.NotifySoutenanceUpdated, "Soutenance updated", previous...)
}

// ────────────────────── Delete / Complete ──────────────────────

func (s *soutenanceService) Delete(ctx context.Context, p authz.Principal, id string) error {
	if err := authz.Require(p, authz.SoutenancePlan); err != nil {
		return err
	}

	sout, err := s.repo.Soutenance.GetByID(ctx, id)
	if err != nil {
		return s.lookup(err, ErrSoutenanceNotFound, "soutenance", zap.String("id", id))
	}
	if sout.Status != model.SoutenancePlanned {
		return ErrSoutenanceDone
	}

	err = s.repo.Tx.Run(ctx, func(tx *repository.Repository) error {
		locked, err := tx.Soutenance.GetForUpdate(ctx, id)
		if err != nil {
			return s.lookup(err, ErrSoutenanceNotFound, "soutenance", zap.String("id", id))
		}
		if locked.Status != model.SoutenancePlanned {
			return ErrSoutenanceDone
		}
		if err := tx.Soutenance.Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotMatched) {
				return ErrSoutenanceNotFound
			}
			s.logger.Error("delete soutenance failed", zap.String("id", id), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notify.Notify(ctx, s.events(sout, model.NotifySoutenanceCancelled, "Soutenance cancelled",
		"The soutenance of \""+s.title(sout)+"\" planned on "+s.when(sout)+" was cancelled.")...)
	return nil
}

func (s *soutenanceService) Complete(ctx context.Context, p authz.Principal, id string) (*dto.SoutenanceResponse, error) {
	if err := authz.Require(p, authz.SoutenancePlan); err != nil {
		return nil, err
	}

	sout, err := s.repo.Soutenance.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookup(err, ErrSoutenanceNotFound, "soutenance", zap.String("id", id))
	}
	if err := workflow.Soutenance.Transition(sout.Status, model.SoutenanceDone); err != nil {
		return nil, ErrSoutenanceDone
	}

	now := s.now()
	if err := s.complete(ctx, sout, now); err != nil {
		return nil, err
	}
	return s.toSoutenanceResponse(sout), nil
}

func (s *soutenanceService) CompleteDue(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.repo.Soutenance.ListDue(ctx, now)
	if err != nil {
		s.logger.Error("list due soutenances failed", zap.Error(err))
		return 0, err
	}

	done := 0
	for i := range due {
		err := s.complete(ctx, &due[i], now)
		if errors.Is(err, ErrSoutenanceDone) {
			continue
		}
		if err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}

// complete marks the soutenance and its jury rows done in one transaction so
// the jury bookings are released together with the soutenance.
func (s *soutenanceService) complete(ctx context.Context, sout *model.Soutenance, at time.Time) error {
	err := s.repo.Tx.Run(ctx, func(tx *repository.Repository) error {
		return tx.Soutenance.Complete(ctx, sout.SoutenanceID, at)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotMatched) {
			return ErrSoutenanceDone
		}
		s.logger.Error("complete soutenance failed", zap.String("id", sout.SoutenanceID), zap.Error(err))
		return err
	}

	sout.Status = model.SoutenanceDone
	sout.CompletedAt = &at
	sout.Version++
	s.transition(workflow.Soutenance.Entity(), string(sout.Status))

	s.notify.Notify(ctx, s.events(sout, model.NotifySoutenanceCompleted, "Soutenance completed",
		"The soutenance of \""+s.title(sout)+"\" is marked as done.")...)
	return nil
}

// ────────────────────── Queries ──────────────────────

func (s *soutenanceService) Get(ctx context.Context, p authz.Principal, id string) (*dto.SoutenanceResponse, error) {
	if err := authz.Require(p, authz.SoutenanceRead); err != nil {
		return nil, err
	}

	sout, err := s.repo.Soutenance.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookup(err, ErrSoutenanceNotFound, "soutenance", zap.String("id", id))
	}
	if !p.Is(authz.RoleAdministrator) && !s.concerns(sout, p.UserID) {
		return nil, authz.ErrForbidden
	}
	return s.toSoutenanceResponse(sout), nil
}

func (s *soutenanceService) List(ctx context.Context, p authz.Principal) ([]dto.SoutenanceResponse, error) {
	if err := authz.Require(p, authz.SoutenanceRead); err != nil {
		return nil, err
	}

	var filter repository.SoutenanceFilter
	switch p.Role {
	case authz.RoleStudent:
		filter.StudentID = p.UserID
	case authz.RoleTeacher:
		filter.TeacherID = p.UserID
	}
	list, err := s.repo.Soutenance.List(ctx, filter)
	if err != nil {
		s.logger.Error("list soutenances failed", zap.String("user_id", p.UserID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.SoutenanceResponse, 0, len(list))
	for i := range list {
		result = append(result, *s.toSoutenanceResponse(&list[i]))
	}
	return result, nil
}

// concerns reports whether userID is the student or a juror of sout.
func (s *soutenanceService) concerns(sout *model.Soutenance, userID string) bool {
	if sout.Internship != nil && sout.Internship.StudentID == userID {
		return true
	}
	for _, j := range sout.Jury {
		if j.TeacherID == userID {
			return true
		}
	}
	return false
}

// ── Notifications ──

// reloadAndNotify loads the committed soutenance and tells the student, the
// jurors and any former jurors listed in extra.
func (s *soutenanceService) reloadAndNotify(ctx context.Context, id, kind, title string, extra ...string) (*dto.SoutenanceResponse, error) {
	sout, err := s.repo.Soutenance.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookup(err, ErrSoutenanceNotFound, "soutenance", zap.String("id", id))
	}

	content := "The soutenance of \"" + s.title(sout) + "\" is scheduled on " + s.when(sout)
	if sout.Room != nil {
		content += " in room " + sout.Room.Name
	}
	events := s.events(sout, kind, title, content+".")

	seen := make(map[string]bool, len(events))
	for _, ev := range events {
		seen[ev.UserID] = true
	}
	for _, uid := range extra {
		if uid == "" || seen[uid] || len(events) == 0 {
			continue
		}
		ev := events[0]
		ev.UserID = uid
		ev.Content = "You are no longer on the jury of \"" + s.title(sout) + "\"."
		events = append(events, ev)
		seen[uid] = true
	}
	s.notify.Notify(ctx, events...)

	return s.toSoutenanceResponse(sout), nil
}

func (s *soutenanceService) events(sout *model.Soutenance, kind, title, content string) []Event {
	ev := Event{
		Type:        kind,
		Title:       title,
		Content:     content,
		RelatedType: "soutenance",
		RelatedID:   sout.SoutenanceID,
		Payload: map[string]interface{}{
			"starts_at": formatTime(sout.StartsAt),
			"ends_at":   formatTime(sout.EndsAt),
			"room_id":   sout.RoomID,
		},
	}

	events := make([]Event, 0, 1+len(sout.Jury))
	if sout.Internship != nil {
		e := ev
		e.UserID = sout.Internship.StudentID
		events = append(events, e)
	}
	for _, j := range sout.Jury {
		e := ev
		e.UserID = j.TeacherID
		events = append(events, e)
	}
	return events
}

func (s *soutenanceService) title(sout *model.Soutenance) string {
	if sout.Internship == nil {
		return ""
	}
	return sout.Internship.Title
}

func (s *soutenanceService) when(sout *model.Soutenance) string {
	start := sout.StartsAt.In(s.loc)
	return start.Format(model.DateLayout) + " " + start.Format(model.ClockLayout) + "-" + sout.EndsAt.In(s.loc).Format(model.ClockLayout)
}
