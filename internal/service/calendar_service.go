package service

import (
	"context"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/internal/model"
	"github.com/khalilhajj/PfeManagement/internal/repository"
)

// CalendarService builds the caller's iCalendar feed: the soutenances they
// defend or sit on and their booked interview slots.
type CalendarService interface {
	ForUser(ctx context.Context, p authz.Principal) (string, error)
}

type calendarService struct {
	repo    *repository.Repository
	appName string
	loc     *time.Location
	logger  *zap.Logger
	now     func() time.Time
}

// NewCalendarService creates a CalendarService.
func NewCalendarService(repo *repository.Repository, appName string, loc *time.Location, logger *zap.Logger) CalendarService {
	if loc == nil {
		loc = time.UTC
	}
	if appName == "" {
		appName = "PFE Management"
	}
	return &calendarService{repo: repo, appName: appName, loc: loc, logger: logger, now: time.Now}
}

func (s *calendarService) ForUser(ctx context.Context, p authz.Principal) (string, error) {
	if err := authz.Require(p, authz.CalendarRead); err != nil {
		return "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//" + s.appName + "//Calendar//EN")
	cal.SetXWRCalName(s.appName)
	cal.SetXWRTimezone(s.loc.String())

	if p.Role != authz.RoleCompany {
		if err := s.addSoutenances(ctx, cal, p); err != nil {
			return "", err
		}
	}
	if err := s.addInterviews(ctx, cal, p); err != nil {
		return "", err
	}

	return cal.Serialize(), nil
}

func (s *calendarService) addSoutenances(ctx context.Context, cal *ics.Calendar, p authz.Principal) error {
	var filter repository.SoutenanceFilter
	switch p.Role {
	case authz.RoleStudent:
		filter.StudentID = p.UserID
	case authz.RoleTeacher:
		filter.TeacherID = p.UserID
	}
	list, err := s.repo.Soutenance.List(ctx, filter)
	if err != nil {
		s.logger.Error("list soutenances for calendar failed", zap.String("user_id", p.UserID), zap.Error(err))
		return err
	}

	stamp := s.now()
	for i := range list {
		sout := &list[i]
		ev := cal.AddEvent("soutenance-" + sout.SoutenanceID + "@" + hostTag(s.appName))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(sout.StartsAt)
		ev.SetEndAt(sout.EndsAt)

		summary := "Soutenance"
		var desc []string
		if sout.Internship != nil {
			summary += ": " + sout.Internship.Title
			desc = append(desc, "Student: "+sout.Internship.Student.DisplayName())
			if sout.Internship.CompanyName != "" {
				desc = append(desc, "Company: "+sout.Internship.CompanyName)
			}
		}
		ev.SetSummary(summary)

		jury := make([]string, 0, len(sout.Jury))
		for _, j := range sout.Jury {
			jury = append(jury, j.Teacher.DisplayName())
		}
		if len(jury) > 0 {
			desc = append(desc, "Jury: "+strings.Join(jury, ", "))
		}
		ev.SetDescription(strings.Join(desc, "\n"))

		if sout.Room != nil {
			where := sout.Room.Name
			if sout.Room.Building != "" {
				where += ", " + sout.Room.Building
			}
			ev.SetLocation(where)
		}
		if sout.Status == model.SoutenanceDone {
			ev.SetStatus(ics.ObjectStatusConfirmed)
		} else {
			ev.SetStatus(ics.ObjectStatusTentative)
		}
	}
	return nil
}

func (s *calendarService) addInterviews(ctx context.Context, cal *ics.Calendar, p authz.Principal) error {
	var slots []model.InterviewSlot
	switch p.Role {
	case authz.RoleStudent:
		apps, err := s.repo.Application.ListByStudent(ctx, p.UserID)
		if err != nil {
			s.logger.Error("list applications for calendar failed", zap.String("user_id", p.UserID), zap.Error(err))
			return err
		}
		for _, a := range apps {
			if a.SelectedSlot != nil && a.Status == model.ApplicationInterview {
				slot := *a.SelectedSlot
				slot.Offer = a.Offer
				slots = append(slots, slot)
			}
		}
	case authz.RoleCompany:
		offers, err := s.repo.Offer.ListByCompany(ctx, p.UserID)
		if err != nil {
			s.logger.Error("list offers for calendar failed", zap.String("user_id", p.UserID), zap.Error(err))
			return err
		}
		for i := range offers {
			list, err := s.repo.Slot.ListByOffer(ctx, offers[i].OfferID, false)
			if err != nil {
				s.logger.Error("list slots for calendar failed", zap.String("offer_id", offers[i].OfferID), zap.Error(err))
				return err
			}
			for _, slot := range list {
				if slot.IsBooked() {
					slot.Offer = &offers[i]
					slots = append(slots, slot)
				}
			}
		}
	default:
		return nil
	}

	stamp := s.now()
	for i := range slots {
		slot := &slots[i]
		ev := cal.AddEvent("interview-" + slot.SlotID + "@" + hostTag(s.appName))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(slot.StartsAt(s.loc))
		ev.SetEndAt(slot.EndsAt(s.loc))
		summary := "Interview"
		if slot.Offer != nil {
			summary += ": " + slot.Offer.Title
		}
		ev.SetSummary(summary)
		if slot.Location != "" {
			ev.SetLocation(slot.Location)
		}
		ev.SetStatus(ics.ObjectStatusConfirmed)
	}
	return nil
}

// hostTag turns the application name into the domain part of event UIDs.
func hostTag(appName string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(appName), " ", "-"))
}
