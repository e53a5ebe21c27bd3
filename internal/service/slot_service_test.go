package service

import (
	"context"
	"errors"
	"testing"

	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/model"
	apperrors "github.com/khalilhajj/PfeManagement/pkg/errors"
)

func setupTestSlotService() (SlotService, *testEnv) {
	env := newTestEnv()
	return NewSlotService(env.base), env
}

func TestSlotService_Create(t *testing.T) {
	svc, env := setupTestSlotService()
	ctx := context.Background()
	company := env.store.addUser("company", "acme")
	offer := env.store.addOffer(company.UserID, model.OfferApproved, 1)

	slot, err := svc.Create(ctx, as(company), offer.OfferID, &dto.CreateSlotRequest{
		Date:      "2026-06-10",
		StartTime: "09:30",
		EndTime:   "10:00",
		Location:  "Online",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if slot.StartTime != "09:30" || slot.IsBooked {
		t.Errorf("slot = %+v", slot)
	}
}

func TestSlotService_Create_Invalid(t *testing.T) {
	svc, env := setupTestSlotService()
	ctx := context.Background()
	company := env.store.addUser("company", "acme")
	offer := env.store.addOffer(company.UserID, model.OfferApproved, 1)
	closed := env.store.addOffer(company.UserID, model.OfferClosed, 1)

	tests := []struct {
		name string
		req  dto.CreateSlotRequest
	}{
		{"end before start", dto.CreateSlotRequest{Date: "2026-06-10", StartTime: "11:00", EndTime: "10:00"}},
		{"past date", dto.CreateSlotRequest{Date: "2026-05-01", StartTime: "10:00", EndTime: "10:30"}},
		{"bad clock", dto.CreateSlotRequest{Date: "2026-06-10", StartTime: "noon", EndTime: "10:30"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, as(company), offer.OfferID, &tt.req)
			assertKind(t, err, apperrors.KindValidation)
		})
	}

	_, err := svc.Create(ctx, as(company), closed.OfferID, &dto.CreateSlotRequest{Date: "2026-06-10", StartTime: "10:00", EndTime: "10:30"})
	if !errors.Is(err, ErrSlotOfferClosed) {
		t.Fatalf("closed offer: expected ErrSlotOfferClosed, got %v", err)
	}
}

func TestSlotService_List_Visibility(t *testing.T) {
	svc, env := setupTestSlotService()
	ctx := context.Background()

	company := env.store.addUser("company", "acme")
	invited := env.store.addUser("student", "amira")
	waiting := env.store.addUser("student", "sami")
	offer := env.store.addOffer(company.UserID, model.OfferApproved, 2)

	free := env.store.addSlot(offer.OfferID, "2026-06-10", "10:00", "10:30")
	taken := env.store.addSlot(offer.OfferID, "2026-06-10", "11:00", "11:30")
	app := env.store.addApplication(offer.OfferID, invited.UserID, model.ApplicationInterview)
	env.store.addApplication(offer.OfferID, waiting.UserID, model.ApplicationPending)
	if err := env.repo.Slot.Book(ctx, taken.SlotID, app.ApplicationID); err != nil {
		t.Fatalf("Book: %v", err)
	}

	all, err := svc.List(ctx, as(company), offer.OfferID)
	if err != nil || len(all) != 2 {
		t.Fatalf("company sees %d (%v), want 2", len(all), err)
	}
	for _, s := range all {
		if s.ID == taken.SlotID && s.BookedBy != app.ApplicationID {
			t.Errorf("booked slot shows %q, want %q", s.BookedBy, app.ApplicationID)
		}
	}

	open, err := svc.List(ctx, as(invited), offer.OfferID)
	if err != nil {
		t.Fatalf("student List: %v", err)
	}
	if len(open) != 1 || open[0].ID != free.SlotID || open[0].BookedBy != "" {
		t.Errorf("student sees %+v, want only the free slot", open)
	}

	if _, err := svc.List(ctx, as(waiting), offer.OfferID); !errors.Is(err, authz.ErrForbidden) {
		t.Errorf("student without interview: expected ErrForbidden, got %v", err)
	}
}

func TestSlotService_Delete(t *testing.T) {
	svc, env := setupTestSlotService()
	ctx := context.Background()

	company := env.store.addUser("company", "acme")
	student := env.store.addUser("student", "amira")
	offer := env.store.addOffer(company.UserID, model.OfferApproved, 1)
	free := env.store.addSlot(offer.OfferID, "2026-06-10", "10:00", "10:30")
	taken := env.store.addSlot(offer.OfferID, "2026-06-10", "11:00", "11:30")
	app := env.store.addApplication(offer.OfferID, student.UserID, model.ApplicationInterview)
	if err := env.repo.Slot.Book(ctx, taken.SlotID, app.ApplicationID); err != nil {
		t.Fatalf("Book: %v", err)
	}

	if err := svc.Delete(ctx, as(company), taken.SlotID); !errors.Is(err, ErrSlotBooked) {
		t.Errorf("booked slot: expected ErrSlotBooked, got %v", err)
	}
	if err := svc.Delete(ctx, as(company), free.SlotID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, as(company), free.SlotID); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("second delete: expected ErrSlotNotFound, got %v", err)
	}
}
