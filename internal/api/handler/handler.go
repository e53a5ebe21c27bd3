package handler

import "github.com/khalilhajj/PfeManagement/internal/service"

// Handler aggregates every HTTP handler.
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Offer        *OfferHandler
	Slot         *SlotHandler
	Application  *ApplicationHandler
	Internship   *InternshipHandler
	Report       *ReportHandler
	Soutenance   *SoutenanceHandler
	Room         *RoomHandler
	Notification *NotificationHandler
	Admin        *AdminHandler
	Calendar     *CalendarHandler
}

// NewHandler wires the handlers to their services.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth),
		User:         NewUserHandler(svc.User),
		Offer:        NewOfferHandler(svc.Offer),
		Slot:         NewSlotHandler(svc.Slot),
		Application:  NewApplicationHandler(svc.Application),
		Internship:   NewInternshipHandler(svc.Internship),
		Report:       NewReportHandler(svc.Report),
		Soutenance:   NewSoutenanceHandler(svc.Soutenance),
		Room:         NewRoomHandler(svc.Room),
		Notification: NewNotificationHandler(svc.Notification),
		Admin:        NewAdminHandler(svc.Statistics, svc.Export),
		Calendar:     NewCalendarHandler(svc.Calendar),
	}
}
