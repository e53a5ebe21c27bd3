// Package authz holds the authenticated principal and the role capability
// policy checked in front of every operation.
package authz

import (
	"context"

	apperrors "github.com/khalilhajj/PfeManagement/pkg/errors"
)

// Role of a platform user.
type Role string

const (
	RoleStudent       Role = "student"
	RoleTeacher       Role = "teacher"
	RoleAdministrator Role = "administrator"
	RoleCompany       Role = "company"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdministrator, RoleCompany:
		return true
	}
	return false
}

// Capability names one guarded operation.
type Capability string

const (
	OfferSubmit    Capability = "offer:submit"
	OfferManage    Capability = "offer:manage"
	OfferReview    Capability = "offer:review"
	OfferBrowse    Capability = "offer:browse"
	OfferClose     Capability = "offer:close"
	SlotManage     Capability = "slot:manage"
	SlotList       Capability = "slot:list"
	AppCreate      Capability = "application:create"
	AppReview      Capability = "application:review"
	AppSelect      Capability = "application:select_slot"
	AppRead        Capability = "application:read"
	AppMatch       Capability = "application:match"
	InternPropose  Capability = "internship:propose"
	InternReview   Capability = "internship:review"
	InternRead     Capability = "internship:read"
	InviteSend     Capability = "invitation:send"
	InviteAnswer   Capability = "invitation:answer"
	InviteList     Capability = "invitation:list"
	ReportWrite    Capability = "report:write"
	ReportRead     Capability = "report:read"
	ReportReview   Capability = "report:review"
	ReportGrade    Capability = "report:grade"
	SoutenancePlan Capability = "soutenance:plan"
	SoutenanceRead Capability = "soutenance:read"
	RoomManage     Capability = "room:manage"
	RoomRead       Capability = "room:read"
	StatsRead      Capability = "stats:read"
	UserManage     Capability = "user:manage"
	CalendarRead   Capability = "calendar:read"
)

var policy = map[Role]map[Capability]bool{
	RoleStudent: set(
		OfferBrowse, SlotList, AppCreate, AppSelect, AppRead,
		InternPropose, InternRead, InviteSend, InviteList,
		ReportWrite, ReportRead, SoutenanceRead, CalendarRead,
	),
	RoleTeacher: set(
		InternRead, InviteAnswer, InviteList,
		ReportRead, ReportReview, ReportGrade,
		SoutenanceRead, CalendarRead,
	),
	RoleCompany: set(
		OfferSubmit, OfferManage, OfferClose, SlotManage, SlotList,
		AppReview, AppRead, AppMatch, CalendarRead,
	),
	RoleAdministrator: set(
		OfferReview, OfferClose, OfferBrowse, AppRead, AppMatch,
		InternReview, InternRead, ReportRead,
		SoutenancePlan, SoutenanceRead, RoomManage, RoomRead,
		StatsRead, UserManage, CalendarRead,
	),
}

func set(caps ...Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		m[c] = true
	}
	return m
}

// Principal is the authenticated caller, passed explicitly to every service
// operation.
type Principal struct {
	UserID string
	Role   Role
}

// Is reports whether the principal has role r.
func (p Principal) Is(r Role) bool { return p.Role == r }

// Owns reports whether userID is the principal.
func (p Principal) Owns(userID string) bool { return userID != "" && p.UserID == userID }

// Can reports whether the principal's role grants c.
func (p Principal) Can(c Capability) bool { return policy[p.Role][c] }

// ErrForbidden is returned when a role or ownership check fails.
var ErrForbidden = apperrors.Forbidden(10003, "you are not allowed to perform this operation")

// Require returns ErrForbidden unless the principal holds c.
func Require(p Principal, c Capability) error {
	if !p.Can(c) {
		return ErrForbidden.WithMessage("missing capability " + string(c))
	}
	return nil
}

type ctxKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
