// Package workflow declares the status machines of every entity. Services
// validate each status change through Transition before persisting it with a
// status-conditional update.
package workflow

import (
	"fmt"

	"github.com/khalilhajj/PfeManagement/internal/model"
	apperrors "github.com/khalilhajj/PfeManagement/pkg/errors"
)

// ErrInvalidTransition is the StateError returned for an edge outside the table.
var ErrInvalidTransition = apperrors.State(10010, "operation is not allowed in the current state")

// Machine is a transition table over states of type S.
type Machine[S comparable] struct {
	entity string
	edges  map[S]map[S]bool
}

// Edge declares one allowed transition.
type Edge[S comparable] struct {
	From S
	To   []S
}

// New builds a machine; states without outgoing edges are terminal.
func New[S comparable](entity string, edges ...Edge[S]) *Machine[S] {
	m := &Machine[S]{entity: entity, edges: make(map[S]map[S]bool)}
	for _, e := range edges {
		if m.edges[e.From] == nil {
			m.edges[e.From] = make(map[S]bool)
		}
		for _, to := range e.To {
			m.edges[e.From][to] = true
		}
	}
	return m
}

// Entity returns the machine's entity name.
func (m *Machine[S]) Entity() string { return m.entity }

// Can reports whether from→to is an allowed edge.
func (m *Machine[S]) Can(from, to S) bool { return m.edges[from][to] }

// Terminal reports whether s has no outgoing edge.
func (m *Machine[S]) Terminal(s S) bool { return len(m.edges[s]) == 0 }

// Transition returns nil for an allowed edge and a StateError otherwise.
func (m *Machine[S]) Transition(from, to S) error {
	if m.Can(from, to) {
		return nil
	}
	return ErrInvalidTransition.WithMessage(fmt.Sprintf("%s cannot move from %v to %v", m.entity, from, to))
}

// ── Machines ──

var Offer = New("offer",
	Edge[model.OfferStatus]{From: model.OfferPending, To: []model.OfferStatus{model.OfferApproved, model.OfferRejected}},
	Edge[model.OfferStatus]{From: model.OfferApproved, To: []model.OfferStatus{model.OfferClosed}},
)

var Application = New("application",
	Edge[model.ApplicationStatus]{From: model.ApplicationPending, To: []model.ApplicationStatus{model.ApplicationInterview, model.ApplicationRejected}},
	Edge[model.ApplicationStatus]{From: model.ApplicationInterview, To: []model.ApplicationStatus{model.ApplicationAccepted, model.ApplicationRejected}},
)

var Internship = New("internship",
	Edge[model.InternshipStatus]{From: model.InternshipPending, To: []model.InternshipStatus{model.InternshipApproved, model.InternshipRejected}},
)

var ReportVersion = New("report version",
	Edge[model.VersionStatus]{From: model.VersionDraft, To: []model.VersionStatus{model.VersionPending}},
	Edge[model.VersionStatus]{From: model.VersionPending, To: []model.VersionStatus{model.VersionApproved, model.VersionRejected}},
)

var Soutenance = New("soutenance",
	Edge[model.SoutenanceStatus]{From: model.SoutenancePlanned, To: []model.SoutenanceStatus{model.SoutenanceDone}},
)

var Invitation = New("invitation",
	Edge[model.InvitationStatus]{From: model.InvitationPending, To: []model.InvitationStatus{model.InvitationAccepted, model.InvitationDeclined}},
)
