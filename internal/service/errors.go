package service

import (
	apperrors "github.com/khalilhajj/PfeManagement/pkg/errors"
)

// ── Auth (11xxx) ──

var (
	ErrInvalidCredentials  = apperrors.New(apperrors.KindUnauthenticated, 11001, "invalid username or password")
	ErrAccountDisabled     = apperrors.Forbidden(11002, "account is disabled")
	ErrInvalidRefreshToken = apperrors.New(apperrors.KindUnauthenticated, 11003, "refresh token is invalid or expired")
	ErrUserNotFound        = apperrors.NotFound(11004, "user not found")
	ErrUsernameTaken       = apperrors.Conflict(11005, "username already exists")
	ErrInvalidRole         = apperrors.Validation(11006, "unknown role")
	ErrNotATeacher         = apperrors.Validation(11007, "user is not a teacher")
	ErrEmailTaken          = apperrors.Conflict(11008, "email already exists")
	ErrUserSelfDelete      = apperrors.State(11009, "you cannot delete your own account")
	ErrUserSelfRoleChange  = apperrors.State(11010, "you cannot change your own role or status")
	ErrWrongPassword       = apperrors.Validation(11011, "current password is incorrect")
	ErrSamePassword        = apperrors.Validation(11012, "new password must differ from the current one")
	ErrImportNoData        = apperrors.Validation(11013, "the import sheet has no data rows")
	ErrImportBadHeader     = apperrors.Validation(11014, "the import sheet needs username, email, first_name and last_name columns")
	ErrImportTooManyRows   = apperrors.Validation(11015, "the import sheet has too many rows")
	ErrImportUnreadable    = apperrors.Validation(11016, "the import file is not a readable xlsx workbook")
)

// ── Offers (20xxx) ──

var (
	ErrOfferNotFound    = apperrors.NotFound(20001, "offer not found")
	ErrOfferInvalid     = apperrors.Validation(20002, "offer is invalid")
	ErrOfferNotPending  = apperrors.State(20003, "offer is no longer pending")
	ErrOfferNotOpen     = apperrors.Validation(20004, "offer is not open for applications")
	ErrOfferClosed      = apperrors.State(20005, "offer is closed")
	ErrOfferFull        = apperrors.Capacity(20006, "all positions of this offer are filled")
	ErrOfferHasAccepted = apperrors.State(20007, "offer has accepted applications")
)

// ── Applications (21xxx) ──

var (
	ErrApplicationNotFound = apperrors.NotFound(21001, "application not found")
	ErrCVRequired          = apperrors.Validation(21002, "a CV file is required")
	ErrAlreadyApplied      = apperrors.Conflict(21003, "you already applied to this offer")
	ErrSlotNotSelected     = apperrors.State(21004, "no interview slot has been selected yet")
	ErrSlotAlreadyChosen   = apperrors.Conflict(21005, "an interview slot is already selected for this application")
	ErrMatchFailed         = apperrors.Upstream(21006, "match scoring failed")
	ErrMatchDisabled       = apperrors.Upstream(21007, "match scoring is not configured")
)

// ── Interview slots (22xxx) ──

var (
	ErrSlotNotFound    = apperrors.NotFound(22001, "interview slot not found")
	ErrSlotInvalid     = apperrors.Validation(22002, "interview slot is invalid")
	ErrSlotBooked      = apperrors.Conflict(22003, "slot already booked")
	ErrSlotOtherOffer  = apperrors.Validation(22004, "slot does not belong to the application's offer")
	ErrSlotOfferClosed = apperrors.State(22005, "slots can only be added to pending or approved offers")
)

// ── Internships and invitations (23xxx) ──

var (
	ErrInternshipNotFound    = apperrors.NotFound(23001, "internship not found")
	ErrInternshipInvalid     = apperrors.Validation(23002, "internship is invalid")
	ErrInternshipNotApproved = apperrors.State(23003, "internship is not approved")
	ErrInvitationNotFound    = apperrors.NotFound(23004, "invitation not found")
	ErrInvitationPending     = apperrors.Conflict(23005, "an invitation to this teacher is already pending")
	ErrAlreadySupervised     = apperrors.State(23006, "internship already has a supervisor")
)

// ── Reports (24xxx) ──

var (
	ErrReportNotFound    = apperrors.NotFound(24001, "report not found")
	ErrReportExists      = apperrors.Conflict(24002, "a report already exists for this internship")
	ErrReportFinal       = apperrors.State(24003, "report is final and can no longer change")
	ErrVersionNotFound   = apperrors.NotFound(24004, "report version not found")
	ErrVersionPending    = apperrors.State(24005, "a version is already waiting for review")
	ErrFileRequired      = apperrors.Validation(24006, "a file is required")
	ErrCommentEmpty      = apperrors.Validation(24007, "comment text is required")
	ErrCommentNotFound   = apperrors.NotFound(24008, "comment not found")
	ErrCommentResolved   = apperrors.Conflict(24009, "comment is already resolved")
	ErrGradeOutOfRange   = apperrors.Validation(24010, "grade must be between 0 and 20")
	ErrGradeNeedsFinal   = apperrors.State(24011, "a final version must be approved before grading")
	ErrReportHasApproved = apperrors.State(24012, "report has an approved version")
	ErrNoSupervisor      = apperrors.State(24013, "internship has no supervisor")
)

// ── Soutenances (25xxx) ──

var (
	ErrSoutenanceNotFound = apperrors.NotFound(25001, "soutenance not found")
	ErrSoutenanceInvalid  = apperrors.Validation(25002, "soutenance is invalid")
	ErrSameJury           = apperrors.Validation(25003, "the two jury members must be different teachers")
	ErrRoomBooked         = apperrors.Conflict(25004, "room is already booked at that time")
	ErrJuryBooked         = apperrors.Conflict(25005, "a jury member is already booked at that time")
	ErrSoutenanceExists   = apperrors.Conflict(25006, "a soutenance is already planned for this internship")
	ErrNotReadyForDefence = apperrors.State(25007, "internship has no final report")
	ErrSoutenanceDone     = apperrors.State(25008, "soutenance is already done")
)

// ── Rooms (26xxx) ──

var (
	ErrRoomNotFound    = apperrors.NotFound(26001, "room not found")
	ErrRoomNameTaken   = apperrors.Conflict(26002, "room name already exists")
	ErrRoomUnavailable = apperrors.State(26003, "room is not available")
	ErrRoomInUse       = apperrors.Conflict(26004, "room is used by a planned soutenance")
)

// ── Notifications (27xxx) ──

var (
	ErrNotificationNotFound = apperrors.NotFound(27001, "notification not found")
	ErrStreamUnavailable    = apperrors.Upstream(27002, "live notifications are unavailable")
)
