package service

import (
	"encoding/json"

	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/model"
)

func toUserResponse(u *model.User) *dto.UserResponse {
	if u == nil {
		return nil
	}
	return &dto.UserResponse{
		ID:        u.UserID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Name:      u.DisplayName(),
		Role:      u.Role,
	}
}

func toUserDetail(u *model.User) *dto.UserDetailResponse {
	return &dto.UserDetailResponse{
		UserResponse: *toUserResponse(u),
		Phone:        u.Phone,
		IsActive:     u.IsActive,
		LastLoginAt:  formatTimePtr(u.LastLoginAt),
		CreatedAt:    formatTime(u.CreatedAt),
	}
}

func toOfferResponse(o *model.Offer) *dto.OfferResponse {
	if o == nil {
		return nil
	}
	return &dto.OfferResponse{
		ID:                 o.OfferID,
		Company:            toUserResponse(o.Company),
		Title:              o.Title,
		Description:        o.Description,
		Requirements:       o.Requirements,
		Type:               string(o.Type),
		Location:           o.Location,
		Duration:           o.Duration,
		StartDate:          formatDate(o.StartDate),
		EndDate:            formatDate(o.EndDate),
		PositionsAvailable: o.PositionsAvailable,
		Status:             string(o.Status),
		AdminFeedback:      o.AdminFeedback,
		ReviewedAt:         formatTimePtr(o.ReviewedAt),
		Version:            o.Version,
		CreatedAt:          formatTime(o.CreatedAt),
	}
}

// toSlotResponse hides the booking application unless withBooking.
func toSlotResponse(s *model.InterviewSlot, withBooking bool) *dto.SlotResponse {
	if s == nil {
		return nil
	}
	resp := &dto.SlotResponse{
		ID:        s.SlotID,
		OfferID:   s.OfferID,
		Date:      formatDate(s.Date),
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Location:  s.Location,
		IsBooked:  s.IsBooked(),
	}
	if withBooking && s.BookedByApplicationID != nil {
		resp.BookedBy = *s.BookedByApplicationID
	}
	return resp
}

func (b *base) toApplicationResponse(a *model.Application) *dto.ApplicationResponse {
	resp := &dto.ApplicationResponse{
		ID:              a.ApplicationID,
		OfferID:         a.OfferID,
		Offer:           toOfferResponse(a.Offer),
		Student:         toUserResponse(a.Student),
		CVFile:          b.fileURL(a.CVFile),
		CoverLetter:     a.CoverLetter,
		Status:          int(a.Status),
		StatusName:      a.Status.String(),
		CompanyFeedback: a.CompanyFeedback,
		InterviewNotes:  a.InterviewNotes,
		SelectedSlot:    toSlotResponse(a.SelectedSlot, false),
		Version:         a.Version,
		CreatedAt:       formatTime(a.CreatedAt),
	}
	if a.MatchScore != nil {
		m := &dto.MatchResponse{
			Score:     *a.MatchScore,
			Analysis:  a.MatchAnalysis,
			MatchedAt: formatTimePtr(a.MatchedAt),
		}
		if len(a.MatchBreakdown) > 0 {
			var breakdown map[string]interface{}
			if err := json.Unmarshal(a.MatchBreakdown, &breakdown); err == nil {
				m.Breakdown = breakdown
			}
		}
		resp.Match = m
	}
	return resp
}

func (b *base) toInternshipResponse(in *model.Internship) *dto.InternshipResponse {
	if in == nil {
		return nil
	}
	resp := &dto.InternshipResponse{
		ID:            in.InternshipID,
		Student:       toUserResponse(in.Student),
		StudentID:     in.StudentID,
		Teacher:       toUserResponse(in.Teacher),
		Title:         in.Title,
		Type:          in.Type,
		CompanyName:   in.CompanyName,
		Description:   in.Description,
		SpecFile:      b.fileURL(in.SpecFile),
		Status:        string(in.Status),
		StartDate:     formatDate(in.StartDate),
		EndDate:       formatDate(in.EndDate),
		AdminFeedback: in.AdminFeedback,
		Version:       in.Version,
		CreatedAt:     formatTime(in.CreatedAt),
	}
	if in.OfferID != nil {
		resp.OfferID = *in.OfferID
	}
	if in.ApplicationID != nil {
		resp.ApplicationID = *in.ApplicationID
	}
	return resp
}

func (b *base) toInvitationResponse(inv *model.TeacherInvitation) *dto.InvitationResponse {
	return &dto.InvitationResponse{
		ID:          inv.InvitationID,
		Internship:  b.toInternshipResponse(inv.Internship),
		Student:     toUserResponse(inv.Student),
		Teacher:     toUserResponse(inv.Teacher),
		Message:     inv.Message,
		Status:      string(inv.Status),
		RespondedAt: formatTimePtr(inv.RespondedAt),
		CreatedAt:   formatTime(inv.CreatedAt),
	}
}

func (b *base) toReportResponse(r *model.Report) *dto.ReportResponse {
	resp := &dto.ReportResponse{
		ID:           r.ReportID,
		InternshipID: r.InternshipID,
		StudentID:    r.StudentID,
		Title:        r.Title,
		Description:  r.Description,
		IsFinal:      r.IsFinal,
		FinalGrade:   r.FinalGrade,
		GradedAt:     formatTimePtr(r.GradedAt),
		Versions:     make([]dto.VersionResponse, 0, len(r.Versions)),
		Version:      r.Version,
		CreatedAt:    formatTime(r.CreatedAt),
	}
	for i := range r.Versions {
		resp.Versions = append(resp.Versions, *b.toVersionResponse(&r.Versions[i]))
	}
	return resp
}

func (b *base) toVersionResponse(v *model.ReportVersion) *dto.VersionResponse {
	resp := &dto.VersionResponse{
		ID:            v.VersionID,
		ReportID:      v.ReportID,
		VersionNumber: v.VersionNumber,
		File:          b.fileURL(v.File),
		Status:        string(v.Status),
		IsFinal:       v.IsFinal,
		SubmittedAt:   formatTimePtr(v.SubmittedAt),
		ReviewedAt:    formatTimePtr(v.ReviewedAt),
		Comments:      make([]dto.CommentResponse, 0, len(v.Comments)),
		CreatedAt:     formatTime(v.CreatedAt),
	}
	if v.Report != nil {
		resp.ReportTitle = v.Report.Title
	}
	if v.ReviewedBy != nil {
		resp.ReviewedBy = *v.ReviewedBy
	}
	for i := range v.Comments {
		resp.Comments = append(resp.Comments, *toCommentResponse(&v.Comments[i]))
	}
	return resp
}

func toCommentResponse(c *model.ReviewComment) *dto.CommentResponse {
	return &dto.CommentResponse{
		ID:         c.CommentID,
		VersionID:  c.VersionID,
		TeacherID:  c.TeacherID,
		Comment:    c.Comment,
		PageNumber: c.PageNumber,
		Section:    c.Section,
		IsResolved: c.IsResolved,
		ResolvedAt: formatTimePtr(c.ResolvedAt),
		CreatedAt:  formatTime(c.CreatedAt),
	}
}

func toRoomResponse(r *model.Room) *dto.RoomResponse {
	if r == nil {
		return nil
	}
	return &dto.RoomResponse{
		ID:          r.RoomID,
		Name:        r.Name,
		Building:    r.Building,
		Capacity:    r.Capacity,
		Equipment:   r.Equipment,
		IsAvailable: r.IsAvailable,
	}
}

func (b *base) toSoutenanceResponse(s *model.Soutenance) *dto.SoutenanceResponse {
	start := s.StartsAt.In(b.loc)
	end := s.EndsAt.In(b.loc)
	resp := &dto.SoutenanceResponse{
		ID:           s.SoutenanceID,
		InternshipID: s.InternshipID,
		Room:         toRoomResponse(s.Room),
		Date:         start.Format(model.DateLayout),
		StartTime:    start.Format(model.ClockLayout),
		EndTime:      end.Format(model.ClockLayout),
		StartsAt:     formatTime(s.StartsAt),
		EndsAt:       formatTime(s.EndsAt),
		Status:       string(s.Status),
		Jury:         make([]dto.UserResponse, 0, len(s.Jury)),
		CompletedAt:  formatTimePtr(s.CompletedAt),
		Version:      s.Version,
	}
	if s.Internship != nil {
		resp.Title = s.Internship.Title
		resp.Student = toUserResponse(s.Internship.Student)
	}
	for _, j := range s.Jury {
		if j.Teacher != nil {
			resp.Jury = append(resp.Jury, *toUserResponse(j.Teacher))
		} else {
			resp.Jury = append(resp.Jury, dto.UserResponse{ID: j.TeacherID})
		}
	}
	return resp
}

func toNotificationResponse(n *model.Notification) *dto.NotificationResponse {
	resp := &dto.NotificationResponse{
		ID:        n.NotificationID,
		Type:      n.Type,
		Title:     n.Title,
		Content:   n.Content,
		IsRead:    n.IsRead,
		CreatedAt: formatTime(n.CreatedAt),
	}
	if n.RelatedType != nil {
		resp.RelatedType = *n.RelatedType
	}
	if n.RelatedID != nil {
		resp.RelatedID = *n.RelatedID
	}
	if len(n.Payload) > 0 {
		var payload map[string]interface{}
		if err := json.Unmarshal(n.Payload, &payload); err == nil {
			resp.Payload = payload
		}
	}
	return resp
}
