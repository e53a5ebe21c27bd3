package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/model"
	"github.com/khalilhajj/PfeManagement/internal/repository"
	"github.com/khalilhajj/PfeManagement/internal/workflow"
	"github.com/khalilhajj/PfeManagement/pkg/storage"
)

// ReportService the report review cycle. Versions move
// draft → pending → approved | rejected; a rejected version is answered by
// uploading the next one.
type ReportService interface {
	Create(ctx context.Context, p authz.Principal, req *dto.CreateReportRequest) (*dto.ReportResponse, error)
	Get(ctx context.Context, p authz.Principal, id string) (*dto.ReportResponse, error)
	ListMine(ctx context.Context, p authz.Principal) ([]dto.ReportResponse, error)
	ListPendingVersions(ctx context.Context, p authz.Principal) ([]dto.VersionResponse, error)
	Delete(ctx context.Context, p authz.Principal, id string) error
	UploadVersion(ctx context.Context, p authz.Principal, reportID string, file *Upload) (*dto.VersionResponse, error)
	Submit(ctx context.Context, p authz.Principal, versionID string) (*dto.VersionResponse, error)
	Review(ctx context.Context, p authz.Principal, versionID string, req *dto.ReviewVersionRequest) (*dto.VersionResponse, error)
	AddComment(ctx context.Context, p authz.Principal, versionID string, req *dto.AddCommentRequest) (*dto.CommentResponse, error)
	// ResolveComment is one-way; resolving twice returns ErrCommentResolved.
	ResolveComment(ctx context.Context, p authz.Principal, commentID string) (*dto.CommentResponse, error)
	AssignGrade(ctx context.Context, p authz.Principal, reportID string, req *dto.AssignGradeRequest) (*dto.ReportResponse, error)
}

type reportService struct {
	*base
}

// NewReportService creates a ReportService.
func NewReportService(b *base) ReportService {
	return &reportService{base: b}
}

const (
	minGrade = 0
	maxGrade = 20
)

// ────────────────────── Reports ──────────────────────

func (s *reportService) Create(ctx context.Context, p authz.Principal, req *dto.CreateReportRequest) (*dto.ReportResponse, error) {
	if err := authz.Require(p, authz.ReportWrite); err != nil {
		return nil, err
	}

	in, err := s.repo.Internship.GetByID(ctx, req.InternshipID)
	if err != nil {
		return nil, s.lookup(err, ErrInternshipNotFound, "internship", zap.String("id", req.InternshipID))
	}
	if !p.Owns(in.StudentID) {
		return nil, authz.ErrForbidden
	}
	if in.Status != model.InternshipApproved {
		return nil, ErrInternshipNotApproved
	}

	if _, err := s.repo.Report.GetByInternship(ctx, in.InternshipID); err == nil {
		return nil, ErrReportExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("load report failed", zap.String("internship_id", in.InternshipID), zap.Error(err))
		return nil, err
	}

	report := &model.Report{
		InternshipID: in.InternshipID,
		StudentID:    p.UserID,
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
	}
	report.CreatedBy = &p.UserID
	report.UpdatedBy = &p.UserID
	if err := s.repo.Report.Create(ctx, report); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrReportExists
		}
		s.logger.Error("create report failed", zap.String("internship_id", in.InternshipID), zap.Error(err))
		return nil, err
	}

	return s.toReportResponse(report), nil
}

func (s *reportService) Get(ctx context.Context, p authz.Principal, id string) (*dto.ReportResponse, error) {
	if err := authz.Require(p, authz.ReportRead); err != nil {
		return nil, err
	}

	report, err := s.repo.Report.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookup(err, ErrReportNotFound, "report", zap.String("id", id))
	}
	supervisor := report.Internship != nil && report.Internship.IsSupervisedBy(p.UserID)
	if !p.Owns(report.StudentID) && !supervisor && !p.Is(authz.RoleAdministrator) {
		return nil, authz.ErrForbidden
	}
	return s.toReportResponse(report), nil
}

func (s *reportService) ListMine(ctx context.Context, p authz.Principal) ([]dto.ReportResponse, error) {
	if err := authz.Require(p, authz.ReportWrite); err != nil {
		return nil, err
	}

	list, err := s.repo.Report.ListByStudent(ctx, p.UserID)
	if err != nil {
		s.logger.Error("list reports failed", zap.String("student_id", p.UserID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.ReportResponse, 0, len(list))
	for i := range list {
		result = append(result, *s.toReportResponse(&list[i]))
	}
	return result, nil
}

func (s *reportService) ListPendingVersions(ctx context.Context, p authz.Principal) ([]dto.VersionResponse, error) {
	if err := authz.Require(p, authz.ReportReview); err != nil {
		return nil, err
	}

	list, err := s.repo.Version.ListPendingForTeacher(ctx, p.UserID)
	if err != nil {
		s.logger.Error("list pending versions failed", zap.String("teacher_id", p.UserID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.VersionResponse, 0, len(list))
	for i := range list {
		result = append(result, *s.toVersionResponse(&list[i]))
	}
	return result, nil
}

// Delete removes a report that is neither final nor holds an approved
// version. Stored version files are removed after the commit.
func (s *reportService) Delete(ctx context.Context, p authz.Principal, id string) error {
	if err := authz.Require(p, authz.ReportWrite); err != nil {
		return err
	}

	var files []string
	err := s.repo.Tx.Run(ctx, func(tx *repository.Repository) error {
		locked, err := tx.Report.GetForUpdate(ctx, id)
		if err != nil {
			return s.lookup(err, ErrReportNotFound, "report", zap.String("id", id))
		}
		if !p.Owns(locked.StudentID) {
			return authz.ErrForbidden
		}
		if locked.IsFinal {
			return ErrReportFinal
		}
		approved, err := tx.Version.CountByStatus(ctx, id, model.VersionApproved)
		if err != nil {
			s.logger.Error("count approved versions failed", zap.String("report_id", id), zap.Error(err))
			return err
		}
		if approved > 0 {
			return ErrReportHasApproved
		}

		full, err := tx.Report.GetByID(ctx, id)
		if err != nil {
			return s.lookup(err, ErrReportNotFound, "report", zap.String("id", id))
		}
		for _, v := range full.Versions {
			files = append(files, v.File)
		}

		if err := tx.Report.Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotMatched) {
				return ErrReportFinal
			}
			s.logger.Error("delete report failed", zap.String("id", id), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, key := range files {
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Warn("remove report file failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// ────────────────────── Versions ──────────────────────

func (s *reportService) UploadVersion(ctx context.Context, p authz.Principal, reportID string, file *Upload) (*dto.VersionResponse, error) {
	if err := authz.Require(p, authz.ReportWrite); err != nil {
		return nil, err
	}
	if file == nil || file.Body == nil || file.Size == 0 {
		return nil, ErrFileRequired
	}

	report, err := s.repo.Report.GetByID(ctx, reportID)
	if err != nil {
		return nil, s.lookup(err, ErrReportNotFound, "report", zap.String("id", reportID))
	}
	if !p.Owns(report.StudentID) {
		return nil, authz.ErrForbidden
	}
	if report.IsFinal {
		return nil, ErrReportFinal
	}

	var v *model.ReportVersion
	err = s.withStoredFile(ctx, "reports", file, func(obj *storage.Object) error {
		return s.repo.Tx.Run(ctx, func(tx *repository.Repository) error {
			// The report lock serialises version numbering.
			locked, err := tx.Report.GetForUpdate(ctx, reportID)
			if err != nil {
				return s.lookup(err, ErrReportNotFound, "report", zap.String("id", reportID))
			}
			if locked.IsFinal {
				return ErrReportFinal
			}
			pending, err := tx.Version.CountByStatus(ctx, reportID, model.VersionPending)
			if err != nil {
				s.logger.Error("count pending versions failed", zap.String("report_id", reportID), zap.Error(err))
				return err
			}
			if pending > 0 {
				return ErrVersionPending
			}
			last, err := tx.Version.MaxVersionNumber(ctx, reportID)
			if err != nil {
				s.logger.Error("load version number failed", zap.String("report_id", reportID), zap.Error(err))
				return err
			}

			v = &model.ReportVersion{
				ReportID:      reportID,
				VersionNumber: last + 1,
				File:          obj.Key,
				Status:        model.VersionDraft,
			}
			v.CreatedBy = &p.UserID
			v.UpdatedBy = &p.UserID
			if err := tx.Version.Create(ctx, v); err != nil {
				s.logger.Error("create version failed", zap.String("report_id", reportID), zap.Error(err))
				return err
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.transition(workflow.ReportVersion.Entity(), string(v.Status))
	v.Report = report
	return s.toVersionResponse(v), nil
}

func (s *reportService) Submit(ctx context.Context, p authz.Principal, versionID string) (*dto.VersionResponse, error) {
	if err := authz.Require(p, authz.ReportWrite); err != nil {
		return nil, err
	}

	var (
		v          *model.ReportVersion
		internship *model.Internship
	)
	now := s.now()
	err := s.repo.Tx.Run(ctx, func(tx *repository.Repository) error {
		var err error
		v, err = tx.Version.GetByID(ctx, versionID)
		if err != nil {
			return s.lookup(err, ErrVersionNotFound, "report version", zap.String("id", versionID))
		}
		report, err := tx.Report.GetForUpdate(ctx, v.ReportID)
		if err != nil {
			return s.lookup(err, ErrReportNotFound, "report", zap.String("id", v.ReportID))
		}
		if !p.Owns(report.StudentID) {
			return authz.ErrForbidden
		}
		if report.IsFinal {
			return ErrReportFinal
		}
		if err := workflow.ReportVersion.Transition(v.Status, model.VersionPending); err != nil {
			return err
		}
		pending, err := tx.Version.CountByStatus(ctx, v.ReportID, model.VersionPending)
		if err != nil {
			s.logger.Error("count pending versions failed", zap.String("report_id", v.ReportID), zap.Error(err))
			return err
		}
		if pending > 0 {
			return ErrVersionPending
		}

		err = tx.Version.UpdateIfStatus(ctx, versionID, model.VersionDraft, map[string]interface{}{
			"status":       model.VersionPending,
			"submitted_at": now,
			"updated_by":   p.UserID,
		})
		if errors.Is(err, repository.ErrNotMatched) {
			return workflow.ErrInvalidTransition.WithMessage("version was already submitted")
		}
		if err != nil {
			s.logger.Error("submit version failed", zap.String("id", versionID), zap.Error(err))
			return err
		}

		internship, err = tx.Internship.GetByID(ctx, report.InternshipID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("load internship failed", zap.String("id", report.InternshipID), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	v.Status = model.VersionPending
	v.SubmittedAt = &now
	s.transition(workflow.ReportVersion.Entity(), string(v.Status))

	if internship != nil && internship.TeacherID != nil {
		s.notify.Notify(ctx, Event{
			UserID:      *internship.TeacherID,
			Type:        model.NotifyVersionSubmitted,
			Title:       "Report version submitted",
			Content:     internship.Student.DisplayName() + " submitted a new version of their report for review.",
			RelatedType: "report",
			RelatedID:   v.ReportID,
			Payload:     map[string]interface{}{"version_id": v.VersionID, "version_number": v.VersionNumber},
		})
	}

	return s.toVersionResponse(v), nil
}

// supervise loads the internship behind report and checks that p supervises it.
func (s *reportService) supervise(ctx context.Context, repo *repository.Repository, p authz.Principal, report *model.Report) (*model.Internship, error) {
	in, err := repo.Internship.GetByID(ctx, report.InternshipID)
	if err != nil {
		return nil, s.lookup(err, ErrInternshipNotFound, "internship", zap.String("id", report.InternshipID))
	}
	if in.TeacherID == nil {
		return nil, ErrNoSupervisor
	}
	if !in.IsSupervisedBy(p.UserID) {
		return nil, authz.ErrForbidden
	}
	return in, nil
}

// Review approves or rejects a pending version. Approving it as final clears
// any earlier final flag and marks the report final.
func (s *reportService) Review(ctx context.Context, p authz.Principal, versionID string, req *dto.ReviewVersionRequest) (*dto.VersionResponse, error) {
	if err := authz.Require(p, authz.ReportReview); err != nil {
		return nil, err
	}

	target := model.VersionApproved
	if req.Decision == dto.DecisionReject {
		target = model.VersionRejected
	}
	final := target == model.VersionApproved && req.IsFinal
	text := strings.TrimSpace(req.Comment)

	var (
		v       *model.ReportVersion
		report  *model.Report
		comment *model.ReviewComment
	)
	now := s.now()
	err := s.repo.Tx.Run(ctx, func(tx *repository.Repository) error {
		var err error
		v, err = tx.Version.GetByID(ctx, versionID)
		if err != nil {
			return s.lookup(err, ErrVersionNotFound, "report version", zap.String("id", versionID))
		}
		report, err = tx.Report.GetForUpdate(ctx, v.ReportID)
		if err != nil {
			return s.lookup(err, ErrReportNotFound, "report", zap.String("id", v.ReportID))
		}
		if _, err := s.supervise(ctx, tx, p, report); err != nil {
			return err
		}
		if err := workflow.ReportVersion.Transition(v.Status, target); err != nil {
			return err
		}

		if final {
			if err := tx.Version.ClearFinal(ctx, report.ReportID, versionID); err != nil {
				s.logger.Error("clear final versions failed", zap.String("report_id", report.ReportID), zap.Error(err))
				return err
			}
		}
		err = tx.Version.UpdateIfStatus(ctx, versionID, model.VersionPending, map[string]interface{}{
			"status":      target,
			"is_final":    final,
			"reviewed_at": now,
			"reviewed_by": p.UserID,
			"updated_by":  p.UserID,
		})
		if errors.Is(err, repository.ErrNotMatched) {
			return workflow.ErrInvalidTransition.WithMessage("version was already reviewed")
		}
		if err != nil {
			s.logger.Error("review version failed", zap.String("id", versionID), zap.Error(err))
			return err
		}
		if final {
			err := tx.Report.UpdateFields(ctx, report.ReportID, map[string]interface{}{
				"is_final":   true,
				"updated_by": p.UserID,
			})
			if err != nil {
				s.logger.Error("finalise report failed", zap.String("report_id", report.ReportID), zap.Error(err))
				return err
			}
		}

		if text != "" {
			comment = &model.ReviewComment{VersionID: versionID, TeacherID: p.UserID, Comment: text}
			comment.CreatedBy = &p.UserID
			comment.UpdatedBy = &p.UserID
			if err := tx.Comment.Create(ctx, comment); err != nil {
				s.logger.Error("create review comment failed", zap.String("version_id", versionID), zap.Error(err))
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	v.Status = target
	v.IsFinal = final
	v.ReviewedAt = &now
	v.ReviewedBy = &p.UserID
	if comment != nil {
		v.Comments = append(v.Comments, *comment)
	}
	if final {
		report.IsFinal = true
		report.Version++
	}
	v.Report = report
	s.transition(workflow.ReportVersion.Entity(), string(target))

	content := "Version " + strconv.Itoa(v.VersionNumber) + " of your report was " + string(target) + "."
	if final {
		content = "Version " + strconv.Itoa(v.VersionNumber) + " of your report was approved as the final version."
	}
	if text != "" {
		content += " " + text
	}
	s.notify.Notify(ctx, Event{
		UserID:      report.StudentID,
		Type:        model.NotifyVersionReviewed,
		Title:       "Report version " + string(target),
		Content:     content,
		RelatedType: "report",
		RelatedID:   report.ReportID,
		Payload:     map[string]interface{}{"version_id": v.VersionID, "status": string(target), "is_final": final},
	})

	return s.toVersionResponse(v), nil
}

// ────────────────────── Comments ──────────────────────

func (s *reportService) AddComment(ctx context.Context, p authz.Principal, versionID string, req *dto.AddCommentRequest) (*dto.CommentResponse, error) {
	if err := authz.Require(p, authz.ReportReview); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Comment)
	if text == "" {
		return nil, ErrCommentEmpty
	}

	v, err := s.repo.Version.GetByID(ctx, versionID)
	if err != nil {
		return nil, s.lookup(err, ErrVersionNotFound, "report version", zap.String("id", versionID))
	}
	if v.Report == nil {
		return nil, ErrReportNotFound
	}
	if _, err := s.supervise(ctx, s.repo, p, v.Report); err != nil {
		return nil, err
	}

	c := &model.ReviewComment{
		VersionID:  versionID,
		TeacherID:  p.UserID,
		Comment:    text,
		PageNumber: req.PageNumber,
		Section:    req.Section,
	}
	c.CreatedBy = &p.UserID
	c.UpdatedBy = &p.UserID
	if err := s.repo.Comment.Create(ctx, c); err != nil {
		s.logger.Error("create comment failed", zap.String("version_id", versionID), zap.Error(err))
		return nil, err
	}

	s.notify.Notify(ctx, Event{
		UserID:      v.Report.StudentID,
		Type:        model.NotifyCommentAdded,
		Title:       "New review comment",
		Content:     "Your supervisor commented on version " + strconv.Itoa(v.VersionNumber) + " of your report.",
		RelatedType: "report",
		RelatedID:   v.ReportID,
		Payload:     map[string]interface{}{"version_id": versionID, "comment_id": c.CommentID},
	})

	return toCommentResponse(c), nil
}

func (s *reportService) ResolveComment(ctx context.Context, p authz.Principal, commentID string) (*dto.CommentResponse, error) {
	if err := authz.Require(p, authz.ReportRead); err != nil {
		return nil, err
	}

	c, err := s.repo.Comment.GetByID(ctx, commentID)
	if err != nil {
		return nil, s.lookup(err, ErrCommentNotFound, "comment", zap.String("id", commentID))
	}
	v, err := s.repo.Version.GetByID(ctx, c.VersionID)
	if err != nil {
		return nil, s.lookup(err, ErrVersionNotFound, "report version", zap.String("id", c.VersionID))
	}
	if v.Report == nil {
		return nil, ErrReportNotFound
	}
	if !p.Owns(v.Report.StudentID) {
		if _, err := s.supervise(ctx, s.repo, p, v.Report); err != nil {
			return nil, err
		}
	}
	if c.IsResolved {
		return nil, ErrCommentResolved
	}

	now := s.now()
	if err := s.repo.Comment.Resolve(ctx, commentID, now); err != nil {
		if errors.Is(err, repository.ErrNotMatched) {
			return nil, ErrCommentResolved
		}
		s.logger.Error("resolve comment failed", zap.String("id", commentID), zap.Error(err))
		return nil, err
	}

	c.IsResolved = true
	c.ResolvedAt = &now
	return toCommentResponse(c), nil
}

// ────────────────────── Grading ──────────────────────

func (s *reportService) AssignGrade(ctx context.Context, p authz.Principal, reportID string, req *dto.AssignGradeRequest) (*dto.ReportResponse, error) {
	if err := authz.Require(p, authz.ReportGrade); err != nil {
		return nil, err
	}
	if req.Grade == nil || *req.Grade < minGrade || *req.Grade > maxGrade {
		return nil, ErrGradeOutOfRange
	}

	report, err := s.repo.Report.GetByID(ctx, reportID)
	if err != nil {
		return nil, s.lookup(err, ErrReportNotFound, "report", zap.String("id", reportID))
	}
	if _, err := s.supervise(ctx, s.repo, p, report); err != nil {
		return nil, err
	}
	if !report.IsFinal {
		if s.cfg.Workflow.GradeRequiresFinal {
			return nil, ErrGradeNeedsFinal
		}
		s.logger.Warn("grading a report without a final version", zap.String("report_id", reportID))
	}

	now := s.now()
	err = s.repo.Report.UpdateFields(ctx, reportID, map[string]interface{}{
		"final_grade": *req.Grade,
		"graded_by":   p.UserID,
		"graded_at":   now,
		"updated_by":  p.UserID,
	})
	if errors.Is(err, repository.ErrNotMatched) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		s.logger.Error("assign grade failed", zap.String("report_id", reportID), zap.Error(err))
		return nil, err
	}

	grade := *req.Grade
	report.FinalGrade = &grade
	report.GradedBy = &p.UserID
	report.GradedAt = &now
	report.Version++

	s.notify.Notify(ctx, Event{
		UserID:      report.StudentID,
		Type:        model.NotifyGradeAssigned,
		Title:       "Final grade assigned",
		Content:     "Your report \"" + report.Title + "\" received its final grade.",
		RelatedType: "report",
		RelatedID:   report.ReportID,
		Payload:     map[string]interface{}{"grade": grade},
	})

	return s.toReportResponse(report), nil
}
