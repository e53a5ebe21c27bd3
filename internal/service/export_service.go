package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/internal/model"
	"github.com/khalilhajj/PfeManagement/internal/repository"
	apperrors "github.com/khalilhajj/PfeManagement/pkg/errors"
)

// ErrExportFailed is returned when the workbook cannot be written.
var ErrExportFailed = apperrors.New(apperrors.KindInternal, 10011, "failed to generate the export file")

// ExportService admin spreadsheet exports. Workbooks are returned in memory
// with a suggested filename; the handler sets the response headers.
type ExportService interface {
	ExportSoutenances(ctx context.Context, p authz.Principal) (*bytes.Buffer, string, error)
	ExportStatistics(ctx context.Context, p authz.Principal) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	stats  StatisticsService
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService creates an ExportService.
func NewExportService(repo *repository.Repository, stats StatisticsService, loc *time.Location, logger *zap.Logger) ExportService {
	if loc == nil {
		loc = time.UTC
	}
	return &exportService{repo: repo, stats: stats, loc: loc, logger: logger, now: time.Now}
}

// ────────────────────── Soutenances ──────────────────────

// ExportSoutenances writes one row per soutenance, ordered by start time:
// | Date | Start | End | Student | Internship | Company | Room | Jury 1 | Jury 2 | Status |
func (s *exportService) ExportSoutenances(ctx context.Context, p authz.Principal) (*bytes.Buffer, string, error) {
	if err := authz.Require(p, authz.StatsRead); err != nil {
		return nil, "", err
	}

	list, err := s.repo.Soutenance.List(ctx, repository.SoutenanceFilter{})
	if err != nil {
		s.logger.Error("list soutenances for export failed", zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Soutenances"
	idx, _ := f.NewSheet(sheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"Date", "Start", "End", "Student", "Internship", "Company", "Room", "Jury 1", "Jury 2", "Status"}
	widths := []float64{12, 8, 8, 24, 36, 24, 16, 24, 24, 10}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheet, col, col, w)
	}

	headerStyle := s.headerStyle(f)
	for i, h := range headers {
		f.SetCellValue(sheet, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheet, "A1", cell(colName(len(headers)-1), 1), headerStyle)
	f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	for i := range list {
		sout := &list[i]
		row := i + 2
		start := sout.StartsAt.In(s.loc)
		end := sout.EndsAt.In(s.loc)

		var student, title, company, room string
		if sout.Internship != nil {
			title = sout.Internship.Title
			company = sout.Internship.CompanyName
			student = sout.Internship.Student.DisplayName()
		}
		if sout.Room != nil {
			room = sout.Room.Name
		}
		jury := make([]string, 2)
		for _, j := range sout.Jury {
			if j.Position >= 1 && j.Position <= 2 {
				jury[j.Position-1] = j.Teacher.DisplayName()
			}
		}

		values := []interface{}{
			start.Format(model.DateLayout),
			start.Format(model.ClockLayout),
			end.Format(model.ClockLayout),
			student, title, company, room,
			jury[0], jury[1],
			string(sout.Status),
		}
		for c, v := range values {
			f.SetCellValue(sheet, cell(colName(c), row), v)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("write soutenance workbook failed", zap.Error(err))
		return nil, "", ErrExportFailed.Wrap(err)
	}

	filename := fmt.Sprintf("soutenances_%s.xlsx", s.now().In(s.loc).Format("20060102"))
	return buf, filename, nil
}

// ────────────────────── Statistics ──────────────────────

// ExportStatistics writes the dashboard counters to an "Overview" sheet, one
// section per entity.
func (s *exportService) ExportStatistics(ctx context.Context, p authz.Principal) (*bytes.Buffer, string, error) {
	stats, err := s.stats.Get(ctx, p)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Overview"
	idx, _ := f.NewSheet(sheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")
	f.SetColWidth(sheet, "A", "A", 28)
	f.SetColWidth(sheet, "B", "B", 14)

	headerStyle := s.headerStyle(f)
	titleStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})

	f.SetCellValue(sheet, "A1", "Platform statistics")
	f.SetCellStyle(sheet, "A1", "A1", titleStyle)
	f.SetCellValue(sheet, "A2", "Generated at")
	f.SetCellValue(sheet, "B2", s.now().In(s.loc).Format("2006-01-02 15:04"))

	row := 4
	section := func(title string, counts map[string]int64) {
		f.SetCellValue(sheet, cell("A", row), title)
		f.SetCellValue(sheet, cell("B", row), "Count")
		f.SetCellStyle(sheet, cell("A", row), cell("B", row), headerStyle)
		row++

		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			f.SetCellValue(sheet, cell("A", row), k)
			f.SetCellValue(sheet, cell("B", row), counts[k])
			row++
		}
		row++
	}

	section("Users by role", stats.UsersByRole)
	section("Offers by status", stats.OffersByStatus)
	section("Applications by status", stats.ApplicationsByStatus)
	section("Internships by status", stats.InternshipsByStatus)
	section("Reports", map[string]int64{"final": stats.ReportsFinal, "in progress": stats.ReportsInProgress})
	section("Soutenances by status", stats.SoutenancesByStatus)
	section("Rooms", map[string]int64{"available": stats.RoomsAvailable, "unavailable": stats.RoomsUnavailable})

	f.SetCellValue(sheet, cell("A", row), "Average final grade")
	f.SetCellStyle(sheet, cell("A", row), cell("B", row), headerStyle)
	if stats.AverageFinalGrade != nil {
		f.SetCellValue(sheet, cell("B", row), fmt.Sprintf("%.2f", *stats.AverageFinalGrade))
	} else {
		f.SetCellValue(sheet, cell("B", row), "-")
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("write statistics workbook failed", zap.Error(err))
		return nil, "", ErrExportFailed.Wrap(err)
	}

	filename := fmt.Sprintf("statistics_%s.xlsx", s.now().In(s.loc).Format("20060102"))
	return buf, filename, nil
}

func (s *exportService) headerStyle(f *excelize.File) int {
	style, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	return style
}

// ── Helpers ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
