package service

import (
	"context"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/model"
	"github.com/khalilhajj/PfeManagement/internal/repository"
)

// StatisticsService admin dashboard counters.
type StatisticsService interface {
	Get(ctx context.Context, p authz.Principal) (*dto.StatisticsResponse, error)
}

type statisticsService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewStatisticsService creates a StatisticsService.
func NewStatisticsService(repo *repository.Repository, logger *zap.Logger) StatisticsService {
	return &statisticsService{repo: repo, logger: logger}
}

// Get runs the independent count queries concurrently.
func (s *statisticsService) Get(ctx context.Context, p authz.Principal) (*dto.StatisticsResponse, error) {
	if err := authz.Require(p, authz.StatsRead); err != nil {
		return nil, err
	}

	resp := &dto.StatisticsResponse{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		resp.UsersByRole, err = s.repo.User.CountByRole(gctx)
		return err
	})
	g.Go(func() (err error) {
		resp.OffersByStatus, err = s.repo.Offer.CountByStatus(gctx)
		return err
	})
	g.Go(func() error {
		raw, err := s.repo.Application.CountByStatus(gctx)
		if err != nil {
			return err
		}
		resp.ApplicationsByStatus = applicationStatusNames(raw)
		return nil
	})
	g.Go(func() (err error) {
		resp.InternshipsByStatus, err = s.repo.Internship.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		resp.ReportsFinal, resp.ReportsInProgress, err = s.repo.Report.CountByFinal(gctx)
		return err
	})
	g.Go(func() (err error) {
		resp.AverageFinalGrade, err = s.repo.Report.AverageGrade(gctx)
		return err
	})
	g.Go(func() (err error) {
		resp.SoutenancesByStatus, err = s.repo.Soutenance.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		resp.RoomsAvailable, resp.RoomsUnavailable, err = s.repo.Room.CountByAvailability(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("load statistics failed", zap.Error(err))
		return nil, err
	}
	return resp, nil
}

// applicationStatusNames rekeys the integer status codes by name.
func applicationStatusNames(raw map[string]int64) map[string]int64 {
	named := make(map[string]int64, len(raw))
	for k, v := range raw {
		code, err := strconv.Atoi(k)
		if err != nil {
			named[k] += v
			continue
		}
		named[model.ApplicationStatus(code).String()] += v
	}
	return named
}
