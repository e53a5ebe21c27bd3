package service

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/khalilhajj/PfeManagement/config"
	"github.com/khalilhajj/PfeManagement/internal/repository"
	"github.com/khalilhajj/PfeManagement/pkg/jwt"
	"github.com/khalilhajj/PfeManagement/pkg/mailer"
	"github.com/khalilhajj/PfeManagement/pkg/matcher"
	"github.com/khalilhajj/PfeManagement/pkg/metrics"
	"github.com/khalilhajj/PfeManagement/pkg/storage"
)

// Service is the aggregate of every business service.
type Service struct {
	Auth         AuthService
	User         UserService
	Offer        OfferService
	Slot         SlotService
	Application  ApplicationService
	Internship   InternshipService
	Report       ReportService
	Soutenance   SoutenanceService
	Room         RoomService
	Notification NotificationService
	Statistics   StatisticsService
	Export       ExportService
	Calendar     CalendarService
}

// Infra bundles the external collaborators. Tokens and Broker are nil when
// Redis is unavailable.
type Infra struct {
	JWT     *jwt.Manager
	Tokens  TokenStore
	Broker  Broker
	Storage storage.Storage
	Mailer  mailer.Mailer
	Scorer  matcher.Scorer
	Metrics *metrics.Metrics
}

// NewService wires every service.
func NewService(cfg *config.Config, repo *repository.Repository, infra Infra, logger *zap.Logger) *Service {
	notifications := NewNotificationService(repo, infra.Broker, infra.Mailer, logger)
	b := newBase(cfg, repo, notifications, infra.Storage, infra.Metrics, logger)

	stats := NewStatisticsService(repo, logger)
	return &Service{
		Auth:         NewAuthService(cfg, repo, infra.JWT, infra.Tokens, logger),
		User:         NewUserService(repo, logger),
		Offer:        NewOfferService(b),
		Slot:         NewSlotService(b),
		Application:  NewApplicationService(b, infra.Scorer),
		Internship:   NewInternshipService(b),
		Report:       NewReportService(b),
		Soutenance:   NewSoutenanceService(b),
		Room:         NewRoomService(b),
		Notification: notifications,
		Statistics:   stats,
		Export:       NewExportService(repo, stats, b.loc, logger),
		Calendar:     NewCalendarService(repo, cfg.Mail.AppName, b.loc, logger),
	}
}

// base carries what every workflow service shares.
type base struct {
	cfg     *config.Config
	repo    *repository.Repository
	notify  Notifier
	storage storage.Storage
	metrics *metrics.Metrics
	logger  *zap.Logger
	loc     *time.Location
	now     func() time.Time
}

func newBase(
	cfg *config.Config,
	repo *repository.Repository,
	notify Notifier,
	store storage.Storage,
	m *metrics.Metrics,
	logger *zap.Logger,
) *base {
	loc, err := time.LoadLocation(cfg.Database.Timezone)
	if err != nil || cfg.Database.Timezone == "" {
		loc = time.UTC
	}
	return &base{
		cfg:     cfg,
		repo:    repo,
		notify:  notify,
		storage: store,
		metrics: m,
		logger:  logger,
		loc:     loc,
		now:     time.Now,
	}
}

// lookup maps gorm.ErrRecordNotFound onto notFound and logs anything else.
func (b *base) lookup(err error, notFound error, what string, fields ...zap.Field) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	b.logger.Error("load "+what+" failed", append(fields, zap.Error(err))...)
	return err
}

// transition records a committed status change.
func (b *base) transition(entity, to string) {
	b.metrics.Transition(entity, to)
}

// ── Uploads ──

// Upload is a file received with a request.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// withStoredFile stores up under dir and runs fn with the stored object. When
// fn fails the object is deleted again so no file is left without a record.
func (b *base) withStoredFile(ctx context.Context, dir string, up *Upload, fn func(obj *storage.Object) error) error {
	obj, err := b.storage.Put(ctx, dir, up.Filename, up.Body, up.ContentType)
	if err != nil {
		b.logger.Error("store upload failed", zap.String("dir", dir), zap.String("filename", up.Filename), zap.Error(err))
		return err
	}

	if err := fn(obj); err != nil {
		if delErr := b.storage.Delete(context.WithoutCancel(ctx), obj.Key); delErr != nil {
			b.logger.Error("remove orphan upload failed", zap.String("key", obj.Key), zap.Error(delErr))
		}
		return err
	}
	return nil
}

// fileURL resolves a stored key into its public URL.
func (b *base) fileURL(key string) string {
	if key == "" || b.storage == nil {
		return key
	}
	return b.storage.URL(key)
}

// ── Time helpers ──

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func strPtr(s string) *string { return &s }
