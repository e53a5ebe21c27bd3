package service

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/model"
	"github.com/khalilhajj/PfeManagement/internal/repository"
	"github.com/khalilhajj/PfeManagement/pkg/mailer"
	"github.com/khalilhajj/PfeManagement/pkg/redis"
)

// Event is one notification addressed to a single user.
type Event struct {
	UserID      string
	Type        string
	Title       string
	Content     string
	RelatedType string
	RelatedID   string
	Payload     map[string]interface{}
}

// Notifier receives workflow events after their transaction committed.
// Delivery is best effort: failures are logged, never returned.
type Notifier interface {
	Notify(ctx context.Context, events ...Event)
}

// Broker fans notifications out to live connections.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (*redis.Subscription, error)
}

// NotificationChannel is the pub/sub channel of one user.
func NotificationChannel(userID string) string {
	return "notifications:" + userID
}

// NotificationService persists, lists and streams notifications.
type NotificationService interface {
	Notifier
	List(ctx context.Context, p authz.Principal, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error)
	MarkRead(ctx context.Context, p authz.Principal, id string) error
	MarkAllRead(ctx context.Context, p authz.Principal) (*dto.MarkAllReadResponse, error)
	UnreadCount(ctx context.Context, p authz.Principal) (*dto.UnreadCountResponse, error)
	// Subscribe opens the caller's live stream. Messages published while the
	// client is disconnected are lost; clients refetch List on reconnect.
	Subscribe(ctx context.Context, p authz.Principal) (*redis.Subscription, error)
}

type notificationService struct {
	repo   *repository.Repository
	broker Broker
	mailer mailer.Mailer
	logger *zap.Logger
}

// NewNotificationService creates a NotificationService. broker and m may be nil.
func NewNotificationService(repo *repository.Repository, broker Broker, m mailer.Mailer, logger *zap.Logger) NotificationService {
	return &notificationService{repo: repo, broker: broker, mailer: m, logger: logger}
}

// ────────────────────── Notify ──────────────────────

func (s *notificationService) Notify(ctx context.Context, events ...Event) {
	for _, ev := range events {
		if ev.UserID == "" {
			continue
		}
		n := &model.Notification{
			UserID:  ev.UserID,
			Type:    ev.Type,
			Title:   ev.Title,
			Content: ev.Content,
		}
		if ev.RelatedType != "" {
			n.RelatedType = strPtr(ev.RelatedType)
		}
		if ev.RelatedID != "" {
			n.RelatedID = strPtr(ev.RelatedID)
		}
		if len(ev.Payload) > 0 {
			if raw, err := json.Marshal(ev.Payload); err == nil {
				n.Payload = datatypes.JSON(raw)
			}
		}

		if err := s.repo.Notification.Create(ctx, n); err != nil {
			s.logger.Error("persist notification failed",
				zap.String("user_id", ev.UserID), zap.String("type", ev.Type), zap.Error(err))
			continue
		}

		s.publish(ctx, n)
		s.email(ctx, ev)
	}
}

func (s *notificationService) publish(ctx context.Context, n *model.Notification) {
	if s.broker == nil {
		return
	}
	raw, err := json.Marshal(toNotificationResponse(n))
	if err != nil {
		return
	}
	if err := s.broker.Publish(ctx, NotificationChannel(n.UserID), raw); err != nil {
		s.logger.Warn("publish notification failed", zap.String("user_id", n.UserID), zap.Error(err))
	}
}

// email sends the copy in the background so SMTP latency stays off the
// request path.
func (s *notificationService) email(ctx context.Context, ev Event) {
	if s.mailer == nil {
		return
	}
	user, err := s.repo.User.GetByID(ctx, ev.UserID)
	if err != nil || user.Email == "" {
		return
	}
	msg := mailer.Message{
		ToName:    user.DisplayName(),
		ToAddress: user.Email,
		Subject:   ev.Title,
		Text:      ev.Content,
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		if err := s.mailer.Send(bg, msg); err != nil {
			s.logger.Warn("send notification email failed", zap.String("user_id", ev.UserID), zap.Error(err))
		}
	}()
}

// ────────────────────── List ──────────────────────

func (s *notificationService) List(ctx context.Context, p authz.Principal, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	list, total, err := s.repo.Notification.ListByUser(ctx, p.UserID, req.UnreadOnly, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("list notifications failed", zap.String("user_id", p.UserID), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.NotificationResponse, 0, len(list))
	for i := range list {
		result = append(result, *toNotificationResponse(&list[i]))
	}
	return result, total, nil
}

// ────────────────────── Read state ──────────────────────

func (s *notificationService) MarkRead(ctx context.Context, p authz.Principal, id string) error {
	err := s.repo.Notification.MarkRead(ctx, id, p.UserID)
	if errors.Is(err, repository.ErrNotMatched) {
		return ErrNotificationNotFound
	}
	if err != nil {
		s.logger.Error("mark notification read failed", zap.String("id", id), zap.Error(err))
	}
	return err
}

func (s *notificationService) MarkAllRead(ctx context.Context, p authz.Principal) (*dto.MarkAllReadResponse, error) {
	n, err := s.repo.Notification.MarkAllRead(ctx, p.UserID)
	if err != nil {
		s.logger.Error("mark all notifications read failed", zap.String("user_id", p.UserID), zap.Error(err))
		return nil, err
	}
	return &dto.MarkAllReadResponse{Updated: n}, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, p authz.Principal) (*dto.UnreadCountResponse, error) {
	n, err := s.repo.Notification.CountUnread(ctx, p.UserID)
	if err != nil {
		s.logger.Error("count unread notifications failed", zap.String("user_id", p.UserID), zap.Error(err))
		return nil, err
	}
	return &dto.UnreadCountResponse{Unread: n}, nil
}

// ────────────────────── Stream ──────────────────────

func (s *notificationService) Subscribe(ctx context.Context, p authz.Principal) (*redis.Subscription, error) {
	if s.broker == nil {
		return nil, ErrStreamUnavailable
	}
	sub, err := s.broker.Subscribe(ctx, NotificationChannel(p.UserID))
	if err != nil {
		s.logger.Warn("subscribe notifications failed", zap.String("user_id", p.UserID), zap.Error(err))
		return nil, ErrStreamUnavailable.Wrap(err)
	}
	return sub, nil
}
