package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"goim-chat/apps/chat-service/dao"
	"goim-chat/apps/chat-service/model"
	"goim-chat/pkg/config"
	apperrors "goim-chat/pkg/errors"
	"goim-chat/pkg/logger"
	"goim-chat/pkg/telemetry"
)

// EventPublisher 事件广播（pubsub.Broadcaster）
type EventPublisher interface {
	Trigger(ctx context.Context, channel, event string, data interface{}) error
}

// Service 好友关系与消息服务。无进程内共享可变状态，每个请求独立执行。
type Service struct {
	store  dao.Store
	events EventPublisher
	log    logger.Logger
	cfg    config.ChatConfig
	now    func() time.Time
	newID  func() string
}

// NewService 创建服务
func NewService(store dao.Store, events EventPublisher, log logger.Logger, cfg config.ChatConfig) *Service {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = 2000
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 50
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	return &Service{
		store:  store,
		events: events,
		log:    log,
		cfg:    cfg,
		now:    time.Now,
		newID:  newMessageID,
	}
}

// Now 服务端时钟（毫秒）
func (s *Service) Now() int64 {
	return s.now().UnixMilli()
}

// newMessageID UUIDv7按时间递增，同毫秒内的消息按ID保持插入顺序
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// getUser 读取用户资料，不存在返回 ErrUserNotFound
func (s *Service) getUser(ctx context.Context, userID string) (*model.User, error) {
	raw, err := s.store.Get(ctx, model.UserKey(userID))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, apperrors.ErrUserNotFound
	}
	var user model.User
	if err := json.Unmarshal(raw, &user); err != nil {
		s.log.Warn(ctx, "Corrupt user profile", logger.F("userID", userID), logger.F("error", err))
		return nil, apperrors.ErrUserNotFound
	}
	if user.ID == "" {
		user.ID = userID
	}
	return &user, nil
}

// profileOrStub 事件载荷所需的资料，缺失时只带ID
func (s *Service) profileOrStub(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.getUser(ctx, userID)
	if err == nil {
		return user, nil
	}
	if apperrors.CodeOf(err) == apperrors.CodeUserNotFound {
		s.log.Warn(ctx, "User profile missing, publishing id only", logger.F("userID", userID))
		return &model.User{ID: userID}, nil
	}
	return nil, err
}

// profiles 批量解析资料，缺失的跳过
func (s *Service) profiles(ctx context.Context, ids []string) ([]model.User, error) {
	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		user, err := s.getUser(ctx, id)
		if apperrors.CodeOf(err) == apperrors.CodeUserNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, nil
}

// publish 存储写入之后调用；总线尽力而为，失败只记录
func (s *Service) publish(ctx context.Context, channel, event string, data interface{}) {
	if err := s.events.Trigger(ctx, channel, event, data); err != nil {
		s.log.Warn(ctx, "Event publish failed",
			logger.F("channel", channel),
			logger.F("event", event),
			logger.F("error", err))
	}
}

// fail 业务失败按Info记录，基础设施失败按Error记录
func (s *Service) fail(ctx context.Context, op string, err error, fields ...logger.Field) error {
	fields = append(fields, logger.F("op", op), logger.F("code", string(apperrors.CodeOf(err))))
	if code := apperrors.CodeOf(err); code.IsDomain() || code == apperrors.CodeInvalidArgument || code == apperrors.CodeInvalidPayload || code == apperrors.CodeUnauthorized {
		s.log.Info(ctx, "Request rejected", fields...)
	} else {
		s.log.Error(ctx, "Request failed", append(fields, logger.F("error", err))...)
	}
	return err
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, "chat.service."+name)
}

// endSpan 预期内的业务失败不标记为span错误
func endSpan(span trace.Span, err error) {
	if err != nil && apperrors.CodeOf(err).IsDomain() {
		err = nil
	}
	telemetry.EndSpan(span, err)
}

func validatePair(a, b string) error {
	if !model.ValidUserID(a) || !model.ValidUserID(b) {
		return apperrors.ErrInvalidUserID
	}
	if a == b {
		return apperrors.ErrSelfRequest
	}
	return nil
}
