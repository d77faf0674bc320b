package service

import (
	"context"
	"net/mail"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"goim-chat/apps/chat-service/model"
	apperrors "goim-chat/pkg/errors"
	"goim-chat/pkg/logger"
)

// SendFriendRequest 发送好友申请 requester -> target
func (s *Service) SendFriendRequest(ctx context.Context, requesterID, targetID string) (err error) {
	ctx, span := startSpan(ctx, "SendFriendRequest")
	span.SetAttributes(attribute.String("requester.id", requesterID), attribute.String("target.id", targetID))
	defer func() { endSpan(span, err) }()

	if err := validatePair(requesterID, targetID); err != nil {
		return s.fail(ctx, "send_friend_request", err)
	}

	friends, err := s.store.IsMember(ctx, model.FriendsKey(requesterID), targetID)
	if err != nil {
		return s.fail(ctx, "send_friend_request", err)
	}
	if friends {
		return s.fail(ctx, "send_friend_request", apperrors.ErrAlreadyFriends, logger.F("targetID", targetID))
	}

	pending, err := s.store.IsMember(ctx, model.IncomingRequestsKey(targetID), requesterID)
	if err != nil {
		return s.fail(ctx, "send_friend_request", err)
	}
	if pending {
		return s.fail(ctx, "send_friend_request", apperrors.ErrDuplicateRequest, logger.F("targetID", targetID))
	}

	if _, err := s.getUser(ctx, targetID); err != nil {
		return s.fail(ctx, "send_friend_request", err, logger.F("targetID", targetID))
	}
	requester, err := s.profileOrStub(ctx, requesterID)
	if err != nil {
		return s.fail(ctx, "send_friend_request", err)
	}

	// 并发重复申请在集合层面天然幂等
	if _, err := s.store.AddToSet(ctx, model.IncomingRequestsKey(targetID), requesterID); err != nil {
		return s.fail(ctx, "send_friend_request", err)
	}

	s.publish(ctx, model.PrivateChannel(model.UserFriendsTopic(targetID)), model.EventIncomingFriendRequest, requester)

	s.log.Info(ctx, "Friend request sent", logger.F("requesterID", requesterID), logger.F("targetID", targetID))
	return nil
}

// SendFriendRequestByEmail 通过邮箱定位目标用户后发送申请
func (s *Service) SendFriendRequestByEmail(ctx context.Context, requesterID, email string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return s.fail(ctx, "send_friend_request", apperrors.InvalidPayload("invalid email"))
	}
	raw, err := s.store.Get(ctx, model.UserEmailKey(addr.Address))
	if err != nil {
		return s.fail(ctx, "send_friend_request", err)
	}
	if raw == nil {
		return s.fail(ctx, "send_friend_request", apperrors.ErrUserNotFound)
	}
	return s.SendFriendRequest(ctx, requesterID, string(raw))
}

// AcceptFriendRequest accepter 接受 requester 的申请。
// 先写存储（双向好友、移除申请），全部确认后才发布事件，
// 客户端收到事件后立即回查一定能看到好友关系。
func (s *Service) AcceptFriendRequest(ctx context.Context, accepterID, requesterID string) (err error) {
	ctx, span := startSpan(ctx, "AcceptFriendRequest")
	span.SetAttributes(attribute.String("accepter.id", accepterID), attribute.String("requester.id", requesterID))
	defer func() { endSpan(span, err) }()

	if err := validatePair(accepterID, requesterID); err != nil {
		return s.fail(ctx, "accept_friend_request", err)
	}

	friends, err := s.store.IsMember(ctx, model.FriendsKey(accepterID), requesterID)
	if err != nil {
		return s.fail(ctx, "accept_friend_request", err)
	}
	if friends {
		return s.fail(ctx, "accept_friend_request", apperrors.ErrAlreadyFriends, logger.F("requesterID", requesterID))
	}

	pending, err := s.store.IsMember(ctx, model.IncomingRequestsKey(accepterID), requesterID)
	if err != nil {
		return s.fail(ctx, "accept_friend_request", err)
	}
	if !pending {
		return s.fail(ctx, "accept_friend_request", apperrors.ErrNoPendingRequest, logger.F("requesterID", requesterID))
	}

	accepter, err := s.profileOrStub(ctx, accepterID)
	if err != nil {
		return s.fail(ctx, "accept_friend_request", err)
	}
	requester, err := s.profileOrStub(ctx, requesterID)
	if err != nil {
		return s.fail(ctx, "accept_friend_request", err)
	}

	// (a) 双向建边 (b) 移除申请，在存储内原子完成。
	// 并发的接受/拒绝中后到者看到申请已不存在，且不会留下好友边
	accepted, err := s.store.AcceptEdge(ctx, accepterID, requesterID)
	if err != nil {
		return s.fail(ctx, "accept_friend_request", err)
	}
	if !accepted {
		return s.fail(ctx, "accept_friend_request", apperrors.ErrNoPendingRequest,
			logger.F("requesterID", requesterID), logger.F("race", true))
	}

	// (c) 双方 new_friend，(d) 申请人 friend_request_accepted
	s.publish(ctx, model.PrivateChannel(model.UserFriendsTopic(requesterID)), model.EventNewFriend, accepter)
	s.publish(ctx, model.PrivateChannel(model.UserFriendsTopic(accepterID)), model.EventNewFriend, requester)
	s.publish(ctx, model.PrivateChannel(model.UserFriendsTopic(requesterID)), model.EventFriendRequestAccepted, &model.FriendRequestAccepted{
		AccepterID:    accepter.ID,
		AccepterEmail: accepter.Email,
		AccepterName:  accepter.Name,
		AccepterImage: accepter.Image,
	})

	s.log.Info(ctx, "Friend request accepted", logger.F("accepterID", accepterID), logger.F("requesterID", requesterID))
	return nil
}

// DenyFriendRequest 拒绝申请。幂等：申请不存在也视为成功
func (s *Service) DenyFriendRequest(ctx context.Context, accepterID, requesterID string) (err error) {
	ctx, span := startSpan(ctx, "DenyFriendRequest")
	span.SetAttributes(attribute.String("accepter.id", accepterID), attribute.String("requester.id", requesterID))
	defer func() { endSpan(span, err) }()

	if err := validatePair(accepterID, requesterID); err != nil {
		return s.fail(ctx, "deny_friend_request", err)
	}

	removed, err := s.store.RemoveFromSet(ctx, model.IncomingRequestsKey(accepterID), requesterID)
	if err != nil {
		return s.fail(ctx, "deny_friend_request", err)
	}

	s.log.Info(ctx, "Friend request denied",
		logger.F("accepterID", accepterID), logger.F("requesterID", requesterID), logger.F("removed", removed))
	return nil
}

// ListFriendIDs 好友ID，无序
func (s *Service) ListFriendIDs(ctx context.Context, userID string) ([]string, error) {
	if !model.ValidUserID(userID) {
		return nil, apperrors.ErrInvalidUserID
	}
	return s.store.Members(ctx, model.FriendsKey(userID))
}

// ListIncomingRequestIDs 待处理申请人ID，无序
func (s *Service) ListIncomingRequestIDs(ctx context.Context, userID string) ([]string, error) {
	if !model.ValidUserID(userID) {
		return nil, apperrors.ErrInvalidUserID
	}
	return s.store.Members(ctx, model.IncomingRequestsKey(userID))
}

// ListFriends 好友资料
func (s *Service) ListFriends(ctx context.Context, userID string) ([]model.User, error) {
	ids, err := s.ListFriendIDs(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, "list_friends", err)
	}
	return s.profiles(ctx, ids)
}

// ListIncomingRequests 申请人资料
func (s *Service) ListIncomingRequests(ctx context.Context, userID string) ([]model.User, error) {
	ids, err := s.ListIncomingRequestIDs(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, "list_incoming_requests", err)
	}
	return s.profiles(ctx, ids)
}
