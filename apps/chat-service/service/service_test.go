package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goim-chat/apps/chat-service/dao"
	"goim-chat/apps/chat-service/model"
	"goim-chat/pkg/config"
	apperrors "goim-chat/pkg/errors"
	"goim-chat/pkg/logger"
	"goim-chat/pkg/redis"
)

type published struct {
	Channel string
	Event   string
	Data    interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Trigger(_ context.Context, channel, event string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Channel: channel, Event: event, Data: data})
	return p.err
}

func (p *recordingPublisher) take() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.events
	p.events = nil
	return out
}

type testEnv struct {
	svc    *Service
	events *recordingPublisher
	mr     *miniredis.Miniredis
	store  dao.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewRedisClient(config.RedisConfig{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := dao.NewRedisStore(client, time.Second)
	events := &recordingPublisher{}
	svc := NewService(store, events, logger.NewNop(), config.ChatConfig{})

	var seq int
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("m%03d", seq)
	}
	return &testEnv{svc: svc, events: events, mr: mr, store: store}
}

func (e *testEnv) seedUser(t *testing.T, id, name string) {
	t.Helper()
	u := model.User{ID: id, Name: name, Email: id + "@example.com", Image: "https://img/" + id}
	raw, err := json.Marshal(u)
	require.NoError(t, err)
	require.NoError(t, e.mr.Set(model.UserKey(id), string(raw)))
	require.NoError(t, e.mr.Set(model.UserEmailKey(u.Email), id))
}

func (e *testEnv) members(t *testing.T, key string) []string {
	t.Helper()
	if !e.mr.Exists(key) {
		return nil
	}
	m, err := e.mr.Members(key)
	require.NoError(t, err)
	return m
}

func (e *testEnv) befriend(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.svc.SendFriendRequest(ctx, a, b))
	require.NoError(t, e.svc.AcceptFriendRequest(ctx, b, a))
	e.events.take()
}

func TestSendFriendRequest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")

	require.NoError(t, env.svc.SendFriendRequest(ctx, "u1", "u2"))
	assert.Equal(t, []string{"u1"}, env.members(t, "user:u2:incoming_friend_requests"))

	events := env.events.take()
	require.Len(t, events, 1)
	assert.Equal(t, "private-user-u2-friends", events[0].Channel)
	assert.Equal(t, model.EventIncomingFriendRequest, events[0].Event)
	requester := events[0].Data.(*model.User)
	assert.Equal(t, "u1", requester.ID)
	assert.Equal(t, "Alice", requester.Name)

	err := env.svc.SendFriendRequest(ctx, "u1", "u2")
	assert.ErrorIs(t, err, apperrors.ErrDuplicateRequest)
	assert.Empty(t, env.events.take())
}

func TestSendFriendRequest_Rejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")

	err := env.svc.SendFriendRequest(ctx, "u1", "u1")
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))

	err = env.svc.SendFriendRequest(ctx, "u1", "bad--id")
	assert.ErrorIs(t, err, apperrors.ErrInvalidUserID)

	err = env.svc.SendFriendRequest(ctx, "u1", "ghost")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	env.befriend(t, "u1", "u2")
	err = env.svc.SendFriendRequest(ctx, "u1", "u2")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyFriends)
	err = env.svc.SendFriendRequest(ctx, "u2", "u1")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyFriends)

	assert.Empty(t, env.members(t, "user:u1:incoming_friend_requests"))
	assert.Empty(t, env.members(t, "user:u2:incoming_friend_requests"))
	assert.Empty(t, env.events.take())
}

func TestSendFriendRequestByEmail(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")

	require.NoError(t, env.svc.SendFriendRequestByEmail(ctx, "u1", " U2@Example.com "))
	assert.Equal(t, []string{"u1"}, env.members(t, "user:u2:incoming_friend_requests"))

	err := env.svc.SendFriendRequestByEmail(ctx, "u1", "not-an-email")
	assert.Equal(t, apperrors.CodeInvalidPayload, apperrors.CodeOf(err))

	err = env.svc.SendFriendRequestByEmail(ctx, "u1", "nobody@example.com")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	err = env.svc.SendFriendRequestByEmail(ctx, "u1", "u1@example.com")
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
}

func TestAcceptFriendRequest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")

	require.NoError(t, env.svc.SendFriendRequest(ctx, "u1", "u2"))
	env.events.take()

	require.NoError(t, env.svc.AcceptFriendRequest(ctx, "u2", "u1"))
	assert.Equal(t, []string{"u2"}, env.members(t, "user:u1:friends"))
	assert.Equal(t, []string{"u1"}, env.members(t, "user:u2:friends"))
	assert.Empty(t, env.members(t, "user:u2:incoming_friend_requests"))

	events := env.events.take()
	require.Len(t, events, 3)
	assert.Equal(t, published{"private-user-u1-friends", model.EventNewFriend, events[0].Data}, events[0])
	assert.Equal(t, "u2", events[0].Data.(*model.User).ID)
	assert.Equal(t, "private-user-u2-friends", events[1].Channel)
	assert.Equal(t, model.EventNewFriend, events[1].Event)
	assert.Equal(t, "u1", events[1].Data.(*model.User).ID)
	assert.Equal(t, "private-user-u1-friends", events[2].Channel)
	assert.Equal(t, model.EventFriendRequestAccepted, events[2].Event)
	assert.Equal(t, &model.FriendRequestAccepted{
		AccepterID:    "u2",
		AccepterEmail: "u2@example.com",
		AccepterName:  "Bob",
		AccepterImage: "https://img/u2",
	}, events[2].Data)

	err := env.svc.AcceptFriendRequest(ctx, "u2", "u1")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyFriends)
	assert.Empty(t, env.events.take())
}

func TestAcceptFriendRequest_NoPending(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")

	err := env.svc.AcceptFriendRequest(ctx, "u2", "u1")
	assert.ErrorIs(t, err, apperrors.ErrNoPendingRequest)
	assert.Empty(t, env.members(t, "user:u1:friends"))
	assert.Empty(t, env.members(t, "user:u2:friends"))
	assert.Empty(t, env.events.take())

	err = env.svc.AcceptFriendRequest(ctx, "u1", "u1")
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
}

func TestAcceptFriendRequest_ClearsMutualRequest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")

	require.NoError(t, env.svc.SendFriendRequest(ctx, "u1", "u2"))
	require.NoError(t, env.svc.SendFriendRequest(ctx, "u2", "u1"))
	require.NoError(t, env.svc.AcceptFriendRequest(ctx, "u2", "u1"))

	assert.Empty(t, env.members(t, "user:u1:incoming_friend_requests"))
	assert.Empty(t, env.members(t, "user:u2:incoming_friend_requests"))
}

func TestAcceptFriendRequest_MissingProfileUsesStub(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u2", "Bob")
	_, err := env.store.AddToSet(ctx, model.IncomingRequestsKey("u2"), "u1")
	require.NoError(t, err)

	require.NoError(t, env.svc.AcceptFriendRequest(ctx, "u2", "u1"))
	events := env.events.take()
	require.Len(t, events, 3)
	assert.Equal(t, &model.User{ID: "u1"}, events[1].Data)
}

// racingStore 模拟并发：接受落库之前，另一个拒绝请求已移除同一申请
type racingStore struct {
	dao.Store
	once sync.Once
}

func (s *racingStore) AcceptEdge(ctx context.Context, accepterID, requesterID string) (bool, error) {
	s.once.Do(func() { _, _ = s.Store.RemoveFromSet(ctx, model.IncomingRequestsKey(accepterID), requesterID) })
	return s.Store.AcceptEdge(ctx, accepterID, requesterID)
}

func TestAcceptFriendRequest_LosingRaceEmitsNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")
	require.NoError(t, env.svc.SendFriendRequest(ctx, "u1", "u2"))
	env.events.take()

	env.svc.store = &racingStore{Store: env.store}
	err := env.svc.AcceptFriendRequest(ctx, "u2", "u1")
	assert.ErrorIs(t, err, apperrors.ErrNoPendingRequest)
	assert.Empty(t, env.events.take())
	assert.Empty(t, env.members(t, "user:u2:incoming_friend_requests"))
	assert.Empty(t, env.members(t, "user:u1:friends"))
	assert.Empty(t, env.members(t, "user:u2:friends"))
}

func TestAcceptFriendRequest_ConcurrentWithDeny(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		env := newTestEnv(t)
		env.seedUser(t, "u1", "Alice")
		env.seedUser(t, "u2", "Bob")
		require.NoError(t, env.svc.SendFriendRequest(ctx, "u1", "u2"))
		env.events.take()

		var (
			wg        sync.WaitGroup
			acceptErr error
			denyErr   error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			acceptErr = env.svc.AcceptFriendRequest(ctx, "u2", "u1")
		}()
		go func() {
			defer wg.Done()
			denyErr = env.svc.DenyFriendRequest(ctx, "u2", "u1")
		}()
		wg.Wait()

		require.NoError(t, denyErr)
		assert.Empty(t, env.members(t, "user:u2:incoming_friend_requests"))
		if acceptErr == nil {
			assert.Equal(t, []string{"u2"}, env.members(t, "user:u1:friends"))
			assert.Equal(t, []string{"u1"}, env.members(t, "user:u2:friends"))
			assert.Len(t, env.events.take(), 3)
		} else {
			assert.ErrorIs(t, acceptErr, apperrors.ErrNoPendingRequest)
			assert.Empty(t, env.members(t, "user:u1:friends"))
			assert.Empty(t, env.members(t, "user:u2:friends"))
			assert.Empty(t, env.events.take())
		}
	}
}

// storeCheckingPublisher 发布时回查存储，记录当时看到的状态
type storeCheckingPublisher struct {
	store dao.Store
	mu    sync.Mutex
	seen  []string
}

func (p *storeCheckingPublisher) Trigger(ctx context.Context, _, event string, _ interface{}) error {
	edge, err := p.store.IsMember(ctx, model.FriendsKey("u1"), "u2")
	if err != nil {
		return err
	}
	mirrored, err := p.store.IsMember(ctx, model.FriendsKey("u2"), "u1")
	if err != nil {
		return err
	}
	pending, err := p.store.IsMember(ctx, model.IncomingRequestsKey("u2"), "u1")
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, fmt.Sprintf("%s edge=%t mirrored=%t pending=%t", event, edge, mirrored, pending))
	return nil
}

func TestAcceptFriendRequest_StoreWrittenBeforePublish(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")
	require.NoError(t, env.svc.SendFriendRequest(ctx, "u1", "u2"))

	pub := &storeCheckingPublisher{store: env.store}
	env.svc.events = pub
	require.NoError(t, env.svc.AcceptFriendRequest(ctx, "u2", "u1"))

	assert.Equal(t, []string{
		model.EventNewFriend + " edge=true mirrored=true pending=false",
		model.EventNewFriend + " edge=true mirrored=true pending=false",
		model.EventFriendRequestAccepted + " edge=true mirrored=true pending=false",
	}, pub.seen)
}

func TestAcceptFriendRequest_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")
	require.NoError(t, env.svc.SendFriendRequest(ctx, "u1", "u2"))
	env.events.take()

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := env.svc.AcceptFriendRequest(ctx, "u2", "u1"); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Len(t, env.events.take(), 3)
	assert.Equal(t, []string{"u2"}, env.members(t, "user:u1:friends"))
	assert.Equal(t, []string{"u1"}, env.members(t, "user:u2:friends"))
}

func TestDenyFriendRequest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")
	require.NoError(t, env.svc.SendFriendRequest(ctx, "u1", "u2"))
	env.events.take()

	require.NoError(t, env.svc.DenyFriendRequest(ctx, "u2", "u1"))
	require.NoError(t, env.svc.DenyFriendRequest(ctx, "u2", "u1"))
	assert.Empty(t, env.members(t, "user:u2:incoming_friend_requests"))
	assert.Empty(t, env.members(t, "user:u1:friends"))
	assert.Empty(t, env.events.take())

	err := env.svc.AcceptFriendRequest(ctx, "u2", "u1")
	assert.ErrorIs(t, err, apperrors.ErrNoPendingRequest)

	// 被拒后可以重新申请
	require.NoError(t, env.svc.SendFriendRequest(ctx, "u1", "u2"))
}

func TestListFriendsAndRequests(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")
	env.seedUser(t, "u3", "Carol")

	env.befriend(t, "u1", "u2")
	require.NoError(t, env.svc.SendFriendRequest(ctx, "u3", "u1"))

	ids, err := env.svc.ListFriendIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, ids)

	friends, err := env.svc.ListFriends(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "Bob", friends[0].Name)

	requests, err := env.svc.ListIncomingRequests(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "Carol", requests[0].Name)

	_, err = env.svc.ListFriendIDs(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidUserID)
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")

	_, err := env.svc.SendMessage(ctx, "u1", "u2", "hi", 1000)
	assert.ErrorIs(t, err, apperrors.ErrNotFriends)
	assert.False(t, env.mr.Exists("chat:u1--u2:messages"))

	env.befriend(t, "u1", "u2")
	msg, err := env.svc.SendMessage(ctx, "u1", "u2", "  hi  ", 1000)
	require.NoError(t, err)
	assert.Equal(t, "m001", msg.ID)
	assert.Equal(t, "  hi  ", msg.Text)

	events := env.events.take()
	require.Len(t, events, 2)
	assert.Equal(t, "private-chat-u1--u2", events[0].Channel)
	assert.Equal(t, model.EventIncomingMessage, events[0].Event)
	assert.Equal(t, msg, events[0].Data)
	assert.Equal(t, "private-user-u2-chats", events[1].Channel)
	assert.Equal(t, model.EventNewMessage, events[1].Event)
	note := events[1].Data.(*model.NewMessageNotification)
	assert.Equal(t, "Alice", note.SenderName)
	assert.Equal(t, "  hi  ", note.Text)

	recent, err := env.svc.Recent(ctx, "u1--u2", 1)
	require.NoError(t, err)
	assert.Equal(t, []model.Message{*msg}, recent)
}

func TestSendMessage_Validation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")
	env.befriend(t, "u1", "u2")

	_, err := env.svc.SendMessage(ctx, "u1", "u2", "   ", 1000)
	assert.Equal(t, apperrors.CodeInvalidPayload, apperrors.CodeOf(err))

	long := make([]rune, 2001)
	for i := range long {
		long[i] = '字'
	}
	_, err = env.svc.SendMessage(ctx, "u1", "u2", string(long), 1000)
	assert.Equal(t, apperrors.CodeInvalidPayload, apperrors.CodeOf(err))

	_, err = env.svc.SendMessage(ctx, "u1", "u2", string(long[:2000]), 1000)
	assert.NoError(t, err)

	_, err = env.svc.SendMessage(ctx, "u1", "u1", "hi", 1000)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
}

func TestSendMessageToChat(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")
	env.befriend(t, "u1", "u2")

	msg, err := env.svc.SendMessageToChat(ctx, "u2", "u1--u2", "yo", 1500)
	require.NoError(t, err)
	assert.Equal(t, "u1", msg.ReceiverID)

	_, err = env.svc.SendMessageToChat(ctx, "u3", "u1--u2", "yo", 1500)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = env.svc.SendMessageToChat(ctx, "u1", "u2--u1", "yo", 1500)
	assert.ErrorIs(t, err, apperrors.ErrInvalidChatID)
}

func TestSendMessage_PublishFailureStillSucceeds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")
	env.befriend(t, "u1", "u2")

	env.events.err = errors.New("bus down")
	_, err := env.svc.SendMessage(ctx, "u1", "u2", "hi", 1000)
	require.NoError(t, err)

	recent, err := env.svc.Recent(ctx, "u1--u2", 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestMessageOrdering(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")
	env.befriend(t, "u1", "u2")

	// 乱序到达的时间戳按时间戳排序，同一时间戳按插入顺序
	for _, m := range []struct {
		from, to, text string
		ts             int64
	}{
		{"u1", "u2", "a", 3000},
		{"u2", "u1", "b", 1000},
		{"u1", "u2", "c", 2000},
		{"u1", "u2", "d", 2000},
	} {
		_, err := env.svc.SendMessage(ctx, m.from, m.to, m.text, m.ts)
		require.NoError(t, err)
	}

	recent, err := env.svc.Recent(ctx, "u1--u2", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d", "c", "b"}, texts(recent))

	asc, err := env.svc.RangeByIndex(ctx, "u1--u2", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d", "a"}, texts(asc))

	window, err := env.svc.RangeByScore(ctx, "u1--u2", 1000, 2000)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, texts(window))

	older, err := env.svc.History(ctx, "u1--u2", 3000, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c"}, texts(older))

	latest, err := env.svc.Latest(ctx, "u1--u2")
	require.NoError(t, err)
	assert.Equal(t, "a", latest.Text)

	empty, err := env.svc.Latest(ctx, "u1--u3")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestChatHistoryAndPreviews(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")
	env.seedUser(t, "u3", "Carol")
	env.befriend(t, "u1", "u2")
	env.befriend(t, "u1", "u3")

	_, err := env.svc.SendMessage(ctx, "u1", "u2", "hi", 1000)
	require.NoError(t, err)
	_, err = env.svc.SendMessage(ctx, "u2", "u1", "hey", 2000)
	require.NoError(t, err)

	msgs, err := env.svc.ChatHistory(ctx, "u2", "u1--u2", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"hey", "hi"}, texts(msgs))

	msgs, err = env.svc.ChatHistory(ctx, "u1", "u1--u2", 2000, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi"}, texts(msgs))

	_, err = env.svc.ChatHistory(ctx, "u3", "u1--u2", 0, 10)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	previews, err := env.svc.ChatPreviews(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, previews, 2)
	byChat := map[string]model.ChatPreview{}
	for _, p := range previews {
		byChat[p.ChatID] = p
	}
	require.NotNil(t, byChat["u1--u2"].LastMessage)
	assert.Equal(t, "hey", byChat["u1--u2"].LastMessage.Text)
	assert.Equal(t, "Carol", byChat["u1--u3"].Friend.Name)
	assert.Nil(t, byChat["u1--u3"].LastMessage)
}

func TestRecentHonorsLimitBeyondPageSize(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")
	env.befriend(t, "u1", "u2")
	env.svc.cfg.DefaultPageSize = 2
	env.svc.cfg.MaxPageSize = 2

	for i, text := range []string{"a", "b", "c", "d"} {
		_, err := env.svc.SendMessage(ctx, "u1", "u2", text, int64(1000*(i+1)))
		require.NoError(t, err)
	}

	recent, err := env.svc.Recent(ctx, "u1--u2", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b"}, texts(recent))

	older, err := env.svc.History(ctx, "u1--u2", 4000, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, texts(older))

	recent, err = env.svc.Recent(ctx, "u1--u2", 0)
	require.NoError(t, err)
	assert.Empty(t, recent)

	// 对外接口按配置截断
	page, err := env.svc.ChatHistory(ctx, "u1", "u1--u2", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c"}, texts(page))
}

func TestDecodeSkipsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, err := env.mr.ZAdd("chat:u1--u2:messages", 1000, "not json")
	require.NoError(t, err)
	_, err = env.mr.ZAdd("chat:u1--u2:messages", 2000, `{"id":"x","senderId":"u1","receiverId":"u2","text":"ok","timestamp":2000}`)
	require.NoError(t, err)

	msgs, err := env.svc.Recent(ctx, "u1--u2", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, texts(msgs))
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")

	require.NoError(t, env.svc.SendFriendRequest(ctx, "u1", "u2"))
	assert.Equal(t, []string{"u1"}, env.members(t, "user:u2:incoming_friend_requests"))

	require.NoError(t, env.svc.AcceptFriendRequest(ctx, "u2", "u1"))
	assert.Equal(t, []string{"u2"}, env.members(t, "user:u1:friends"))
	assert.Equal(t, []string{"u1"}, env.members(t, "user:u2:friends"))
	assert.Empty(t, env.members(t, "user:u2:incoming_friend_requests"))

	chatID := model.ChatID("u1", "u2")
	_, err := env.svc.SendMessage(ctx, "u1", "u2", "hi", 1000)
	require.NoError(t, err)
	recent, err := env.svc.Recent(ctx, chatID, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "u1", recent[0].SenderID)
	assert.Equal(t, "hi", recent[0].Text)
	assert.Equal(t, int64(1000), recent[0].TimestampMillis)

	_, err = env.svc.SendMessage(ctx, "u2", "u1", "hey", 2000)
	require.NoError(t, err)
	recent, err = env.svc.Recent(ctx, chatID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"hey", "hi"}, texts(recent))
}

func TestStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedUser(t, "u1", "Alice")
	env.seedUser(t, "u2", "Bob")
	env.mr.Close()

	err := env.svc.SendFriendRequest(ctx, "u1", "u2")
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	_, err = env.svc.SendMessage(ctx, "u1", "u2", "hi", 1000)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	_, err = env.svc.Recent(ctx, "u1--u2", 1)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	assert.Empty(t, env.events.take())
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	cases := []struct {
		user, channel string
		allowed       bool
	}{
		{"u1", "presence", true},
		{"u1", "private-user-u1-friends", true},
		{"u1", "private-user-u1-chats", true},
		{"u1", "private-user-u2-friends", false},
		{"u1", "private-user-u2-chats", false},
		{"u1", "private-chat-u1--u2", true},
		{"u2", "private-chat-u1--u2", true},
		{"u3", "private-chat-u1--u2", false},
		{"u1", "private-chat-u2--u1", false},
		{"u1", "private-something-else", false},
		{"", "private-user--friends", false},
	}
	for _, tc := range cases {
		err := env.svc.Authorize(ctx, tc.user, tc.channel)
		if tc.allowed {
			assert.NoError(t, err, "%s on %s", tc.user, tc.channel)
		} else {
			assert.ErrorIs(t, err, apperrors.ErrUnauthorized, "%s on %s", tc.user, tc.channel)
		}
	}
}

func texts(msgs []model.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}
