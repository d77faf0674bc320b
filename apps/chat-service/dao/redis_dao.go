package dao

import (
	"context"
	"errors"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"goim-chat/apps/chat-service/model"
	apperrors "goim-chat/pkg/errors"
	"goim-chat/pkg/redis"
)

// acceptEdgeScript KEYS: accepter的申请集合, requester好友集合, accepter好友集合, requester的申请集合
// ARGV: requesterID, accepterID
var acceptEdgeScript = goredis.NewScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('SADD', KEYS[2], ARGV[2])
redis.call('SADD', KEYS[3], ARGV[1])
redis.call('SREM', KEYS[1], ARGV[1])
redis.call('SREM', KEYS[4], ARGV[2])
return 1
`)

// redisStore Redis实现
type redisStore struct {
	redis   *redis.RedisClient
	timeout time.Duration
}

// NewRedisStore 创建存储适配器，timeout<=0 时不额外限制
func NewRedisStore(client *redis.RedisClient, timeout time.Duration) Store {
	return &redisStore{redis: client, timeout: timeout}
}

func (s *redisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// IsMember 集合成员判断
func (s *redisStore) IsMember(ctx context.Context, setKey, value string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ok, err := s.redis.SIsMember(ctx, setKey, value)
	if err != nil {
		return false, apperrors.StoreUnavailable("sismember "+setKey, err)
	}
	return ok, nil
}

// AddToSet 加入集合，返回是否新增（重复添加为无操作）
func (s *redisStore) AddToSet(ctx context.Context, setKey, value string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.redis.SAdd(ctx, setKey, value)
	if err != nil {
		return false, apperrors.StoreUnavailable("sadd "+setKey, err)
	}
	return n > 0, nil
}

// RemoveFromSet 移出集合，返回是否真的移除
func (s *redisStore) RemoveFromSet(ctx context.Context, setKey, value string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.redis.SRem(ctx, setKey, value)
	if err != nil {
		return false, apperrors.StoreUnavailable("srem "+setKey, err)
	}
	return n > 0, nil
}

// AcceptEdge 建边与移除申请在一个脚本内完成，并发的接受/拒绝只有一方生效
func (s *redisStore) AcceptEdge(ctx context.Context, accepterID, requesterID string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	keys := []string{
		model.IncomingRequestsKey(accepterID),
		model.FriendsKey(requesterID),
		model.FriendsKey(accepterID),
		model.IncomingRequestsKey(requesterID),
	}
	res, err := s.redis.RunScript(ctx, acceptEdgeScript, keys, requesterID, accepterID)
	if err != nil {
		return false, apperrors.StoreUnavailable("accept edge "+keys[0], err)
	}
	n, _ := res.(int64)
	return n == 1, nil
}

// Members 集合全部成员，无序
func (s *redisStore) Members(ctx context.Context, setKey string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	members, err := s.redis.SMembers(ctx, setKey)
	if err != nil {
		return nil, apperrors.StoreUnavailable("smembers "+setKey, err)
	}
	return members, nil
}

// Get 读取字符串
func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	val, err := s.redis.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.StoreUnavailable("get "+key, err)
	}
	return val, nil
}

// AppendOrdered 追加到有序集合
func (s *redisStore) AppendOrdered(ctx context.Context, key string, score float64, value []byte) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.redis.ZAdd(ctx, key, score, value); err != nil {
		return apperrors.StoreUnavailable("zadd "+key, err)
	}
	return nil
}

// RangeOrdered 按下标区间读取，支持负下标（-1 为最后一个）
func (s *redisStore) RangeOrdered(ctx context.Context, key string, start, stop int64, reverse bool) ([][]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var (
		vals []string
		err  error
	)
	if reverse {
		vals, err = s.redis.ZRevRange(ctx, key, start, stop)
	} else {
		vals, err = s.redis.ZRange(ctx, key, start, stop)
	}
	if err != nil {
		return nil, apperrors.StoreUnavailable("zrange "+key, err)
	}
	return toBytes(vals), nil
}

// RangeOrderedByScore 按分数区间读取
func (s *redisStore) RangeOrderedByScore(ctx context.Context, key string, r ScoreRange) ([][]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	opt := &goredis.ZRangeBy{Min: r.Min, Max: r.Max, Offset: r.Offset, Count: r.Count}
	var (
		vals []string
		err  error
	)
	if r.Reverse {
		vals, err = s.redis.ZRevRangeByScore(ctx, key, opt)
	} else {
		vals, err = s.redis.ZRangeByScore(ctx, key, opt)
	}
	if err != nil {
		return nil, apperrors.StoreUnavailable("zrangebyscore "+key, err)
	}
	return toBytes(vals), nil
}

func toBytes(vals []string) [][]byte {
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out
}
