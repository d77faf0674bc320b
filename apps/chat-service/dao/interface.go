package dao

import "context"

// Store 键值存储适配器。每次调用都是一次存储往返，不做本地缓存；
// 底层失败（含超时）统一返回 STORE_UNAVAILABLE，调用方不得假设部分成功。
type Store interface {
	// 集合
	IsMember(ctx context.Context, setKey, value string) (bool, error)
	AddToSet(ctx context.Context, setKey, value string) (bool, error)
	RemoveFromSet(ctx context.Context, setKey, value string) (bool, error)
	Members(ctx context.Context, setKey string) ([]string, error)

	// AcceptEdge 原子地把 requester -> accepter 的申请转为双向好友边，
	// 同时清理反向申请。申请已不存在时不做任何写入并返回 false
	AcceptEdge(ctx context.Context, accepterID, requesterID string) (bool, error)

	// 字符串，键不存在返回 nil, nil
	Get(ctx context.Context, key string) ([]byte, error)

	// 有序集合：只追加，不修改
	AppendOrdered(ctx context.Context, key string, score float64, value []byte) error
	RangeOrdered(ctx context.Context, key string, start, stop int64, reverse bool) ([][]byte, error)
	RangeOrderedByScore(ctx context.Context, key string, r ScoreRange) ([][]byte, error)
}

// ScoreRange 分数区间查询，Min/Max 使用Redis区间语法（"-inf"、"(1000"）
type ScoreRange struct {
	Min     string
	Max     string
	Offset  int64
	Count   int64
	Reverse bool
}
