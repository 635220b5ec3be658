package storage

import (
	"context"
	"strings"
	"time"

	redis2 "MTalk/service/storage/redis"

	"github.com/redis/go-redis/v9"
)

// OnlineStore 是跨节点的在线状态镜像。
// 本地连接表只认本网关；其他网关上的会话通过这里判断，
// 扇出时据此决定：本地直发 / 转发到对端节点 / 落未读。
//
// key 设计：
//   mt:online:<user>  ZSET  member = "<node>/<connID>"  score = expireAtUnix
// 过期清理放在 Lua 里顺带做，避免额外的 sweeper 进程。

// ===== 配置 =====

type OnlineConfig struct {
	NodeID    string        // 本节点ID（参与 member 命名）
	TTL       time.Duration // 会话TTL，心跳续期
	KeyPrefix string        // 默认 "mt:online:"
}

func (c *OnlineConfig) norm() {
	if c.TTL <= 0 {
		c.TTL = 2 * time.Minute
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "mt:online:"
	}
}

// ===== Lua 脚本 =====

// 上线：写入会话 member 并续 key 的兜底过期
// KEYS[1] = user zset key
// ARGV[1] = member, ARGV[2] = expireAtUnix
const luaOnline = `
local z = KEYS[1]
redis.call("ZADD", z, ARGV[2], ARGV[1])
redis.call("EXPIRE", z, 86400)
return 1
`

// 下线：删除会话 member，返回剩余有效会话数（幂等）
// KEYS[1] = user zset key
// ARGV[1] = member, ARGV[2] = nowUnix
const luaOffline = `
local z = KEYS[1]
redis.call("ZREM", z, ARGV[1])
redis.call("ZREMRANGEBYSCORE", z, "-inf", ARGV[2])
return redis.call("ZCOUNT", z, ARGV[2] + 1, "+inf")
`

// 取所有仍有效的会话 member（顺带清过期的）
// KEYS[1] = user zset key
// ARGV[1] = nowUnix
const luaActive = `
local z = KEYS[1]
redis.call("ZREMRANGEBYSCORE", z, "-inf", ARGV[1])
return redis.call("ZRANGEBYSCORE", z, ARGV[1] + 1, "+inf")
`

// ===== Store =====

type OnlineStore struct {
	conf OnlineConfig

	sOnline  *redis.Script
	sOffline *redis.Script
	sActive  *redis.Script
}

func newOnlineStore(conf OnlineConfig) *OnlineStore {
	conf.norm()
	return &OnlineStore{
		conf:     conf,
		sOnline:  redis.NewScript(luaOnline),
		sOffline: redis.NewScript(luaOffline),
		sActive:  redis.NewScript(luaActive),
	}
}

func (s *OnlineStore) key(userID string) string {
	return s.conf.KeyPrefix + userID
}

func (s *OnlineStore) member(connID string) string {
	return s.conf.NodeID + "/" + connID
}

// Online 登记一条已授权会话（可重复调用，心跳续期走同一条路径）
func (s *OnlineStore) Online(ctx context.Context, userID, connID string) error {
	rdb := redis2.GetRedis()
	expireAt := time.Now().Add(s.conf.TTL).Unix()
	return s.sOnline.Run(ctx, rdb, []string{s.key(userID)}, s.member(connID), expireAt).Err()
}

// Offline 摘除一条会话，返回该用户剩余有效会话数。重复调用无副作用。
func (s *OnlineStore) Offline(ctx context.Context, userID, connID string) (int64, error) {
	rdb := redis2.GetRedis()
	now := time.Now().Unix()
	n, err := s.sOffline.Run(ctx, rdb, []string{s.key(userID)}, s.member(connID), now).Int64()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ActiveNodes 返回该用户当前有有效会话的节点集合（去重，含本节点）
func (s *OnlineStore) ActiveNodes(ctx context.Context, userID string) ([]string, error) {
	rdb := redis2.GetRedis()
	now := time.Now().Unix()
	members, err := s.sActive.Run(ctx, rdb, []string{s.key(userID)}, now).StringSlice()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(members))
	nodes := make([]string, 0, len(members))
	for _, m := range members {
		idx := strings.IndexByte(m, '/')
		if idx <= 0 {
			continue
		}
		node := m[:idx]
		if _, ok := seen[node]; ok {
			continue
		}
		seen[node] = struct{}{}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// IsOnline 该用户是否在任意节点在线
func (s *OnlineStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	nodes, err := s.ActiveNodes(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

// LogoutAll 强制清掉某用户全部会话（管理口）
func (s *OnlineStore) LogoutAll(ctx context.Context, userID string) error {
	rdb := redis2.GetRedis()
	return rdb.Del(ctx, s.key(userID)).Err()
}

// NodeID 本节点ID
func (s *OnlineStore) NodeID() string { return s.conf.NodeID }
