// Package redis 进程级共享的 go-redis 客户端。
// 当前唯一消费方是在线镜像（ZSET + Lua），初始化失败时
// 上层不挂在线镜像，整体降级为单机路径。
package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	errs "MTalk/tools/errs"
)

// Config 连接参数，零值由 norm 补默认
type Config struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
	PingTimeout time.Duration
}

func (c *Config) norm() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:6379"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 16
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 3 * time.Second
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 3 * time.Second
	}
}

var (
	initOnce sync.Once
	client   *redis.Client
)

// InitRedis 建连并 ping 校验。单例，重复调用只有第一次生效。
func InitRedis(c Config) error {
	var initErr error
	initOnce.Do(func() {
		c.norm()
		rdb := redis.NewClient(&redis.Options{
			Addr:        c.Addr,
			Password:    c.Password,
			DB:          c.DB,
			PoolSize:    c.PoolSize,
			DialTimeout: c.DialTimeout,
		})

		ctx, cancel := context.WithTimeout(context.Background(), c.PingTimeout)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			initErr = errs.Wrap(err, "redis ping "+c.Addr)
			return
		}
		client = rdb
	})
	return initErr
}

// GetRedis 共享客户端。只有在线镜像会走到这里，而镜像只在
// InitRedis 成功后才会被装配，所以正常不会见到这个 panic。
func GetRedis() *redis.Client {
	if client == nil {
		panic("mtalk: redis used before InitRedis")
	}
	return client
}

// CloseRedis 进程退出时释放连接池，未初始化时是空操作
func CloseRedis() error {
	if client == nil {
		return nil
	}
	return client.Close()
}
