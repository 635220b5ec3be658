package mgo

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"MTalk/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Config Mongo 连接配置
type Config struct {
	Uri         string
	Database    string
	Username    string
	Password    string
	MaxPoolSize uint64
}

type MongoManager struct {
	mu        sync.RWMutex
	db        *mongo.Database
	readyCh   chan struct{} // 首次就绪通知；只会被 close 一次
	readyOnce sync.Once

	lastErr atomic.Value // error
}

var globalMgr = &MongoManager{readyCh: make(chan struct{})}

func Manager() *MongoManager { return globalMgr }

// StartAsync 一直运行到 ctx.Done()；首次连上时 close readyCh，后续掉线自动重连
func StartAsync(ctx context.Context, cfg *Config) {
	go func() {
		const (
			baseBackoff = 200 * time.Millisecond
			maxBackoff  = 5 * time.Second
			healthEvery = 10 * time.Second // 健康检查周期
			failThresh  = 3                // 连续失败阈值
		)

		for {
			// ===== 连接阶段（带退避重试） =====
			attempt := 0
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				cli, err := connect(ctx, cfg)
				if err == nil {
					globalMgr.mu.Lock()
					globalMgr.db = cli.Database(cfg.Database)
					globalMgr.mu.Unlock()

					// 只在“首次”成功时通知就绪
					globalMgr.readyOnce.Do(func() { close(globalMgr.readyCh) })
					break
				}

				globalMgr.lastErr.Store(err)

				// 退避 + 抖动
				backoff := baseBackoff << attempt
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				jitter := time.Duration(rand.Int63n(int64(backoff/5) + 1))
				sleep := backoff - jitter/2

				timer := time.NewTimer(sleep)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
				if attempt < 6 {
					attempt++
				}
			}

			// ===== 健康检查阶段（保持/掉线→重连）=====
			fail := 0
			healthTicker := time.NewTicker(healthEvery)
			reconnect := false
			for !reconnect {
				select {
				case <-ctx.Done():
					healthTicker.Stop()
					globalMgr.mu.Lock()
					if globalMgr.db != nil {
						_ = globalMgr.db.Client().Disconnect(context.Background())
						globalMgr.db = nil
					}
					globalMgr.mu.Unlock()
					return
				case <-healthTicker.C:
					pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
					err := globalMgr.ping(pctx)
					cancel()
					if err != nil {
						fail++
						logger.Warnf("[mgo] health check failed (%d/%d): %v", fail, failThresh, err)
						if fail >= failThresh {
							logger.Errorf("[mgo] connection lost, reconnecting")
							globalMgr.mu.Lock()
							if globalMgr.db != nil {
								_ = globalMgr.db.Client().Disconnect(context.Background())
								globalMgr.db = nil
							}
							globalMgr.mu.Unlock()
							reconnect = true
						}
					} else {
						fail = 0
					}
				}
			}
			healthTicker.Stop()
		}
	}()
}

func connect(ctx context.Context, cfg *Config) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(cfg.Uri)
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{Username: cfg.Username, Password: cfg.Password})
	}
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cli, err := mongo.Connect(cctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(cctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	return cli, nil
}

func (m *MongoManager) ping(ctx context.Context) error {
	m.mu.RLock()
	db := m.db
	m.mu.RUnlock()
	if db == nil {
		return fmt.Errorf("mongo not connected")
	}
	return db.Client().Ping(ctx, readpref.Primary())
}

// WaitReady 阻塞到首次连接成功或超时
func WaitReady(ctx context.Context) error {
	select {
	case <-globalMgr.readyCh:
		return nil
	case <-ctx.Done():
		if v := globalMgr.lastErr.Load(); v != nil {
			return fmt.Errorf("mongo not ready: %w", v.(error))
		}
		return ctx.Err()
	}
}

// GetDB 获取当前数据库句柄；未就绪时 panic（业务侧应先 WaitReady）
func GetDB() *mongo.Database {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.db == nil {
		panic("mongo not initialized, call StartAsync + WaitReady first")
	}
	return globalMgr.db
}
