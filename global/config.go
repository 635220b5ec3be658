package global

import (
	"context"
	"time"

	"MTalk/logger"
	mgoSrv "MTalk/service/mgo"
	"MTalk/service/storage"
	redis "MTalk/service/storage/redis"
	"MTalk/tools"
	ids "MTalk/tools/ids"
)

// AppConfig 网关进程的全部外部配置，启动时从环境变量读一次
type AppConfig struct {
	NodeID     string
	ListenAddr string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MongoURI      string
	MongoDatabase string
	MongoUser     string
	MongoPassword string

	NatsServers  []string
	KafkaBrokers []string
	KafkaTopic   string

	JwtSecret string
	TokenTTL  time.Duration
}

func LoadConfig() *AppConfig {
	return &AppConfig{
		NodeID:     tools.GetEnv("MTALK_NODE_ID", "node-0"),
		ListenAddr: tools.GetEnv("MTALK_LISTEN", ":8081"),

		RedisAddr:     tools.GetEnv("MTALK_REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: tools.GetEnv("MTALK_REDIS_PASSWORD", ""),
		RedisDB:       tools.GetEnvInt("MTALK_REDIS_DB", 0),

		MongoURI:      tools.GetEnv("MTALK_MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: tools.GetEnv("MTALK_MONGO_DB", "mtalk"),
		MongoUser:     tools.GetEnv("MTALK_MONGO_USER", ""),
		MongoPassword: tools.GetEnv("MTALK_MONGO_PASSWORD", ""),

		NatsServers:  tools.GetEnvList("MTALK_NATS_SERVERS", ""),
		KafkaBrokers: tools.GetEnvList("MTALK_KAFKA_BROKERS", ""),
		KafkaTopic:   tools.GetEnv("MTALK_KAFKA_TOPIC", "mtalk-messages"),

		JwtSecret: tools.GetEnv("MTALK_JWT_SECRET", "mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o="),
		TokenTTL:  time.Duration(tools.GetEnvInt("MTALK_TOKEN_TTL_HOURS", 24)) * time.Hour,
	}
}

func (c *AppConfig) GetJwtSecret() []byte {
	return []byte(c.JwtSecret)
}

// ConfigAll 起基础设施：id 生成器、redis、mongo
func ConfigAll(ctx context.Context, c *AppConfig) {
	ConfigIds()
	ConfigRedis(c)
	ConfigMgo(ctx, c)
}

func ConfigIds() {
	ids.SetNodeID(int64(tools.GetEnvInt("MTALK_SNOWFLAKE_NODE", 100)))
}

func ConfigRedis(c *AppConfig) {
	err := redis.InitRedis(redis.Config{
		Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB,
	})
	if err != nil {
		logger.Errorf("[Config] redis init failed: %v", err)
		return
	}
	if _, err := storage.InitManager(storage.OnlineConfig{NodeID: c.NodeID}); err != nil {
		logger.Errorf("[Config] online store init failed: %v", err)
	}
}

func ConfigMgo(ctx context.Context, c *AppConfig) {
	cfg := &mgoSrv.Config{
		Uri:         c.MongoURI,
		Database:    c.MongoDatabase,
		Username:    c.MongoUser,
		Password:    c.MongoPassword,
		MaxPoolSize: 20,
	}
	// 异步起连，失败自己退避重连
	mgoSrv.StartAsync(ctx, cfg)
	wctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := mgoSrv.WaitReady(wctx); err != nil {
		logger.Errorf("[Config] mongo not ready: %v", err)
	}
}
