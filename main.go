package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"MTalk/global"
	"MTalk/logger"
	"MTalk/middleware"
	"MTalk/module/chat/store"
	"MTalk/module/room"
	"MTalk/module/user"
	"MTalk/service/chat"
	"MTalk/service/chat/handlers"
	"MTalk/service/kafka"
	"MTalk/service/natsx"
	"MTalk/service/storage"
	redis "MTalk/service/storage/redis"
)

func main() {
	cfg := global.LoadConfig()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer logger.Sync()

	global.ConfigAll(ctx, cfg)
	defer func() { _ = redis.CloseRedis() }()

	deps := chat.Deps{
		Rooms: store.NewRooms(),
		Msgs:  store.NewMessages(),
		Users: store.NewUsers(),
	}
	if om := storage.GetManager(); om != nil {
		deps.Online = om
	}

	var relay *natsx.RelayManager
	if len(cfg.NatsServers) > 0 {
		var err error
		relay, err = natsx.NewRelayManager(natsx.Config{
			Servers: cfg.NatsServers,
			Name:    "mtalk-" + cfg.NodeID,
		})
		if err != nil {
			logger.Errorf("[Main] nats relay init failed: %v", err)
		} else {
			deps.Relay = relay
			defer func() { _ = relay.Close() }()
		}
	}

	var archive *kafka.ArchiveProducer
	if len(cfg.KafkaBrokers) > 0 {
		var err error
		archive, err = kafka.NewArchiveProducer(kafka.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			logger.Errorf("[Main] kafka archive init failed: %v", err)
		} else {
			deps.Archive = archive
			defer func() { _ = archive.Close() }()
		}
	}

	srv := chat.NewServer(chat.ServerConf{
		NodeID:    cfg.NodeID,
		JwtSecret: cfg.GetJwtSecret(),
	}, deps)
	defer srv.Shutdown()
	handlers.Setup(srv)

	if relay != nil {
		if err := relay.SubscribeNode(cfg.NodeID, srv.DeliverLocal); err != nil {
			logger.Errorf("[Main] relay subscribe failed: %v", err)
		}
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Origin())
	r.GET("/ws", srv.HandleWS)
	user.Setup(r, cfg.GetJwtSecret(), cfg.TokenTTL)
	room.Setup(r, srv)

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	go func() {
		logger.Infof("[Main] gateway listening node_id=%s addr=%s", cfg.NodeID, cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("[Main] http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("[Main] shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutCtx)
}
