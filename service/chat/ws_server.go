package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"MTalk/logger"
	"MTalk/tools/errs"
	"MTalk/tools/ids"
	"MTalk/tools/safe"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWS websocket 接入点。每条连接一个读循环，入站事件在
// 这个 goroutine 上串行分发，所以单连接内的处理顺序就是到达顺序。
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[WS] upgrade failed remote=%s err=%v", c.Request.RemoteAddr, err)
		return
	}
	connID := ids.GenerateString()
	cli := NewClient(connID, ws, s.conf.SendQueueSize)
	sess := NewSession(s, cli)
	safe.SafeGo(cli.WritePump)
	logger.Infof("[WS] connected conn_id=%s remote=%s", connID, c.Request.RemoteAddr)

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sess.Close(ctx)
	}()

	for {
		_, raw, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsUnexpectedCloseError(rerr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnf("[WS] read failed conn_id=%s err=%v", connID, rerr)
			}
			return
		}
		env, perr := ParseEnvelope(raw)
		if perr != nil {
			s.replyError(cli, perr)
			continue
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		derr := s.disp.Dispatch(ctx, sess, env)
		cancel()
		if derr != nil {
			s.replyError(cli, derr)
			if errs.IsTransient(derr) {
				logger.Errorf("[WS] dispatch failed conn_id=%s event=%s err=%v", connID, env.Event, derr)
			}
		}
		if env.Event == EvDisconnecting {
			return
		}
	}
}

// replyError 错误只回给肇事连接，不向别处扩散
func (s *Server) replyError(cli *Client, err error) {
	if serr := s.router.SendToClient(cli, BuildErrorEvent(err)); serr != nil {
		logger.Warnf("[WS] error reply failed conn_id=%s err=%v", cli.ConnID, serr)
	}
}
