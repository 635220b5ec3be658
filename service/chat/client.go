package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"MTalk/logger"
)

var (
	ErrConnClosed = errors.New("connection closed")
	ErrConnSlow   = errors.New("send queue full")
)

const writeDeadline = 5 * time.Second

// Client 一条 websocket 连接。写操作全部经过 Send 队列，
// WritePump 是唯一往 ws 写数据的 goroutine。
type Client struct {
	ConnID   string
	UserID   string // 登录后绑定
	ws       *websocket.Conn
	Send     chan []byte
	done     chan struct{}
	closeOne sync.Once
	JoinedAt time.Time
}

func NewClient(connID string, ws *websocket.Conn, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Client{
		ConnID:   connID,
		ws:       ws,
		Send:     make(chan []byte, queueSize),
		done:     make(chan struct{}),
		JoinedAt: time.Now(),
	}
}

func (c *Client) Done() <-chan struct{} { return c.done }

// Push 入队一条出站帧。队列满时最多等 timeout，超时按投递失败处理。
// done 单独检查而不是和入队放在同一个 select：两个分支同时就绪时
// select 会随机选中入队，已关闭的连接就可能误报投递成功。
func (c *Client) Push(data []byte, timeout time.Duration) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.Send <- data:
	default:
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-c.done:
			return ErrConnClosed
		case c.Send <- data:
		case <-t.C:
			return ErrConnSlow
		}
	}

	// 入队和 Close 可能并发，关掉后 WritePump 不再消费队列，
	// 这条帧永远写不出去，必须按失败上报让未读兜底接手。
	select {
	case <-c.done:
		return ErrConnClosed
	default:
		return nil
	}
}

// Close 可重入。关掉 done 后 WritePump 自己退出并关闭底层连接。
func (c *Client) Close() {
	c.closeOne.Do(func() {
		close(c.done)
	})
}

// WritePump 串行写出，直到连接关闭
func (c *Client) WritePump() {
	defer func() {
		_ = c.ws.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.Send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Warnf("[WS] write failed conn_id=%s err=%v", c.ConnID, err)
				c.Close()
				return
			}
		}
	}
}
