// Package natsx 节点间帧转投。每个网关节点订阅自己的 subject，
// 别的节点把目标用户的出站帧丢过来，由本节点投给本地连接。
package natsx

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"MTalk/logger"
)

type Config struct {
	Servers       []string
	Name          string
	SubjectPrefix string // 默认 "mtalk.relay"
}

func (c *Config) norm() {
	if len(c.Servers) == 0 {
		c.Servers = []string{nats.DefaultURL}
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "mtalk.relay"
	}
}

// RelayFrame 转投信封，Frame 原样透传
type RelayFrame struct {
	UserID string          `json:"user_id"`
	Frame  json.RawMessage `json:"frame"`
}

// RelayManager 统一门面：对外只暴露这一个对象来用
type RelayManager struct {
	conf Config
	conn *nats.Conn
	sub  *nats.Subscription
}

func NewRelayManager(cfg Config) (*RelayManager, error) {
	cfg.norm()
	conn, err := nats.Connect(strings.Join(cfg.Servers, ","),
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}
	return &RelayManager{conf: cfg, conn: conn}, nil
}

func (m *RelayManager) subjectFor(node string) string {
	return m.conf.SubjectPrefix + "." + node
}

// RelayToNode 把一帧转给别的节点
func (m *RelayManager) RelayToNode(node, userID string, frame []byte) error {
	if m == nil || m.conn == nil {
		return errors.New("relay not initialized")
	}
	data, err := json.Marshal(RelayFrame{UserID: userID, Frame: frame})
	if err != nil {
		return errors.Wrap(err, "marshal relay frame")
	}
	return m.conn.Publish(m.subjectFor(node), data)
}

// SubscribeNode 订阅本节点的转投 subject
func (m *RelayManager) SubscribeNode(node string, deliver func(userID string, frame []byte)) error {
	if m == nil || m.conn == nil {
		return errors.New("relay not initialized")
	}
	sub, err := m.conn.Subscribe(m.subjectFor(node), func(msg *nats.Msg) {
		var rf RelayFrame
		if err := json.Unmarshal(msg.Data, &rf); err != nil {
			logger.Warnf("[Relay] bad frame on %s: %v", msg.Subject, err)
			return
		}
		deliver(rf.UserID, rf.Frame)
	})
	if err != nil {
		return errors.Wrap(err, "nats subscribe")
	}
	m.sub = sub
	return nil
}

// Close 释放资源（优雅关闭订阅与连接）
func (m *RelayManager) Close() error {
	if m == nil || m.conn == nil {
		return nil
	}
	if m.sub != nil {
		_ = m.sub.Unsubscribe()
	}
	return m.conn.Drain()
}
