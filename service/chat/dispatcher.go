package chat

import (
	"context"

	"MTalk/tools/errs"
)

// Handler 一种入站事件的处理器
type Handler interface {
	Name() string
	// AuthRequired 为 true 时，未认证连接上来的该事件直接拒绝
	AuthRequired() bool
	Handle(ctx context.Context, s *Session, payload map[string]any) error
}

// Dispatcher 事件名 -> 处理器 的查表分发。注册只发生在启动期，
// 之后只读，不需要加锁。
type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(hs ...Handler) {
	for _, h := range hs {
		d.handlers[h.Name()] = h
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, env *Envelope) error {
	// 正在关闭的会话静默丢弃
	if s.State() >= StateDisconnecting {
		return nil
	}
	h, ok := d.handlers[env.Event]
	if !ok {
		return errs.ErrEventUnknown.WithDetail("event=" + env.Event)
	}
	if h.AuthRequired() && !s.Authed() {
		return errs.ErrNotAuthorized.WithDetail("event=" + env.Event)
	}
	return h.Handle(ctx, s, env.Payload)
}
