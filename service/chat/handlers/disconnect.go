package handlers

import (
	"context"

	"MTalk/service/chat"
)

// DisconnectHandler 客户端主动下线。未认证时也允许，就是关连接。
type DisconnectHandler struct{}

func (DisconnectHandler) Name() string       { return chat.EvDisconnecting }
func (DisconnectHandler) AuthRequired() bool { return false }

func (DisconnectHandler) Handle(ctx context.Context, s *chat.Session, _ map[string]any) error {
	s.Close(ctx)
	return nil
}
