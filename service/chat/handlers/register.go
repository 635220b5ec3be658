package handlers

import (
	"MTalk/service/chat"
)

// Setup 把全部入站事件处理器挂到分发器上
func Setup(s *chat.Server) {
	s.Disp().Register(
		LoginHandler{},
		DisconnectHandler{},
		JoinRoomHandler{},
		LeaveRoomHandler{},
		SendMessageHandler{},
		ReadMessageHandler{},
		ReadAllHandler{},
		TypingHandler{Event: chat.EvStartTyping},
		TypingHandler{Event: chat.EvStopTyping},
	)
}
