package handlers

import (
	"context"

	"MTalk/service/chat"
	"MTalk/tools/errs"
)

// TypingHandler 输入状态指示，纯瞬时事件，不落库不落未读
type TypingHandler struct {
	Event string
}

func (h TypingHandler) Name() string     { return h.Event }
func (TypingHandler) AuthRequired() bool { return true }

func (h TypingHandler) Handle(ctx context.Context, s *chat.Session, payload map[string]any) error {
	req, err := decodeRoomReq(payload)
	if err != nil {
		return err
	}
	userID := s.UserID()
	srv := s.Server()
	room, err := srv.Rooms().GetRoom(ctx, req.RoomID)
	if err != nil {
		return err
	}
	if !room.HasMember(userID) {
		return errs.ErrMemberNotFound.WithDetail("user_id=" + userID)
	}
	exclude := map[string]struct{}{userID: {}}
	ev := chat.BuildTypingEvent(h.Event, req.RoomID, userID)
	return srv.Router().BroadcastToRoom(ctx, req.RoomID, ev, exclude, "")
}
