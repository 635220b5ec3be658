package handlers

import (
	"context"

	"MTalk/logger"
	"MTalk/service/chat"
	"MTalk/tools/decode"
	"MTalk/tools/errs"
)

type roomReq struct {
	RoomID string `json:"room_id"`
}

func decodeRoomReq(payload map[string]any) (*roomReq, error) {
	req, err := decode.DecodeMap[roomReq](payload)
	if err != nil {
		return nil, errs.ErrPayload.WithDetail(err.Error())
	}
	if req.RoomID == "" {
		return nil, errs.ErrArgs.WithDetail("missing room_id")
	}
	return req, nil
}

// JoinRoomHandler 加入群聊房间并向房间广播
type JoinRoomHandler struct{}

func (JoinRoomHandler) Name() string       { return chat.EvJoinRoom }
func (JoinRoomHandler) AuthRequired() bool { return true }

func (JoinRoomHandler) Handle(ctx context.Context, s *chat.Session, payload map[string]any) error {
	req, err := decodeRoomReq(payload)
	if err != nil {
		return err
	}
	userID := s.UserID()
	srv := s.Server()
	if err := srv.Rooms().AddMember(ctx, req.RoomID, userID); err != nil {
		return err
	}
	user, err := srv.Users().Find(ctx, userID)
	if err != nil {
		return err
	}
	ev := chat.BuildMemberEvent(chat.EvMemberJoinRoom, req.RoomID, chat.NewUserView(user, true))
	if err := srv.Router().BroadcastToRoom(ctx, req.RoomID, ev, nil, ""); err != nil {
		logger.Warnf("[Room] join broadcast failed room_id=%s err=%v", req.RoomID, err)
	}
	return nil
}

// LeaveRoomHandler 退出房间。留下的成员收广播，退出者单独收一份确认。
type LeaveRoomHandler struct{}

func (LeaveRoomHandler) Name() string       { return chat.EvLeaveRoom }
func (LeaveRoomHandler) AuthRequired() bool { return true }

func (LeaveRoomHandler) Handle(ctx context.Context, s *chat.Session, payload map[string]any) error {
	req, err := decodeRoomReq(payload)
	if err != nil {
		return err
	}
	userID := s.UserID()
	srv := s.Server()
	if err := srv.Rooms().RemoveMember(ctx, req.RoomID, userID); err != nil {
		return err
	}
	user, err := srv.Users().Find(ctx, userID)
	if err != nil {
		return err
	}
	ev := chat.BuildMemberEvent(chat.EvMemberLeaveRoom, req.RoomID, chat.NewUserView(user, true))
	if err := srv.Router().BroadcastToRoom(ctx, req.RoomID, ev, nil, ""); err != nil {
		logger.Warnf("[Room] leave broadcast failed room_id=%s err=%v", req.RoomID, err)
	}
	return srv.Router().SendToClient(s.Client(), ev)
}
