package handlers

import (
	"context"
	"time"

	"MTalk/logger"
	"MTalk/module/chat/model"
	"MTalk/service/chat"
	"MTalk/tools/decode"
	"MTalk/tools/errs"
	"MTalk/tools/ids"
)

type sendMessageReq struct {
	RoomID      string                `json:"room_id"`
	ContentType int32                 `json:"content_type"`
	Text        string                `json:"text"`
	Location    *model.LocationElem   `json:"location"`
	Attachment  *model.AttachmentElem `json:"attachment"`
	ReplyTo     string                `json:"reply_to"`
}

// SendMessageHandler 落库 + 房间扇出。发件人拿 is_author 回显，
// 没触达的成员走未读兜底。
type SendMessageHandler struct{}

func (SendMessageHandler) Name() string       { return chat.EvSendMessage }
func (SendMessageHandler) AuthRequired() bool { return true }

func (SendMessageHandler) Handle(ctx context.Context, s *chat.Session, payload map[string]any) error {
	req, err := decode.DecodeMap[sendMessageReq](payload)
	if err != nil {
		return errs.ErrPayload.WithDetail(err.Error())
	}
	if req.RoomID == "" {
		return errs.ErrArgs.WithDetail("missing room_id")
	}
	userID := s.UserID()
	srv := s.Server()
	room, err := srv.Rooms().GetRoom(ctx, req.RoomID)
	if err != nil {
		return err
	}
	if room.IsDeleted {
		return errs.ErrRoomDeleted.WithDetail("room_id=" + req.RoomID)
	}
	if !room.HasMember(userID) {
		return errs.ErrMemberNotFound.WithDetail("user_id=" + userID)
	}
	if req.ContentType == 0 {
		req.ContentType = model.ContentTypeText
	}
	msg := &model.Message{
		MsgID:       ids.GenerateString(),
		RoomID:      req.RoomID,
		AuthorID:    userID,
		ContentType: req.ContentType,
		Text:        req.Text,
		Location:    req.Location,
		Attachment:  req.Attachment,
		ReplyTo:     req.ReplyTo,
		CreateTime:  time.Now().UnixMilli(),
	}
	if err := srv.Msgs().Persist(ctx, msg); err != nil {
		return err
	}

	// 扇出给其余成员，落库成功后才广播
	exclude := map[string]struct{}{userID: {}}
	ev := chat.BuildReceiveMessage(msg, false)
	if err := srv.Router().BroadcastToRoom(ctx, req.RoomID, ev, exclude, msg.MsgID); err != nil {
		logger.Errorf("[Message] fanout failed room_id=%s msg_id=%s err=%v", req.RoomID, msg.MsgID, err)
	}
	// 发件人回显
	if err := srv.Router().SendToClient(s.Client(), chat.BuildReceiveMessage(msg, true)); err != nil {
		logger.Warnf("[Message] author echo failed conn_id=%s err=%v", s.Client().ConnID, err)
	}

	// 收尾放后台：归档、联系人维护
	peers := make([]string, 0, len(room.Members))
	for _, mid := range room.MemberIDs() {
		if mid != userID {
			peers = append(peers, mid)
		}
	}
	srv.Tasks().Submit(func() {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if len(peers) > 0 {
			if err := srv.Msgs().AddContacts(bg, userID, peers); err != nil {
				logger.Warnf("[Message] contacts update failed user_id=%s err=%v", userID, err)
			}
		}
		if ar := srv.Archive(); ar != nil {
			if err := ar.ArchiveMessage(msg); err != nil {
				logger.Warnf("[Message] archive failed msg_id=%s err=%v", msg.MsgID, err)
			}
		}
	})
	return nil
}

type readMessageReq struct {
	RoomID string `json:"room_id"`
	MsgID  string `json:"msg_id"`
}

// ReadMessageHandler 清掉读者的未读标记，回执只发给消息作者
type ReadMessageHandler struct{}

func (ReadMessageHandler) Name() string       { return chat.EvReadMessage }
func (ReadMessageHandler) AuthRequired() bool { return true }

func (ReadMessageHandler) Handle(ctx context.Context, s *chat.Session, payload map[string]any) error {
	req, err := decode.DecodeMap[readMessageReq](payload)
	if err != nil {
		return errs.ErrPayload.WithDetail(err.Error())
	}
	if req.RoomID == "" || req.MsgID == "" {
		return errs.ErrArgs.WithDetail("missing room_id or msg_id")
	}
	userID := s.UserID()
	srv := s.Server()
	msg, err := srv.Msgs().Find(ctx, req.MsgID)
	if err != nil {
		return err
	}
	if msg.RoomID != req.RoomID {
		return errs.ErrArgs.WithDetail("msg not in room")
	}
	if err := srv.Rooms().PullUnread(ctx, req.RoomID, userID, req.MsgID); err != nil {
		return err
	}
	if msg.AuthorID != userID {
		srv.Router().SendToUsers(ctx, []string{msg.AuthorID},
			chat.BuildConfirmRead(req.RoomID, req.MsgID, userID))
	}
	return nil
}

// ReadAllHandler 一把清空读者在某房间的所有未读
type ReadAllHandler struct{}

func (ReadAllHandler) Name() string       { return chat.EvReadAll }
func (ReadAllHandler) AuthRequired() bool { return true }

func (ReadAllHandler) Handle(ctx context.Context, s *chat.Session, payload map[string]any) error {
	req, err := decodeRoomReq(payload)
	if err != nil {
		return err
	}
	return s.Server().Rooms().ClearUnread(ctx, req.RoomID, s.UserID())
}
