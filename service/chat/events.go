package chat

import (
	"encoding/json"
	"time"

	"MTalk/module/chat/model"
	"MTalk/tools/errs"
)

// ===== 事件名 =====

// 入站事件（客户端 -> 服务端）
const (
	EvLogin         = "login"
	EvDisconnecting = "disconnecting"
	EvJoinRoom      = "join_room"
	EvLeaveRoom     = "leave_room"
	EvSendMessage   = "send_message"
	EvReadMessage   = "read_message"
	EvReadAll       = "read_all_messages"
	EvStartTyping   = "start_typing"
	EvStopTyping    = "stop_typing"
)

// 出站事件（服务端 -> 客户端）
const (
	EvLogout          = "logout"
	EvReceiveMessage  = "receive_message"
	EvReceiveUnread   = "receive_unread_message"
	EvConfirmRead     = "confirm_read_message"
	EvReactMessage    = "react_message"
	EvUnreactMessage  = "unreact_message"
	EvCreateRoom      = "create_room"
	EvDeleteRoom      = "delete_room"
	EvMemberJoinRoom  = "member_join_room"
	EvMemberLeaveRoom = "member_leave_room"
	EvError           = "error"
)

// Envelope 入站帧：{"event":"...","payload":{...}}
type Envelope struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errs.ErrPayload.WithDetail(err.Error())
	}
	if env.Event == "" {
		return nil, errs.ErrArgs.WithDetail("missing event")
	}
	return &env, nil
}

// Event 出站帧，比入站多一个服务端时间戳
type Event struct {
	Event   string `json:"event"`
	Ts      int64  `json:"ts"`
	Payload any    `json:"payload,omitempty"`
}

func NewEvent(name string, payload any) *Event {
	return &Event{Event: name, Ts: time.Now().UnixMilli(), Payload: payload}
}

func (e *Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errs.ErrPayload.WithDetail(err.Error())
	}
	return data, nil
}

// ===== 出站投影 =====

type UserView struct {
	UserID         string `json:"user_id"`
	Nickname       string `json:"nickname"`
	FaceURL        string `json:"face_url,omitempty"`
	Online         bool   `json:"online"`
	LastOnlineTime int64  `json:"last_online_time,omitempty"`
}

func NewUserView(u *model.User, online bool) UserView {
	return UserView{
		UserID:         u.UserID,
		Nickname:       u.Nickname,
		FaceURL:        u.FaceURL,
		Online:         online,
		LastOnlineTime: u.LastOnlineTime,
	}
}

type MessageView struct {
	MsgID       string                `json:"msg_id"`
	RoomID      string                `json:"room_id"`
	AuthorID    string                `json:"author_id"`
	ContentType int32                 `json:"content_type"`
	Text        string                `json:"text,omitempty"`
	Location    *model.LocationElem   `json:"location,omitempty"`
	Attachment  *model.AttachmentElem `json:"attachment,omitempty"`
	ReplyTo     string                `json:"reply_to,omitempty"`
	Reactions   []model.Reaction      `json:"reactions,omitempty"`
	IsAuthor    bool                  `json:"is_author"`
	IsEdited    bool                  `json:"is_edited,omitempty"`
	IsDeleted   bool                  `json:"is_deleted,omitempty"`
	CreateTime  int64                 `json:"create_time"`
}

func NewMessageView(m *model.Message, isAuthor bool) MessageView {
	return MessageView{
		MsgID:       m.MsgID,
		RoomID:      m.RoomID,
		AuthorID:    m.AuthorID,
		ContentType: m.ContentType,
		Text:        m.Text,
		Location:    m.Location,
		Attachment:  m.Attachment,
		ReplyTo:     m.ReplyTo,
		Reactions:   m.Reactions,
		IsAuthor:    isAuthor,
		IsEdited:    m.IsEdited,
		IsDeleted:   m.IsDeleted,
		CreateTime:  m.CreateTime,
	}
}

type RoomView struct {
	RoomID      string   `json:"room_id"`
	RoomType    int32    `json:"room_type"`
	Name        string   `json:"name,omitempty"`
	FaceURL     string   `json:"face_url,omitempty"`
	OwnerUserID string   `json:"owner_user_id,omitempty"`
	MemberIDs   []string `json:"member_ids"`
	CreateTime  int64    `json:"create_time"`
}

func NewRoomView(r *model.Room) RoomView {
	return RoomView{
		RoomID:      r.RoomID,
		RoomType:    r.RoomType,
		Name:        r.Name,
		FaceURL:     r.FaceURL,
		OwnerUserID: r.OwnerUserID,
		MemberIDs:   r.MemberIDs(),
		CreateTime:  r.CreateTime,
	}
}

// ===== 构造器 =====

func BuildLoginEvent(u UserView) *Event  { return NewEvent(EvLogin, u) }
func BuildLogoutEvent(u UserView) *Event { return NewEvent(EvLogout, u) }

func BuildReceiveMessage(m *model.Message, isAuthor bool) *Event {
	return NewEvent(EvReceiveMessage, NewMessageView(m, isAuthor))
}

func BuildUnreadMessage(m *model.Message) *Event {
	return NewEvent(EvReceiveUnread, NewMessageView(m, false))
}

type ReadReceipt struct {
	RoomID   string `json:"room_id"`
	MsgID    string `json:"msg_id"`
	ReaderID string `json:"reader_id"`
	ReadAt   int64  `json:"read_at"`
}

func BuildConfirmRead(roomID, msgID, readerID string) *Event {
	return NewEvent(EvConfirmRead, ReadReceipt{
		RoomID:   roomID,
		MsgID:    msgID,
		ReaderID: readerID,
		ReadAt:   time.Now().UnixMilli(),
	})
}

type TypingNotice struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

func BuildTypingEvent(name, roomID, userID string) *Event {
	return NewEvent(name, TypingNotice{RoomID: roomID, UserID: userID})
}

func BuildRoomEvent(name string, r *model.Room) *Event {
	return NewEvent(name, NewRoomView(r))
}

type MemberNotice struct {
	RoomID string   `json:"room_id"`
	User   UserView `json:"user"`
}

func BuildMemberEvent(name, roomID string, u UserView) *Event {
	return NewEvent(name, MemberNotice{RoomID: roomID, User: u})
}

type ReactionNotice struct {
	RoomID string `json:"room_id"`
	MsgID  string `json:"msg_id"`
	UserID string `json:"user_id"`
	Emoji  string `json:"emoji"`
}

func BuildReactionEvent(name, roomID, msgID, userID, emoji string) *Event {
	return NewEvent(name, ReactionNotice{RoomID: roomID, MsgID: msgID, UserID: userID, Emoji: emoji})
}

type ErrorNotice struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func BuildErrorEvent(err error) *Event {
	code := errs.CodeOf(err)
	return NewEvent(EvError, ErrorNotice{Code: code, Msg: err.Error()})
}
