package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"MTalk/middleware/security"
	"MTalk/module/chat/model"
	"MTalk/service/chat"
	"MTalk/service/chat/chattest"
	"MTalk/tools/errs"
)

// ===== 组装 =====

type harness struct {
	t     *testing.T
	srv   *chat.Server
	rooms *chattest.Rooms
	msgs  *chattest.Msgs
	users *chattest.Users
}

func newHarness(t *testing.T, rooms *chattest.Rooms, userIDs ...string) *harness {
	t.Helper()
	h := &harness{t: t, rooms: rooms, msgs: chattest.NewMsgs(), users: chattest.NewUsers(userIDs...)}
	h.srv = chat.NewServer(chat.ServerConf{
		NodeID:      "test-node",
		SendTimeout: 50 * time.Millisecond,
		JwtSecret:   []byte("test-secret"),
	}, chat.Deps{Rooms: h.rooms, Msgs: h.msgs, Users: h.users})
	Setup(h.srv)
	t.Cleanup(h.srv.Shutdown)
	return h
}

// authedSession 起一条已登录的会话，顺手吃掉登录回执
func (h *harness) authedSession(connID, userID string) (*chat.Session, *chat.Client) {
	h.t.Helper()
	cli := chat.NewClient(connID, nil, 16)
	sess := chat.NewSession(h.srv, cli)
	if err := sess.Login(context.Background(), userID); err != nil {
		h.t.Fatalf("login %s: %v", userID, err)
	}
	drain(cli)
	return sess, cli
}

func (h *harness) onlineClient(connID, userID string) *chat.Client {
	cli := chat.NewClient(connID, nil, 16)
	cli.UserID = userID
	h.srv.Dir().Register(cli)
	return cli
}

func drain(c *chat.Client) {
	for {
		select {
		case <-c.Send:
		default:
			return
		}
	}
}

func recvEvent(t *testing.T, c *chat.Client) *chat.Event {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev chat.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return &ev
	case <-time.After(time.Second):
		t.Fatalf("no frame on conn %s", c.ConnID)
		return nil
	}
}

func assertNoEvent(t *testing.T, c *chat.Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected frame on conn %s: %s", c.ConnID, data)
	case <-time.After(50 * time.Millisecond):
	}
}

func payloadField(t *testing.T, ev *chat.Event, key string) any {
	t.Helper()
	m, ok := ev.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload type %T", ev.Payload)
	}
	return m[key]
}

func dispatch(h *harness, sess *chat.Session, event string, payload map[string]any) error {
	return h.srv.Disp().Dispatch(context.Background(), sess, &chat.Envelope{Event: event, Payload: payload})
}

// ===== 用例 =====

func TestSendMessageFanoutWithOfflineFallback(t *testing.T) {
	rooms := chattest.NewRooms(chattest.GroupRoom("r1", "alice", "bob", "carol"))
	h := newHarness(t, rooms, "alice", "bob", "carol")
	sess, author := h.authedSession("a1", "alice")
	bob := h.onlineClient("b1", "bob")
	// carol 不在线

	err := dispatch(h, sess, chat.EvSendMessage, map[string]any{"room_id": "r1", "text": "hello"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if h.msgs.Count() != 1 {
		t.Fatalf("persisted %d messages, want 1", h.msgs.Count())
	}

	got := recvEvent(t, bob)
	if got.Event != chat.EvReceiveMessage {
		t.Fatalf("bob got %s", got.Event)
	}
	if isAuthor, _ := payloadField(t, got, "is_author").(bool); isAuthor {
		t.Fatalf("bob must not be flagged as author")
	}
	msgID, _ := payloadField(t, got, "msg_id").(string)

	echo := recvEvent(t, author)
	if echo.Event != chat.EvReceiveMessage {
		t.Fatalf("author got %s", echo.Event)
	}
	if isAuthor, _ := payloadField(t, echo, "is_author").(bool); !isAuthor {
		t.Fatalf("author echo missing is_author")
	}

	if got := rooms.UnreadOf("r1", "carol"); len(got) != 1 || got[0] != msgID {
		t.Fatalf("carol unread = %v, want [%s]", got, msgID)
	}
	if got := rooms.UnreadOf("r1", "bob"); len(got) != 0 {
		t.Fatalf("bob was online, unread = %v", got)
	}
}

func TestSendMessageRequiresBody(t *testing.T) {
	rooms := chattest.NewRooms(chattest.GroupRoom("r1", "alice", "bob"))
	h := newHarness(t, rooms, "alice", "bob")
	sess, _ := h.authedSession("a1", "alice")

	err := dispatch(h, sess, chat.EvSendMessage, map[string]any{"room_id": "r1"})
	if !errors.Is(err, errs.ErrEmptyBody) {
		t.Fatalf("want ErrEmptyBody, got %v", err)
	}
	if h.msgs.Count() != 0 {
		t.Fatalf("empty message must not persist")
	}
}

func TestSendMessageNonMemberRejected(t *testing.T) {
	rooms := chattest.NewRooms(chattest.GroupRoom("r1", "bob", "carol"))
	h := newHarness(t, rooms, "alice", "bob", "carol")
	sess, _ := h.authedSession("a1", "alice")

	err := dispatch(h, sess, chat.EvSendMessage, map[string]any{"room_id": "r1", "text": "hi"})
	if !errors.Is(err, errs.ErrMemberNotFound) {
		t.Fatalf("want ErrMemberNotFound, got %v", err)
	}
}

func TestSendMessageDeletedRoomRejected(t *testing.T) {
	r := chattest.GroupRoom("r1", "alice", "bob")
	r.IsDeleted = true
	h := newHarness(t, chattest.NewRooms(r), "alice", "bob")
	sess, _ := h.authedSession("a1", "alice")

	err := dispatch(h, sess, chat.EvSendMessage, map[string]any{"room_id": "r1", "text": "hi"})
	if !errors.Is(err, errs.ErrRoomDeleted) {
		t.Fatalf("want ErrRoomDeleted, got %v", err)
	}
}

func TestSendMessageRequiresAuth(t *testing.T) {
	h := newHarness(t, chattest.NewRooms(chattest.GroupRoom("r1", "alice", "bob")), "alice", "bob")
	sess := chat.NewSession(h.srv, chat.NewClient("a1", nil, 16))

	err := dispatch(h, sess, chat.EvSendMessage, map[string]any{"room_id": "r1", "text": "hi"})
	if !errors.Is(err, errs.ErrNotAuthorized) {
		t.Fatalf("want ErrNotAuthorized, got %v", err)
	}
}

func TestReadMessageReceiptTargetsAuthorOnly(t *testing.T) {
	rooms := chattest.NewRooms(chattest.GroupRoom("r1", "alice", "bob", "carol"))
	h := newHarness(t, rooms, "alice", "bob", "carol")

	msg := &model.Message{MsgID: "m1", RoomID: "r1", AuthorID: "alice",
		ContentType: model.ContentTypeText, Text: "hi", CreateTime: time.Now().UnixMilli()}
	if err := h.msgs.Persist(context.Background(), msg); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	_ = rooms.AddUnread(context.Background(), "r1", "bob", "m1")

	alice := h.onlineClient("a1", "alice")
	carol := h.onlineClient("c1", "carol")
	sess, _ := h.authedSession("b1", "bob")

	err := dispatch(h, sess, chat.EvReadMessage, map[string]any{"room_id": "r1", "msg_id": "m1"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	receipt := recvEvent(t, alice)
	if receipt.Event != chat.EvConfirmRead {
		t.Fatalf("author got %s", receipt.Event)
	}
	if reader, _ := payloadField(t, receipt, "reader_id").(string); reader != "bob" {
		t.Fatalf("reader_id = %v", reader)
	}
	assertNoEvent(t, carol)

	if got := rooms.UnreadOf("r1", "bob"); len(got) != 0 {
		t.Fatalf("bob unread not cleared: %v", got)
	}
}

func TestReadMessageWrongRoomRejected(t *testing.T) {
	rooms := chattest.NewRooms(chattest.GroupRoom("r1", "alice", "bob"), chattest.GroupRoom("r2", "alice", "bob"))
	h := newHarness(t, rooms, "alice", "bob")
	msg := &model.Message{MsgID: "m1", RoomID: "r1", AuthorID: "alice",
		ContentType: model.ContentTypeText, Text: "hi"}
	_ = h.msgs.Persist(context.Background(), msg)
	sess, _ := h.authedSession("b1", "bob")

	err := dispatch(h, sess, chat.EvReadMessage, map[string]any{"room_id": "r2", "msg_id": "m1"})
	if !errors.Is(err, errs.ErrArgs) {
		t.Fatalf("want ErrArgs, got %v", err)
	}
}

func TestReadAllClearsRoomUnread(t *testing.T) {
	rooms := chattest.NewRooms(chattest.GroupRoom("r1", "alice", "bob"))
	h := newHarness(t, rooms, "alice", "bob")
	_ = rooms.AddUnread(context.Background(), "r1", "bob", "m1")
	_ = rooms.AddUnread(context.Background(), "r1", "bob", "m2")
	sess, _ := h.authedSession("b1", "bob")

	if err := dispatch(h, sess, chat.EvReadAll, map[string]any{"room_id": "r1"}); err != nil {
		t.Fatalf("read_all: %v", err)
	}
	if got := rooms.UnreadOf("r1", "bob"); len(got) != 0 {
		t.Fatalf("unread not cleared: %v", got)
	}
}

func TestJoinSingleRoomRejected(t *testing.T) {
	r := chattest.GroupRoom("r1", "alice", "bob")
	r.RoomType = model.RoomTypeSingle
	h := newHarness(t, chattest.NewRooms(r), "alice", "bob", "carol")
	sess, _ := h.authedSession("c1", "carol")

	err := dispatch(h, sess, chat.EvJoinRoom, map[string]any{"room_id": "r1"})
	if !errors.Is(err, errs.ErrSingleRoom) {
		t.Fatalf("want ErrSingleRoom, got %v", err)
	}
}

func TestJoinRoomBroadcastsToMembers(t *testing.T) {
	rooms := chattest.NewRooms(chattest.GroupRoom("r1", "alice", "bob"))
	h := newHarness(t, rooms, "alice", "bob", "carol")
	alice := h.onlineClient("a1", "alice")
	sess, carol := h.authedSession("c1", "carol")

	if err := dispatch(h, sess, chat.EvJoinRoom, map[string]any{"room_id": "r1"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	got := recvEvent(t, alice)
	if got.Event != chat.EvMemberJoinRoom {
		t.Fatalf("alice got %s", got.Event)
	}
	// 新成员自己也在广播名单里
	got = recvEvent(t, carol)
	if got.Event != chat.EvMemberJoinRoom {
		t.Fatalf("carol got %s", got.Event)
	}
}

func TestJoinRoomTwiceRejected(t *testing.T) {
	rooms := chattest.NewRooms(chattest.GroupRoom("r1", "alice", "bob"))
	h := newHarness(t, rooms, "alice", "bob")
	sess, _ := h.authedSession("a1", "alice")

	err := dispatch(h, sess, chat.EvJoinRoom, map[string]any{"room_id": "r1"})
	if !errors.Is(err, errs.ErrAlreadyMember) {
		t.Fatalf("want ErrAlreadyMember, got %v", err)
	}
}

func TestLeaveRoomConfirmsToLeaver(t *testing.T) {
	rooms := chattest.NewRooms(chattest.GroupRoom("r1", "alice", "bob"))
	h := newHarness(t, rooms, "alice", "bob")
	bob := h.onlineClient("b1", "bob")
	sess, alice := h.authedSession("a1", "alice")

	if err := dispatch(h, sess, chat.EvLeaveRoom, map[string]any{"room_id": "r1"}); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if got := recvEvent(t, bob); got.Event != chat.EvMemberLeaveRoom {
		t.Fatalf("bob got %s", got.Event)
	}
	if got := recvEvent(t, alice); got.Event != chat.EvMemberLeaveRoom {
		t.Fatalf("leaver got %s", got.Event)
	}
}

func TestTypingIsEphemeral(t *testing.T) {
	rooms := chattest.NewRooms(chattest.GroupRoom("r1", "alice", "bob", "carol"))
	h := newHarness(t, rooms, "alice", "bob", "carol")
	bob := h.onlineClient("b1", "bob")
	// carol 不在线
	sess, alice := h.authedSession("a1", "alice")

	if err := dispatch(h, sess, chat.EvStartTyping, map[string]any{"room_id": "r1"}); err != nil {
		t.Fatalf("typing: %v", err)
	}
	got := recvEvent(t, bob)
	if got.Event != chat.EvStartTyping {
		t.Fatalf("bob got %s", got.Event)
	}
	// 发起者被排除，离线成员不落未读
	assertNoEvent(t, alice)
	if got := rooms.UnreadOf("r1", "carol"); len(got) != 0 {
		t.Fatalf("typing must not record unread, got %v", got)
	}
}

func TestLoginHandlerWithToken(t *testing.T) {
	h := newHarness(t, chattest.NewRooms(), "alice")
	cli := chat.NewClient("a1", nil, 16)
	sess := chat.NewSession(h.srv, cli)

	token, err := security.SignUserToken("alice", []byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := dispatch(h, sess, chat.EvLogin, map[string]any{"token": token}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !sess.Authed() || sess.UserID() != "alice" {
		t.Fatalf("session not authenticated: state=%d user=%q", sess.State(), sess.UserID())
	}
	if got := recvEvent(t, cli); got.Event != chat.EvLogin {
		t.Fatalf("ack = %s", got.Event)
	}
}

func TestLoginHandlerBadToken(t *testing.T) {
	h := newHarness(t, chattest.NewRooms(), "alice")
	sess := chat.NewSession(h.srv, chat.NewClient("a1", nil, 16))

	err := dispatch(h, sess, chat.EvLogin, map[string]any{"token": "garbage"})
	if !errors.Is(err, errs.ErrTokenInvalid) {
		t.Fatalf("want ErrTokenInvalid, got %v", err)
	}
	if sess.Authed() {
		t.Fatalf("session must stay unauthenticated")
	}
}

func TestLoginHandlerUnknownUser(t *testing.T) {
	h := newHarness(t, chattest.NewRooms()) // 没有任何用户
	sess := chat.NewSession(h.srv, chat.NewClient("a1", nil, 16))

	token, _ := security.SignUserToken("ghost", []byte("test-secret"), time.Hour)
	err := dispatch(h, sess, chat.EvLogin, map[string]any{"token": token})
	if !errors.Is(err, errs.ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestDisconnectingClosesSession(t *testing.T) {
	h := newHarness(t, chattest.NewRooms(), "alice")
	sess, _ := h.authedSession("a1", "alice")

	if err := dispatch(h, sess, chat.EvDisconnecting, nil); err != nil {
		t.Fatalf("disconnecting: %v", err)
	}
	if sess.State() != chat.StateTerminated {
		t.Fatalf("state = %d, want terminated", sess.State())
	}
	if h.srv.Dir().IsOnline("alice") {
		t.Fatalf("alice still online")
	}
}
