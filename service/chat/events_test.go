package chat

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"MTalk/module/chat/model"
	"MTalk/tools/errs"
)

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"event":"send_message","payload":{"room_id":"r1","text":"hi"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if env.Event != EvSendMessage {
		t.Fatalf("event = %q", env.Event)
	}
	if env.Payload["room_id"] != "r1" {
		t.Fatalf("payload = %v", env.Payload)
	}
}

func TestParseEnvelopeBadJSON(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"event":`))
	if !errors.Is(err, errs.ErrPayload) {
		t.Fatalf("want ErrPayload, got %v", err)
	}
}

func TestParseEnvelopeMissingEvent(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"payload":{}}`))
	if !errors.Is(err, errs.ErrArgs) {
		t.Fatalf("want ErrArgs, got %v", err)
	}
}

func TestEventEncodeCarriesTimestamp(t *testing.T) {
	ev := NewEvent(EvReceiveMessage, map[string]string{"msg_id": "m1"})
	data, err := ev.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out struct {
		Event   string            `json:"event"`
		Ts      int64             `json:"ts"`
		Payload map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Event != EvReceiveMessage || out.Ts == 0 || out.Payload["msg_id"] != "m1" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestBuildErrorEventCarriesCode(t *testing.T) {
	ev := BuildErrorEvent(errs.ErrEventUnknown.WithDetail("event=bogus"))
	notice, ok := ev.Payload.(ErrorNotice)
	if !ok {
		t.Fatalf("payload type %T", ev.Payload)
	}
	if notice.Code != errs.ErrEventUnknown.Code {
		t.Fatalf("code = %d", notice.Code)
	}
}

func TestBuildErrorEventPlainError(t *testing.T) {
	ev := BuildErrorEvent(errors.New("boom"))
	notice := ev.Payload.(ErrorNotice)
	if notice.Code != errs.ErrStorage.Code {
		t.Fatalf("plain errors should map to the transient code, got %d", notice.Code)
	}
}

func TestViewsMirrorModelFields(t *testing.T) {
	born := time.Now().UnixMilli()

	uv := NewUserView(&model.User{UserID: "alice", Nickname: "A", LastOnlineTime: born}, false)
	if uv.LastOnlineTime != born {
		t.Fatalf("user last_online_time = %d, want %d", uv.LastOnlineTime, born)
	}

	mv := NewMessageView(&model.Message{
		MsgID: "m1", RoomID: "r1", AuthorID: "alice",
		ContentType: model.ContentTypeLocation, CreateTime: born,
	}, true)
	if mv.ContentType != model.ContentTypeLocation || mv.CreateTime != born || !mv.IsAuthor {
		t.Fatalf("message view mismatch: %+v", mv)
	}

	rv := NewRoomView(&model.Room{
		RoomID: "r1", RoomType: model.RoomTypeGroup, CreateTime: born,
		Members: []model.RoomMember{{UserID: "alice", JoinTime: born}},
	})
	if rv.RoomType != model.RoomTypeGroup || rv.CreateTime != born {
		t.Fatalf("room view mismatch: %+v", rv)
	}
	if len(rv.MemberIDs) != 1 || rv.MemberIDs[0] != "alice" {
		t.Fatalf("member ids = %v", rv.MemberIDs)
	}
}
