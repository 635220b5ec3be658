package chat

import (
	"encoding/json"
	"testing"
	"time"

	"MTalk/service/chat/chattest"
)

type testEnv struct {
	srv   *Server
	rooms *chattest.Rooms
	msgs  *chattest.Msgs
	users *chattest.Users
}

func newTestEnv(t *testing.T, rooms *chattest.Rooms, userIDs ...string) *testEnv {
	t.Helper()
	env := &testEnv{
		rooms: rooms,
		msgs:  chattest.NewMsgs(),
		users: chattest.NewUsers(userIDs...),
	}
	env.srv = NewServer(ServerConf{
		NodeID:      "test-node",
		SendTimeout: 50 * time.Millisecond,
		JwtSecret:   []byte("test-secret"),
	}, Deps{Rooms: env.rooms, Msgs: env.msgs, Users: env.users})
	t.Cleanup(env.srv.Shutdown)
	return env
}

// onlineClient 不经过登录流程，直接把一条连接挂到在线表上
func (e *testEnv) onlineClient(connID, userID string) *Client {
	c := NewClient(connID, nil, 16)
	c.UserID = userID
	e.srv.Dir().Register(c)
	return c
}

func recvEvent(t *testing.T, c *Client) *Event {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return &ev
	case <-time.After(time.Second):
		t.Fatalf("no frame received on conn %s", c.ConnID)
		return nil
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected frame on conn %s: %s", c.ConnID, data)
	case <-time.After(50 * time.Millisecond):
	}
}
