package chat

import (
	"context"
	"errors"
	"testing"

	"MTalk/service/chat/chattest"
	"MTalk/tools/errs"
)

type nopHandler struct {
	name   string
	auth   bool
	called *int
}

func (h nopHandler) Name() string       { return h.name }
func (h nopHandler) AuthRequired() bool { return h.auth }
func (h nopHandler) Handle(context.Context, *Session, map[string]any) error {
	*h.called++
	return nil
}

func TestDispatchUnknownEvent(t *testing.T) {
	env := newTestEnv(t, chattest.NewRooms(), "alice")
	sess := NewSession(env.srv, NewClient("a1", nil, 4))

	err := env.srv.Disp().Dispatch(context.Background(), sess, &Envelope{Event: "no_such_event"})
	if !errors.Is(err, errs.ErrEventUnknown) {
		t.Fatalf("want ErrEventUnknown, got %v", err)
	}
}

func TestDispatchAuthGate(t *testing.T) {
	env := newTestEnv(t, chattest.NewRooms(), "alice")
	called := 0
	env.srv.Disp().Register(nopHandler{name: "guarded", auth: true, called: &called})
	sess := NewSession(env.srv, NewClient("a1", nil, 4))

	err := env.srv.Disp().Dispatch(context.Background(), sess, &Envelope{Event: "guarded"})
	if !errors.Is(err, errs.ErrNotAuthorized) {
		t.Fatalf("want ErrNotAuthorized, got %v", err)
	}
	if called != 0 {
		t.Fatalf("handler must not run before auth")
	}

	if err := sess.Login(context.Background(), "alice"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := env.srv.Disp().Dispatch(context.Background(), sess, &Envelope{Event: "guarded"}); err != nil {
		t.Fatalf("dispatch after auth: %v", err)
	}
	if called != 1 {
		t.Fatalf("handler called %d times, want 1", called)
	}
}

func TestDispatchOpenHandlerWithoutAuth(t *testing.T) {
	env := newTestEnv(t, chattest.NewRooms(), "alice")
	called := 0
	env.srv.Disp().Register(nopHandler{name: "open", auth: false, called: &called})
	sess := NewSession(env.srv, NewClient("a1", nil, 4))

	if err := env.srv.Disp().Dispatch(context.Background(), sess, &Envelope{Event: "open"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if called != 1 {
		t.Fatalf("handler called %d times, want 1", called)
	}
}
