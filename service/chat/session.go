package chat

import (
	"context"
	"sync/atomic"
	"time"

	"MTalk/logger"
	"MTalk/tools/errs"
)

// ===== 会话状态机 =====
// Connected -> Authenticated -> Disconnecting -> Terminated
// Disconnecting/Terminated 是吸收态，后续事件全部丢弃。
const (
	StateConnected int32 = iota
	StateAuthenticated
	StateDisconnecting
	StateTerminated
)

// Session 一条连接的生命周期。所有入站事件在读循环 goroutine 上
// 串行经过它，状态字段用原子操作，Close 可被写侧并发触发。
type Session struct {
	srv    *Server
	cli    *Client
	state  int32
	userID atomic.Value // string，认证成功后写入一次
}

func NewSession(srv *Server, cli *Client) *Session {
	s := &Session{srv: srv, cli: cli}
	s.userID.Store("")
	return s
}

func (s *Session) Server() *Server { return s.srv }
func (s *Session) Client() *Client { return s.cli }

func (s *Session) State() int32 { return atomic.LoadInt32(&s.state) }

func (s *Session) Authed() bool { return s.State() == StateAuthenticated }

func (s *Session) UserID() string {
	v, _ := s.userID.Load().(string)
	return v
}

// Login 绑定用户并登记在线。只允许从 Connected 进入一次。
func (s *Session) Login(ctx context.Context, userID string) error {
	if !atomic.CompareAndSwapInt32(&s.state, StateConnected, StateAuthenticated) {
		if s.State() == StateAuthenticated {
			return errs.ErrAlreadyAuthed
		}
		return errs.ErrNotAuthorized.WithDetail("session closing")
	}
	s.userID.Store(userID)
	s.cli.UserID = userID
	s.srv.Dir().Register(s.cli)
	if om := s.srv.Online(); om != nil {
		if err := om.Online(ctx, userID, s.cli.ConnID); err != nil {
			logger.Warnf("[Session] online mirror failed user_id=%s err=%v", userID, err)
		}
	}
	logger.Infof("[Session] authenticated user_id=%s conn_id=%s", userID, s.cli.ConnID)

	user, err := s.srv.Users().Find(ctx, userID)
	if err != nil {
		logger.Warnf("[Session] user lookup failed user_id=%s err=%v", userID, err)
		return nil
	}
	view := NewUserView(user, true)
	// 本端确认
	if err := s.srv.Router().SendToClient(s.cli, BuildLoginEvent(view)); err != nil {
		logger.Warnf("[Session] login ack failed conn_id=%s err=%v", s.cli.ConnID, err)
	}
	// 联系人广播和离线补投放后台，不卡读循环
	s.srv.Tasks().Submit(func() {
		s.notifyContacts(BuildLoginEvent(view))
		s.deliverUnread()
	})
	return nil
}

// deliverUnread 把离线期间攒下的未读消息按房间补投给这条连接。
// 补投不清标记，read_message / read_all_messages 才清。
func (s *Session) deliverUnread() {
	userID := s.UserID()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	list, err := s.srv.Rooms().UnreadFor(ctx, userID)
	if err != nil {
		logger.Warnf("[Session] unread lookup failed user_id=%s err=%v", userID, err)
		return
	}
	for _, ru := range list {
		for _, msgID := range ru.MsgIDs {
			msg, err := s.srv.Msgs().Find(ctx, msgID)
			if err != nil {
				logger.Warnf("[Session] unread message missing msg_id=%s err=%v", msgID, err)
				continue
			}
			if err := s.srv.Router().SendToClient(s.cli, BuildUnreadMessage(msg)); err != nil {
				return
			}
		}
	}
}

// Close 注销会话。幂等：第二次以及之后的调用什么都不做。
// 未认证的连接断开不产生任何广播。
func (s *Session) Close(ctx context.Context) {
	prev := atomic.LoadInt32(&s.state)
	for {
		if prev == StateDisconnecting || prev == StateTerminated {
			return
		}
		if atomic.CompareAndSwapInt32(&s.state, prev, StateDisconnecting) {
			break
		}
		prev = atomic.LoadInt32(&s.state)
	}
	defer atomic.StoreInt32(&s.state, StateTerminated)
	defer s.cli.Close()

	if prev != StateAuthenticated {
		return
	}
	userID := s.UserID()
	if s.srv.Dir().Unregister(s.cli) == nil {
		return
	}
	if om := s.srv.Online(); om != nil {
		if _, err := om.Offline(ctx, userID, s.cli.ConnID); err != nil {
			logger.Warnf("[Session] offline mirror failed user_id=%s err=%v", userID, err)
		}
	}
	now := time.Now()
	if err := s.srv.Users().UpdateLastOnline(ctx, userID, now); err != nil {
		logger.Warnf("[Session] last online update failed user_id=%s err=%v", userID, err)
	}
	logger.Infof("[Session] closed user_id=%s conn_id=%s", userID, s.cli.ConnID)

	// 该用户别的连接还在线时，不对外广播下线
	if s.srv.Dir().IsOnline(userID) {
		return
	}
	user, err := s.srv.Users().Find(ctx, userID)
	if err != nil {
		logger.Warnf("[Session] user lookup failed user_id=%s err=%v", userID, err)
		return
	}
	user.LastOnlineTime = now.UnixMilli()
	view := NewUserView(user, false)
	s.srv.Tasks().Submit(func() {
		s.notifyContacts(BuildLogoutEvent(view))
	})
}

func (s *Session) notifyContacts(ev *Event) {
	userID := s.UserID()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	peers, err := s.srv.Msgs().Contacts(ctx, userID)
	if err != nil {
		logger.Warnf("[Session] contacts lookup failed user_id=%s err=%v", userID, err)
		return
	}
	if len(peers) == 0 {
		return
	}
	s.srv.Router().SendToUsers(ctx, peers, ev)
}
