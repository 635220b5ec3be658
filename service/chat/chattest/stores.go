// Package chattest 聊天存储接口的内存实现，只给测试用。
// 行为对齐 module/chat/store 的真实适配层：同样的错误码、
// 同样的拒绝规则，方便用例跨包复用同一套桩。
package chattest

import (
	"context"
	"sync"
	"time"

	"MTalk/module/chat/model"
	"MTalk/tools/errs"
)

// Rooms 内存房间表。FailGet 置位后 GetRoom 固定报存储错，
// 用来模拟成员名单查不出来的场景。
type Rooms struct {
	mu      sync.Mutex
	rooms   map[string]*model.Room
	unread  map[string]map[string][]string // room_id -> user_id -> msg_ids
	FailGet bool
}

func NewRooms(rooms ...*model.Room) *Rooms {
	s := &Rooms{
		rooms:  make(map[string]*model.Room),
		unread: make(map[string]map[string][]string),
	}
	for _, r := range rooms {
		s.rooms[r.RoomID] = r
	}
	return s
}

func (s *Rooms) GetRoom(_ context.Context, roomID string) (*model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailGet {
		return nil, errs.ErrStorage
	}
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, errs.ErrRoomNotFound
	}
	return r, nil
}

func (s *Rooms) AddMember(_ context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return errs.ErrRoomNotFound
	}
	if r.IsDeleted {
		return errs.ErrRoomDeleted
	}
	if r.RoomType == model.RoomTypeSingle {
		return errs.ErrSingleRoom
	}
	if r.HasMember(userID) {
		return errs.ErrAlreadyMember
	}
	r.Members = append(r.Members, model.RoomMember{UserID: userID, JoinTime: time.Now().UnixMilli()})
	return nil
}

func (s *Rooms) RemoveMember(_ context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return errs.ErrRoomNotFound
	}
	if r.RoomType == model.RoomTypeSingle {
		return errs.ErrSingleRoom
	}
	for i, m := range r.Members {
		if m.UserID == userID {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return nil
		}
	}
	return errs.ErrMemberNotFound
}

func (s *Rooms) AddUnread(_ context.Context, roomID, userID, msgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byUser, ok := s.unread[roomID]
	if !ok {
		byUser = make(map[string][]string)
		s.unread[roomID] = byUser
	}
	byUser[userID] = append(byUser[userID], msgID)
	return nil
}

func (s *Rooms) PullUnread(_ context.Context, roomID, userID, msgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.unread[roomID][userID]
	for i, id := range list {
		if id == msgID {
			s.unread[roomID][userID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Rooms) ClearUnread(_ context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byUser, ok := s.unread[roomID]; ok {
		delete(byUser, userID)
	}
	return nil
}

func (s *Rooms) UnreadFor(_ context.Context, userID string) ([]model.RoomUnread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.RoomUnread
	for roomID, byUser := range s.unread {
		if ids := byUser[userID]; len(ids) > 0 {
			out = append(out, model.RoomUnread{RoomID: roomID, MsgIDs: ids})
		}
	}
	return out, nil
}

// UnreadOf 直接读某成员在某房间的未读列表（断言用）
func (s *Rooms) UnreadOf(roomID, userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.unread[roomID][userID]...)
}

// Msgs 内存消息表
type Msgs struct {
	mu       sync.Mutex
	msgs     map[string]*model.Message
	contacts map[string][]string
}

func NewMsgs() *Msgs {
	return &Msgs{
		msgs:     make(map[string]*model.Message),
		contacts: make(map[string][]string),
	}
}

func (s *Msgs) Persist(_ context.Context, msg *model.Message) error {
	if !msg.HasBody() {
		return errs.ErrEmptyBody
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[msg.MsgID] = msg
	return nil
}

func (s *Msgs) Find(_ context.Context, msgID string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[msgID]
	if !ok {
		return nil, errs.ErrMessageNotFound
	}
	return m, nil
}

func (s *Msgs) Contacts(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.contacts[userID]...), nil
}

func (s *Msgs) AddContacts(_ context.Context, userID string, peers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range peers {
		found := false
		for _, q := range s.contacts[userID] {
			if q == p {
				found = true
				break
			}
		}
		if !found {
			s.contacts[userID] = append(s.contacts[userID], p)
		}
	}
	return nil
}

// Put 绕过 Persist 校验直接塞一条消息（造数据用）
func (s *Msgs) Put(msg *model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[msg.MsgID] = msg
}

// SetContacts 预置某用户的联系人名单
func (s *Msgs) SetContacts(userID string, peers ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[userID] = append([]string(nil), peers...)
}

// Count 已落库的消息条数
func (s *Msgs) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// Users 内存用户表，记录 UpdateLastOnline 调用次数
type Users struct {
	mu          sync.Mutex
	users       map[string]*model.User
	lastOnlines int
}

func NewUsers(ids ...string) *Users {
	s := &Users{users: make(map[string]*model.User)}
	for _, id := range ids {
		s.users[id] = &model.User{UserID: id, Nickname: "nick-" + id}
	}
	return s
}

func (s *Users) Find(_ context.Context, userID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	return u, nil
}

func (s *Users) FindByIDs(_ context.Context, userIDs []string) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.User
	for _, id := range userIDs {
		if u, ok := s.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *Users) UpdateLastOnline(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOnlines++
	if u, ok := s.users[userID]; ok {
		u.LastOnlineTime = at.UnixMilli()
	}
	return nil
}

// LastOnlineCalls UpdateLastOnline 被调过几次
func (s *Users) LastOnlineCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOnlines
}

// GroupRoom 造一个群聊房间，首个成员当房主
func GroupRoom(roomID string, memberIDs ...string) *model.Room {
	now := time.Now().UnixMilli()
	members := make([]model.RoomMember, 0, len(memberIDs))
	for _, id := range memberIDs {
		members = append(members, model.RoomMember{UserID: id, JoinTime: now})
	}
	return &model.Room{
		RoomID:      roomID,
		RoomType:    model.RoomTypeGroup,
		OwnerUserID: memberIDs[0],
		Members:     members,
		CreateTime:  now,
	}
}
