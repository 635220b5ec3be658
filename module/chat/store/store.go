// Package store 把 mongo 模型适配成网关核心依赖的几个存储接口
package store

import (
	"context"
	"time"

	"MTalk/module/chat/model"
)

type Rooms struct {
	m model.Room
}

func NewRooms() *Rooms { return &Rooms{} }

func (s *Rooms) GetRoom(ctx context.Context, roomID string) (*model.Room, error) {
	return s.m.Find(ctx, roomID)
}

func (s *Rooms) AddMember(ctx context.Context, roomID, userID string) error {
	return s.m.AddMember(ctx, roomID, userID)
}

func (s *Rooms) RemoveMember(ctx context.Context, roomID, userID string) error {
	return s.m.RemoveMember(ctx, roomID, userID)
}

func (s *Rooms) AddUnread(ctx context.Context, roomID, userID, msgID string) error {
	return s.m.AddUnread(ctx, roomID, userID, msgID)
}

func (s *Rooms) PullUnread(ctx context.Context, roomID, userID, msgID string) error {
	return s.m.PullUnread(ctx, roomID, userID, msgID)
}

func (s *Rooms) ClearUnread(ctx context.Context, roomID, userID string) error {
	return s.m.ClearUnread(ctx, roomID, userID)
}

func (s *Rooms) UnreadFor(ctx context.Context, userID string) ([]model.RoomUnread, error) {
	return s.m.UnreadFor(ctx, userID)
}

type Messages struct {
	m model.Message
	c model.Contact
}

func NewMessages() *Messages { return &Messages{} }

func (s *Messages) Persist(ctx context.Context, msg *model.Message) error {
	return msg.Persist(ctx)
}

func (s *Messages) Find(ctx context.Context, msgID string) (*model.Message, error) {
	return s.m.Find(ctx, msgID)
}

func (s *Messages) Contacts(ctx context.Context, userID string) ([]string, error) {
	return s.c.PeersOf(ctx, userID)
}

// AddContacts 双向维护：user 记下 peers，peers 也各自记下 user
func (s *Messages) AddContacts(ctx context.Context, userID string, peers []string) error {
	if err := s.c.AddPeers(ctx, userID, peers); err != nil {
		return err
	}
	for _, p := range peers {
		if err := s.c.AddPeers(ctx, p, []string{userID}); err != nil {
			return err
		}
	}
	return nil
}

type Users struct {
	u model.User
}

func NewUsers() *Users { return &Users{} }

func (s *Users) Find(ctx context.Context, userID string) (*model.User, error) {
	return s.u.Find(ctx, userID)
}

func (s *Users) FindByIDs(ctx context.Context, userIDs []string) ([]model.User, error) {
	return s.u.FindByIDs(ctx, userIDs)
}

func (s *Users) UpdateLastOnline(ctx context.Context, userID string, at time.Time) error {
	return s.u.UpdateLastOnline(ctx, userID, at)
}
