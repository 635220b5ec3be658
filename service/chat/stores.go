package chat

import (
	"context"
	"time"

	"MTalk/module/chat/model"
)

// RoomStore 房间与成员状态
type RoomStore interface {
	GetRoom(ctx context.Context, roomID string) (*model.Room, error)
	AddMember(ctx context.Context, roomID, userID string) error
	RemoveMember(ctx context.Context, roomID, userID string) error
	AddUnread(ctx context.Context, roomID, userID, msgID string) error
	PullUnread(ctx context.Context, roomID, userID, msgID string) error
	ClearUnread(ctx context.Context, roomID, userID string) error
	UnreadFor(ctx context.Context, userID string) ([]model.RoomUnread, error)
}

// MessageStore 消息与联系人
type MessageStore interface {
	Persist(ctx context.Context, msg *model.Message) error
	Find(ctx context.Context, msgID string) (*model.Message, error)
	Contacts(ctx context.Context, userID string) ([]string, error)
	AddContacts(ctx context.Context, userID string, peers []string) error
}

// UserStore 用户档案
type UserStore interface {
	Find(ctx context.Context, userID string) (*model.User, error)
	FindByIDs(ctx context.Context, userIDs []string) ([]model.User, error)
	UpdateLastOnline(ctx context.Context, userID string, at time.Time) error
}

// OnlineMirror 跨节点在线镜像（redis）。单节点部署可为 nil。
type OnlineMirror interface {
	Online(ctx context.Context, userID, connID string) error
	Offline(ctx context.Context, userID, connID string) (int64, error)
	ActiveNodes(ctx context.Context, userID string) ([]string, error)
}

// Relay 节点间转投（nats）。单节点部署可为 nil。
type Relay interface {
	RelayToNode(node, userID string, frame []byte) error
}

// Archiver 消息归档流（kafka）。可为 nil。
type Archiver interface {
	ArchiveMessage(msg *model.Message) error
}
