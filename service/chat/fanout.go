package chat

import (
	"context"
	"time"

	"MTalk/logger"
	"MTalk/tools/errs"
)

// Router 负责把出站事件送到目标用户的每一条活跃连接，
// 本节点直投，别的节点走 relay，全不在线时落未读。
type Router struct {
	dir         *Directory
	rooms       RoomStore
	online      OnlineMirror // 可为 nil
	relay       Relay        // 可为 nil
	nodeID      string
	sendTimeout time.Duration
}

func NewRouter(dir *Directory, rooms RoomStore, online OnlineMirror, relay Relay, nodeID string, sendTimeout time.Duration) *Router {
	if sendTimeout <= 0 {
		sendTimeout = 3 * time.Second
	}
	return &Router{
		dir:         dir,
		rooms:       rooms,
		online:      online,
		relay:       relay,
		nodeID:      nodeID,
		sendTimeout: sendTimeout,
	}
}

// BroadcastToRoom 对房间当前成员扇出一条事件。
// exclude 里的成员跳过；persistMsgID 非空时，没触达的成员把该消息记成未读。
// 成员名单取不到时整体失败，不做半截扇出。
func (r *Router) BroadcastToRoom(ctx context.Context, roomID string, ev *Event, exclude map[string]struct{}, persistMsgID string) error {
	room, err := r.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.IsDeleted {
		return errs.ErrRoomDeleted.WithDetail("room_id=" + roomID)
	}
	data, err := ev.Encode()
	if err != nil {
		return err
	}
	targets := make([]string, 0, len(room.Members))
	for _, uid := range room.MemberIDs() {
		if _, skip := exclude[uid]; skip {
			continue
		}
		targets = append(targets, uid)
	}
	conns := r.dir.ConnectionsFor(targets)
	for _, uid := range targets {
		reached := r.pushLocal(uid, conns[uid], data)
		if !reached {
			reached = r.relayRemote(ctx, uid, data)
		}
		if !reached && persistMsgID != "" {
			if uerr := r.rooms.AddUnread(ctx, roomID, uid, persistMsgID); uerr != nil {
				logger.Errorf("[Fanout] mark unread failed room_id=%s user_id=%s msg_id=%s err=%v",
					roomID, uid, persistMsgID, uerr)
			}
		}
	}
	return nil
}

// SendToUsers 点对点推送，尽力投递，不落未读。
func (r *Router) SendToUsers(ctx context.Context, userIDs []string, ev *Event) {
	data, err := ev.Encode()
	if err != nil {
		logger.Errorf("[Fanout] encode failed event=%s err=%v", ev.Event, err)
		return
	}
	conns := r.dir.ConnectionsFor(userIDs)
	for _, uid := range userIDs {
		if r.pushLocal(uid, conns[uid], data) {
			continue
		}
		r.relayRemote(ctx, uid, data)
	}
}

// SendToClient 只发给一条连接
func (r *Router) SendToClient(c *Client, ev *Event) error {
	data, err := ev.Encode()
	if err != nil {
		return err
	}
	return c.Push(data, r.sendTimeout)
}

// DeliverLocal 把别的节点转投过来的帧送给本地连接
func (r *Router) DeliverLocal(userID string, frame []byte) {
	conns := r.dir.ConnectionsFor([]string{userID})
	r.pushLocal(userID, conns[userID], frame)
}

func (r *Router) pushLocal(userID string, conns []*Client, data []byte) bool {
	reached := false
	for _, c := range conns {
		if err := c.Push(data, r.sendTimeout); err != nil {
			// 慢连接按没触达处理
			logger.Warnf("[Fanout] push failed user_id=%s conn_id=%s err=%v", userID, c.ConnID, err)
			continue
		}
		reached = true
	}
	return reached
}

func (r *Router) relayRemote(ctx context.Context, userID string, data []byte) bool {
	if r.online == nil || r.relay == nil {
		return false
	}
	nodes, err := r.online.ActiveNodes(ctx, userID)
	if err != nil {
		logger.Warnf("[Fanout] active nodes lookup failed user_id=%s err=%v", userID, err)
		return false
	}
	reached := false
	for _, node := range nodes {
		if node == r.nodeID {
			continue
		}
		if err := r.relay.RelayToNode(node, userID, data); err != nil {
			logger.Warnf("[Fanout] relay failed node=%s user_id=%s err=%v", node, userID, err)
			continue
		}
		reached = true
	}
	return reached
}
