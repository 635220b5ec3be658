package chat

import (
	"hash/fnv"
	"sync"
)

const presenceShards = 16

type presenceShard struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Client // user_id -> conn_id -> client
	byConn map[string]*Client            // conn_id -> client
}

// Directory 本节点在线表：user_id 到活跃连接的多对多索引。
// 按 user_id 分片，扇出只读路径走 RLock。
type Directory struct {
	shards [presenceShards]*presenceShard
}

func NewDirectory() *Directory {
	d := &Directory{}
	for i := range d.shards {
		d.shards[i] = &presenceShard{
			byUser: make(map[string]map[string]*Client),
			byConn: make(map[string]*Client),
		}
	}
	return d
}

func (d *Directory) shardFor(userID string) *presenceShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return d.shards[h.Sum32()%presenceShards]
}

// Register 绑定连接到用户。同一 conn_id 重复注册是幂等的。
func (d *Directory) Register(c *Client) {
	sh := d.shardFor(c.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	conns, ok := sh.byUser[c.UserID]
	if !ok {
		conns = make(map[string]*Client)
		sh.byUser[c.UserID] = conns
	}
	conns[c.ConnID] = c
	sh.byConn[c.ConnID] = c
}

// Unregister 摘除一条连接。已摘除或从未注册时返回 nil。
func (d *Directory) Unregister(c *Client) *Client {
	sh := d.shardFor(c.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	prev, ok := sh.byConn[c.ConnID]
	if !ok {
		return nil
	}
	delete(sh.byConn, c.ConnID)
	if conns, ok := sh.byUser[c.UserID]; ok {
		delete(conns, c.ConnID)
		if len(conns) == 0 {
			delete(sh.byUser, c.UserID)
		}
	}
	return prev
}

// ConnectionsFor 拿一批用户的连接快照。快照之后的注销不影响已返回的切片。
func (d *Directory) ConnectionsFor(userIDs []string) map[string][]*Client {
	out := make(map[string][]*Client, len(userIDs))
	for _, uid := range userIDs {
		sh := d.shardFor(uid)
		sh.mu.RLock()
		if conns, ok := sh.byUser[uid]; ok && len(conns) > 0 {
			list := make([]*Client, 0, len(conns))
			for _, c := range conns {
				list = append(list, c)
			}
			out[uid] = list
		}
		sh.mu.RUnlock()
	}
	return out
}

func (d *Directory) CountFor(userID string) int {
	sh := d.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.byUser[userID])
}

func (d *Directory) IsOnline(userID string) bool {
	return d.CountFor(userID) > 0
}
