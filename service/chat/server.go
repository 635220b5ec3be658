package chat

import (
	"time"
)

type ServerConf struct {
	NodeID        string
	SendTimeout   time.Duration
	SendQueueSize int
	TaskQueueSize int
	JwtSecret     []byte
}

func (c *ServerConf) norm() {
	if c.NodeID == "" {
		c.NodeID = "node-0"
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 3 * time.Second
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.TaskQueueSize <= 0 {
		c.TaskQueueSize = 1024
	}
}

// Deps 服务依赖。Online/Relay/Archive 可为 nil（单节点、无归档部署）。
type Deps struct {
	Rooms   RoomStore
	Msgs    MessageStore
	Users   UserStore
	Online  OnlineMirror
	Relay   Relay
	Archive Archiver
}

// Server 聊天网关的核心：在线表、路由器、分发器、后台队列
type Server struct {
	conf   ServerConf
	deps   Deps
	dir    *Directory
	router *Router
	disp   *Dispatcher
	tasks  *TaskQueue
}

func NewServer(conf ServerConf, deps Deps) *Server {
	conf.norm()
	dir := NewDirectory()
	return &Server{
		conf:   conf,
		deps:   deps,
		dir:    dir,
		router: NewRouter(dir, deps.Rooms, deps.Online, deps.Relay, conf.NodeID, conf.SendTimeout),
		disp:   NewDispatcher(),
		tasks:  NewTaskQueue(conf.TaskQueueSize),
	}
}

func (s *Server) Conf() ServerConf { return s.conf }

func (s *Server) Dir() *Directory { return s.dir }

func (s *Server) Router() *Router { return s.router }

func (s *Server) Disp() *Dispatcher { return s.disp }

func (s *Server) Tasks() *TaskQueue { return s.tasks }

func (s *Server) Rooms() RoomStore { return s.deps.Rooms }

func (s *Server) Msgs() MessageStore { return s.deps.Msgs }

func (s *Server) Users() UserStore { return s.deps.Users }

func (s *Server) Online() OnlineMirror { return s.deps.Online }

func (s *Server) Archive() Archiver { return s.deps.Archive }

// DeliverLocal 给 relay 消费端用：把远端转来的帧投给本地连接
func (s *Server) DeliverLocal(userID string, frame []byte) {
	s.router.DeliverLocal(userID, frame)
}

func (s *Server) Shutdown() {
	s.tasks.Close()
}
