package room

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"MTalk/logger"
	"MTalk/middleware"
	"MTalk/middleware/security"
	"MTalk/module/chat/model"
	"MTalk/service/chat"
	"MTalk/tools/errs"
	"MTalk/tools/ids"
)

// 房间删除通知延一拍再发，让在途的扇出先落定
const deleteNotifyDelay = 2 * time.Second

type Handler struct {
	srv   *chat.Server
	rooms model.Room
	msgs  model.Message
}

func Setup(r gin.IRoutes, srv *chat.Server) {
	h := &Handler{srv: srv}
	auth := middleware.RouteOpt{IsAuth: true, Secret: srv.Conf().JwtSecret}
	middleware.POST(r, "/room/create", h.CreateRoom, auth)
	middleware.POST(r, "/room/delete", h.DeleteRoom, auth)
	middleware.GET(r, "/room/unread", h.Unread, auth)
	middleware.POST(r, "/room/read_all", h.ReadAll, auth)
	middleware.GET(r, "/room/history", h.History, auth)
	middleware.POST(r, "/message/react", h.React, auth)
	middleware.POST(r, "/message/unreact", h.Unreact, auth)
	middleware.POST(r, "/message/edit", h.EditMessage, auth)
	middleware.POST(r, "/message/delete", h.DeleteMessage, auth)
}

func respOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "ok", "data": data})
}

func respErr(c *gin.Context, err error) {
	c.JSON(http.StatusOK, gin.H{"code": errs.CodeOf(err), "msg": err.Error()})
}

type createRoomReq struct {
	RoomType  int32    `json:"room_type"`
	Name      string   `json:"name"`
	FaceURL   string   `json:"face_url"`
	MemberIDs []string `json:"member_ids"`
}

// CreateRoom 建房。创建者自动入列，全体成员收 create_room 通知。
func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respErr(c, errs.ErrPayload.WithDetail(err.Error()))
		return
	}
	creator := security.UserID(c)
	now := time.Now().UnixMilli()
	seen := map[string]struct{}{creator: {}}
	members := []model.RoomMember{{UserID: creator, JoinTime: now}}
	for _, uid := range req.MemberIDs {
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		members = append(members, model.RoomMember{UserID: uid, JoinTime: now})
	}
	if req.RoomType == 0 {
		req.RoomType = model.RoomTypeGroup
	}
	rm := &model.Room{
		RoomID:      ids.GenerateString(),
		RoomType:    req.RoomType,
		Name:        req.Name,
		FaceURL:     req.FaceURL,
		OwnerUserID: creator,
		Members:     members,
		CreateTime:  now,
	}
	if err := rm.Create(c.Request.Context()); err != nil {
		respErr(c, err)
		return
	}
	ev := chat.BuildRoomEvent(chat.EvCreateRoom, rm)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.srv.Router().SendToUsers(ctx, rm.MemberIDs(), ev)
	respOK(c, chat.NewRoomView(rm))
}

type roomIDReq struct {
	RoomID string `json:"room_id"`
}

// DeleteRoom 房主软删房间，成员稍后收 delete_room 通知
func (h *Handler) DeleteRoom(c *gin.Context) {
	var req roomIDReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respErr(c, errs.ErrPayload.WithDetail(err.Error()))
		return
	}
	caller := security.UserID(c)
	rm, err := h.rooms.Find(c.Request.Context(), req.RoomID)
	if err != nil {
		respErr(c, err)
		return
	}
	if rm.OwnerUserID != caller {
		respErr(c, errs.ErrNotAuthorized.WithDetail("owner only"))
		return
	}
	if err := h.rooms.SoftDelete(c.Request.Context(), req.RoomID); err != nil {
		respErr(c, err)
		return
	}
	memberIDs := rm.MemberIDs()
	ev := chat.BuildRoomEvent(chat.EvDeleteRoom, rm)
	h.srv.Tasks().SubmitAfter(deleteNotifyDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.srv.Router().SendToUsers(ctx, memberIDs, ev)
	})
	respOK(c, nil)
}

// Unread 拉调用者全部房间攒下的未读消息
func (h *Handler) Unread(c *gin.Context) {
	list, err := h.rooms.UnreadFor(c.Request.Context(), security.UserID(c))
	if err != nil {
		respErr(c, err)
		return
	}
	out := make(map[string][]chat.MessageView, len(list))
	for _, ru := range list {
		views := make([]chat.MessageView, 0, len(ru.MsgIDs))
		for _, msgID := range ru.MsgIDs {
			msg, ferr := h.msgs.Find(c.Request.Context(), msgID)
			if ferr != nil {
				logger.Warnf("[Room] unread message missing msg_id=%s err=%v", msgID, ferr)
				continue
			}
			views = append(views, chat.NewMessageView(msg, false))
		}
		out[ru.RoomID] = views
	}
	respOK(c, out)
}

func (h *Handler) ReadAll(c *gin.Context) {
	var req roomIDReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respErr(c, errs.ErrPayload.WithDetail(err.Error()))
		return
	}
	if err := h.rooms.ClearUnread(c.Request.Context(), req.RoomID, security.UserID(c)); err != nil {
		respErr(c, err)
		return
	}
	respOK(c, nil)
}

// History 按时间倒序翻页拉历史消息
func (h *Handler) History(c *gin.Context) {
	roomID := c.Query("room_id")
	if roomID == "" {
		respErr(c, errs.ErrArgs.WithDetail("missing room_id"))
		return
	}
	rm, err := h.rooms.Find(c.Request.Context(), roomID)
	if err != nil {
		respErr(c, err)
		return
	}
	if !rm.HasMember(security.UserID(c)) {
		respErr(c, errs.ErrMemberNotFound)
		return
	}
	var before, limit int64
	if v := c.Query("before"); v != "" {
		before = parseInt64(v)
	}
	limit = parseInt64(c.DefaultQuery("limit", "50"))
	list, err := h.msgs.FindByRoom(c.Request.Context(), roomID, before, limit)
	if err != nil {
		respErr(c, err)
		return
	}
	respOK(c, list)
}

type reactReq struct {
	MsgID string `json:"msg_id"`
	Emoji string `json:"emoji"`
}

func (h *Handler) React(c *gin.Context) {
	h.handleReaction(c, chat.EvReactMessage)
}

func (h *Handler) Unreact(c *gin.Context) {
	h.handleReaction(c, chat.EvUnreactMessage)
}

func (h *Handler) handleReaction(c *gin.Context, event string) {
	var req reactReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respErr(c, errs.ErrPayload.WithDetail(err.Error()))
		return
	}
	if req.MsgID == "" || req.Emoji == "" {
		respErr(c, errs.ErrArgs.WithDetail("missing msg_id or emoji"))
		return
	}
	caller := security.UserID(c)
	msg, err := h.msgs.Find(c.Request.Context(), req.MsgID)
	if err != nil {
		respErr(c, err)
		return
	}
	if event == chat.EvReactMessage {
		err = h.msgs.React(c.Request.Context(), req.MsgID, caller, req.Emoji)
	} else {
		err = h.msgs.Unreact(c.Request.Context(), req.MsgID, caller, req.Emoji)
	}
	if err != nil {
		respErr(c, err)
		return
	}
	ev := chat.BuildReactionEvent(event, msg.RoomID, req.MsgID, caller, req.Emoji)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.srv.Router().BroadcastToRoom(ctx, msg.RoomID, ev, nil, ""); err != nil {
		logger.Warnf("[Room] reaction broadcast failed room_id=%s err=%v", msg.RoomID, err)
	}
	respOK(c, nil)
}

type editReq struct {
	MsgID string `json:"msg_id"`
	Text  string `json:"text"`
}

// EditMessage 作者改自己的消息正文，改完全房间收最新版
func (h *Handler) EditMessage(c *gin.Context) {
	var req editReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respErr(c, errs.ErrPayload.WithDetail(err.Error()))
		return
	}
	if req.Text == "" {
		respErr(c, errs.ErrEmptyBody)
		return
	}
	caller := security.UserID(c)
	if err := h.msgs.Edit(c.Request.Context(), req.MsgID, caller, req.Text); err != nil {
		respErr(c, err)
		return
	}
	msg, err := h.msgs.Find(c.Request.Context(), req.MsgID)
	if err != nil {
		respErr(c, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.srv.Router().BroadcastToRoom(ctx, msg.RoomID, chat.BuildReceiveMessage(msg, false), nil, ""); err != nil {
		logger.Warnf("[Room] edit broadcast failed room_id=%s err=%v", msg.RoomID, err)
	}
	respOK(c, nil)
}

type deleteMsgReq struct {
	MsgID string `json:"msg_id"`
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	var req deleteMsgReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respErr(c, errs.ErrPayload.WithDetail(err.Error()))
		return
	}
	caller := security.UserID(c)
	if err := h.msgs.SoftDelete(c.Request.Context(), req.MsgID, caller); err != nil {
		respErr(c, err)
		return
	}
	msg, err := h.msgs.Find(c.Request.Context(), req.MsgID)
	if err != nil {
		respErr(c, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.srv.Router().BroadcastToRoom(ctx, msg.RoomID, chat.BuildReceiveMessage(msg, false), nil, ""); err != nil {
		logger.Warnf("[Room] delete broadcast failed room_id=%s err=%v", msg.RoomID, err)
	}
	respOK(c, nil)
}

func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
