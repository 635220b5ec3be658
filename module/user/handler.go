package user

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"MTalk/middleware"
	"MTalk/middleware/security"
	"MTalk/module/chat/model"
	"MTalk/tools/errs"
	"MTalk/tools/ids"
)

type Handler struct {
	Secret   []byte
	TokenTTL time.Duration
	users    model.User
}

func Setup(r gin.IRoutes, secret []byte, tokenTTL time.Duration) {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	h := &Handler{Secret: secret, TokenTTL: tokenTTL}
	middleware.POST(r, "/user/register", h.Register, middleware.RouteOpt{})
	middleware.POST(r, "/user/login", h.Login, middleware.RouteOpt{})
	middleware.GET(r, "/user/info", h.Info, middleware.RouteOpt{IsAuth: true, Secret: secret})
}

func respOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "ok", "data": data})
}

func respErr(c *gin.Context, err error) {
	c.JSON(http.StatusOK, gin.H{"code": errs.CodeOf(err), "msg": err.Error()})
}

type registerReq struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
	FaceURL  string `json:"face_url"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respErr(c, errs.ErrPayload.WithDetail(err.Error()))
		return
	}
	if req.Nickname == "" || req.Password == "" {
		respErr(c, errs.ErrArgs.WithDetail("nickname and password required"))
		return
	}
	if req.UserID == "" {
		req.UserID = ids.GenerateString()
	}
	u := &model.User{
		UserID:       req.UserID,
		Nickname:     req.Nickname,
		FaceURL:      req.FaceURL,
		PasswordHash: model.HashPassword(req.Password),
		CreateTime:   time.Now().UnixMilli(),
	}
	if err := u.Create(c.Request.Context()); err != nil {
		respErr(c, err)
		return
	}
	respOK(c, gin.H{"user_id": u.UserID})
}

type loginReq struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

// Login 换取 websocket 登录用的访问令牌
func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respErr(c, errs.ErrPayload.WithDetail(err.Error()))
		return
	}
	u, err := h.users.Find(c.Request.Context(), req.UserID)
	if err != nil {
		respErr(c, err)
		return
	}
	if !u.CheckPassword(req.Password) {
		respErr(c, errs.ErrTokenInvalid.WithDetail("bad credentials"))
		return
	}
	token, err := security.SignUserToken(u.UserID, h.Secret, h.TokenTTL)
	if err != nil {
		respErr(c, err)
		return
	}
	respOK(c, gin.H{
		"token": token,
		"user": gin.H{
			"user_id":  u.UserID,
			"nickname": u.Nickname,
			"face_url": u.FaceURL,
		},
	})
}

func (h *Handler) Info(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		userID = security.UserID(c)
	}
	u, err := h.users.Find(c.Request.Context(), userID)
	if err != nil {
		respErr(c, err)
		return
	}
	respOK(c, gin.H{
		"user_id":          u.UserID,
		"nickname":         u.Nickname,
		"face_url":         u.FaceURL,
		"last_online_time": u.LastOnlineTime,
	})
}
