package handlers

import (
	"context"

	"MTalk/middleware/security"
	"MTalk/service/chat"
	"MTalk/tools/decode"
	"MTalk/tools/errs"
)

type loginReq struct {
	Token string `json:"token"`
}

// LoginHandler 校验 token 并把连接绑定到用户
type LoginHandler struct{}

func (LoginHandler) Name() string       { return chat.EvLogin }
func (LoginHandler) AuthRequired() bool { return false }

func (LoginHandler) Handle(ctx context.Context, s *chat.Session, payload map[string]any) error {
	req, err := decode.DecodeMap[loginReq](payload)
	if err != nil {
		return errs.ErrPayload.WithDetail(err.Error())
	}
	if req.Token == "" {
		return errs.ErrArgs.WithDetail("missing token")
	}
	userID, err := security.ParseUserToken(req.Token, s.Server().Conf().JwtSecret)
	if err != nil {
		return err
	}
	if _, err := s.Server().Users().Find(ctx, userID); err != nil {
		return err
	}
	return s.Login(ctx, userID)
}
