package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"MTalk/tools/errs"
)

// —— context key ——
// 后续模块统一用这俩 key 读取
const (
	CtxUserIDKey = "userId"        // string
	CtxTokenKey  = "authorization" // string
)

type Options struct {
	// 读取哪个请求头
	HeaderToken               string // 默认 "authorization"
	EnableAuthorizationBearer bool   // 默认 true
	Secret                    []byte
}

func DefaultOptions(secret []byte) *Options {
	return &Options{
		HeaderToken:               CtxTokenKey,
		EnableAuthorizationBearer: true,
		Secret:                    secret,
	}
}

// Middleware 校验请求头里的访问令牌，通过后把 user_id 放进 context
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))

		// 兼容 Authorization: Bearer xxx
		if token == "" && opts.EnableAuthorizationBearer {
			if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
				if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
					token = strings.TrimSpace(authz[len("bearer "):])
				}
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": errs.ErrNotAuthorized.Code, "msg": "missing token",
			})
			return
		}
		userID, err := ParseUserToken(token, opts.Secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": errs.CodeOf(err), "msg": err.Error(),
			})
			return
		}
		c.Set(CtxTokenKey, token)
		c.Set(CtxUserIDKey, userID)
		c.Next()
	}
}

// UserID 从 context 里取已认证的 user_id
func UserID(c *gin.Context) string {
	v, _ := c.Get(CtxUserIDKey)
	s, _ := v.(string)
	return s
}
