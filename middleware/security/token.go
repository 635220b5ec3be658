package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"MTalk/tools/errs"
)

type userClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// SignUserToken 给用户签发访问令牌
func SignUserToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := userClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", errs.ErrTokenInvalid.WithDetail(err.Error())
	}
	return signed, nil
}

// ParseUserToken 校验令牌并取出 user_id
func ParseUserToken(tokenStr string, secret []byte) (string, error) {
	claims := &userClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.ErrTokenInvalid.WithDetail("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		if exp, perr := claimsExpired(claims); perr == nil && exp {
			return "", errs.ErrTokenExpired
		}
		return "", errs.ErrTokenInvalid.WithDetail(err.Error())
	}
	if !token.Valid || claims.UserID == "" {
		return "", errs.ErrTokenInvalid
	}
	return claims.UserID, nil
}

func claimsExpired(c *userClaims) (bool, error) {
	if c.ExpiresAt == nil {
		return false, nil
	}
	return time.Now().After(c.ExpiresAt.Time), nil
}
