package security

import (
	"errors"
	"testing"
	"time"

	"MTalk/tools/errs"
)

func TestSignAndParse(t *testing.T) {
	secret := []byte("unit-secret")
	token, err := SignUserToken("u-1001", secret, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	userID, err := ParseUserToken(token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if userID != "u-1001" {
		t.Fatalf("user_id = %q", userID)
	}
}

func TestParseWrongSecret(t *testing.T) {
	token, _ := SignUserToken("u-1001", []byte("secret-a"), time.Hour)
	_, err := ParseUserToken(token, []byte("secret-b"))
	if !errors.Is(err, errs.ErrTokenInvalid) {
		t.Fatalf("want ErrTokenInvalid, got %v", err)
	}
}

func TestParseExpiredToken(t *testing.T) {
	secret := []byte("unit-secret")
	token, _ := SignUserToken("u-1001", secret, -time.Minute)
	_, err := ParseUserToken(token, secret)
	if !errors.Is(err, errs.ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
}

func TestParseGarbage(t *testing.T) {
	_, err := ParseUserToken("not-a-jwt", []byte("secret"))
	if !errors.Is(err, errs.ErrTokenInvalid) {
		t.Fatalf("want ErrTokenInvalid, got %v", err)
	}
}
