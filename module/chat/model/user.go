package model

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"MTalk/service/mgo"
	errs "MTalk/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// User 用户基础信息。
// 在线状态不在这里：实时的走连接表/Redis 镜像，这里只有离线时间戳。
type User struct {
	UserID         string `bson:"user_id" json:"user_id"`
	Nickname       string `bson:"nickname" json:"nickname"`
	FaceURL        string `bson:"face_url" json:"face_url"`
	PasswordHash   string `bson:"password_hash" json:"-"`                   // sha256 hex
	LastOnlineTime int64  `bson:"last_online_time" json:"last_online_time"` // Unix ms
	CreateTime     int64  `bson:"create_time" json:"create_time"`           // Unix ms
}

func (u *User) GetTableName() string {
	return "user"
}

func (u *User) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(u.GetTableName())
}

// HashPassword 口令摘要
func HashPassword(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// CheckPassword 常数时间比较
func (u *User) CheckPassword(plain string) bool {
	want := []byte(u.PasswordHash)
	got := []byte(HashPassword(plain))
	return subtle.ConstantTimeCompare(want, got) == 1
}

// Create 注册新用户（user_id 唯一）
func (u *User) Create(ctx context.Context) error {
	if u.UserID == "" {
		return errs.ErrArgs.WithDetail("user_id required")
	}
	if u.CreateTime == 0 {
		u.CreateTime = time.Now().UnixMilli()
	}
	n, err := u.Collection().CountDocuments(ctx, bson.M{"user_id": u.UserID})
	if err != nil {
		return errs.Wrap(err, "count user")
	}
	if n > 0 {
		return errs.ErrArgs.WithDetail("user_id taken")
	}
	if _, err := u.Collection().InsertOne(ctx, u); err != nil {
		return errs.Wrap(err, "insert user")
	}
	return nil
}

// Find 按ID查用户
func (u *User) Find(ctx context.Context, userID string) (*User, error) {
	var out User
	err := u.Collection().FindOne(ctx, bson.M{"user_id": userID}).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrUserNotFound.WithDetail("user_id=" + userID)
	}
	if err != nil {
		return nil, errs.Wrap(err, "find user")
	}
	return &out, nil
}

// FindByIDs 批量查用户摘要
func (u *User) FindByIDs(ctx context.Context, userIDs []string) ([]User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	cur, err := u.Collection().Find(ctx, bson.M{"user_id": bson.M{"$in": userIDs}}, options.Find())
	if err != nil {
		return nil, errs.Wrap(err, "find users")
	}
	defer cur.Close(ctx)

	var out []User
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.Wrap(err, "decode users")
	}
	return out, nil
}

// UpdateLastOnline 断开连接时刷新离线时间戳
func (u *User) UpdateLastOnline(ctx context.Context, userID string, ts time.Time) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{"$set": bson.M{"last_online_time": ts.UnixMilli()}}
	if _, err := u.Collection().UpdateOne(ctx, filter, update); err != nil {
		return errs.Wrap(err, "update last online")
	}
	return nil
}
