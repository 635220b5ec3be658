package model

import (
	"context"
	"time"

	"MTalk/service/mgo"
	errs "MTalk/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ===== 房间类型 =====

const (
	RoomTypeSingle int32 = 1 // 单聊：固定2人，禁止加退
	RoomTypeGroup  int32 = 2 // 群聊
	RoomTypeAdmin  int32 = 3 // 管理群（公告/系统）
)

// RoomMember 房间内单个成员记录。
// 未读集合挂在成员上，由扇出的"离线落未读"路径和显式已读操作维护。
type RoomMember struct {
	UserID       string   `bson:"user_id" json:"user_id"`
	JoinTime     int64    `bson:"join_time" json:"join_time"`                       // Unix ms
	LeaveTime    int64    `bson:"leave_time,omitempty" json:"leave_time,omitempty"` // Unix ms，仅 leaved 列表里有值
	UnreadMsgIDs []string `bson:"unread_msg_ids" json:"unread_msg_ids"`             // 未读消息ID集合
}

// Room 房间实体。成员与未读状态放同一文档，
// 加退成员 / 加清未读都是单文档原子更新，避免并发丢写。
type Room struct {
	RoomID      string       `bson:"room_id" json:"room_id"`
	RoomType    int32        `bson:"room_type" json:"room_type"` // 1=单聊,2=群聊,3=管理群
	Name        string       `bson:"name" json:"name"`
	FaceURL     string       `bson:"face_url" json:"face_url"`
	OwnerUserID string       `bson:"owner_user_id" json:"owner_user_id"`
	Members     []RoomMember `bson:"members" json:"members"`
	Leaved      []RoomMember `bson:"leaved" json:"leaved"` // 退出成员留痕，不物理删除
	IsDeleted   bool         `bson:"is_deleted" json:"is_deleted"`
	CreateTime  int64        `bson:"create_time" json:"create_time"`                     // Unix ms
	DeleteTime  int64        `bson:"delete_time,omitempty" json:"delete_time,omitempty"` // Unix ms
}

func (r *Room) GetTableName() string {
	return "room"
}

func (r *Room) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(r.GetTableName())
}

// MemberIDs 当前成员的用户ID列表
func (r *Room) MemberIDs() []string {
	out := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		out = append(out, m.UserID)
	}
	return out
}

// HasMember 是否当前成员
func (r *Room) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// ValidateMembers 建房时校验成员数量约束
func (r *Room) ValidateMembers() error {
	switch r.RoomType {
	case RoomTypeSingle:
		if len(r.Members) != 2 {
			return errs.ErrSingleRoom.WithDetail("single room requires exactly two members")
		}
	case RoomTypeGroup, RoomTypeAdmin:
		if len(r.Members) < 2 {
			return errs.ErrRoomMembers
		}
	default:
		return errs.ErrArgs.WithDetail("unknown room_type")
	}
	return nil
}

// Create 落库新房间
func (r *Room) Create(ctx context.Context) error {
	if err := r.ValidateMembers(); err != nil {
		return err
	}
	if r.CreateTime == 0 {
		r.CreateTime = time.Now().UnixMilli()
	}
	for i := range r.Members {
		if r.Members[i].JoinTime == 0 {
			r.Members[i].JoinTime = r.CreateTime
		}
		if r.Members[i].UnreadMsgIDs == nil {
			r.Members[i].UnreadMsgIDs = []string{}
		}
	}
	if r.Leaved == nil {
		r.Leaved = []RoomMember{}
	}
	if _, err := r.Collection().InsertOne(ctx, r); err != nil {
		return errs.Wrap(err, "insert room")
	}
	return nil
}

// Find 按ID查房间（含已软删的，调用方自行判断 IsDeleted）
func (r *Room) Find(ctx context.Context, roomID string) (*Room, error) {
	var out Room
	err := r.Collection().FindOne(ctx, bson.M{"room_id": roomID}).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRoomNotFound.WithDetail("room_id=" + roomID)
	}
	if err != nil {
		return nil, errs.Wrap(err, "find room")
	}
	return &out, nil
}

// AddMember 原子加成员。filter 同时排除：单聊、已软删、已是成员。
// 更新数为 0 时再查一次房间，区分是哪种拒绝。
func (r *Room) AddMember(ctx context.Context, roomID, userID string) error {
	now := time.Now().UnixMilli()
	filter := bson.M{
		"room_id":         roomID,
		"room_type":       bson.M{"$ne": RoomTypeSingle},
		"is_deleted":      false,
		"members.user_id": bson.M{"$ne": userID},
	}
	update := bson.M{
		"$push": bson.M{"members": RoomMember{
			UserID:       userID,
			JoinTime:     now,
			UnreadMsgIDs: []string{},
		}},
	}
	res, err := r.Collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return errs.Wrap(err, "add member")
	}
	if res.ModifiedCount > 0 {
		return nil
	}

	room, ferr := r.Find(ctx, roomID)
	if ferr != nil {
		return ferr
	}
	switch {
	case room.IsDeleted:
		return errs.ErrRoomDeleted
	case room.RoomType == RoomTypeSingle:
		return errs.ErrSingleRoom
	case room.HasMember(userID):
		return errs.ErrAlreadyMember
	default:
		return errs.ErrStorage.WithDetail("add member not applied")
	}
}

// RemoveMember 原子摘成员：从 members 拉出，同时在 leaved 留痕。
// 单聊同样拒绝。
func (r *Room) RemoveMember(ctx context.Context, roomID, userID string) error {
	now := time.Now().UnixMilli()
	filter := bson.M{
		"room_id":         roomID,
		"room_type":       bson.M{"$ne": RoomTypeSingle},
		"members.user_id": userID,
	}
	update := bson.M{
		"$pull": bson.M{"members": bson.M{"user_id": userID}},
		"$push": bson.M{"leaved": RoomMember{UserID: userID, LeaveTime: now}},
	}
	res, err := r.Collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return errs.Wrap(err, "remove member")
	}
	if res.ModifiedCount > 0 {
		return nil
	}

	room, ferr := r.Find(ctx, roomID)
	if ferr != nil {
		return ferr
	}
	switch {
	case room.RoomType == RoomTypeSingle:
		return errs.ErrSingleRoom
	case !room.HasMember(userID):
		return errs.ErrMemberNotFound
	default:
		return errs.ErrStorage.WithDetail("remove member not applied")
	}
}

// AddUnread 给指定成员追加一条未读（$addToSet 保证恰好一条）
func (r *Room) AddUnread(ctx context.Context, roomID, userID, msgID string) error {
	filter := bson.M{"room_id": roomID, "members.user_id": userID}
	update := bson.M{"$addToSet": bson.M{"members.$.unread_msg_ids": msgID}}
	res, err := r.Collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return errs.Wrap(err, "add unread")
	}
	if res.MatchedCount == 0 {
		return errs.ErrMemberNotFound.WithDetail("room_id=" + roomID + " user_id=" + userID)
	}
	return nil
}

// PullUnread 摘掉指定成员的单条未读标记（单条已读）
func (r *Room) PullUnread(ctx context.Context, roomID, userID, msgID string) error {
	filter := bson.M{"room_id": roomID, "members.user_id": userID}
	update := bson.M{"$pull": bson.M{"members.$.unread_msg_ids": msgID}}
	if _, err := r.Collection().UpdateOne(ctx, filter, update); err != nil {
		return errs.Wrap(err, "pull unread")
	}
	return nil
}

// ClearUnread 整房已读：一次性清空该成员的未读集合
func (r *Room) ClearUnread(ctx context.Context, roomID, userID string) error {
	filter := bson.M{"room_id": roomID, "members.user_id": userID}
	update := bson.M{"$set": bson.M{"members.$.unread_msg_ids": []string{}}}
	if _, err := r.Collection().UpdateOne(ctx, filter, update); err != nil {
		return errs.Wrap(err, "clear unread")
	}
	return nil
}

// RoomUnread 离线补拉投影：某房间里我的未读消息ID
type RoomUnread struct {
	RoomID string   `bson:"room_id" json:"room_id"`
	MsgIDs []string `json:"msg_ids"`
}

// UnreadFor 拉取该用户在所有房间的未读（离线补拉查询口）
func (r *Room) UnreadFor(ctx context.Context, userID string) ([]RoomUnread, error) {
	filter := bson.M{
		"members": bson.M{"$elemMatch": bson.M{
			"user_id":        userID,
			"unread_msg_ids": bson.M{"$ne": []string{}},
		}},
	}
	cur, err := r.Collection().Find(ctx, filter)
	if err != nil {
		return nil, errs.Wrap(err, "unread query")
	}
	defer cur.Close(ctx)

	var out []RoomUnread
	for cur.Next(ctx) {
		var room Room
		if err := cur.Decode(&room); err != nil {
			return nil, errs.Wrap(err, "unread decode")
		}
		for _, m := range room.Members {
			if m.UserID == userID && len(m.UnreadMsgIDs) > 0 {
				out = append(out, RoomUnread{RoomID: room.RoomID, MsgIDs: m.UnreadMsgIDs})
			}
		}
	}
	if err := cur.Err(); err != nil {
		return nil, errs.Wrap(err, "unread cursor")
	}
	return out, nil
}

// SoftDelete 软删房间（消息/成员留痕不动）
func (r *Room) SoftDelete(ctx context.Context, roomID string) error {
	filter := bson.M{"room_id": roomID, "is_deleted": false}
	update := bson.M{"$set": bson.M{"is_deleted": true, "delete_time": time.Now().UnixMilli()}}
	res, err := r.Collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return errs.Wrap(err, "soft delete room")
	}
	if res.MatchedCount == 0 {
		return errs.ErrRoomNotFound.WithDetail("room_id=" + roomID)
	}
	return nil
}
