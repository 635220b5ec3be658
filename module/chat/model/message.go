package model

import (
	"context"
	"time"

	"MTalk/service/mgo"
	errs "MTalk/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ===== 内容类型 =====

const (
	ContentTypeText       int32 = 1
	ContentTypeLocation   int32 = 2
	ContentTypeAttachment int32 = 3
)

// LocationElem 位置消息体
type LocationElem struct {
	Latitude    float64 `bson:"latitude" json:"latitude"`
	Longitude   float64 `bson:"longitude" json:"longitude"`
	Description string  `bson:"description" json:"description"`
}

// AttachmentElem 附件消息体（文件已由上传服务落好，这里只存引用）
type AttachmentElem struct {
	URL  string `bson:"url" json:"url"`
	Name string `bson:"name" json:"name"`
	Size int64  `bson:"size" json:"size"`
	Mime string `bson:"mime" json:"mime"`
}

// Reaction 表情反应（user_id + emoji 唯一）
type Reaction struct {
	UserID string `bson:"user_id" json:"user_id"`
	Emoji  string `bson:"emoji" json:"emoji"`
	Time   int64  `bson:"time" json:"time"` // Unix ms
}

// Message 一条消息。主体落库后不可变，
// 只有 reactions / 编辑 / 软删走定义好的更新口。
type Message struct {
	MsgID    string `bson:"msg_id" json:"msg_id"`
	RoomID   string `bson:"room_id" json:"room_id"`
	AuthorID string `bson:"author_id" json:"author_id"`

	ContentType int32           `bson:"content_type" json:"content_type"` // 1=文本,2=位置,3=附件
	Text        string          `bson:"text,omitempty" json:"text,omitempty"`
	Location    *LocationElem   `bson:"location,omitempty" json:"location,omitempty"`
	Attachment  *AttachmentElem `bson:"attachment,omitempty" json:"attachment,omitempty"`
	ReplyTo     string          `bson:"reply_to,omitempty" json:"reply_to,omitempty"` // 被回复消息ID

	Reactions []Reaction `bson:"reactions" json:"reactions"`
	IsEdited  bool       `bson:"is_edited" json:"is_edited"`
	IsDeleted bool       `bson:"is_deleted" json:"is_deleted"` // 软删，不物理删除

	CreateTime int64 `bson:"create_time" json:"create_time"` // Unix ms
	UpdateTime int64 `bson:"update_time" json:"update_time"` // Unix ms
}

func (m *Message) GetTableName() string {
	return "message"
}

func (m *Message) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(m.GetTableName())
}

// HasBody 消息至少要有 文本/位置/附件 之一
func (m *Message) HasBody() bool {
	return m.Text != "" || m.Location != nil || m.Attachment != nil
}

// Persist 落库。必须在扇出之前完成（失败则这条消息根本不进入广播）。
func (m *Message) Persist(ctx context.Context) error {
	if !m.HasBody() {
		return errs.ErrEmptyBody
	}
	now := time.Now().UnixMilli()
	if m.CreateTime == 0 {
		m.CreateTime = now
	}
	m.UpdateTime = m.CreateTime
	if m.Reactions == nil {
		m.Reactions = []Reaction{}
	}
	if _, err := m.Collection().InsertOne(ctx, m); err != nil {
		return errs.Wrap(err, "insert message")
	}
	return nil
}

// Find 按ID查消息
func (m *Message) Find(ctx context.Context, msgID string) (*Message, error) {
	var out Message
	err := m.Collection().FindOne(ctx, bson.M{"msg_id": msgID}).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrMessageNotFound.WithDetail("msg_id=" + msgID)
	}
	if err != nil {
		return nil, errs.Wrap(err, "find message")
	}
	return &out, nil
}

// React 点赞/加表情。同一 user+emoji 只会有一条（filter 排重后 $push）。
func (m *Message) React(ctx context.Context, msgID, userID, emoji string) error {
	filter := bson.M{
		"msg_id":     msgID,
		"is_deleted": false,
		"reactions": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"user_id": userID, "emoji": emoji,
		}}},
	}
	update := bson.M{"$push": bson.M{"reactions": Reaction{
		UserID: userID, Emoji: emoji, Time: time.Now().UnixMilli(),
	}}}
	res, err := m.Collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return errs.Wrap(err, "react message")
	}
	if res.ModifiedCount > 0 {
		return nil
	}
	// 没写成功：要么消息不存在/已删，要么已经点过（幂等，直接成功）
	msg, ferr := m.Find(ctx, msgID)
	if ferr != nil {
		return ferr
	}
	if msg.IsDeleted {
		return errs.ErrMessageNotFound.WithDetail("message deleted")
	}
	return nil
}

// Unreact 取消表情（幂等）
func (m *Message) Unreact(ctx context.Context, msgID, userID, emoji string) error {
	filter := bson.M{"msg_id": msgID}
	update := bson.M{"$pull": bson.M{"reactions": bson.M{"user_id": userID, "emoji": emoji}}}
	res, err := m.Collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return errs.Wrap(err, "unreact message")
	}
	if res.MatchedCount == 0 {
		return errs.ErrMessageNotFound.WithDetail("msg_id=" + msgID)
	}
	return nil
}

// Edit 作者改文本（只放开 text；位置/附件消息不支持编辑）
func (m *Message) Edit(ctx context.Context, msgID, authorID, text string) error {
	if text == "" {
		return errs.ErrEmptyBody
	}
	filter := bson.M{"msg_id": msgID, "author_id": authorID, "is_deleted": false}
	update := bson.M{"$set": bson.M{
		"text":        text,
		"is_edited":   true,
		"update_time": time.Now().UnixMilli(),
	}}
	res, err := m.Collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return errs.Wrap(err, "edit message")
	}
	if res.MatchedCount == 0 {
		return errs.ErrMessageNotFound.WithDetail("msg_id=" + msgID)
	}
	return nil
}

// SoftDelete 作者软删消息
func (m *Message) SoftDelete(ctx context.Context, msgID, authorID string) error {
	filter := bson.M{"msg_id": msgID, "author_id": authorID, "is_deleted": false}
	update := bson.M{"$set": bson.M{"is_deleted": true, "update_time": time.Now().UnixMilli()}}
	res, err := m.Collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return errs.Wrap(err, "soft delete message")
	}
	if res.MatchedCount == 0 {
		return errs.ErrMessageNotFound.WithDetail("msg_id=" + msgID)
	}
	return nil
}

// FindByRoom 房间内分页拉历史（create_time 倒序）
func (m *Message) FindByRoom(ctx context.Context, roomID string, beforeMS int64, limit int64) ([]Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	filter := bson.M{"room_id": roomID}
	if beforeMS > 0 {
		filter["create_time"] = bson.M{"$lt": beforeMS}
	}
	opts := optionsFindSortLimit(bson.M{"create_time": -1}, limit)
	cur, err := m.Collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, errs.Wrap(err, "find room messages")
	}
	defer cur.Close(ctx)

	var out []Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.Wrap(err, "decode room messages")
	}
	return out, nil
}
