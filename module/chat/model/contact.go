package model

import (
	"context"

	"MTalk/service/mgo"
	errs "MTalk/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Contact 联系人关系：和谁互发过消息。
// 发消息时由任务队列双向维护（$addToSet 幂等），
// 登录/登出的在线状态广播只发给这批人，不扫全量用户表。
type Contact struct {
	UserID  string   `bson:"user_id" json:"user_id"`
	PeerIDs []string `bson:"peer_ids" json:"peer_ids"`
}

func (c *Contact) GetTableName() string {
	return "contact"
}

func (c *Contact) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(c.GetTableName())
}

// AddPeers 给 userID 追加联系人（upsert，重复追加无副作用）
func (c *Contact) AddPeers(ctx context.Context, userID string, peers []string) error {
	if len(peers) == 0 {
		return nil
	}
	filter := bson.M{"user_id": userID}
	update := bson.M{"$addToSet": bson.M{"peer_ids": bson.M{"$each": peers}}}
	opts := options.Update().SetUpsert(true)
	if _, err := c.Collection().UpdateOne(ctx, filter, update, opts); err != nil {
		return errs.Wrap(err, "add contact peers")
	}
	return nil
}

// PeersOf 查询 userID 的联系人集合；没有记录时返回空集
func (c *Contact) PeersOf(ctx context.Context, userID string) ([]string, error) {
	var out Contact
	err := c.Collection().FindOne(ctx, bson.M{"user_id": userID}).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, "find contacts")
	}
	return out.PeerIDs, nil
}

// optionsFindSortLimit Find 的排序+限量选项
func optionsFindSortLimit(sort bson.M, limit int64) *options.FindOptions {
	return options.Find().SetSort(sort).SetLimit(limit)
}
