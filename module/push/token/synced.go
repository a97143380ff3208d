package token

import (
	"context"
	"errors"
	"time"

	"NapChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const syncedColl = "fcm_token_sync"

// SyncedToken 显式 sync 端点写入的本地缓存文档。
// App 标记归属应用；历史数据没有这个标记（空串），归属不明。
type SyncedToken struct {
	UserID      string `bson:"_id" json:"userId"`
	Token       string `bson:"token" json:"fcmToken"`
	App         string `bson:"app,omitempty" json:"app,omitempty"` // appA / appB / ""
	UpdatedAtMS int64  `bson:"updated_at_ms" json:"updatedAtMs"`
}

// SyncedStore 同步 token 的主库存取。
type SyncedStore struct {
	DB *mongo.Database
}

func (s *SyncedStore) Upsert(ctx context.Context, userID, tok, app string) error {
	doc := SyncedToken{UserID: userID, Token: tok, App: app, UpdatedAtMS: time.Now().UnixMilli()}
	_, err := s.DB.Collection(syncedColl).ReplaceOne(ctx,
		bson.M{"_id": userID}, doc, options.Replace().SetUpsert(true))
	return errs.WrapMsg(err, "upsert synced token", "userId", userID)
}

func (s *SyncedStore) Get(ctx context.Context, userID string) (*SyncedToken, error) {
	var doc SyncedToken
	err := s.DB.Collection(syncedColl).FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "get synced token", "userId", userID)
	}
	return &doc, nil
}
