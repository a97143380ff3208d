package token

import (
	"context"
	"errors"

	"NapChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TokenProbe 单个存储形态的探测。链按优先级迭代，命中即止；
// 探测出错按“没找到”处理，由上层记日志后继续。
type TokenProbe interface {
	Name() string
	TryResolve(ctx context.Context, userID string) (string, error)
}

// DBSource 每次探测时取库。遗留库是异步连接的，启动时拿快照会把
// 整条链焊死在 nil 上；未就绪返回 nil，探测按错误上报。
type DBSource func() *mongo.Database

// UserDocProbe 形态(a)：用户文档上的若干候选字段名，先到先得。
type UserDocProbe struct {
	Source DBSource
	Coll   string   // 默认 users
	Fields []string // 候选字段，按序取第一个非空
}

// DefaultTokenFields 历史上两套系统写过的字段名都要认。
var DefaultTokenFields = []string{"fcm_token", "fcmToken", "device_token", "push_token"}

func (p *UserDocProbe) Name() string { return "userDoc/" + p.coll() }

func (p *UserDocProbe) coll() string {
	if p.Coll == "" {
		return "users"
	}
	return p.Coll
}

func (p *UserDocProbe) TryResolve(ctx context.Context, userID string) (string, error) {
	db := p.Source()
	if db == nil {
		return "", errs.New("legacy store not ready")
	}
	var doc bson.M
	err := db.Collection(p.coll()).FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	fields := p.Fields
	if len(fields) == 0 {
		fields = DefaultTokenFields
	}
	for _, f := range fields {
		if v, ok := doc[f].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", nil
}

// TokenDocProbe 形态(b)：按 userId 存的专用 token 文档。
type TokenDocProbe struct {
	Source DBSource
	Coll   string // 默认 fcm_tokens
}

func (p *TokenDocProbe) Name() string { return "tokenDoc/" + p.coll() }

func (p *TokenDocProbe) coll() string {
	if p.Coll == "" {
		return "fcm_tokens"
	}
	return p.Coll
}

func (p *TokenDocProbe) TryResolve(ctx context.Context, userID string) (string, error) {
	db := p.Source()
	if db == nil {
		return "", errs.New("legacy store not ready")
	}
	var doc struct {
		Token string `bson:"token"`
	}
	err := db.Collection(p.coll()).FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return doc.Token, nil
}

// SubcollectionProbe 形态(c)：每用户多条 token 记录，取写入时间最新的一条。
type SubcollectionProbe struct {
	Source DBSource
	Coll   string // 默认 user_tokens
}

func (p *SubcollectionProbe) Name() string { return "tokenSub/" + p.coll() }

func (p *SubcollectionProbe) coll() string {
	if p.Coll == "" {
		return "user_tokens"
	}
	return p.Coll
}

func (p *SubcollectionProbe) TryResolve(ctx context.Context, userID string) (string, error) {
	db := p.Source()
	if db == nil {
		return "", errs.New("legacy store not ready")
	}
	var doc struct {
		Token string `bson:"token"`
	}
	err := db.Collection(p.coll()).FindOne(ctx,
		bson.M{"user_id": userID},
		options.FindOne().SetSort(bson.M{"updated_at_ms": -1}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return doc.Token, nil
}

// StoreProbes 一套遗留身份库的完整探测序列：(a)→(b)→(c)。
// 库通过 src 延迟解析，连接就绪前构建的链在就绪后自动生效。
func StoreProbes(src DBSource) []TokenProbe {
	return []TokenProbe{
		&UserDocProbe{Source: src},
		&TokenDocProbe{Source: src},
		&SubcollectionProbe{Source: src},
	}
}
