package mongodeck

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// defaultDialTimeout 建连握手超时。命令本身不设额外超时，
// 沿用驱动与服务器的缺省行为。
const defaultDialTimeout = 10 * time.Second

// dialMongo 真实驱动拨号：连接、Ping 验证，并挂接连接池
// 关闭事件以便注册表剔除失效条目
func dialMongo(ctx context.Context, identity string, onClose func()) (DatabaseClient, error) {
	dialCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	monitor := &event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			if evt.Type == event.PoolClosedEvent {
				onClose()
			}
		},
	}

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(identity).SetPoolMonitor(monitor))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(dialCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &mongoClient{client: client}, nil
}

// mongoClient 包装 *mongo.Client 为窄接口
type mongoClient struct {
	client *mongo.Client
}

func (mc *mongoClient) Database(name string) Database {
	return &mongoDatabase{db: mc.client.Database(name)}
}

func (mc *mongoClient) ListDatabaseNames(ctx context.Context, filter interface{}) ([]string, error) {
	if filter == nil {
		filter = bson.D{}
	}
	return mc.client.ListDatabaseNames(ctx, filter)
}

func (mc *mongoClient) Ping(ctx context.Context) error {
	return mc.client.Ping(ctx, readpref.Primary())
}

func (mc *mongoClient) Disconnect(ctx context.Context) error {
	return mc.client.Disconnect(ctx)
}

// mongoDatabase 包装 *mongo.Database
type mongoDatabase struct {
	db *mongo.Database
}

func (md *mongoDatabase) Name() string {
	return md.db.Name()
}

func (md *mongoDatabase) Collection(name string) Collection {
	return &mongoCollection{coll: md.db.Collection(name)}
}

func (md *mongoDatabase) RunCommand(ctx context.Context, command interface{}) (map[string]interface{}, error) {
	var result bson.M
	if err := md.db.RunCommand(ctx, command).Decode(&result); err != nil {
		return nil, err
	}
	return map[string]interface{}(result), nil
}

func (md *mongoDatabase) ListCollectionNames(ctx context.Context, filter interface{}) ([]string, error) {
	if filter == nil {
		filter = bson.D{}
	}
	return md.db.ListCollectionNames(ctx, filter)
}

func (md *mongoDatabase) CreateCollection(ctx context.Context, name string) error {
	return md.db.CreateCollection(ctx, name)
}

func (md *mongoDatabase) Drop(ctx context.Context) error {
	return md.db.Drop(ctx)
}

// mongoCollection 包装 *mongo.Collection
type mongoCollection struct {
	coll *mongo.Collection
}

func (mc *mongoCollection) Find(ctx context.Context, opts QueryOptions) ([]map[string]interface{}, error) {
	findOpts := options.Find()
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if len(opts.Projection) > 0 {
		findOpts.SetProjection(opts.Projection)
	}

	cursor, err := mc.coll.Find(ctx, orEmptyFilter(opts.Filter), findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	results := make([]map[string]interface{}, 0)
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (mc *mongoCollection) FindOne(ctx context.Context, filter map[string]interface{}) (map[string]interface{}, error) {
	var result map[string]interface{}
	err := mc.coll.FindOne(ctx, orEmptyFilter(filter)).Decode(&result)
	if err == mongo.ErrNoDocuments {
		// 无匹配不是错误，上层封装为 payload 为 null 的成功结果
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (mc *mongoCollection) CountDocuments(ctx context.Context, filter map[string]interface{}) (int64, error) {
	return mc.coll.CountDocuments(ctx, orEmptyFilter(filter))
}

func (mc *mongoCollection) Aggregate(ctx context.Context, pipeline []interface{}) ([]map[string]interface{}, error) {
	if pipeline == nil {
		pipeline = []interface{}{}
	}
	cursor, err := mc.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	results := make([]map[string]interface{}, 0)
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (mc *mongoCollection) CreateIndex(ctx context.Context, keys map[string]interface{}) (string, error) {
	return mc.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys})
}

func (mc *mongoCollection) InsertOne(ctx context.Context, document map[string]interface{}) (interface{}, error) {
	result, err := mc.coll.InsertOne(ctx, document)
	if err != nil {
		return nil, err
	}
	return result.InsertedID, nil
}

func (mc *mongoCollection) InsertMany(ctx context.Context, documents []map[string]interface{}) (int, error) {
	docs := make([]interface{}, len(documents))
	for i, doc := range documents {
		docs[i] = doc
	}
	result, err := mc.coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, err
	}
	return len(result.InsertedIDs), nil
}

func (mc *mongoCollection) UpdateMany(ctx context.Context, filter, update map[string]interface{}) (int64, error) {
	result, err := mc.coll.UpdateMany(ctx, orEmptyFilter(filter), update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

func (mc *mongoCollection) DeleteMany(ctx context.Context, filter map[string]interface{}) (int64, error) {
	result, err := mc.coll.DeleteMany(ctx, orEmptyFilter(filter))
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (mc *mongoCollection) Drop(ctx context.Context) error {
	return mc.coll.Drop(ctx)
}

// orEmptyFilter 驱动不接受 nil filter，退化为空文档
func orEmptyFilter(filter map[string]interface{}) interface{} {
	if filter == nil {
		return bson.D{}
	}
	return filter
}
