package mongodeck_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saurav-z/mongodeck"
)

// fakeClient 模拟客户端，按名称懒创建模拟数据库并记录调用
type fakeClient struct {
	mu            sync.Mutex
	databases     map[string]*fakeDatabase
	databaseNames []string
	pingErr       error
	disconnects   int32
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		databases:     make(map[string]*fakeDatabase),
		databaseNames: []string{"admin", "demo"},
	}
}

func (fc *fakeClient) Database(name string) mongodeck.Database {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	db, ok := fc.databases[name]
	if !ok {
		db = newFakeDatabase(name)
		fc.databases[name] = db
	}
	return db
}

// database 返回已创建的模拟数据库，测试中用于断言调用
func (fc *fakeClient) database(name string) *fakeDatabase {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.databases[name]
}

func (fc *fakeClient) ListDatabaseNames(ctx context.Context, filter interface{}) ([]string, error) {
	return fc.databaseNames, nil
}

func (fc *fakeClient) Ping(ctx context.Context) error {
	return fc.pingErr
}

func (fc *fakeClient) Disconnect(ctx context.Context) error {
	atomic.AddInt32(&fc.disconnects, 1)
	return nil
}

func (fc *fakeClient) disconnectCount() int32 {
	return atomic.LoadInt32(&fc.disconnects)
}

// fakeDatabase 模拟数据库，记录 RunCommand 与集合生命周期调用
type fakeDatabase struct {
	mu              sync.Mutex
	name            string
	collections     map[string]*fakeCollection
	collectionNames []string
	runCommands     []map[string]interface{}
	runResult       map[string]interface{}
	runErr          error
	createdNames    []string
	createErr       error
	dropCalls       int
}

func newFakeDatabase(name string) *fakeDatabase {
	return &fakeDatabase{
		name:            name,
		collections:     make(map[string]*fakeCollection),
		collectionNames: []string{"people", "orders"},
		runResult:       map[string]interface{}{"ok": float64(1)},
	}
}

func (fd *fakeDatabase) Name() string {
	return fd.name
}

func (fd *fakeDatabase) Collection(name string) mongodeck.Collection {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	coll, ok := fd.collections[name]
	if !ok {
		coll = &fakeCollection{name: name}
		fd.collections[name] = coll
	}
	return coll
}

func (fd *fakeDatabase) collection(name string) *fakeCollection {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.collections[name]
}

func (fd *fakeDatabase) RunCommand(ctx context.Context, command interface{}) (map[string]interface{}, error) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	if doc, ok := command.(map[string]interface{}); ok {
		fd.runCommands = append(fd.runCommands, doc)
	}
	if fd.runErr != nil {
		return nil, fd.runErr
	}
	return fd.runResult, nil
}

func (fd *fakeDatabase) runCommandCount() int {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return len(fd.runCommands)
}

func (fd *fakeDatabase) lastRunCommand() map[string]interface{} {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	if len(fd.runCommands) == 0 {
		return nil
	}
	return fd.runCommands[len(fd.runCommands)-1]
}

func (fd *fakeDatabase) ListCollectionNames(ctx context.Context, filter interface{}) ([]string, error) {
	return fd.collectionNames, nil
}

func (fd *fakeDatabase) CreateCollection(ctx context.Context, name string) error {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	if fd.createErr != nil {
		return fd.createErr
	}
	fd.createdNames = append(fd.createdNames, name)
	return nil
}

func (fd *fakeDatabase) Drop(ctx context.Context) error {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fd.dropCalls++
	return nil
}

// fakeCollection 模拟集合，记录每个方法的调用与参数
type fakeCollection struct {
	mu   sync.Mutex
	name string

	findCalls []mongodeck.QueryOptions
	findDocs  []map[string]interface{}
	findErr   error

	findOneFilters []map[string]interface{}
	findOneDoc     map[string]interface{}
	findOneErr     error

	countFilters []map[string]interface{}
	countValue   int64
	countErr     error

	aggregateCalls [][]interface{}
	aggregateDocs  []map[string]interface{}
	aggregateErr   error

	indexKeys []map[string]interface{}
	indexName string
	indexErr  error

	insertOneDocs []map[string]interface{}
	insertOneErr  error

	insertBatches   [][]map[string]interface{}
	insertManyErr   error
	insertManyDelay time.Duration
	inFlight        int32
	maxInFlight     int32

	updateCalls int
	updateCount int64
	updateErr   error

	deleteCalls int
	deleteCount int64
	deleteErr   error

	dropCalls int
	dropErr   error
}

func (fcoll *fakeCollection) Find(ctx context.Context, opts mongodeck.QueryOptions) ([]map[string]interface{}, error) {
	fcoll.mu.Lock()
	defer fcoll.mu.Unlock()
	fcoll.findCalls = append(fcoll.findCalls, opts)
	if fcoll.findErr != nil {
		return nil, fcoll.findErr
	}
	return fcoll.findDocs, nil
}

func (fcoll *fakeCollection) FindOne(ctx context.Context, filter map[string]interface{}) (map[string]interface{}, error) {
	fcoll.mu.Lock()
	defer fcoll.mu.Unlock()
	fcoll.findOneFilters = append(fcoll.findOneFilters, filter)
	if fcoll.findOneErr != nil {
		return nil, fcoll.findOneErr
	}
	return fcoll.findOneDoc, nil
}

func (fcoll *fakeCollection) CountDocuments(ctx context.Context, filter map[string]interface{}) (int64, error) {
	fcoll.mu.Lock()
	defer fcoll.mu.Unlock()
	fcoll.countFilters = append(fcoll.countFilters, filter)
	if fcoll.countErr != nil {
		return 0, fcoll.countErr
	}
	return fcoll.countValue, nil
}

func (fcoll *fakeCollection) Aggregate(ctx context.Context, pipeline []interface{}) ([]map[string]interface{}, error) {
	fcoll.mu.Lock()
	defer fcoll.mu.Unlock()
	fcoll.aggregateCalls = append(fcoll.aggregateCalls, pipeline)
	if fcoll.aggregateErr != nil {
		return nil, fcoll.aggregateErr
	}
	return fcoll.aggregateDocs, nil
}

func (fcoll *fakeCollection) CreateIndex(ctx context.Context, keys map[string]interface{}) (string, error) {
	fcoll.mu.Lock()
	defer fcoll.mu.Unlock()
	fcoll.indexKeys = append(fcoll.indexKeys, keys)
	if fcoll.indexErr != nil {
		return "", fcoll.indexErr
	}
	if fcoll.indexName == "" {
		return "age_1", nil
	}
	return fcoll.indexName, nil
}

func (fcoll *fakeCollection) InsertOne(ctx context.Context, document map[string]interface{}) (interface{}, error) {
	fcoll.mu.Lock()
	defer fcoll.mu.Unlock()
	fcoll.insertOneDocs = append(fcoll.insertOneDocs, document)
	if fcoll.insertOneErr != nil {
		return nil, fcoll.insertOneErr
	}
	return "generated-id", nil
}

func (fcoll *fakeCollection) InsertMany(ctx context.Context, documents []map[string]interface{}) (int, error) {
	current := atomic.AddInt32(&fcoll.inFlight, 1)
	for {
		max := atomic.LoadInt32(&fcoll.maxInFlight)
		if current <= max || atomic.CompareAndSwapInt32(&fcoll.maxInFlight, max, current) {
			break
		}
	}
	if fcoll.insertManyDelay > 0 {
		time.Sleep(fcoll.insertManyDelay)
	}
	atomic.AddInt32(&fcoll.inFlight, -1)

	fcoll.mu.Lock()
	defer fcoll.mu.Unlock()
	fcoll.insertBatches = append(fcoll.insertBatches, documents)
	if fcoll.insertManyErr != nil {
		return 0, fcoll.insertManyErr
	}
	return len(documents), nil
}

func (fcoll *fakeCollection) UpdateMany(ctx context.Context, filter, update map[string]interface{}) (int64, error) {
	fcoll.mu.Lock()
	defer fcoll.mu.Unlock()
	fcoll.updateCalls++
	if fcoll.updateErr != nil {
		return 0, fcoll.updateErr
	}
	return fcoll.updateCount, nil
}

func (fcoll *fakeCollection) DeleteMany(ctx context.Context, filter map[string]interface{}) (int64, error) {
	fcoll.mu.Lock()
	defer fcoll.mu.Unlock()
	fcoll.deleteCalls++
	if fcoll.deleteErr != nil {
		return 0, fcoll.deleteErr
	}
	return fcoll.deleteCount, nil
}

func (fcoll *fakeCollection) Drop(ctx context.Context) error {
	fcoll.mu.Lock()
	defer fcoll.mu.Unlock()
	fcoll.dropCalls++
	return fcoll.dropErr
}

// totalCalls 汇总全部方法调用次数，用于断言连接未被触碰
func (fc *fakeClient) totalCalls() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	total := 0
	for _, db := range fc.databases {
		db.mu.Lock()
		total += len(db.runCommands) + len(db.createdNames) + db.dropCalls
		for _, coll := range db.collections {
			coll.mu.Lock()
			total += len(coll.findCalls) + len(coll.findOneFilters) + len(coll.countFilters) +
				len(coll.aggregateCalls) + len(coll.indexKeys) + len(coll.insertOneDocs) +
				len(coll.insertBatches) + coll.updateCalls + coll.deleteCalls + coll.dropCalls
			coll.mu.Unlock()
		}
		db.mu.Unlock()
	}
	return total
}

// staticDial 返回始终交付同一个模拟客户端的拨号函数
func staticDial(client mongodeck.DatabaseClient) mongodeck.DialFunc {
	return func(ctx context.Context, identity string, onClose func()) (mongodeck.DatabaseClient, error) {
		return client, nil
	}
}
