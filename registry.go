package mongodeck

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// defaultDatabase 连接串未携带路径段时的缺省数据库名
const defaultDatabase = "test"

// DialFunc 建立底层连接的函数。
// onClose 在底层连接池关闭时由驱动回调，用于触发注册表剔除。
type DialFunc func(ctx context.Context, identity string, onClose func()) (DatabaseClient, error)

// ConnectionRegistry 多租户连接注册表。
// 以完整连接串为键缓存活跃连接；同一键的并发首次访问
// 通过 singleflight 合并为单次拨号，其余调用者共享结果。
// 缓存无上限也不做空闲淘汰，唯一的剔除途径是关闭通知。
type ConnectionRegistry struct {
	mu       sync.RWMutex
	conns    map[string]*CachedConnection
	group    singleflight.Group
	dial     DialFunc
	closed   bool
	reporter MetricsReporter
}

// NewConnectionRegistry 创建使用真实 MongoDB 驱动拨号的注册表
func NewConnectionRegistry() *ConnectionRegistry {
	return NewConnectionRegistryWithDial(dialMongo)
}

// NewConnectionRegistryWithDial 创建使用指定拨号函数的注册表，
// 测试中用于注入模拟客户端
func NewConnectionRegistryWithDial(dial DialFunc) *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]*CachedConnection),
		dial:  dial,
	}
}

// WithMetricsReporter 设置监控报告器
func (r *ConnectionRegistry) WithMetricsReporter(reporter MetricsReporter) *ConnectionRegistry {
	r.reporter = reporter
	return r
}

// GetOrCreate 按连接串取得缓存连接，缺失时拨号并缓存。
// 拨号失败不缓存失败状态，下一次访问重新拨号。
func (r *ConnectionRegistry) GetOrCreate(ctx context.Context, identity string) (*CachedConnection, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrRegistryClosed
	}
	if conn, ok := r.conns[identity]; ok {
		r.mu.RUnlock()
		return conn, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.group.Do(identity, func() (interface{}, error) {
		// 二次检查：singleflight 排队期间前一轮可能已完成插入
		r.mu.RLock()
		if r.closed {
			r.mu.RUnlock()
			return nil, ErrRegistryClosed
		}
		if conn, ok := r.conns[identity]; ok {
			r.mu.RUnlock()
			return conn, nil
		}
		r.mu.RUnlock()

		conn := &CachedConnection{
			key:       identity,
			defaultDB: defaultDatabaseName(identity),
			registry:  r,
		}
		client, err := r.dial(ctx, identity, func() { r.evict(conn) })
		if err != nil {
			return nil, &ConnectionError{Identity: identity, Cause: err}
		}
		conn.client = client

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			_ = client.Disconnect(context.Background())
			return nil, ErrRegistryClosed
		}
		r.conns[identity] = conn
		count := len(r.conns)
		r.mu.Unlock()

		if r.reporter != nil {
			r.reporter.ReportActiveConnections(count)
		}
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CachedConnection), nil
}

// evict 将连接标记为已关闭并从缓存移除。
// CAS 保证关闭通知与主动 Close 的竞争下只剔除一次。
// 返回是否由本次调用完成状态迁移。
func (r *ConnectionRegistry) evict(conn *CachedConnection) bool {
	if !atomic.CompareAndSwapInt32(&conn.state, int32(ConnectionStateOpen), int32(ConnectionStateClosed)) {
		return false
	}

	r.mu.Lock()
	if cached, ok := r.conns[conn.key]; ok && cached == conn {
		delete(r.conns, conn.key)
	}
	count := len(r.conns)
	r.mu.Unlock()

	if r.reporter != nil {
		r.reporter.ReportActiveConnections(count)
	}
	return true
}

// Remove 主动关闭并移除指定连接，连接不存在时为空操作
func (r *ConnectionRegistry) Remove(ctx context.Context, identity string) error {
	r.mu.RLock()
	conn, ok := r.conns[identity]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return conn.Close(ctx)
}

// ActiveConnections 返回当前缓存的连接数
func (r *ConnectionRegistry) ActiveConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Close 关闭注册表与全部缓存连接，之后的 GetOrCreate 返回 ErrRegistryClosed
func (r *ConnectionRegistry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conns := make([]*CachedConnection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.mu.Unlock()

	var firstErr error
	for _, conn := range conns {
		if err := conn.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CachedConnection 缓存的活跃连接及其派生的缺省数据库名
type CachedConnection struct {
	key       string
	client    DatabaseClient
	defaultDB string
	state     int32
	registry  *ConnectionRegistry
}

// Key 返回连接串键
func (c *CachedConnection) Key() string {
	return c.key
}

// Client 返回底层客户端
func (c *CachedConnection) Client() DatabaseClient {
	return c.client
}

// State 返回连接的当前状态
func (c *CachedConnection) State() ConnectionState {
	return ConnectionState(atomic.LoadInt32(&c.state))
}

// DefaultDatabaseName 返回从连接串路径段派生的缺省数据库名
func (c *CachedConnection) DefaultDatabaseName() string {
	return c.defaultDB
}

// DefaultDatabase 返回缺省数据库句柄
func (c *CachedConnection) DefaultDatabase() Database {
	return c.client.Database(c.defaultDB)
}

// Database 返回指定数据库句柄，名称为空时退回缺省数据库
func (c *CachedConnection) Database(name string) Database {
	if name == "" {
		name = c.defaultDB
	}
	return c.client.Database(name)
}

// Close 主动关闭连接。只有赢得状态迁移的一方执行底层断开，
// 与驱动侧关闭通知并发时不会重复断开。
func (c *CachedConnection) Close(ctx context.Context) error {
	if !c.registry.evict(c) {
		return nil
	}
	return c.client.Disconnect(ctx)
}

// defaultDatabaseName 从连接串提取路径段作为缺省数据库名
func defaultDatabaseName(identity string) string {
	rest := identity
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		rest = rest[idx+1:]
	} else {
		return defaultDatabase
	}
	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		rest = rest[:idx]
	}
	if rest == "" {
		return defaultDatabase
	}
	return rest
}

// connectionHost 提取连接串的主机部分作为指标标签，剥离凭证与路径
func connectionHost(identity string) string {
	rest := identity
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	if idx := strings.LastIndexByte(rest, '@'); idx >= 0 {
		rest = rest[idx+1:]
	}
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		rest = rest[:idx]
	}
	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		rest = rest[:idx]
	}
	if rest == "" {
		return "unknown"
	}
	return rest
}
