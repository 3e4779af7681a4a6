package mongodeck

import (
	"context"
	"time"
)

// DatabaseClient MongoDB 客户端接口（窄接口，便于在测试中替换真实驱动）
type DatabaseClient interface {
	Database(name string) Database
	ListDatabaseNames(ctx context.Context, filter interface{}) ([]string, error)
	Ping(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// Database MongoDB 数据库接口
type Database interface {
	Name() string
	Collection(name string) Collection
	RunCommand(ctx context.Context, command interface{}) (map[string]interface{}, error)
	ListCollectionNames(ctx context.Context, filter interface{}) ([]string, error)
	CreateCollection(ctx context.Context, name string) error
	Drop(ctx context.Context) error
}

// Collection MongoDB 集合接口
type Collection interface {
	Find(ctx context.Context, opts QueryOptions) ([]map[string]interface{}, error)
	FindOne(ctx context.Context, filter map[string]interface{}) (map[string]interface{}, error)
	CountDocuments(ctx context.Context, filter map[string]interface{}) (int64, error)
	Aggregate(ctx context.Context, pipeline []interface{}) ([]map[string]interface{}, error)
	CreateIndex(ctx context.Context, keys map[string]interface{}) (string, error)
	InsertOne(ctx context.Context, document map[string]interface{}) (interface{}, error)
	InsertMany(ctx context.Context, documents []map[string]interface{}) (int, error)
	UpdateMany(ctx context.Context, filter, update map[string]interface{}) (int64, error)
	DeleteMany(ctx context.Context, filter map[string]interface{}) (int64, error)
	Drop(ctx context.Context) error
}

// CommandMetrics 单次命令执行指标
type CommandMetrics struct {
	Host      string        // 目标主机（不含凭证）
	Kind      string        // 命令种类标签
	Duration  time.Duration // 执行时长
	Error     error         // 错误信息（如果有）
	StartTime time.Time     // 开始时间
}

// MetricsReporter 监控报告接口
type MetricsReporter interface {
	ReportCommandExecution(ctx context.Context, metrics CommandMetrics)
	ReportActiveConnections(count int)
}

// MetricsCollector 指标收集器接口
type MetricsCollector interface {
	RecordCommandExecution(host, kind string, durationMs int64, err error)
	GetMetrics() map[string]interface{}
	GetRecentExecutions(limit int) []CommandExecutionMetrics
	Reset()
}
