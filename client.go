package mongodeck

import (
	"context"
	"time"
)

// ClientConfig 客户端配置
type ClientConfig struct {
	DefaultFindLimit   int64 `json:"default_find_limit"`   // find 缺省返回条数
	EnableMetrics      bool  `json:"enable_metrics"`        // 是否启用内置指标收集
	MetricsHistorySize int   `json:"metrics_history_size"`  // 指标历史容量
	ImportBatchSize    int   `json:"import_batch_size"`     // 导入批次大小
	ImportConcurrency  int   `json:"import_concurrency"`    // 导入最大并发批次数
}

// DefaultClientConfig 返回缺省配置
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DefaultFindLimit:   DefaultFindLimit,
		EnableMetrics:      true,
		MetricsHistorySize: 1000,
		ImportBatchSize:    500,
		ImportConcurrency:  4,
	}
}

// AdminClient 管理客户端门面：组合注册表、解析器、命令解析器
// 与调度器，对外提供连接管理、命令执行与文档读写入口。
// 所有操作都要求显式连接标识，进程内不存在缺省连接。
type AdminClient struct {
	registry   *ConnectionRegistry
	resolver   *ConnectionResolver
	parser     *CommandParser
	dispatcher *OperationDispatcher
	importer   *DocumentImporter
	collector  MetricsCollector
	reporter   MetricsReporter
	config     ClientConfig
}

// NewAdminClient 创建管理客户端
func NewAdminClient(config ClientConfig) *AdminClient {
	return NewAdminClientWithRegistry(config, NewConnectionRegistry())
}

// NewAdminClientWithRegistry 创建使用指定注册表的管理客户端，
// 测试中配合 NewConnectionRegistryWithDial 注入模拟连接
func NewAdminClientWithRegistry(config ClientConfig, registry *ConnectionRegistry) *AdminClient {
	if config.DefaultFindLimit <= 0 {
		config.DefaultFindLimit = DefaultFindLimit
	}

	var collector MetricsCollector
	if config.EnableMetrics {
		defaultCollector := NewDefaultMetricsCollector()
		if config.MetricsHistorySize > 0 {
			defaultCollector.SetMaxHistorySize(config.MetricsHistorySize)
		}
		collector = defaultCollector
	} else {
		collector = NewNoopMetricsCollector()
	}

	return &AdminClient{
		registry:   registry,
		resolver:   NewConnectionResolver(registry),
		parser:     NewCommandParserWithLimit(config.DefaultFindLimit),
		dispatcher: NewOperationDispatcher(),
		importer:   NewDocumentImporter(config.ImportBatchSize, config.ImportConcurrency),
		collector:  collector,
		config:     config,
	}
}

// WithMetricsReporter 挂接外部监控报告器（如 Prometheus）
func (ac *AdminClient) WithMetricsReporter(reporter MetricsReporter) *AdminClient {
	ac.reporter = reporter
	ac.registry.WithMetricsReporter(reporter)
	return ac
}

// OpenConnection 建立（或复用）到指定连接串的连接。
// 幂等：相同连接串重复调用复用同一缓存条目。
func (ac *AdminClient) OpenConnection(ctx context.Context, identity string) error {
	_, err := ac.resolver.Resolve(ctx, identity)
	return err
}

// ExecuteCommand 解析并执行一条命令文本，返回统一信封。
// 解析先于连接解析：无法识别的命令直接拒绝，不会触发拨号。
// 标识缺失与连接失败同样进入信封而非作为 error 返回。
func (ac *AdminClient) ExecuteCommand(ctx context.Context, identity, commandText string) *ExecutionResult {
	start := time.Now()
	command := ac.parser.Parse(commandText)

	if _, ok := command.(*Unrecognized); ok {
		result := ac.dispatcher.Execute(ctx, command, nil)
		ac.recordExecution(ctx, identity, command, result)
		return result
	}

	conn, err := ac.resolver.Resolve(ctx, identity)
	if err != nil {
		result := &ExecutionResult{
			Success:    false,
			Error:      err.Error(),
			DurationMs: time.Since(start).Milliseconds(),
		}
		ac.recordExecution(ctx, identity, command, result)
		return result
	}

	result := ac.dispatcher.Execute(ctx, command, conn)
	ac.recordExecution(ctx, identity, command, result)
	return result
}

func (ac *AdminClient) recordExecution(ctx context.Context, identity string, command ParsedCommand, result *ExecutionResult) {
	var err error
	if !result.Success {
		err = &executionFailure{message: result.Error}
	}

	host := connectionHost(identity)
	kind := CommandKindLabel(command)
	ac.collector.RecordCommandExecution(host, kind, result.DurationMs, err)

	if ac.reporter != nil {
		ac.reporter.ReportCommandExecution(ctx, CommandMetrics{
			Host:      host,
			Kind:      kind,
			Duration:  time.Duration(result.DurationMs) * time.Millisecond,
			Error:     err,
			StartTime: time.Now().Add(-time.Duration(result.DurationMs) * time.Millisecond),
		})
	}
}

// executionFailure 把信封中的错误文本还原为 error 供收集器记录
type executionFailure struct {
	message string
}

func (ef *executionFailure) Error() string {
	return ef.message
}

// Disconnect 关闭并移除指定连接
func (ac *AdminClient) Disconnect(ctx context.Context, identity string) error {
	return ac.registry.Remove(ctx, identity)
}

// Close 关闭客户端与全部连接
func (ac *AdminClient) Close(ctx context.Context) error {
	return ac.registry.Close(ctx)
}

// Metrics 返回内置指标收集器
func (ac *AdminClient) Metrics() MetricsCollector {
	return ac.collector
}

// ActiveConnections 返回当前缓存的连接数
func (ac *AdminClient) ActiveConnections() int {
	return ac.registry.ActiveConnections()
}

// ListDatabases 列出服务器上的数据库名
func (ac *AdminClient) ListDatabases(ctx context.Context, identity string) ([]string, error) {
	conn, err := ac.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	return conn.Client().ListDatabaseNames(ctx, nil)
}

// ListCollections 列出数据库中的集合名，database 为空时使用缺省库
func (ac *AdminClient) ListCollections(ctx context.Context, identity, database string) ([]string, error) {
	conn, err := ac.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	return conn.Database(database).ListCollectionNames(ctx, nil)
}

// FindDocuments 按查询选项读取文档
func (ac *AdminClient) FindDocuments(ctx context.Context, identity, database, collection string, opts QueryOptions) ([]map[string]interface{}, error) {
	conn, err := ac.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		opts.Limit = ac.config.DefaultFindLimit
	}
	return conn.Database(database).Collection(collection).Find(ctx, opts)
}

// CountDocuments 统计匹配文档数
func (ac *AdminClient) CountDocuments(ctx context.Context, identity, database, collection string, filter map[string]interface{}) (int64, error) {
	conn, err := ac.resolver.Resolve(ctx, identity)
	if err != nil {
		return 0, err
	}
	return conn.Database(database).Collection(collection).CountDocuments(ctx, filter)
}

// InsertDocument 插入单个文档，返回生成的主键
func (ac *AdminClient) InsertDocument(ctx context.Context, identity, database, collection string, document map[string]interface{}) (interface{}, error) {
	conn, err := ac.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	return conn.Database(database).Collection(collection).InsertOne(ctx, document)
}

// UpdateDocuments 按过滤条件批量更新，返回修改条数
func (ac *AdminClient) UpdateDocuments(ctx context.Context, identity, database, collection string, filter, update map[string]interface{}) (int64, error) {
	conn, err := ac.resolver.Resolve(ctx, identity)
	if err != nil {
		return 0, err
	}
	return conn.Database(database).Collection(collection).UpdateMany(ctx, filter, update)
}

// DeleteDocuments 按过滤条件批量删除，返回删除条数
func (ac *AdminClient) DeleteDocuments(ctx context.Context, identity, database, collection string, filter map[string]interface{}) (int64, error) {
	conn, err := ac.resolver.Resolve(ctx, identity)
	if err != nil {
		return 0, err
	}
	return conn.Database(database).Collection(collection).DeleteMany(ctx, filter)
}

// ImportDocuments 分批并发导入文档
func (ac *AdminClient) ImportDocuments(ctx context.Context, identity, database, collection string, documents []map[string]interface{}) (*ImportResult, error) {
	conn, err := ac.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	return ac.importer.Import(ctx, conn.Database(database).Collection(collection), documents), nil
}

// ExportDocuments 导出集合中的全部匹配文档（limit 为 0 时不限量）
func (ac *AdminClient) ExportDocuments(ctx context.Context, identity, database, collection string, filter map[string]interface{}, limit int64) ([]map[string]interface{}, error) {
	conn, err := ac.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	return conn.Database(database).Collection(collection).Find(ctx, QueryOptions{Filter: filter, Limit: limit})
}
