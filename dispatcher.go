package mongodeck

import (
	"context"
	"fmt"
	"time"
)

// adminDatabase 管理命令的固定目标数据库
const adminDatabase = "admin"

// OperationDispatcher 操作调度器。对解析出的命令变体做穷举
// 分发，把结果统一封装为 ExecutionResult：执行错误进入信封，
// 不向调用方传播；panic 由 recover 捕获后同样进入信封。
// 单发单收，失败不重试。
type OperationDispatcher struct {
	transformer *ResultTransformer
}

// NewOperationDispatcher 创建操作调度器
func NewOperationDispatcher() *OperationDispatcher {
	return &OperationDispatcher{transformer: NewResultTransformer()}
}

// Execute 执行解析后的命令并返回统一信封。
// Unrecognized 变体直接拒绝，不触碰连接；conn 仅在此时允许为 nil。
func (d *OperationDispatcher) Execute(ctx context.Context, command ParsedCommand, conn *CachedConnection) (result *ExecutionResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = &ExecutionResult{
				Success:    false,
				Error:      fmt.Sprintf("command execution panicked: %v", r),
				DurationMs: time.Since(start).Milliseconds(),
			}
		}
	}()

	if unrecognized, ok := command.(*Unrecognized); ok {
		return &ExecutionResult{
			Success:    false,
			Error:      unrecognized.Reason,
			DurationMs: time.Since(start).Milliseconds(),
		}
	}

	if conn == nil {
		return &ExecutionResult{
			Success:    false,
			Error:      ErrMissingIdentity.Error(),
			DurationMs: time.Since(start).Milliseconds(),
		}
	}
	// 持有已被剔除连接的调用方直接拒绝，不触碰失效句柄
	if conn.State() == ConnectionStateClosed {
		return &ExecutionResult{
			Success:    false,
			Error:      ErrConnectionClosed.Error(),
			DurationMs: time.Since(start).Milliseconds(),
		}
	}

	var payload interface{}
	var err error
	switch cmd := command.(type) {
	case *RawCommand:
		payload, err = conn.DefaultDatabase().RunCommand(ctx, cmd.Document)
	case *AdminAction:
		payload, err = d.dispatchAdmin(ctx, cmd, conn)
	case *CollectionAction:
		payload, err = d.dispatchCollection(ctx, cmd, conn)
	default:
		err = fmt.Errorf("unsupported command variant %T", command)
	}

	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return &ExecutionResult{Success: false, Error: err.Error(), DurationMs: elapsed}
	}
	return &ExecutionResult{
		Success:    true,
		Payload:    d.transformer.Transform(payload),
		DurationMs: elapsed,
	}
}

// dispatchAdmin 分发数据库级管理动作。
// adminCommand/serverStatus 固定落在 admin 库，其余落在缺省库。
func (d *OperationDispatcher) dispatchAdmin(ctx context.Context, cmd *AdminAction, conn *CachedConnection) (interface{}, error) {
	switch cmd.Kind {
	case AdminCommand:
		return conn.Database(adminDatabase).RunCommand(ctx, cmd.Command)
	case AdminRunCommand:
		return conn.DefaultDatabase().RunCommand(ctx, cmd.Command)
	case AdminListDatabases:
		return conn.Client().ListDatabaseNames(ctx, nil)
	case AdminListCollections:
		return conn.DefaultDatabase().ListCollectionNames(ctx, nil)
	case AdminStats:
		return conn.DefaultDatabase().RunCommand(ctx, map[string]interface{}{"dbStats": 1})
	case AdminServerStatus:
		return conn.Database(adminDatabase).RunCommand(ctx, map[string]interface{}{"serverStatus": 1})
	case AdminDropDatabase:
		name := conn.DefaultDatabaseName()
		if err := conn.DefaultDatabase().Drop(ctx); err != nil {
			return nil, err
		}
		return map[string]interface{}{"dropped": name}, nil
	case AdminCreateCollection:
		if err := conn.DefaultDatabase().CreateCollection(ctx, cmd.Name); err != nil {
			return nil, err
		}
		return map[string]interface{}{"created": cmd.Name}, nil
	case AdminDropCollection:
		if err := conn.DefaultDatabase().Collection(cmd.Name).Drop(ctx); err != nil {
			return nil, err
		}
		return map[string]interface{}{"dropped": cmd.Name}, nil
	default:
		return nil, fmt.Errorf("unsupported admin action %q", cmd.Kind)
	}
}

// dispatchCollection 分发集合级动作，全部落在缺省库
func (d *OperationDispatcher) dispatchCollection(ctx context.Context, cmd *CollectionAction, conn *CachedConnection) (interface{}, error) {
	coll := conn.DefaultDatabase().Collection(cmd.Collection)

	switch cmd.Kind {
	case CollectionFind:
		return coll.Find(ctx, QueryOptions{Filter: cmd.Filter, Limit: cmd.Limit})
	case CollectionFindOne:
		return coll.FindOne(ctx, cmd.Filter)
	case CollectionCount:
		return coll.CountDocuments(ctx, cmd.Filter)
	case CollectionAggregate:
		return coll.Aggregate(ctx, cmd.Pipeline)
	case CollectionCreateIndex:
		name, err := coll.CreateIndex(ctx, cmd.IndexSpec)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"index": name}, nil
	case CollectionDrop:
		if err := coll.Drop(ctx); err != nil {
			return nil, err
		}
		return map[string]interface{}{"dropped": cmd.Collection}, nil
	default:
		return nil, fmt.Errorf("unsupported collection action %q", cmd.Kind)
	}
}
