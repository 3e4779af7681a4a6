package mongodeck

// ParsedCommand 解析后的命令意图（标签联合）。
// 四种变体：RawCommand、AdminAction、CollectionAction、Unrecognized。
// 调度器对变体做穷举 switch，不允许按字符串名动态调用。
type ParsedCommand interface {
	commandVariant()
}

// RawCommand 结构化命令：整段文本是一个合法 JSON 文档，
// 原样作为命令在默认数据库作用域执行。
type RawCommand struct {
	Document map[string]interface{}
}

// AdminAction 数据库级管理动作。
// Command 仅在 AdminCommand / AdminRunCommand 时有值；
// Name 仅在 AdminCreateCollection / AdminDropCollection 时有值。
type AdminAction struct {
	Kind    AdminKind
	Command map[string]interface{}
	Name    string
}

// CollectionAction 集合级动作。各字段按 Kind 选用：
// Filter 用于 find/findOne/countDocuments，Pipeline 用于 aggregate，
// IndexSpec 用于 createIndex，Limit 仅用于 find。
type CollectionAction struct {
	Collection string
	Kind       CollectionKind
	Filter     map[string]interface{}
	Pipeline   []interface{}
	IndexSpec  map[string]interface{}
	Limit      int64
}

// Unrecognized 解析失败变体，Reason 枚举支持的命令形式。
// 解析是全函数：任何输入都落在四个变体之一，绝不 panic。
type Unrecognized struct {
	Reason string
}

func (*RawCommand) commandVariant()       {}
func (*AdminAction) commandVariant()      {}
func (*CollectionAction) commandVariant() {}
func (*Unrecognized) commandVariant()     {}

// CommandKindLabel 返回命令变体的指标标签
func CommandKindLabel(command ParsedCommand) string {
	switch cmd := command.(type) {
	case *RawCommand:
		return "raw"
	case *AdminAction:
		return cmd.Kind.String()
	case *CollectionAction:
		return cmd.Kind.String()
	case *Unrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}
