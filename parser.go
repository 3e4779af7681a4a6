package mongodeck

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultFindLimit find 命令未携带 .limit(N) 时的缺省返回条数
const DefaultFindLimit = 10

// scopeMarker shell 语法的固定作用域前缀
const scopeMarker = "db."

const (
	supportedCollectionMethods = "find, findOne, countDocuments, aggregate, createIndex, drop"
	supportedAdminMethods      = "adminCommand, runCommand, listDatabases, listCollections, stats, serverStatus, dropDatabase, createCollection, dropCollection"
	supportedBareKeywords      = "stats, dbstats, serverstatus, listdatabases, listcollections, dropdatabase, createcollection <name>, dropcollection <name>"
)

// CommandParser 命令解析器。
// 解析优先级：严格 JSON 文档 > db. 前缀的 shell 语法 > 裸关键字。
// Parse 是全函数：任何输入都返回一个变体，解析失败返回 Unrecognized。
type CommandParser struct {
	findLimit int64
}

// NewCommandParser 创建命令解析器
func NewCommandParser() *CommandParser {
	return &CommandParser{findLimit: DefaultFindLimit}
}

// NewCommandParserWithLimit 创建指定 find 缺省条数的命令解析器
func NewCommandParserWithLimit(limit int64) *CommandParser {
	if limit <= 0 {
		limit = DefaultFindLimit
	}
	return &CommandParser{findLimit: limit}
}

// Parse 将命令文本解析为类型化意图。
// 合法 JSON 文档优先胜出：即使文本碰巧同时符合 shell 语法，
// 也按结构化命令处理。
func (p *CommandParser) Parse(text string) ParsedCommand {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &Unrecognized{Reason: "empty command; expected a JSON document, db.<collection>.<method>(...), db.<method>(...), or one of: " + supportedBareKeywords}
	}

	if doc, ok := parseJSONObject(trimmed); ok {
		return &RawCommand{Document: doc}
	}

	if len(trimmed) > len(scopeMarker) && strings.EqualFold(trimmed[:len(scopeMarker)], scopeMarker) {
		return p.parseScoped(trimmed[len(scopeMarker):])
	}

	return p.parseBareKeyword(trimmed)
}

// parseScoped 解析 db. 之后的部分：
// db.<collection>.<method>(args) 为集合动作，db.<method>(args) 为管理动作
func (p *CommandParser) parseScoped(rest string) ParsedCommand {
	ident, after := readIdentifier(rest)
	if ident == "" {
		return &Unrecognized{Reason: "expected an identifier after \"db.\"; supported database methods: " + supportedAdminMethods}
	}

	switch {
	case strings.HasPrefix(after, "."):
		method, afterMethod := readIdentifier(after[1:])
		if method == "" {
			return &Unrecognized{Reason: fmt.Sprintf("expected a method after \"db.%s.\"; supported collection methods: %s", ident, supportedCollectionMethods)}
		}
		args, chain, ok := readParenGroup(afterMethod)
		if !ok {
			return &Unrecognized{Reason: fmt.Sprintf("method %q must be called with balanced parentheses, e.g. db.%s.%s({...})", method, ident, method)}
		}
		return p.parseCollectionMethod(ident, method, args, chain)
	case after == "" || strings.HasPrefix(after, "("):
		args, _, _ := readParenGroup(after)
		return p.parseAdminMethod(ident, args)
	default:
		return &Unrecognized{Reason: fmt.Sprintf("unrecognized syntax after \"db.%s\"; supported database methods: %s", ident, supportedAdminMethods)}
	}
}

// parseCollectionMethod 按固定方法表解析集合动作。
// find/findOne/countDocuments 的 filter、aggregate 的 pipeline 与
// createIndex 的索引定义均为宽松解析：内嵌 JSON 损坏时静默退化为空，
// 不作为解析错误处理。
func (p *CommandParser) parseCollectionMethod(collection, method, args, chain string) ParsedCommand {
	switch strings.ToLower(method) {
	case "find":
		return &CollectionAction{
			Collection: collection,
			Kind:       CollectionFind,
			Filter:     lenientObject(args),
			Limit:      extractChainedLimit(chain, p.findLimit),
		}
	case "findone":
		return &CollectionAction{Collection: collection, Kind: CollectionFindOne, Filter: lenientObject(args)}
	case "countdocuments":
		return &CollectionAction{Collection: collection, Kind: CollectionCount, Filter: lenientObject(args)}
	case "aggregate":
		return &CollectionAction{Collection: collection, Kind: CollectionAggregate, Pipeline: lenientArray(args)}
	case "createindex":
		return &CollectionAction{Collection: collection, Kind: CollectionCreateIndex, IndexSpec: lenientObject(args)}
	case "drop":
		return &CollectionAction{Collection: collection, Kind: CollectionDrop}
	default:
		return &Unrecognized{Reason: fmt.Sprintf("unsupported collection method %q; supported collection methods: %s", method, supportedCollectionMethods)}
	}
}

// parseAdminMethod 按固定方法表解析管理动作。
// adminCommand/runCommand 是原样透传命令，参数损坏时静默缺省会产生误导，
// 因此这里比集合方法更严格：参数缺失或非法直接判定为 Unrecognized。
func (p *CommandParser) parseAdminMethod(method, args string) ParsedCommand {
	switch strings.ToLower(method) {
	case "admincommand", "runcommand":
		doc, ok := parseJSONObject(strings.TrimSpace(args))
		if !ok {
			return &Unrecognized{Reason: fmt.Sprintf("%s requires a JSON object argument, e.g. db.%s({\"ping\": 1})", method, method)}
		}
		kind := AdminRunCommand
		if strings.EqualFold(method, "adminCommand") {
			kind = AdminCommand
		}
		return &AdminAction{Kind: kind, Command: doc}
	case "listdatabases":
		return &AdminAction{Kind: AdminListDatabases}
	case "listcollections":
		return &AdminAction{Kind: AdminListCollections}
	case "stats":
		return &AdminAction{Kind: AdminStats}
	case "serverstatus":
		return &AdminAction{Kind: AdminServerStatus}
	case "dropdatabase":
		return &AdminAction{Kind: AdminDropDatabase}
	case "createcollection", "dropcollection":
		name, ok := parseQuotedString(args)
		if !ok {
			return &Unrecognized{Reason: fmt.Sprintf("%s requires a quoted collection name, e.g. db.%s(\"orders\")", method, method)}
		}
		kind := AdminCreateCollection
		if strings.EqualFold(method, "dropCollection") {
			kind = AdminDropCollection
		}
		return &AdminAction{Kind: kind, Name: name}
	default:
		return &Unrecognized{Reason: fmt.Sprintf("unsupported database method %q; supported database methods: %s", method, supportedAdminMethods)}
	}
}

// parseBareKeyword 解析不带作用域前缀的裸关键字命令（大小写不敏感）
func (p *CommandParser) parseBareKeyword(text string) ParsedCommand {
	fields := strings.Fields(text)
	switch strings.ToLower(fields[0]) {
	case "stats", "dbstats":
		if len(fields) == 1 {
			return &AdminAction{Kind: AdminStats}
		}
	case "serverstatus":
		if len(fields) == 1 {
			return &AdminAction{Kind: AdminServerStatus}
		}
	case "listdatabases":
		if len(fields) == 1 {
			return &AdminAction{Kind: AdminListDatabases}
		}
	case "listcollections":
		if len(fields) == 1 {
			return &AdminAction{Kind: AdminListCollections}
		}
	case "dropdatabase":
		if len(fields) == 1 {
			return &AdminAction{Kind: AdminDropDatabase}
		}
	case "createcollection":
		if len(fields) == 2 && isIdentifier(fields[1]) {
			return &AdminAction{Kind: AdminCreateCollection, Name: fields[1]}
		}
	case "dropcollection":
		if len(fields) == 2 && isIdentifier(fields[1]) {
			return &AdminAction{Kind: AdminDropCollection, Name: fields[1]}
		}
	}
	return &Unrecognized{Reason: fmt.Sprintf("unrecognized command %q; expected a JSON document, db.<collection>.<method>(...), db.<method>(...), or one of: %s", text, supportedBareKeywords)}
}

// parseJSONObject 严格解析：整段文本必须是一个合法 JSON 对象
func parseJSONObject(text string) (map[string]interface{}, bool) {
	if !strings.HasPrefix(text, "{") {
		return nil, false
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, false
	}
	return doc, true
}

// lenientObject 宽松解析：损坏的 JSON 退化为空文档
func lenientObject(args string) map[string]interface{} {
	if doc, ok := parseJSONObject(strings.TrimSpace(args)); ok {
		return doc
	}
	return map[string]interface{}{}
}

// lenientArray 宽松解析：损坏的 JSON 退化为空数组
func lenientArray(args string) []interface{} {
	trimmed := strings.TrimSpace(args)
	if strings.HasPrefix(trimmed, "[") {
		var pipeline []interface{}
		if err := json.Unmarshal([]byte(trimmed), &pipeline); err == nil && pipeline != nil {
			return pipeline
		}
	}
	return []interface{}{}
}

// readIdentifier 读取开头的标识符，返回标识符与剩余文本
func readIdentifier(text string) (string, string) {
	i := 0
	for i < len(text) && isIdentifierByte(text[i], i == 0) {
		i++
	}
	return text[:i], text[i:]
}

func isIdentifierByte(b byte, first bool) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b == '_', b == '$':
		return true
	case b >= '0' && b <= '9':
		return !first
	default:
		return false
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentifierByte(s[i], i == 0) {
			return false
		}
	}
	return true
}

// readParenGroup 提取一对平衡括号内的文本。
// 引号内的括号不计入深度，支持反斜杠转义。
// 返回括号内文本、右括号之后的剩余文本，以及是否成功。
func readParenGroup(text string) (string, string, bool) {
	if !strings.HasPrefix(text, "(") {
		return "", "", false
	}
	depth := 0
	var quote byte
	for i := 0; i < len(text); i++ {
		b := text[i]
		if quote != 0 {
			if b == '\\' {
				i++
				continue
			}
			if b == quote {
				quote = 0
			}
			continue
		}
		switch b {
		case '"', '\'':
			quote = b
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return text[1:i], text[i+1:], true
			}
		}
	}
	return "", "", false
}

// extractChainedLimit 提取链式 .limit(N) 后缀，缺失或无法解析时返回缺省值
func extractChainedLimit(chain string, fallback int64) int64 {
	idx := strings.Index(strings.ToLower(chain), ".limit(")
	if idx < 0 {
		return fallback
	}
	rest := chain[idx+len(".limit("):]
	end := strings.IndexByte(rest, ')')
	if end < 0 {
		return fallback
	}
	n, err := strconv.ParseInt(strings.TrimSpace(rest[:end]), 10, 64)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// parseQuotedString 解析单个带引号的字符串参数
func parseQuotedString(args string) (string, bool) {
	trimmed := strings.TrimSpace(args)
	if len(trimmed) < 2 {
		return "", false
	}
	quote := trimmed[0]
	if quote != '"' && quote != '\'' {
		return "", false
	}
	if trimmed[len(trimmed)-1] != quote {
		return "", false
	}
	inner := trimmed[1 : len(trimmed)-1]
	if inner == "" || strings.IndexByte(inner, quote) >= 0 {
		return "", false
	}
	return inner, true
}
