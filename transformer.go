package mongodeck

import (
	"encoding/base64"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ResultTransformer 把驱动返回的 BSON 值递归转换为可被
// encoding/json 序列化的结构：ObjectID 转十六进制字符串、
// 时间转 RFC 3339、二进制转 base64。无状态，可并发使用。
type ResultTransformer struct{}

// NewResultTransformer 创建结果转换器
func NewResultTransformer() *ResultTransformer {
	return &ResultTransformer{}
}

// Transform 递归转换任意 BSON 值
func (t *ResultTransformer) Transform(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	case primitive.Timestamp:
		return map[string]interface{}{"t": v.T, "i": v.I}
	case primitive.Decimal128:
		return v.String()
	case primitive.Binary:
		return base64.StdEncoding.EncodeToString(v.Data)
	case primitive.Regex:
		return map[string]interface{}{"pattern": v.Pattern, "options": v.Options}
	case primitive.Null:
		return nil
	case primitive.Undefined:
		return nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case bson.D:
		doc := make(map[string]interface{}, len(v))
		for _, elem := range v {
			doc[elem.Key] = t.Transform(elem.Value)
		}
		return doc
	case bson.M:
		return t.transformMap(map[string]interface{}(v))
	case map[string]interface{}:
		return t.transformMap(v)
	case bson.A:
		return t.transformSlice([]interface{}(v))
	case []interface{}:
		return t.transformSlice(v)
	case []map[string]interface{}:
		docs := make([]interface{}, len(v))
		for i, doc := range v {
			docs[i] = t.transformMap(doc)
		}
		return docs
	default:
		return value
	}
}

func (t *ResultTransformer) transformMap(doc map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for key, value := range doc {
		out[key] = t.Transform(value)
	}
	return out
}

func (t *ResultTransformer) transformSlice(values []interface{}) []interface{} {
	out := make([]interface{}, len(values))
	for i, value := range values {
		out[i] = t.Transform(value)
	}
	return out
}
