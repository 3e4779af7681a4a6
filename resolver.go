package mongodeck

import (
	"context"
	"strings"
)

// identityKey context 中连接标识的私有键类型
type identityKey struct{}

// WithConnectionIdentity 将连接标识写入 context，
// 由请求边界（HTTP 中间件等）调用
func WithConnectionIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// ConnectionIdentityFromContext 从 context 读取连接标识
func ConnectionIdentityFromContext(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(identityKey{}).(string)
	return identity, ok && identity != ""
}

// ConnectionResolver 连接解析器：把每次操作携带的连接标识
// 解析为注册表中的活跃连接。标识缺失立即失败，绝不回退到
// 进程级缺省连接。
type ConnectionResolver struct {
	registry *ConnectionRegistry
}

// NewConnectionResolver 创建连接解析器
func NewConnectionResolver(registry *ConnectionRegistry) *ConnectionResolver {
	return &ConnectionResolver{registry: registry}
}

// Resolve 按显式标识解析连接，标识为空返回 ErrMissingIdentity
func (cr *ConnectionResolver) Resolve(ctx context.Context, identity string) (*CachedConnection, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, ErrMissingIdentity
	}
	return cr.registry.GetOrCreate(ctx, identity)
}

// ResolveFromContext 从 context 中取标识并解析连接
func (cr *ConnectionResolver) ResolveFromContext(ctx context.Context) (*CachedConnection, error) {
	identity, ok := ConnectionIdentityFromContext(ctx)
	if !ok {
		return nil, ErrMissingIdentity
	}
	return cr.Resolve(ctx, identity)
}
