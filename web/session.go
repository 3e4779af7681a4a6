package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound 会话不存在或已过期
var ErrSessionNotFound = errors.New("session not found")

// SessionStore 会话存储：令牌到连接串的映射。
// HTTP 层用不透明令牌替代在每个请求中回传连接串。
type SessionStore interface {
	Put(ctx context.Context, token, identity string) error
	Get(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}

// NewSessionToken 生成 256 位随机会话令牌
func NewSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// MemorySessionStore 进程内会话存储，单实例部署使用
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]string
}

// NewMemorySessionStore 创建进程内会话存储
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]string)}
}

// Put 写入会话
func (ms *MemorySessionStore) Put(ctx context.Context, token, identity string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.sessions[token] = identity
	return nil
}

// Get 读取会话
func (ms *MemorySessionStore) Get(ctx context.Context, token string) (string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	identity, ok := ms.sessions[token]
	if !ok {
		return "", ErrSessionNotFound
	}
	return identity, nil
}

// Delete 删除会话
func (ms *MemorySessionStore) Delete(ctx context.Context, token string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.sessions, token)
	return nil
}

// RedisSessionStore 基于 Redis 的会话存储，多实例部署共享会话
type RedisSessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSessionStore 创建 Redis 会话存储，ttl 非正时会话不过期
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		prefix: "mongodeck:session:",
		ttl:    ttl,
	}
}

// Put 写入会话
func (rs *RedisSessionStore) Put(ctx context.Context, token, identity string) error {
	return rs.client.Set(ctx, rs.prefix+token, identity, rs.ttl).Err()
}

// Get 读取会话，命中时按 TTL 续期
func (rs *RedisSessionStore) Get(ctx context.Context, token string) (string, error) {
	identity, err := rs.client.Get(ctx, rs.prefix+token).Result()
	if err == redis.Nil {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	if rs.ttl > 0 {
		rs.client.Expire(ctx, rs.prefix+token, rs.ttl)
	}
	return identity, nil
}

// Delete 删除会话
func (rs *RedisSessionStore) Delete(ctx context.Context, token string) error {
	return rs.client.Del(ctx, rs.prefix+token).Err()
}
