package mongodeck

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingIdentity 请求未携带连接标识
	ErrMissingIdentity = errors.New("missing connection identity")

	// ErrRegistryClosed 连接注册表已关闭
	ErrRegistryClosed = errors.New("connection registry closed")

	// ErrConnectionClosed 连接已关闭
	ErrConnectionClosed = errors.New("connection closed")
)

// ConnectionError 连接建立失败错误，包装底层握手错误。
// Error 文本不回显连接串，避免凭证泄露到日志或响应中。
type ConnectionError struct {
	Identity string
	Cause    error
}

// Error implements the error interface
func (ce *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed: %v", ce.Cause)
}

// Unwrap returns the underlying handshake error
func (ce *ConnectionError) Unwrap() error {
	return ce.Cause
}
