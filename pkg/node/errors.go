package node

import (
	"errors"
	"fmt"

	"github.com/wentf9/flowlight/pkg/executor"
)

var (
	// ErrNoConnection 在 Machine 没有设置连接却被要求执行命令时返回
	ErrNoConnection = errors.New("connection is not set")
	// ErrNotATask 在 RunTask 收到的不是一个有效任务时返回
	ErrNotATask = errors.New("need a task")
	// ErrStreamUnsupported 本地连接不支持流式读取
	ErrStreamUnsupported = executor.ErrStreamUnsupported
	// ErrRemoteOnly 本地连接上调用了只有远程连接才支持的操作
	ErrRemoteOnly = errors.New("operation requires a remote connection")
)

// ConnectionError 表示解析、连接或执行阶段的失败
type ConnectionError struct {
	Host string
	Op   string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
