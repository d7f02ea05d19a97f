package executor

import (
	"context"
	"errors"

	"github.com/wentf9/flowlight/pkg/models"
)

// ErrStreamUnsupported 执行器不支持流式读取时返回
var ErrStreamUnsupported = errors.New("streaming execution is only supported on remote connections")

// Executor 执行命令的策略，本地子进程或远程 SSH session
// 返回的 Response 不带 Target，由调用方补上
type Executor interface {
	Exec(ctx context.Context, cmd models.Command) (*models.Response, error)
	Close() error
}

// Streamer 由支持分块读取的执行器实现
type Streamer interface {
	ExecStream(cmd models.Command, chunkSize int) (*models.Response, error)
}

// Stream 执行器实现了 Streamer 时按块读取，否则返回 ErrStreamUnsupported
func Stream(e Executor, cmd models.Command, chunkSize int) (*models.Response, error) {
	s, ok := e.(Streamer)
	if !ok {
		return nil, ErrStreamUnsupported
	}
	return s.ExecStream(cmd, chunkSize)
}

// withTimeout 为命令附加超时，<=0 时不限时
func withTimeout(ctx context.Context, cmd models.Command) (context.Context, context.CancelFunc) {
	if cmd.Timeout() > 0 {
		return context.WithTimeout(ctx, cmd.Timeout())
	}
	return context.WithCancel(ctx)
}
