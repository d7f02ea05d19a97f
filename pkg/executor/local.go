package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/wentf9/flowlight/pkg/logger"
	"github.com/wentf9/flowlight/pkg/models"
)

const waitDelay = 500 * time.Millisecond

// LocalExecutor 本地执行器
type LocalExecutor struct {
	shell string
}

func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{shell: "sh"}
}

// Exec 通过 sh -c 执行以支持复杂的 shell 语法，标准错误并入标准输出
func (e *LocalExecutor) Exec(ctx context.Context, cmd models.Command) (*models.Response, error) {
	ctx, cancel := withTimeout(ctx, cmd)
	defer cancel()

	c := exec.CommandContext(ctx, e.shell, "-c", cmd.Cmd())
	c.Env = mergeEnv(os.Environ(), cmd.Env())
	// 子进程可能继承输出管道，超时后不再等待它们
	c.WaitDelay = waitDelay

	var out bytes.Buffer
	if size := cmd.BufferSize(); size > 0 {
		out.Grow(size)
	}
	c.Stdout = &out
	c.Stderr = &out

	code := 0
	if err := c.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || ctx.Err() != nil {
			return nil, fmt.Errorf("command failed: %w", errors.Join(err, ctx.Err()))
		}
		code = exitErr.ExitCode()
	}
	logger.Logger.Debug("local command finished", "cmd", cmd.Cmd(), "exit_code", code)
	resp := models.NewBytesResponse(nil, nil, out.Bytes(), nil)
	resp.ExitCode = code
	return resp, nil
}

func (e *LocalExecutor) Close() error { return nil }

// mergeEnv 用 overrides 覆盖 base 中的同名变量
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	env := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		name := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			name = kv[:i]
		}
		if _, ok := overrides[name]; ok {
			continue
		}
		env = append(env, kv)
	}
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}
