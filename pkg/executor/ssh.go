package executor

import (
	"context"

	"github.com/wentf9/flowlight/pkg/models"
	"github.com/wentf9/flowlight/pkg/ssh"
)

// SSHExecutor 包装 ssh.Client 以满足 Executor 接口
type SSHExecutor struct {
	client *ssh.Client
}

func NewSSHExecutor(client *ssh.Client) *SSHExecutor {
	return &SSHExecutor{client: client}
}

func (e *SSHExecutor) Exec(ctx context.Context, cmd models.Command) (*models.Response, error) {
	ctx, cancel := withTimeout(ctx, cmd)
	defer cancel()

	out, err := e.client.Exec(ctx, cmd.Cmd(), cmd.Env())
	if out == nil {
		return nil, err
	}
	resp := models.NewBytesResponse(nil, nil, out.Stdout, out.Stderr)
	resp.ExitCode = out.ExitCode
	return resp, err
}

// ExecStream 按块读取远程输出，读到 EOF 后一次性返回
func (e *SSHExecutor) ExecStream(cmd models.Command, chunkSize int) (*models.Response, error) {
	out, err := e.client.Stream(cmd.Cmd(), chunkSize)
	if out == nil {
		return nil, err
	}
	resp := models.NewBytesResponse(nil, nil, out.Stdout, out.Stderr)
	resp.ExitCode = out.ExitCode
	return resp, err
}

// Client 暴露底层连接 (供 SFTP 使用)
func (e *SSHExecutor) Client() *ssh.Client {
	return e.client
}

func (e *SSHExecutor) Close() error {
	return e.client.Close()
}
