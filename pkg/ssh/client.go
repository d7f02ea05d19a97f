package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/wentf9/flowlight/pkg/logger"
	"golang.org/x/crypto/ssh"
)

// DefaultChunkSize 流式读取时单次读取的最大字节数
const DefaultChunkSize = 1024

type Client struct {
	sshClient *ssh.Client
	addr      string

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(raw *ssh.Client, addr string) *Client {
	return &Client{
		sshClient: raw,
		addr:      addr,
		done:      make(chan struct{}),
	}
}

// Close 关闭连接，可重复调用
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.sshClient.Close()
	})
	return err
}

// SSHClient 暴露底层的 ssh.Client (供 SFTP 等高级操作使用)
func (c *Client) SSHClient() *ssh.Client {
	return c.sshClient
}

func (c *Client) Addr() string {
	return c.addr
}

// Output 保存一次远程执行捕获到的输出
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Exec 在新的 session 中执行命令，非 0 退出码不视为错误
func (c *Client) Exec(ctx context.Context, cmd string, env map[string]string) (*Output, error) {
	session, err := c.sshClient.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open session on %s: %w", c.addr, err)
	}
	defer session.Close()

	setEnv(session, env, c.addr)

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	code, err := startWithTimeout(ctx, session, cmd)
	if err != nil && ctx.Err() != nil {
		// 被中断时输出缓冲可能仍在被写入
		return nil, err
	}
	return &Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), ExitCode: code}, err
}

// Stream 在独立的 session 中执行命令，由单独的协程按块阻塞读取标准输出，
// 读到 EOF 后才返回完整数据；中途没有部分结果，也不能取消
func (c *Client) Stream(cmd string, chunkSize int) (*Output, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	session, err := c.sshClient.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open session on %s: %w", c.addr, err)
	}
	defer session.Close()

	stdout, err := session.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := session.Start(cmd); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(chunks)
		buf := make([]byte, chunkSize)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				chunks <- chunk
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	var data []byte
	for chunk := range chunks {
		data = append(data, chunk...)
	}
	select {
	case err := <-readErr:
		return &Output{Stdout: data, ExitCode: -1}, fmt.Errorf("read output from %s: %w", c.addr, err)
	default:
	}

	code, err := exitCode(session.Wait())
	return &Output{Stdout: data, Stderr: []byte{}, ExitCode: code}, err
}

// setEnv 多数 sshd 默认只接受 AcceptEnv 中列出的变量，被拒绝的只记录日志
func setEnv(session *ssh.Session, env map[string]string, addr string) {
	for k, v := range env {
		if err := session.Setenv(k, v); err != nil {
			logger.Logger.Warn("remote rejected environment variable", "addr", addr, "name", k, "error", err)
		}
	}
}

func startWithTimeout(ctx context.Context, session *ssh.Session, command string) (int, error) {
	if err := session.Start(command); err != nil {
		return -1, fmt.Errorf("failed to start command: %w", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return exitCode(err)
	case <-ctx.Done():
		// 上下文取消，尝试终止远程命令
		if killErr := session.Signal(ssh.SIGKILL); killErr != nil {
			logger.Logger.Debug("failed to kill remote command", "error", killErr)
		}
		session.Close()
		return -1, fmt.Errorf("command interrupted: %w", ctx.Err())
	}
}

// exitCode 把 session.Wait 的结果转换为退出码，只有非退出类错误才返回 error
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	return -1, fmt.Errorf("failed to run command: %w", err)
}
