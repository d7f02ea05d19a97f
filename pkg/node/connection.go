package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/wentf9/flowlight/pkg/executor"
	"github.com/wentf9/flowlight/pkg/logger"
	"github.com/wentf9/flowlight/pkg/models"
	"github.com/wentf9/flowlight/pkg/sftp"
	"github.com/wentf9/flowlight/pkg/ssh"
)

// Connection 属于唯一的 Machine
// 第一次执行时才建立连接，建立时根据解析出的地址选择本地或远程执行器，
// 之后不再改变，直到 Close
type Connection struct {
	host string
	opts Options

	mu        sync.Mutex
	ip        net.IP
	exec      executor.Executor
	connected bool
}

func NewConnection(host string, opts Options) *Connection {
	return &Connection{host: host, opts: opts}
}

// Connect 解析地址并建立连接，已连接时直接返回
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.connectLocked(ctx)
	return err
}

func (c *Connection) connectLocked(ctx context.Context) (executor.Executor, error) {
	if c.connected {
		return c.exec, nil
	}
	ip, err := resolve(ctx, c.host)
	if err != nil {
		return nil, &ConnectionError{Host: c.host, Op: "resolve", Err: err}
	}

	var e executor.Executor
	if ip.IsLoopback() && c.opts.LocalShortcut {
		e = executor.NewLocalExecutor()
		logger.Logger.Debug("using local executor", "host", c.host, "ip", ip)
	} else {
		client, err := ssh.Dial(ctx, c.sshConfig(ip))
		if err != nil {
			return nil, &ConnectionError{Host: c.host, Op: "connect", Err: err}
		}
		e = executor.NewSSHExecutor(client)
	}
	c.ip = ip
	c.exec = e
	c.connected = true
	return e, nil
}

func (c *Connection) sshConfig(ip net.IP) ssh.Config {
	return ssh.Config{
		Host:           ip.String(),
		Port:           c.opts.Port,
		User:           c.opts.Username,
		Password:       c.opts.Password,
		KeyFile:        c.opts.KeyFile,
		Passphrase:     c.opts.Passphrase,
		Timeout:        c.opts.Timeout,
		KnownHostsFile: c.opts.KnownHostsFile,
		AutoAddHostKey: c.opts.AutoAddHostPolicy,
		KeepAlive:      c.opts.KeepAlive,
		Modifiers:      c.opts.ClientConfig,
	}
}

// ensureConnected 返回当前执行器，未连接时先连接
func (c *Connection) ensureConnected(ctx context.Context) (executor.Executor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

// Exec 同步执行命令，非 0 退出码记录在 Response.ExitCode 中
func (c *Connection) Exec(ctx context.Context, cmd models.Command) (*models.Response, error) {
	e, err := c.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := e.Exec(ctx, cmd)
	if err != nil {
		return nil, &ConnectionError{Host: c.host, Op: "exec", Err: err}
	}
	return resp, nil
}

// ExecStream 在独立的 session 上分块读取输出，读完后返回唯一的 Response
// 只支持远程连接，读取开始后不可取消，ctx 只作用于建立连接
func (c *Connection) ExecStream(ctx context.Context, cmd models.Command) (*models.Response, error) {
	e, err := c.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := executor.Stream(e, cmd, c.opts.ChunkSize)
	if errors.Is(err, ErrStreamUnsupported) {
		return nil, err
	}
	if err != nil {
		return nil, &ConnectionError{Host: c.host, Op: "stream", Err: err}
	}
	return resp, nil
}

// SFTP 在远程连接上打开 sftp 客户端，调用方负责关闭
func (c *Connection) SFTP(ctx context.Context, opts ...sftp.Option) (*sftp.Client, error) {
	e, err := c.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}
	remote, ok := e.(*executor.SSHExecutor)
	if !ok {
		return nil, ErrRemoteOnly
	}
	client, err := sftp.NewClient(remote.Client(), opts...)
	if err != nil {
		return nil, &ConnectionError{Host: c.host, Op: "sftp", Err: err}
	}
	return client, nil
}

// Close 关闭连接，之后再次执行会重新连接
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	err := c.exec.Close()
	c.exec = nil
	c.connected = false
	logger.Logger.Debug("connection closed", "host", c.host)
	return err
}

func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// IsLocal 连接已建立且使用本地执行器
func (c *Connection) IsLocal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.exec.(*executor.LocalExecutor)
	return ok
}

// IP 返回建立连接时解析出的地址，未连接时为 nil
func (c *Connection) IP() net.IP {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ip
}

func (c *Connection) Options() Options { return c.opts }

func (c *Connection) String() string {
	return fmt.Sprintf("%s@%s:%d", c.opts.Username, c.host, c.opts.Port)
}

// resolve 优先返回 IPv4 地址
func resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no address found for %s", host)
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return addrs[0].IP, nil
}
