package node

import (
	"context"
	"sync"

	"github.com/wentf9/flowlight/pkg/logger"
	"github.com/wentf9/flowlight/pkg/models"
	"github.com/wentf9/flowlight/pkg/sftp"
	"github.com/wentf9/flowlight/pkg/task"
)

var _ Node = (*Machine)(nil)

// Machine 是绑定了至多一个 Connection 的叶子节点
type Machine struct {
	name string
	host string

	mu   sync.Mutex
	conn *Connection
}

// NewMachine 创建 Machine
// 传入了任意连接选项时同时创建连接，WithConnect(true) 时立即建立；
// 只有立即建立失败时才返回错误
func NewMachine(host string, opts ...Option) (*Machine, error) {
	o := newOptions(opts...)
	m := &Machine{name: o.Name, host: host}
	if m.name == "" {
		m.name = host
	}
	if o.configured {
		if err := m.setConnection(o); err != nil {
			return m, err
		}
	}
	return m, nil
}

func (m *Machine) Name() string { return m.name }
func (m *Machine) Host() string { return m.host }

// String 返回 host，Response.Target 通过它显示执行目标
func (m *Machine) String() string { return m.host }

func (m *Machine) Machines() []*Machine { return []*Machine{m} }

// SetConnection 重建连接，已有的连接会被关闭
func (m *Machine) SetConnection(opts ...Option) error {
	return m.setConnection(newOptions(opts...))
}

func (m *Machine) setConnection(o Options) error {
	conn := NewConnection(m.host, o)
	m.mu.Lock()
	old := m.conn
	m.conn = conn
	m.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			logger.Logger.Warn("close previous connection failed", "host", m.host, "error", err)
		}
	}
	if o.Connect {
		timeout := o.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return conn.Connect(ctx)
	}
	return nil
}

// Connection 返回当前连接，未设置时为 nil
func (m *Machine) Connection() *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

func (m *Machine) connection() (*Connection, error) {
	conn := m.Connection()
	if conn == nil {
		return nil, ErrNoConnection
	}
	return conn, nil
}

// command 构造命令，连接超时只作用于建立连接，不作为命令的执行时限
func (m *Machine) command(cmd string, opts []models.CommandOption) models.Command {
	return models.NewCommand(cmd, opts...)
}

// Exec 同步执行命令
func (m *Machine) Exec(ctx context.Context, cmd string, opts ...models.CommandOption) (*models.Response, error) {
	conn, err := m.connection()
	if err != nil {
		return nil, err
	}
	resp, err := conn.Exec(ctx, m.command(cmd, opts))
	if err != nil {
		return nil, err
	}
	resp.Target = m
	return resp, nil
}

func (m *Machine) Run(ctx context.Context, cmd string, opts ...models.CommandOption) ([]*models.Response, error) {
	resp, err := m.Exec(ctx, cmd, opts...)
	if err != nil {
		return nil, err
	}
	return []*models.Response{resp}, nil
}

// AsyncResult 是 RunAsync 的结果
type AsyncResult struct {
	Response *models.Response
	Err      error
}

// RunAsync 在后台以流式读取执行命令，结果写入返回的通道后通道关闭
// 没有设置连接时通道中的结果为 ErrNoConnection
func (m *Machine) RunAsync(cmd string, opts ...models.CommandOption) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	conn, err := m.connection()
	if err != nil {
		ch <- AsyncResult{Err: err}
		close(ch)
		return ch
	}
	command := m.command(cmd, opts)
	go func() {
		defer close(ch)
		resp, err := conn.ExecStream(context.Background(), command)
		if resp != nil {
			resp.Target = m
		}
		ch <- AsyncResult{Response: resp, Err: err}
	}()
	return ch
}

func (m *Machine) RunTask(t *task.Task, args ...any) (task.Result, error) {
	return runTask(m, t, args)
}

// Upload 通过 sftp 上传文件或目录
func (m *Machine) Upload(ctx context.Context, localPath, remotePath string, progress sftp.ProgressFunc, opts ...sftp.Option) error {
	conn, err := m.connection()
	if err != nil {
		return err
	}
	client, err := conn.SFTP(ctx, opts...)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Upload(ctx, localPath, remotePath, progress)
}

// Download 通过 sftp 下载文件或目录
func (m *Machine) Download(ctx context.Context, remotePath, localPath string, progress sftp.ProgressFunc, opts ...sftp.Option) error {
	conn, err := m.connection()
	if err != nil {
		return err
	}
	client, err := conn.SFTP(ctx, opts...)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Download(ctx, remotePath, localPath, progress)
}

// Close 关闭连接，没有连接时什么都不做
func (m *Machine) Close() error {
	if conn := m.Connection(); conn != nil {
		return conn.Close()
	}
	return nil
}
