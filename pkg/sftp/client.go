package sftp

import (
	"fmt"

	"github.com/pkg/sftp"
	"github.com/wentf9/flowlight/pkg/ssh"
)

type Option func(*Client)

func WithConcurrentFiles(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.config.ConcurrentFiles = n
		}
	}
}

func WithThreadsPerFile(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.config.ThreadsPerFile = n
		}
	}
}

func WithChunkSize(size int64) Option {
	return func(c *Client) {
		if size > 0 {
			c.config.ChunkSize = size
		}
	}
}

// Client 在已有的 SSH 连接上打开 sftp 子系统
// 关闭 Client 不会关闭底层 SSH 连接
type Client struct {
	sftpClient *sftp.Client
	config     TransferConfig
}

func NewClient(sshCli *ssh.Client, opts ...Option) (*Client, error) {
	client, err := sftp.NewClient(sshCli.SSHClient())
	if err != nil {
		return nil, fmt.Errorf("failed to create sftp subsystem on %s: %w", sshCli.Addr(), err)
	}
	c := &Client{
		sftpClient: client,
		config:     DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SFTPClient 返回底层的 *sftp.Client，用于 rename、chmod、stat 等操作
func (c *Client) SFTPClient() *sftp.Client {
	return c.sftpClient
}

func (c *Client) Config() TransferConfig {
	return c.config
}

func (c *Client) Close() error {
	return c.sftpClient.Close()
}

// JoinPath 拼接远程路径，sftp 协议固定使用 /
func (c *Client) JoinPath(elem ...string) string {
	return c.sftpClient.Join(elem...)
}
