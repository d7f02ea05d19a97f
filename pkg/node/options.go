package node

import (
	"time"

	"golang.org/x/crypto/ssh"
)

const (
	DefaultPort     = 22
	DefaultUsername = "root"
	DefaultKeyFile  = "~/.ssh/id_rsa"
	DefaultTimeout  = 5 * time.Second
)

// Options 是一个连接的全部配置
type Options struct {
	Name              string
	Port              int
	Username          string
	Password          string
	KeyFile           string
	Passphrase        string
	Timeout           time.Duration
	AutoAddHostPolicy bool
	Connect           bool
	KnownHostsFile    string
	KeepAlive         time.Duration
	// LocalShortcut 为 true 时回环地址走本地子进程
	LocalShortcut bool
	ChunkSize     int
	ClientConfig  []func(*ssh.ClientConfig)

	// 是否设置过任何连接相关的选项
	configured bool
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		Port:              DefaultPort,
		Username:          DefaultUsername,
		KeyFile:           DefaultKeyFile,
		Timeout:           DefaultTimeout,
		AutoAddHostPolicy: true,
		LocalShortcut:     true,
	}
}

func newOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func connOption(fn func(*Options)) Option {
	return func(o *Options) {
		fn(o)
		o.configured = true
	}
}

// WithName 设置 Machine 的名称，默认与 host 相同；不算作连接选项
func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

func WithPort(port int) Option {
	return connOption(func(o *Options) { o.Port = port })
}

func WithUsername(user string) Option {
	return connOption(func(o *Options) { o.Username = user })
}

func WithPassword(password string) Option {
	return connOption(func(o *Options) { o.Password = password })
}

// WithKeyFile 私钥路径，文件不存在时忽略
func WithKeyFile(path string) Option {
	return connOption(func(o *Options) { o.KeyFile = path })
}

func WithPassphrase(passphrase string) Option {
	return connOption(func(o *Options) { o.Passphrase = passphrase })
}

// WithTimeout 设置建立连接的超时，<=0 时使用 DefaultTimeout；命令没有默认时限
func WithTimeout(d time.Duration) Option {
	return connOption(func(o *Options) { o.Timeout = d })
}

// WithAutoAddHostPolicy 为 true 时自动信任未见过的主机密钥
func WithAutoAddHostPolicy(auto bool) Option {
	return connOption(func(o *Options) { o.AutoAddHostPolicy = auto })
}

// WithConnect 为 true 时在设置连接时立即建立，否则在第一次执行时建立
func WithConnect(eager bool) Option {
	return connOption(func(o *Options) { o.Connect = eager })
}

func WithKnownHostsFile(path string) Option {
	return connOption(func(o *Options) { o.KnownHostsFile = path })
}

// WithKeepAlive 按间隔发送 keepalive 请求，0 表示关闭
func WithKeepAlive(interval time.Duration) Option {
	return connOption(func(o *Options) { o.KeepAlive = interval })
}

// WithLocalShortcut 为 false 时回环地址也走 SSH
func WithLocalShortcut(enabled bool) Option {
	return connOption(func(o *Options) { o.LocalShortcut = enabled })
}

// WithChunkSize 流式读取时单次读取的字节数
func WithChunkSize(n int) Option {
	return connOption(func(o *Options) { o.ChunkSize = n })
}

// WithClientConfig 在拨号前修改底层 ssh.ClientConfig，可多次调用
func WithClientConfig(fn func(*ssh.ClientConfig)) Option {
	return connOption(func(o *Options) { o.ClientConfig = append(o.ClientConfig, fn) })
}
