package ssh

import (
	"context"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// Dialer 定义网络连接行为的接口
// 默认使用 net.Dialer 直连
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// Config 描述建立一条 SSH 连接需要的全部信息
type Config struct {
	Host       string
	Port       int
	User       string
	Password   string
	KeyFile    string // 私钥路径，文件不存在时忽略
	Passphrase string
	Timeout    time.Duration

	// 主机密钥策略
	KnownHostsFile string
	AutoAddHostKey bool

	// KeepAlive 大于 0 时定期发送心跳
	KeepAlive time.Duration

	Dialer Dialer
	// Modifiers 在拨号前按顺序作用于 ssh.ClientConfig，用于透传底层参数
	Modifiers []func(*ssh.ClientConfig)
}
