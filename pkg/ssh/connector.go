package ssh

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/wentf9/flowlight/pkg/logger"
	"golang.org/x/crypto/ssh"
)

const defaultDialTimeout = 10 * time.Second

// Dial 根据 Config 建立 SSH 连接
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	sshConfig, err := BuildClientConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build ssh config for '%s': %w", cfg.Host, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	var dialer Dialer = &net.Dialer{Timeout: timeout}
	if cfg.Dialer != nil {
		dialer = cfg.Dialer
	}

	targetAddr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := dialer.DialContext(dialCtx, "tcp", targetAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial target '%s': %w", targetAddr, err)
	}

	// 握手阶段同样受超时约束
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set deadline for '%s': %w", targetAddr, err)
	}
	ncc, chans, reqs, err := ssh.NewClientConn(conn, targetAddr, sshConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake failed for '%s': %w", targetAddr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	client := NewClient(ssh.NewClient(ncc, chans, reqs), targetAddr)
	if cfg.KeepAlive > 0 {
		StartKeepAlive(client.sshClient, cfg.KeepAlive, client.done, func(err error) {
			logger.Logger.Warn("keepalive failed, connection closed", "addr", targetAddr, "error", err)
		})
	}
	logger.Logger.Debug("ssh connected", "addr", targetAddr, "user", cfg.User)
	return client, nil
}

// BuildClientConfig 根据 Config 构建 ssh.ClientConfig
func BuildClientConfig(cfg Config) (*ssh.ClientConfig, error) {
	auth := authMethods(cfg)
	if len(auth) == 0 {
		return nil, fmt.Errorf("no usable auth method: neither password nor private key available")
	}
	policy, err := NewHostKeyPolicy(cfg.KnownHostsFile, cfg.AutoAddHostKey)
	if err != nil {
		return nil, err
	}
	sshConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: policy.Callback(),
		Timeout:         cfg.Timeout,
		BannerCallback:  func(message string) error { return nil }, // 忽略 banner
	}
	for _, modify := range cfg.Modifiers {
		if modify != nil {
			modify(sshConfig)
		}
	}
	return sshConfig, nil
}
