package ssh

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/wentf9/flowlight/pkg/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ErrUnknownHostKey 在未开启自动信任且 known_hosts 中没有记录时返回
var ErrUnknownHostKey = errors.New("unknown host key")

// HostKeyPolicy 先查 known_hosts，已记录但不匹配的密钥一律拒绝；
// 没有记录的主机在 autoAdd 为 true 时被接受并记在内存中，后续连接按此校验
type HostKeyPolicy struct {
	checker ssh.HostKeyCallback
	autoAdd bool

	mu    sync.Mutex
	added map[string]ssh.PublicKey
}

// NewHostKeyPolicy 加载 known_hosts 文件，文件不存在时视为空
func NewHostKeyPolicy(knownHostsFile string, autoAdd bool) (*HostKeyPolicy, error) {
	p := &HostKeyPolicy{
		autoAdd: autoAdd,
		added:   make(map[string]ssh.PublicKey),
	}
	if knownHostsFile == "" {
		return p, nil
	}
	path := ExpandHomeDir(knownHostsFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return nil, fmt.Errorf("stat known_hosts %s: %w", path, err)
	}
	checker, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts %s: %w", path, err)
	}
	p.checker = checker
	return p, nil
}

// Callback 返回可以放进 ssh.ClientConfig 的回调
func (p *HostKeyPolicy) Callback() ssh.HostKeyCallback {
	return p.check
}

func (p *HostKeyPolicy) check(hostname string, remote net.Addr, key ssh.PublicKey) error {
	if p.checker != nil {
		err := p.checker(hostname, remote, key)
		if err == nil {
			return nil
		}
		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
			// 密钥变更或文件错误
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if seen, ok := p.added[hostname]; ok {
		if bytes.Equal(seen.Marshal(), key.Marshal()) {
			return nil
		}
		return fmt.Errorf("host key for %s changed since first seen", hostname)
	}
	if !p.autoAdd {
		return fmt.Errorf("%w for %s (%s)", ErrUnknownHostKey, hostname, ssh.FingerprintSHA256(key))
	}
	logger.Logger.Debug("auto add host key", "host", hostname, "fingerprint", ssh.FingerprintSHA256(key))
	p.added[hostname] = key
	return nil
}
