package ssh

import (
	"errors"
	"fmt"
	"os"

	"github.com/wentf9/flowlight/pkg/logger"
	"golang.org/x/crypto/ssh"
)

// AuthMethod 定义获取 SSH 认证方法的接口
type AuthMethod interface {
	GetMethod() (ssh.AuthMethod, error)
}

// PasswordAuth 实现密码认证
type PasswordAuth struct {
	Password string
}

func (p *PasswordAuth) GetMethod() (ssh.AuthMethod, error) {
	return ssh.Password(p.Password), nil
}

// KeyAuth 实现私钥认证
type KeyAuth struct {
	Path       string
	Passphrase string
}

func (k *KeyAuth) GetMethod() (ssh.AuthMethod, error) {
	keyData, err := os.ReadFile(k.Path)
	if err != nil {
		return nil, err
	}
	var signer ssh.Signer
	if k.Passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(k.Passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyData)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %s: %w", k.Path, err)
	}
	return ssh.PublicKeys(signer), nil
}

// authMethods 按 私钥 -> 密码 的顺序组装认证方式
// 私钥文件只有在存在时才会使用，解析失败只记录日志
func authMethods(cfg Config) []ssh.AuthMethod {
	var providers []AuthMethod
	if cfg.KeyFile != "" {
		path := ExpandHomeDir(cfg.KeyFile)
		if _, err := os.Stat(path); err == nil {
			providers = append(providers, &KeyAuth{Path: path, Passphrase: cfg.Passphrase})
		} else if !errors.Is(err, os.ErrNotExist) {
			logger.Logger.Debug("skip private key", "path", path, "error", err)
		}
	}
	if cfg.Password != "" {
		providers = append(providers, &PasswordAuth{Password: cfg.Password})
	}

	methods := make([]ssh.AuthMethod, 0, len(providers))
	for _, p := range providers {
		m, err := p.GetMethod()
		if err != nil {
			logger.Logger.Warn("ignore unusable auth method", "host", cfg.Host, "error", err)
			continue
		}
		methods = append(methods, m)
	}
	return methods
}

// ExpandHomeDir 展开路径开头的 ~
func ExpandHomeDir(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return home + path[1:]
		}
	}
	return path
}
