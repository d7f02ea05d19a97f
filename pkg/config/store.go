package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/wentf9/flowlight/pkg/crypto"
	"github.com/wentf9/flowlight/pkg/models"
	"github.com/wentf9/flowlight/pkg/ssh"
	"github.com/wentf9/flowlight/pkg/utils/file"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath fleet 文件的默认位置
	DefaultPath = "~/.flowlight/fleet.yaml"
	// DefaultKeyPath 加密密码字段使用的密钥
	DefaultKeyPath = "~/.flowlight/fleet.key"
)

type Store interface {
	Load() (*Fleet, error)
	Save(f *Fleet) error
}

type fileStore struct {
	path    string
	keyPath string
}

type StoreOption func(*fileStore)

// WithKeyFile 保存时加密密码和私钥密码，读取时解密
func WithKeyFile(path string) StoreOption {
	return func(s *fileStore) {
		s.keyPath = ssh.ExpandHomeDir(path)
	}
}

func NewFileStore(path string, opts ...StoreOption) Store {
	if path == "" {
		path = DefaultPath
	}
	s := &fileStore{path: ssh.ExpandHomeDir(path)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *fileStore) sealer() (*crypto.Sealer, error) {
	if s.keyPath == "" {
		return nil, nil
	}
	key, err := crypto.LoadOrCreateKey(s.keyPath)
	if err != nil {
		return nil, err
	}
	return crypto.NewSealer(key)
}

// Load 读取并校验 fleet 文件，文件不存在时返回空的 Fleet
func (s *fileStore) Load() (*Fleet, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewFleet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fleet file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	sealer, err := s.sealer()
	if err != nil {
		return nil, err
	}
	if sealer == nil {
		return f, nil
	}
	return transform(f, sealer.Open)
}

// Save 写回文件，含密码等敏感字段，权限固定为 0600
func (s *fileStore) Save(f *Fleet) error {
	if err := f.Validate(); err != nil {
		return err
	}
	sealer, err := s.sealer()
	if err != nil {
		return err
	}
	if sealer != nil {
		if f, err = transform(f, sealer.Seal); err != nil {
			return err
		}
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode fleet: %w", err)
	}
	return file.CreateFileRecursive(s.path, data, 0600)
}

// Parse 解析 yaml 内容
func Parse(data []byte) (*Fleet, error) {
	f := NewFleet()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse fleet file: %w", err)
	}
	f.normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// transform 返回对所有密码字段应用 fn 后的副本，原 Fleet 不变
func transform(f *Fleet, fn func(string) (string, error)) (*Fleet, error) {
	identity := func(id *models.Identity) (err error) {
		if id.Password, err = fn(id.Password); err != nil {
			return err
		}
		id.Passphrase, err = fn(id.Passphrase)
		return err
	}

	out := NewFleet()
	out.Defaults = f.Defaults
	if err := identity(&out.Defaults.Identity); err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}
	for id, h := range f.Hosts.Snapshot() {
		if err := identity(&h.Identity); err != nil {
			return nil, fmt.Errorf("host %q: %w", id, err)
		}
		out.Hosts.Set(id, h)
	}
	for name, members := range f.Groups {
		out.Groups[name] = members
	}
	return out, nil
}
