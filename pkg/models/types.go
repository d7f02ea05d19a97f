package models

import "time"

// Identity 定义认证信息
type Identity struct {
	User       string `yaml:"user,omitempty"`
	Password   string `yaml:"password,omitempty"`
	KeyFile    string `yaml:"key_file,omitempty"`
	Passphrase string `yaml:"passphrase,omitempty"` // 私钥密码
}

// Profile 是一组连接参数，零值字段表示沿用上一层的配置
type Profile struct {
	Identity       `yaml:",inline"`
	Port           int           `yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	Timeout        time.Duration `yaml:"timeout,omitempty" validate:"min=0"`
	AutoAddHostKey *bool         `yaml:"auto_add_host_key,omitempty"`
	KnownHostsFile string        `yaml:"known_hosts,omitempty"`
	KeepAlive      time.Duration `yaml:"keepalive,omitempty" validate:"min=0"`
	LocalShortcut  *bool         `yaml:"local_shortcut,omitempty"`
	ChunkSize      int           `yaml:"chunk_size,omitempty" validate:"min=0"`
}

// Host 定义一台主机，Profile 中的字段覆盖 defaults
type Host struct {
	Address string   `yaml:"address" validate:"required,hostname_rfc1123|ip"` // IP 或 域名
	Alias   []string `yaml:"alias,omitempty" validate:"dive,required"`
	Profile `yaml:",inline"`
}
