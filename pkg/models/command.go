package models

import (
	"maps"
	"time"
)

const (
	// DefaultCommandTimeout 为 0 时命令没有总时限，只受调用方 ctx 约束
	DefaultCommandTimeout = time.Duration(0)
	// DefaultBufferSize 为 -1 时表示使用系统默认缓冲
	DefaultBufferSize = -1
)

// Command 描述一次 shell 调用，构造完成后不再修改
type Command struct {
	cmd        string
	bufferSize int
	timeout    time.Duration
	env        map[string]string
}

type CommandOption func(*Command)

// WithBufferSize 设置输出缓冲区大小的提示值，<=0 表示使用默认值
func WithBufferSize(size int) CommandOption {
	return func(c *Command) {
		c.bufferSize = size
	}
}

// WithCommandTimeout 设置命令执行超时，0 表示不限时
func WithCommandTimeout(d time.Duration) CommandOption {
	return func(c *Command) {
		c.timeout = d
	}
}

// WithEnv 追加环境变量，多次调用会合并
func WithEnv(env map[string]string) CommandOption {
	return func(c *Command) {
		if len(env) == 0 {
			return
		}
		if c.env == nil {
			c.env = make(map[string]string, len(env))
		}
		maps.Copy(c.env, env)
	}
}

func NewCommand(cmd string, opts ...CommandOption) Command {
	c := Command{
		cmd:        cmd,
		bufferSize: DefaultBufferSize,
		timeout:    DefaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c Command) Cmd() string            { return c.cmd }
func (c Command) BufferSize() int        { return c.bufferSize }
func (c Command) Timeout() time.Duration { return c.timeout }

// Env 返回环境变量的副本，调用方修改不会影响 Command 本身
func (c Command) Env() map[string]string {
	if c.env == nil {
		return nil
	}
	return maps.Clone(c.env)
}

func (c Command) String() string { return c.cmd }
