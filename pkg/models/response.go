package models

import (
	"bytes"
	"fmt"
	"io"
)

// Response 是一次命令执行结果的快照
// 构造时就把三个流全部读完，之后内容不再变化
type Response struct {
	Target   fmt.Stringer
	Stdin    []byte
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// NewResponse 立即读空给定的流，nil 流视为空
func NewResponse(target fmt.Stringer, stdin, stdout, stderr io.Reader) (*Response, error) {
	r := &Response{Target: target}
	var err error
	if r.Stdin, err = drain(stdin); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	if r.Stdout, err = drain(stdout); err != nil {
		return nil, fmt.Errorf("read stdout: %w", err)
	}
	if r.Stderr, err = drain(stderr); err != nil {
		return nil, fmt.Errorf("read stderr: %w", err)
	}
	return r, nil
}

// NewBytesResponse 直接用已经读好的数据构造 Response
func NewBytesResponse(target fmt.Stringer, stdin, stdout, stderr []byte) *Response {
	r, _ := NewResponse(target, bytes.NewReader(stdin), bytes.NewReader(stdout), bytes.NewReader(stderr))
	return r
}

func drain(r io.Reader) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	data, err := io.ReadAll(r)
	if data == nil {
		data = []byte{}
	}
	return data, err
}

// Host 返回执行目标的名称，没有目标时为空
func (r *Response) Host() string {
	if r.Target == nil {
		return ""
	}
	return r.Target.String()
}

// String 把标准输出解码为文本
func (r *Response) String() string {
	return string(r.Stdout)
}

func (r *Response) Success() bool {
	return r.ExitCode == 0
}
