package models

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type host string

func (h host) String() string { return string(h) }

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestNewResponse_DrainsEagerly(t *testing.T) {
	stdout := bytes.NewBufferString("stdout")
	r, err := NewResponse(host("127.0.0.1"), bytes.NewBufferString("stdin"), stdout, bytes.NewBufferString("stderr"))
	require.NoError(t, err)

	assert.Equal(t, 0, stdout.Len(), "stdout should be consumed at construction")
	stdout.WriteString("late data")

	assert.Equal(t, "stdout", r.String())
	assert.Equal(t, []byte("stdin"), r.Stdin)
	assert.Equal(t, []byte("stderr"), r.Stderr)
	assert.Equal(t, "127.0.0.1", r.Host())
	assert.True(t, r.Success())
}

func TestNewResponse_RoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		[]byte("hi\n"),
		[]byte("multi\nline\noutput\n"),
		[]byte("中文输出\n"),
	}
	for _, p := range payloads {
		r, err := NewResponse(nil, nil, bytes.NewReader(p), nil)
		require.NoError(t, err)
		assert.Equal(t, p, []byte(r.String()))
	}
}

func TestNewResponse_NilStreams(t *testing.T) {
	r, err := NewResponse(nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, r.Stdin)
	assert.Empty(t, r.Stdout)
	assert.Empty(t, r.Stderr)
	assert.Equal(t, "", r.Host())
}

func TestNewResponse_ReadError(t *testing.T) {
	_, err := NewResponse(nil, nil, failingReader{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read stdout")
}

func TestNewCommand(t *testing.T) {
	c := NewCommand("echo hi")
	assert.Equal(t, "echo hi", c.Cmd())
	assert.Equal(t, DefaultBufferSize, c.BufferSize())
	assert.Zero(t, c.Timeout(), "no overall deadline unless set")
	assert.Nil(t, c.Env())

	c = NewCommand("env",
		WithBufferSize(4096),
		WithCommandTimeout(time.Minute),
		WithEnv(map[string]string{"A": "1"}),
		WithEnv(map[string]string{"B": "2"}),
	)
	assert.Equal(t, 4096, c.BufferSize())
	assert.Equal(t, time.Minute, c.Timeout())
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, c.Env())

	env := c.Env()
	env["A"] = "changed"
	assert.Equal(t, "1", c.Env()["A"], "Env must return a copy")
}
