package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wentf9/flowlight/internal/sshtest"
	"github.com/wentf9/flowlight/pkg/models"
	"github.com/wentf9/flowlight/pkg/task"
)

// remoteOptions 让回环地址上的测试服务器也走 SSH
func remoteOptions(t *testing.T, srv *sshtest.Server, extra ...Option) []Option {
	opts := []Option{
		WithPort(srv.Port),
		WithUsername(sshtest.User),
		WithPassword(sshtest.Password),
		WithKeyFile(filepath.Join(t.TempDir(), "no_such_key")),
		WithLocalShortcut(false),
	}
	return append(opts, extra...)
}

func newRemoteMachine(t *testing.T, srv *sshtest.Server, extra ...Option) *Machine {
	t.Helper()
	m, err := NewMachine(srv.Host, remoteOptions(t, srv, extra...)...)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestMachine_LocalEcho(t *testing.T) {
	m, err := NewMachine("127.0.0.1", WithPassword("unused"))
	require.NoError(t, err)
	defer m.Close()

	resp, err := m.Exec(context.Background(), "echo hi")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", resp.String())
	assert.Same(t, m, resp.Target)
	assert.Equal(t, "127.0.0.1", resp.Host())
	assert.True(t, m.Connection().IsLocal())
	assert.True(t, m.Connection().IP().IsLoopback())
}

func TestMachine_LocalhostResolvesToLocal(t *testing.T) {
	m, err := NewMachine("localhost", WithConnect(true))
	require.NoError(t, err)
	defer m.Close()
	assert.True(t, m.Connection().Connected())
	assert.True(t, m.Connection().IsLocal())
}

func TestMachine_Defaults(t *testing.T) {
	m, err := NewMachine("10.1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3", m.Name())
	assert.Nil(t, m.Connection(), "no connection options means no connection")

	named, err := NewMachine("10.1.2.3", WithName("db"))
	require.NoError(t, err)
	assert.Equal(t, "db", named.Name())
	assert.Nil(t, named.Connection())

	lazy, err := NewMachine("10.1.2.3", WithPort(2222))
	require.NoError(t, err)
	require.NotNil(t, lazy.Connection())
	assert.False(t, lazy.Connection().Connected())
	o := lazy.Connection().Options()
	assert.Equal(t, 2222, o.Port)
	assert.Equal(t, DefaultUsername, o.Username)
	assert.Equal(t, DefaultKeyFile, o.KeyFile)
	assert.Equal(t, DefaultTimeout, o.Timeout)
	assert.True(t, o.AutoAddHostPolicy)
}

func TestMachine_NoConnection(t *testing.T) {
	m, err := NewMachine("10.1.2.3")
	require.NoError(t, err)

	_, err = m.Run(context.Background(), "uptime")
	assert.ErrorIs(t, err, ErrNoConnection)

	res := <-m.RunAsync("uptime")
	assert.ErrorIs(t, res.Err, ErrNoConnection)
	assert.Nil(t, res.Response)

	assert.ErrorIs(t, m.Upload(context.Background(), "a", "b", nil), ErrNoConnection)
	assert.NoError(t, m.Close())
}

func TestMachine_RemoteExecAndLazyConnectOnce(t *testing.T) {
	srv := sshtest.NewServer(t, func(cmd string, env map[string]string, stdout, stderr io.Writer) int {
		fmt.Fprintf(stdout, "%s|%s", cmd, env["MODE"])
		return 0
	})
	m := newRemoteMachine(t, srv)
	assert.Zero(t, srv.Connections())

	for i := range 3 {
		resp, err := m.Exec(context.Background(), "cmd"+strconv.Itoa(i), models.WithEnv(map[string]string{"MODE": "x"}))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("cmd%d|x", i), resp.String())
	}
	assert.Equal(t, 1, srv.Connections(), "connection is built lazily and only once")
	assert.False(t, m.Connection().IsLocal())

	require.NoError(t, m.Close())
	assert.False(t, m.Connection().Connected())
	_, err := m.Exec(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Connections(), "a closed connection reconnects on reuse")
}

func TestMachine_RemoteExitCode(t *testing.T) {
	srv := sshtest.NewServer(t, func(_ string, _ map[string]string, _, stderr io.Writer) int {
		fmt.Fprint(stderr, "not found")
		return 127
	})
	m := newRemoteMachine(t, srv)

	resp, err := m.Exec(context.Background(), "missing-binary")
	require.NoError(t, err)
	assert.Equal(t, 127, resp.ExitCode)
	assert.Equal(t, "not found", string(resp.Stderr))
}

func TestMachine_LocalExitCode(t *testing.T) {
	m, err := NewMachine("127.0.0.1")
	require.NoError(t, err)
	defer m.Close()

	resp, err := m.Exec(context.Background(), "exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, resp.ExitCode)
	assert.False(t, resp.Success())
}

func TestMachine_CommandOutlivesConnectionTimeout(t *testing.T) {
	local, err := NewMachine("127.0.0.1", WithTimeout(200*time.Millisecond))
	require.NoError(t, err)
	defer local.Close()

	resp, err := local.Exec(context.Background(), "sleep 0.5; echo done")
	require.NoError(t, err)
	assert.Equal(t, "done\n", resp.String())
	assert.True(t, resp.Success())

	srv := sshtest.NewServer(t, func(_ string, _ map[string]string, stdout, _ io.Writer) int {
		time.Sleep(500 * time.Millisecond)
		fmt.Fprint(stdout, "done")
		return 0
	})
	remote := newRemoteMachine(t, srv, WithTimeout(200*time.Millisecond))
	resp, err = remote.Exec(context.Background(), "slow")
	require.NoError(t, err)
	assert.Equal(t, "done", resp.String())
}

func TestMachine_ExplicitCommandTimeout(t *testing.T) {
	m, err := NewMachine("127.0.0.1")
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Exec(context.Background(), "sleep 5", models.WithCommandTimeout(100*time.Millisecond))
	require.Error(t, err)
}

func TestMachine_EagerConnectZeroTimeout(t *testing.T) {
	m, err := NewMachine("127.0.0.1", WithTimeout(0), WithConnect(true))
	require.NoError(t, err)
	defer m.Close()
	assert.True(t, m.Connection().Connected())
}

func TestMachine_EagerConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	m, err := NewMachine("127.0.0.1",
		WithPort(port),
		WithPassword("x"),
		WithLocalShortcut(false),
		WithTimeout(time.Second),
		WithConnect(true),
	)
	require.Error(t, err)
	require.NotNil(t, m)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "connect", connErr.Op)
	assert.Equal(t, "127.0.0.1", connErr.Host)
}

func TestMachine_SetConnectionReplacesOld(t *testing.T) {
	srv := sshtest.NewServer(t, sshtest.Echo)
	m := newRemoteMachine(t, srv, WithConnect(true))
	old := m.Connection()
	require.True(t, old.Connected())

	require.NoError(t, m.SetConnection(remoteOptions(t, srv)...))
	assert.NotSame(t, old, m.Connection())
	assert.False(t, old.Connected(), "previous connection is closed")
	assert.False(t, m.Connection().Connected())
}

func TestMachine_RunAsyncStream(t *testing.T) {
	payload := strings.Repeat("abcdefgh", 1000)
	srv := sshtest.NewServer(t, func(_ string, _ map[string]string, stdout, _ io.Writer) int {
		io.WriteString(stdout, payload)
		return 0
	})
	m := newRemoteMachine(t, srv, WithChunkSize(100))

	select {
	case res := <-m.RunAsync("cat"):
		require.NoError(t, res.Err)
		assert.Equal(t, payload, res.Response.String())
		assert.Same(t, m, res.Response.Target)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not finish")
	}
}

func TestMachine_RunAsyncLocalUnsupported(t *testing.T) {
	m, err := NewMachine("127.0.0.1", WithPassword("x"))
	require.NoError(t, err)
	res := <-m.RunAsync("echo hi")
	assert.ErrorIs(t, res.Err, ErrStreamUnsupported)
}

func TestMachine_Upload(t *testing.T) {
	srv := sshtest.NewServer(t, sshtest.Echo)
	m := newRemoteMachine(t, srv)

	src := filepath.Join(t.TempDir(), "app.conf")
	require.NoError(t, os.WriteFile(src, []byte("port=80\n"), 0644))
	dst := filepath.Join(t.TempDir(), "app.conf")

	require.NoError(t, m.Upload(context.Background(), src, dst, nil))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "port=80\n", string(got))

	back := filepath.Join(t.TempDir(), "copy.conf")
	require.NoError(t, m.Download(context.Background(), dst, back, nil))
	got, err = os.ReadFile(back)
	require.NoError(t, err)
	assert.Equal(t, "port=80\n", string(got))

	local, err := NewMachine("127.0.0.1", WithPassword("x"))
	require.NoError(t, err)
	assert.ErrorIs(t, local.Upload(context.Background(), src, dst, nil), ErrRemoteOnly)
}

func TestMachine_RunTask(t *testing.T) {
	m, err := NewMachine("127.0.0.1", WithPassword("x"))
	require.NoError(t, err)

	_, err = m.RunTask(nil)
	assert.ErrorIs(t, err, ErrNotATask)

	tk := task.New(func(meta *task.Meta, args ...any) (any, error) {
		n := args[0].(Node)
		res, err := n.Run(context.Background(), "printf %s "+args[1].(string))
		if err != nil {
			return nil, err
		}
		return res[0].String(), nil
	})
	res, err := m.RunTask(tk, "deployed")
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, "deployed", res.Value)
}

func TestMachine_RunTaskContainsConnectionError(t *testing.T) {
	m, err := NewMachine("10.1.2.3")
	require.NoError(t, err)
	tk := task.New(func(_ *task.Meta, args ...any) (any, error) {
		return args[0].(Node).Run(context.Background(), "uptime")
	})
	res, err := m.RunTask(tk)
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.True(t, errors.Is(res.Err, ErrNoConnection))
}
