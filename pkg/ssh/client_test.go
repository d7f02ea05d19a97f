package ssh_test

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wentf9/flowlight/internal/sshtest"
	fssh "github.com/wentf9/flowlight/pkg/ssh"
)

func testConfig(t *testing.T, srv *sshtest.Server) fssh.Config {
	return fssh.Config{
		Host:           srv.Host,
		Port:           srv.Port,
		User:           sshtest.User,
		Password:       sshtest.Password,
		Timeout:        5 * time.Second,
		KnownHostsFile: filepath.Join(t.TempDir(), "known_hosts"),
		AutoAddHostKey: true,
	}
}

func TestDialAndExec(t *testing.T) {
	srv := sshtest.NewServer(t, func(cmd string, env map[string]string, stdout, stderr io.Writer) int {
		fmt.Fprintf(stdout, "ran %s with FOO=%s\n", cmd, env["FOO"])
		fmt.Fprint(stderr, "warning\n")
		return 3
	})

	client, err := fssh.Dial(context.Background(), testConfig(t, srv))
	require.NoError(t, err)
	defer client.Close()

	out, err := client.Exec(context.Background(), "uptime", map[string]string{"FOO": "bar"})
	require.NoError(t, err, "non-zero exit status is captured, not returned as error")
	assert.Equal(t, "ran uptime with FOO=bar\n", string(out.Stdout))
	assert.Equal(t, "warning\n", string(out.Stderr))
	assert.Equal(t, 3, out.ExitCode)
	assert.Equal(t, []string{"uptime"}, srv.Commands())
}

func TestDial_WrongPassword(t *testing.T) {
	srv := sshtest.NewServer(t, sshtest.Echo)
	cfg := testConfig(t, srv)
	cfg.Password = "wrong"

	_, err := fssh.Dial(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handshake failed")
}

func TestDial_NoAuthMethod(t *testing.T) {
	srv := sshtest.NewServer(t, sshtest.Echo)
	cfg := testConfig(t, srv)
	cfg.Password = ""
	cfg.KeyFile = filepath.Join(t.TempDir(), "missing_id_rsa")

	_, err := fssh.Dial(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable auth method")
}

func TestDial_UnknownHostRejectedWithoutAutoAdd(t *testing.T) {
	srv := sshtest.NewServer(t, sshtest.Echo)
	cfg := testConfig(t, srv)
	cfg.AutoAddHostKey = false

	_, err := fssh.Dial(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, fssh.ErrUnknownHostKey)
}

func TestDial_Unreachable(t *testing.T) {
	srv := sshtest.NewServer(t, sshtest.Echo)
	cfg := testConfig(t, srv)
	srv.Close()

	_, err := fssh.Dial(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to dial")
}

func TestStream_AccumulatesAllChunks(t *testing.T) {
	payload := strings.Repeat("0123456789", 500) // 5000 bytes, several chunks
	srv := sshtest.NewServer(t, func(cmd string, _ map[string]string, stdout, stderr io.Writer) int {
		for i := 0; i < len(payload); i += 700 {
			end := min(i+700, len(payload))
			io.WriteString(stdout, payload[i:end])
		}
		io.WriteString(stderr, "ignored")
		return 0
	})

	client, err := fssh.Dial(context.Background(), testConfig(t, srv))
	require.NoError(t, err)
	defer client.Close()

	out, err := client.Stream("cat big.txt", 256)
	require.NoError(t, err)
	assert.Equal(t, payload, string(out.Stdout))
	assert.Empty(t, out.Stderr)
	assert.Equal(t, 0, out.ExitCode)
}

func TestStream_EmptyOutput(t *testing.T) {
	srv := sshtest.NewServer(t, func(string, map[string]string, io.Writer, io.Writer) int { return 1 })

	client, err := fssh.Dial(context.Background(), testConfig(t, srv))
	require.NoError(t, err)
	defer client.Close()

	out, err := client.Stream("false", 0)
	require.NoError(t, err)
	assert.Empty(t, out.Stdout)
	assert.Equal(t, 1, out.ExitCode)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	srv := sshtest.NewServer(t, sshtest.Echo)
	client, err := fssh.Dial(context.Background(), testConfig(t, srv))
	require.NoError(t, err)

	require.NoError(t, client.Close())
	assert.NoError(t, client.Close())
}

func TestDial_KeepAlive(t *testing.T) {
	srv := sshtest.NewServer(t, sshtest.Echo)
	cfg := testConfig(t, srv)
	cfg.KeepAlive = 20 * time.Millisecond

	client, err := fssh.Dial(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()

	// 几次心跳之后连接仍然可用
	time.Sleep(100 * time.Millisecond)
	out, err := client.Exec(context.Background(), "still-alive", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
}
