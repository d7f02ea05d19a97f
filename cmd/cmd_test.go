package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wentf9/flowlight/pkg/config"
	"github.com/wentf9/flowlight/pkg/models"
)

type target string

func (t target) String() string { return string(t) }

func useFleet(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	}
	oldFleet, oldKey := fleetPath, keyPath
	fleetPath, keyPath = path, filepath.Join(filepath.Dir(path), "fleet.key")
	t.Cleanup(func() { fleetPath, keyPath = oldFleet, oldKey })
	return path
}

func TestPrintResponses(t *testing.T) {
	ok := models.NewBytesResponse(target("web1"), nil, []byte("up\n"), nil)
	bad := models.NewBytesResponse(target("web2"), nil, nil, []byte("boom\n"))
	bad.ExitCode = 2

	var buf bytes.Buffer
	assert.Equal(t, 1, printResponses(&buf, []*models.Response{ok, nil, bad}))
	out := buf.String()
	assert.Contains(t, out, "[SUCCESS] web1\n------------\nup\n")
	assert.Contains(t, out, "[FAILED] web2 (exit 2)")
	assert.Contains(t, out, "boom")
}

func TestExecOptions_Validate(t *testing.T) {
	o := NewExecOptions()
	o.Targets = []string{"web"}
	assert.Error(t, o.Validate())

	o.Command = "uptime"
	assert.NoError(t, o.Validate())

	o.Env = []string{"NOEQUALS"}
	assert.Error(t, o.Validate())
}

func TestExec_LocalHost(t *testing.T) {
	useFleet(t, "")
	o := NewExecOptions()
	var buf bytes.Buffer
	o.out = &buf
	o.Targets = []string{"127.0.0.1"}
	o.Command = `echo "$GREETING"`
	o.Env = []string{"GREETING=hello"}
	o.Parallel = 1

	require.NoError(t, o.Run(context.Background()))
	assert.Contains(t, buf.String(), "[SUCCESS] 127.0.0.1\n------------\nhello\n")

	buf.Reset()
	o.Command = "exit 4"
	err := o.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, buf.String(), "(exit 4)")
}

func TestExecOptions_CommandTimeout(t *testing.T) {
	o := NewExecOptions()
	o.Env = []string{"A=1"}
	cmd := models.NewCommand("true", o.commandOptions()...)
	assert.Zero(t, cmd.Timeout())
	assert.Equal(t, map[string]string{"A": "1"}, cmd.Env())

	o.CmdTimeout = 3 * time.Second
	cmd = models.NewCommand("true", o.commandOptions()...)
	assert.Equal(t, 3*time.Second, cmd.Timeout())
}

func TestListInventory(t *testing.T) {
	f, err := config.Parse([]byte(`
defaults:
  user: deploy
hosts:
  web1:
    address: 10.0.0.11
    alias: [w1]
  db1:
    address: db.internal
    port: 2222
groups:
  web: [web1]
`))
	require.NoError(t, err)

	var buf bytes.Buffer
	listInventory(&buf, config.NewProvider(f))
	out := buf.String()
	assert.Regexp(t, `db1\s+db\.internal\s+2222\s+deploy`, out)
	assert.Regexp(t, `web1\s+10\.0\.0\.11\s+-\s+deploy\s+w1`, out)
	assert.Regexp(t, `web\s+web1`, out)
}

func TestLocalSize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), make([]byte, 10), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b"), make([]byte, 5), 0644))

	n, err := localSize(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(15), n)

	_, err = localSize(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
