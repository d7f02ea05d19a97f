package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wentf9/flowlight/pkg/models"
)

func TestLocalExecutor_Exec(t *testing.T) {
	e := NewLocalExecutor()

	tests := []struct {
		name     string
		cmd      models.Command
		wantOut  string
		wantCode int
	}{
		{"echo", models.NewCommand("echo hi"), "hi\n", 0},
		{"stderr merged", models.NewCommand("echo out; echo err 1>&2"), "out\nerr\n", 0},
		{"exit code captured", models.NewCommand("echo bye; exit 7"), "bye\n", 7},
		{"env override", models.NewCommand(`printf %s "$FLOWLIGHT_TEST"`, models.WithEnv(map[string]string{"FLOWLIGHT_TEST": "v1"})), "v1", 0},
		{"buffer hint", models.NewCommand("printf abc", models.WithBufferSize(4096)), "abc", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := e.Exec(context.Background(), tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOut, resp.String())
			assert.Equal(t, tt.wantCode, resp.ExitCode)
			assert.Equal(t, tt.wantCode == 0, resp.Success())
			assert.Empty(t, resp.Stderr)
			assert.Empty(t, resp.Stdin)
		})
	}
}

func TestLocalExecutor_Timeout(t *testing.T) {
	e := NewLocalExecutor()
	start := time.Now()
	_, err := e.Exec(context.Background(), models.NewCommand("sleep 5", models.WithCommandTimeout(100*time.Millisecond)))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestLocalExecutor_NoDefaultDeadline(t *testing.T) {
	resp, err := NewLocalExecutor().Exec(context.Background(), models.NewCommand("sleep 0.3; echo late"))
	require.NoError(t, err)
	assert.Equal(t, "late\n", resp.String())
}

func TestLocalExecutor_StreamUnsupported(t *testing.T) {
	_, err := Stream(NewLocalExecutor(), models.NewCommand("echo hi"), 0)
	assert.ErrorIs(t, err, ErrStreamUnsupported)
}

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/bin", "HOME=/root", "BROKEN"}
	got := mergeEnv(base, map[string]string{"HOME": "/tmp"})
	assert.ElementsMatch(t, []string{"PATH=/bin", "BROKEN", "HOME=/tmp"}, got)
	assert.Equal(t, base, mergeEnv(base, nil))
}
