package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMeta_ReservedKeys(t *testing.T) {
	owner := New(constant(nil))
	m := owner.Meta()

	v, ok := m.Get(KeyTask)
	assert.True(t, ok)
	assert.Same(t, owner, v)

	now := time.Now()
	assert.NoError(t, m.Set(KeyStartedAt, now))
	assert.Equal(t, now, m.StartedAt)
	assert.Error(t, m.Set(KeyStartedAt, "yesterday"))
	assert.Error(t, m.Set(KeyTask, 1))

	m.RunID = "abc"
	v, _ = m.Get(KeyRunID)
	assert.Equal(t, "abc", v)
}

func TestMeta_FreeFormKeys(t *testing.T) {
	m := New(constant(nil)).Meta()
	assert.NoError(t, m.Set("b", 2))
	assert.NoError(t, m.Set("a", 1))

	assert.Equal(t, []string{KeyTask, KeyRunAfter, KeyRunID, KeyStartedAt, KeyFinishedAt, "a", "b"}, m.Keys())

	m.Delete("a")
	_, ok := m.Get("a")
	assert.False(t, ok)
	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestMeta_Duration(t *testing.T) {
	m := &Meta{}
	assert.Zero(t, m.Duration())
	m.StartedAt = time.Unix(100, 0)
	m.FinishedAt = time.Unix(103, 0)
	assert.Equal(t, 3*time.Second, m.Duration())
}

func TestSignal_OrderAndLen(t *testing.T) {
	s := NewSignal[int]("numbers")
	var got []int
	s.Connect(func(v int) { got = append(got, v) })
	s.Connect(func(v int) { got = append(got, v*10) })
	s.Connect(nil)

	s.Send(3)
	assert.Equal(t, []int{3, 30}, got)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "numbers", s.Name())
}

func TestSignal_ConnectDuringSend(t *testing.T) {
	s := NewSignal[string]("nested")
	var got []string
	s.Connect(func(v string) {
		got = append(got, "first:"+v)
		s.Connect(func(v string) { got = append(got, "late:"+v) })
	})
	s.Connect(func(v string) { got = append(got, "second:"+v) })

	s.Send("a")
	assert.Equal(t, []string{"first:a", "second:a"}, got, "receivers added during Send wait for the next Send")
	assert.Equal(t, 3, s.Len())

	got = nil
	s.Send("b")
	assert.Equal(t, []string{"first:b", "second:b", "late:b"}, got)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "waiting", Waiting.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestMeta_SetMismatchKeepsValue(t *testing.T) {
	owner := New(constant(nil))
	m := owner.Meta()
	assert.Error(t, m.Set(KeyTask, "not a task"))
	assert.Same(t, owner, m.Task)
}
