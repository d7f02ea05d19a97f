package task

import (
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(v any) Func {
	return func(*Meta, ...any) (any, error) { return v, nil }
}

func TestRun_Completed(t *testing.T) {
	var gotArgs []any
	tk := New(func(m *Meta, args ...any) (any, error) {
		gotArgs = args
		require.NoError(t, m.Set("note", "hello"))
		return 42, nil
	})

	before := time.Now()
	res := tk.Run("node", 1)
	require.True(t, res.OK())
	assert.Equal(t, 42, res.Value)
	assert.Equal(t, []any{"node", 1}, gotArgs)
	assert.Equal(t, Completed, tk.State())

	m := tk.Meta()
	assert.Same(t, tk, m.Task)
	assert.False(t, m.StartedAt.Before(before))
	assert.False(t, m.FinishedAt.Before(m.StartedAt))
	assert.NotEmpty(t, m.RunID)
	note, ok := m.Get("note")
	assert.True(t, ok)
	assert.Equal(t, "hello", note)
}

func TestRun_NewRunIDPerInvocation(t *testing.T) {
	tk := New(constant(nil))
	tk.Run()
	first := tk.Meta().RunID
	tk.Run()
	assert.NotEqual(t, first, tk.Meta().RunID)
}

func TestRun_SkippedWhenConditionFalse(t *testing.T) {
	var calls, fired atomic.Int32
	tk := New(func(*Meta, ...any) (any, error) {
		calls.Add(1)
		return nil, nil
	}, OnlyIf(func() bool { return false }))
	tk.Trigger().Add(FuncSignal("count", func(*Task) { fired.Add(1) }))

	for range 3 {
		res := tk.Run()
		assert.False(t, res.OK())
		assert.ErrorIs(t, res.Err, ErrConditionNotMet)
		assert.Equal(t, Skipped, tk.State())
	}
	assert.Zero(t, calls.Load())
	assert.Zero(t, fired.Load(), "skipped runs must not fire triggers")
	assert.True(t, tk.Meta().StartedAt.IsZero())
}

func TestRun_ConditionTrue(t *testing.T) {
	tk := New(constant("ok"), OnlyIf(func() bool { return true }))
	res := tk.Run()
	assert.True(t, res.OK())
	assert.Equal(t, "ok", res.Value)
}

func TestRun_ErrorIsContained(t *testing.T) {
	boom := errors.New("boom")
	var fired atomic.Int32
	var seen error
	tk := New(func(*Meta, ...any) (any, error) { return nil, boom })
	tk.Trigger().Add(FuncSignal("a", func(*Task) { fired.Add(1) }))
	tk.Trigger().Add(FuncSignal("b", func(*Task) { fired.Add(1) }))
	tk.OnError.Connect(func(err error) { seen = err })

	res := tk.Run()
	assert.False(t, res.OK())
	assert.Same(t, boom, res.Err)
	assert.Same(t, boom, seen)
	assert.Equal(t, Failed, tk.State())
	assert.Equal(t, int32(2), fired.Load(), "every trigger fires exactly once")
	assert.True(t, tk.Meta().FinishedAt.IsZero(), "finish time is only stamped on success")
}

func TestRun_DivideByZero(t *testing.T) {
	zero := 0
	tk := New(func(*Meta, ...any) (any, error) {
		return 1 / zero, nil
	})
	dependent := New(constant("released"), After(tk))

	res := tk.Run()
	require.False(t, res.OK())

	var pe *PanicError
	require.ErrorAs(t, res.Err, &pe)
	assert.NotEmpty(t, pe.Stack)
	var rtErr runtime.Error
	require.ErrorAs(t, res.Err, &rtErr)
	assert.Contains(t, rtErr.Error(), "integer divide by zero")

	done := make(chan Result, 1)
	go func() { done <- dependent.Run() }()
	select {
	case r := <-done:
		assert.Equal(t, "released", r.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("dependent task was not released by failed predecessor")
	}
}

func TestRun_PredecessorGating(t *testing.T) {
	a := New(constant("a"), WithName("a"))
	var bRuns atomic.Int32
	b := New(func(m *Meta, _ ...any) (any, error) {
		bRuns.Add(1)
		return m.RunAfter.Name(), nil
	}, After(a), WithName("b"))

	assert.Same(t, a, b.Predecessor())
	assert.Same(t, a, b.Meta().RunAfter)

	for round := 1; round <= 2; round++ {
		done := make(chan Result, 1)
		go func() { done <- b.Run() }()

		require.Eventually(t, func() bool { return b.State() == Waiting }, time.Second, 5*time.Millisecond)
		select {
		case <-done:
			t.Fatalf("round %d: b ran before a fired", round)
		case <-time.After(50 * time.Millisecond):
		}
		assert.Equal(t, int32(round-1), bRuns.Load())

		require.True(t, a.Run().OK())
		select {
		case r := <-done:
			assert.Equal(t, "a", r.Value)
		case <-time.After(2 * time.Second):
			t.Fatalf("round %d: b was not released", round)
		}
		assert.Equal(t, int32(round), bRuns.Load())
	}
}

func TestRun_PredecessorFiredBeforeWait(t *testing.T) {
	a := New(constant(nil))
	b := New(constant("b"), After(a))

	a.Run()
	a.Run() // 事件只保留一次
	assert.Equal(t, "b", b.Run().Value)

	done := make(chan struct{})
	go func() {
		b.Run()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("a second release should not be buffered")
	case <-time.After(50 * time.Millisecond):
	}
	a.Run()
	<-done
}

func TestRun_SignalOrder(t *testing.T) {
	var order []string
	tk := New(func(*Meta, ...any) (any, error) {
		order = append(order, "body")
		return nil, nil
	})
	tk.OnStart.Connect(func(m *Meta) {
		assert.False(t, m.StartedAt.IsZero(), "built-in start receiver runs first")
		order = append(order, "start")
	})
	tk.OnComplete.Connect(func(*Meta) { order = append(order, "complete") })
	tk.Trigger().Add(FuncSignal("t1", func(*Task) { order = append(order, "trigger1") }))
	tk.Trigger().Add(FuncSignal("t2", func(*Task) { order = append(order, "trigger2") }))

	tk.Run()
	assert.Equal(t, []string{"start", "body", "complete", "trigger1", "trigger2"}, order)
}

func TestDeferredMatchesNew(t *testing.T) {
	pred := New(constant(nil))
	factory := Deferred(After(pred), WithName("deferred"))
	deferred := factory(constant(1))
	immediate := New(constant(1), After(pred), WithName("deferred"))

	assert.Equal(t, immediate.Name(), deferred.Name())
	assert.Same(t, immediate.Predecessor(), deferred.Predecessor())
	assert.Equal(t, Pending, deferred.State())
	assert.Len(t, pred.Trigger().Signals(), 2)
}
