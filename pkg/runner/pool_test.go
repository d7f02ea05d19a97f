package runner

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsAllWithinLimit(t *testing.T) {
	p := NewPool(2)
	var done, running, peak atomic.Int32
	for range 20 {
		p.Go(func() error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
			done.Add(1)
			return nil
		})
	}
	require.NoError(t, p.Wait())
	assert.Equal(t, int32(20), done.Load())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPool_JoinsErrors(t *testing.T) {
	errUpload := errors.New("upload failed")
	p := NewPool(0)
	p.Go(func() error { return nil })
	p.Go(func() error { return errUpload })
	p.Go(func() error { return errors.New("host down") })

	err := p.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, errUpload)
	assert.ErrorContains(t, err, "host down")
}

func TestPool_RecoversPanic(t *testing.T) {
	p := NewPool(1)
	p.Go(func() error { panic("bad host") })
	var ran atomic.Bool
	p.Go(func() error { ran.Store(true); return nil })

	err := p.Wait()
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "bad host", pe.Value)
	assert.EqualError(t, pe, "panicked: bad host")
	assert.True(t, ran.Load(), "a panicking task must release its slot")
}
