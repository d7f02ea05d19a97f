package concurrent

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMap_ConcurrentSet(t *testing.T) {
	m := NewMap[string, int](HashString, WithShardCount[string, int](4))
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Go(func() { m.Set(fmt.Sprintf("k%d", i), i) })
	}
	wg.Wait()

	assert.Equal(t, 100, m.Count())
	v, ok := m.Get("k42")
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Len(t, m.Keys(), 100)

	m.Remove("k42")
	_, ok = m.Get("k42")
	assert.False(t, ok)
}

func TestMap_SetIfAbsent(t *testing.T) {
	m := NewMap[int, string](HashInt)
	v, added := m.SetIfAbsent(1, "a")
	assert.True(t, added)
	assert.Equal(t, "a", v)
	v, added = m.SetIfAbsent(1, "b")
	assert.False(t, added)
	assert.Equal(t, "a", v)
}

func TestMap_IterCbStops(t *testing.T) {
	m := NewMap[int, int](nil)
	for i := range 10 {
		m.Set(i, i)
	}
	seen := 0
	m.IterCb(func(int, int) bool {
		seen++
		return seen < 3
	})
	assert.Equal(t, 3, seen)
}

func TestMap_YAMLIntoZeroValue(t *testing.T) {
	var doc struct {
		Hosts *Map[string, int] `yaml:"hosts"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("hosts:\n  a: 1\n  b: 2\n"), &doc))
	require.NotNil(t, doc.Hosts)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, doc.Hosts.Snapshot())

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, "hosts:\n    a: 1\n    b: 2\n", string(out))
}
