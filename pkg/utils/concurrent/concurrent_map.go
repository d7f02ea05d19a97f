// Package concurrent 提供分片加锁的并发 Map。
package concurrent

import (
	"maps"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

const DefaultShardCount = 32

type Option[K comparable, V any] func(*Map[K, V])

// WithShardCount 自定义分片数量，建议为 2 的幂
func WithShardCount[K comparable, V any](count uint32) Option[K, V] {
	return func(m *Map[K, V]) {
		if count > 0 {
			m.shardCount = count
		}
	}
}

// Map 按 key 的哈希分片，每个分片独立加锁
type Map[K comparable, V any] struct {
	shards     []*shard[K, V]
	hashFunc   func(K) uint32
	shardCount uint32
}

type shard[K comparable, V any] struct {
	sync.RWMutex
	items map[K]V
}

// NewMap 创建 Map，hashFunc 为 nil 时按 %v 的字符串计算哈希
func NewMap[K comparable, V any](hashFunc func(K) uint32, opts ...Option[K, V]) *Map[K, V] {
	m := &Map[K, V]{shardCount: DefaultShardCount, hashFunc: hashFunc}
	for _, opt := range opts {
		opt(m)
	}
	m.init()
	return m
}

func (m *Map[K, V]) init() {
	if m.hashFunc == nil {
		m.hashFunc = hashAny[K]
	}
	if m.shardCount == 0 {
		m.shardCount = DefaultShardCount
	}
	m.shards = make([]*shard[K, V], m.shardCount)
	for i := range m.shards {
		m.shards[i] = &shard[K, V]{items: make(map[K]V)}
	}
}

func (m *Map[K, V]) getShard(key K) *shard[K, V] {
	return m.shards[m.hashFunc(key)%m.shardCount]
}

func (m *Map[K, V]) Set(key K, value V) {
	s := m.getShard(key)
	s.Lock()
	defer s.Unlock()
	s.items[key] = value
}

func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.getShard(key)
	s.RLock()
	defer s.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

func (m *Map[K, V]) Remove(key K) {
	s := m.getShard(key)
	s.Lock()
	defer s.Unlock()
	delete(s.items, key)
}

// SetIfAbsent key 不存在时写入，返回实际存储的值和是否为新写入
func (m *Map[K, V]) SetIfAbsent(key K, value V) (V, bool) {
	s := m.getShard(key)
	s.Lock()
	defer s.Unlock()
	if old, ok := s.items[key]; ok {
		return old, false
	}
	s.items[key] = value
	return value, true
}

func (m *Map[K, V]) Count() int {
	n := 0
	for _, s := range m.shards {
		s.RLock()
		n += len(s.items)
		s.RUnlock()
	}
	return n
}

// Keys 返回所有 key，顺序不固定
func (m *Map[K, V]) Keys() []K {
	var keys []K
	for _, s := range m.shards {
		s.RLock()
		keys = slices.AppendSeq(keys, maps.Keys(s.items))
		s.RUnlock()
	}
	return keys
}

// IterCb 逐个分片遍历，fn 返回 false 时停止；遍历期间不要在 fn 中写同一个 Map
func (m *Map[K, V]) IterCb(fn func(key K, v V) bool) {
	for _, s := range m.shards {
		s.RLock()
		for k, v := range s.items {
			if !fn(k, v) {
				s.RUnlock()
				return
			}
		}
		s.RUnlock()
	}
}

// Snapshot 复制出一个普通 map
func (m *Map[K, V]) Snapshot() map[K]V {
	tmp := make(map[K]V, m.Count())
	for _, s := range m.shards {
		s.RLock()
		maps.Copy(tmp, s.items)
		s.RUnlock()
	}
	return tmp
}

// MarshalYAML 以快照的形式序列化
func (m *Map[K, V]) MarshalYAML() (any, error) {
	return m.Snapshot(), nil
}

// UnmarshalYAML 支持零值 Map，解码前会先初始化
func (m *Map[K, V]) UnmarshalYAML(value *yaml.Node) error {
	tmp := make(map[K]V)
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	if m.shards == nil {
		m.init()
	}
	for k, v := range tmp {
		m.Set(k, v)
	}
	return nil
}
