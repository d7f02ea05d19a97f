package task

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Meta 中保留的键名
const (
	KeyTask       = "task"
	KeyRunAfter   = "run_after"
	KeyRunID      = "run_id"
	KeyStartedAt  = "started_at"
	KeyFinishedAt = "finished_at"
)

var reservedKeys = []string{KeyTask, KeyRunAfter, KeyRunID, KeyStartedAt, KeyFinishedAt}

// Meta 记录任务的元信息，每个 Task 一份
// 保留字段既能直接访问，也能通过 Get/Set 按键名访问；其余键由任务体自由写入
// 执行期间只应由执行该任务的协程修改
type Meta struct {
	Task       *Task
	RunAfter   *Task
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	mu    sync.RWMutex
	extra map[string]any
}

func newMeta(t *Task) *Meta {
	return &Meta{Task: t, extra: make(map[string]any)}
}

// Get 按键名读取，保留键返回对应字段
func (m *Meta) Get(key string) (any, bool) {
	switch key {
	case KeyTask:
		return m.Task, true
	case KeyRunAfter:
		return m.RunAfter, true
	case KeyRunID:
		return m.RunID, true
	case KeyStartedAt:
		return m.StartedAt, true
	case KeyFinishedAt:
		return m.FinishedAt, true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.extra[key]
	return v, ok
}

// Set 按键名写入，保留键要求类型匹配，不匹配时原值保持不变
func (m *Meta) Set(key string, value any) error {
	ok := true
	switch key {
	case KeyTask, KeyRunAfter:
		var t *Task
		if t, ok = value.(*Task); ok {
			if key == KeyTask {
				m.Task = t
			} else {
				m.RunAfter = t
			}
		}
	case KeyRunID:
		var id string
		if id, ok = value.(string); ok {
			m.RunID = id
		}
	case KeyStartedAt, KeyFinishedAt:
		var ts time.Time
		if ts, ok = value.(time.Time); ok {
			if key == KeyStartedAt {
				m.StartedAt = ts
			} else {
				m.FinishedAt = ts
			}
		}
	default:
		m.mu.Lock()
		m.extra[key] = value
		m.mu.Unlock()
	}
	if !ok {
		return fmt.Errorf("meta key %q does not accept %T", key, value)
	}
	return nil
}

// Delete 删除自定义键，保留键不可删除
func (m *Meta) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.extra, key)
}

// Keys 先返回保留键，再按字母序返回自定义键
func (m *Meta) Keys() []string {
	m.mu.RLock()
	extra := make([]string, 0, len(m.extra))
	for k := range m.extra {
		extra = append(extra, k)
	}
	m.mu.RUnlock()
	slices.Sort(extra)
	return append(slices.Clone(reservedKeys), extra...)
}

// Duration 返回最近一次成功执行的耗时，未完成时为 0
func (m *Meta) Duration() time.Duration {
	if m.StartedAt.IsZero() || m.FinishedAt.Before(m.StartedAt) {
		return 0
	}
	return m.FinishedAt.Sub(m.StartedAt)
}
