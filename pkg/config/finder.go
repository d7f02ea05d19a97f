package config

import (
	"fmt"

	"github.com/wentf9/flowlight/pkg/models"
	"github.com/wentf9/flowlight/pkg/utils/concurrent"
)

// finder 维护 标识符 -> 主机 ID 的索引
// 标识符包括 ID、别名、地址以及 user@地址:端口
type finder struct {
	index *concurrent.Map[string, string]
}

func newFinder() *finder {
	return &finder{index: concurrent.NewMap[string, string](concurrent.HashString)}
}

// add 将主机及其所有标识符加入索引，ID 与别名优先于地址
func (f *finder) add(id string, h models.Host, defaults models.Profile) {
	f.index.Set(id, id)
	for _, alias := range h.Alias {
		if alias != "" {
			f.index.Set(alias, id)
		}
	}
	f.index.SetIfAbsent(h.Address, id)

	user := h.User
	if user == "" {
		user = defaults.User
	}
	port := h.Port
	if port == 0 {
		port = defaults.Port
	}
	if user != "" && port != 0 {
		f.index.Set(fmt.Sprintf("%s@%s:%d", user, h.Address, port), id)
	}
}

// remove 删除指向 id 的所有标识符
func (f *finder) remove(id string) {
	for _, key := range f.index.Keys() {
		if v, ok := f.index.Get(key); ok && v == id {
			f.index.Remove(key)
		}
	}
}

func (f *finder) find(input string) (string, bool) {
	return f.index.Get(input)
}
