package concurrent

import (
	"fmt"
	"hash/fnv"
)

// HashString FNV-1a 哈希
func HashString(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// HashInt 乘法哈希，连续整数也能均匀打散
func HashInt(key int) uint32 {
	return uint32(key) * 2654435761
}

// hashAny 在没有指定哈希函数时使用，按 %v 的结果计算
func hashAny[K comparable](key K) uint32 {
	return HashString(fmt.Sprint(key))
}
