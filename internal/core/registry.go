package core

import (
	"fmt"
	"sort"
	"sync"
)

// EntityInfo describes a registered entity type.
type EntityInfo struct {
	Key    string // route and lookup key: "books"
	Labels Labels
	Schema *Schema
}

// Definition is everything a Service needs for one entity type.
type Definition[T any] struct {
	Info      EntityInfo
	Rules     []Rule[T]
	Normalize NormalizeFunc // nil means DefaultNormalize
}

var (
	registry   = make(map[string]EntityInfo)
	registryMu sync.RWMutex
)

// Register adds an entity to the registry.
// Panics if an entity with the same key is already registered.
func Register(info EntityInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if info.Schema == nil {
		panic(fmt.Sprintf("entity %s registered without schema", info.Key))
	}
	if _, exists := registry[info.Key]; exists {
		panic(fmt.Sprintf("entity already registered: %s", info.Key))
	}
	registry[info.Key] = info
}

// Get returns an entity by key.
func Get(key string) (EntityInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	info, ok := registry[key]
	return info, ok
}

// All returns all registered entities sorted by key.
func All() []EntityInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EntityInfo, 0, len(registry))
	for _, info := range registry {
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

// EntityCount returns the number of registered entities.
func EntityCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}
