package transport

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory 根据运行期依赖构造一个协议实例。
type Factory func(opts Options) (Protocol, error)

// Metadata 记录一个协议绑定的静态信息，供配置校验与诊断端使用。
type Metadata struct {
	Key         string
	Description string
	// Datagram 表示文件字节经由数据报通道而非控制连接传输。
	Datagram bool
	New      Factory
}

var globalRegistry = newRegistry()

type registry struct {
	mu        sync.RWMutex
	protocols map[string]Metadata
}

func newRegistry() *registry {
	return &registry{protocols: make(map[string]Metadata)}
}

// Register 将协议加入全局注册表，重复键会返回错误。
func Register(meta Metadata) error {
	return globalRegistry.register(meta)
}

// MustRegister 在注册失败时 panic，适合 init() 中调用。
func MustRegister(meta Metadata) {
	if err := Register(meta); err != nil {
		panic(err)
	}
}

// Resolve 返回指定键的协议元数据，键不区分大小写。
func Resolve(key string) (Metadata, bool) {
	return globalRegistry.resolve(key)
}

// List 返回按键排序的协议元数据列表。
func List() []Metadata {
	return globalRegistry.list()
}

// Keys 返回所有已注册协议的键值。
func Keys() []string {
	items := List()
	result := make([]string, len(items))
	for i, meta := range items {
		result[i] = meta.Key
	}
	return result
}

// New 按键查找协议并构造实例。
func New(key string, opts Options) (Protocol, error) {
	meta, ok := Resolve(key)
	if !ok {
		return nil, fmt.Errorf("unsupported protocol %q (available: %s)", key, strings.Join(Keys(), ", "))
	}
	if meta.New == nil {
		return nil, fmt.Errorf("protocol %s has no factory", meta.Key)
	}
	return meta.New(opts)
}

func (r *registry) normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *registry) register(meta Metadata) error {
	key := r.normalizeKey(meta.Key)
	if key == "" {
		return fmt.Errorf("protocol key is required")
	}
	meta.Key = key

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.protocols[key]; exists {
		return fmt.Errorf("protocol %s already registered", key)
	}
	r.protocols[key] = meta
	return nil
}

func (r *registry) resolve(key string) (Metadata, bool) {
	normalized := r.normalizeKey(key)
	if normalized == "" {
		return Metadata{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.protocols[normalized]
	return meta, ok
}

func (r *registry) list() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.protocols) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.protocols))
	for key := range r.protocols {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Metadata, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.protocols[key])
	}
	return result
}
