package providers

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Settings 创建提供商所需的通用参数
type Settings struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Headers     map[string]string
}

// Constructor 提供商构造函数
type Constructor func(settings Settings, logger *zap.Logger) (StreamingProvider, error)

// Registry 提供商注册表
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry 创建新的注册表
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
	}
}

// Register 注册提供商
func (r *Registry) Register(name string, c Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name = strings.ToLower(name)
	if _, exists := r.constructors[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.constructors[name] = c
	return nil
}

// Has 是否已注册
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.constructors[strings.ToLower(name)]
	return ok
}

// Create 按 settings.Provider 创建提供商
func (r *Registry) Create(settings Settings, logger *zap.Logger) (StreamingProvider, error) {
	r.mu.RLock()
	c, exists := r.constructors[strings.ToLower(settings.Provider)]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("provider %s not found (available: %s)", settings.Provider, strings.Join(r.List(), ", "))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return c(settings, logger)
}

// List 列出所有提供商
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
