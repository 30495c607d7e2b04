package translation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Cache 译文缓存接口
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Stats() CacheStats
}

// CacheStats 缓存统计信息
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int64 `json:"size"`
}

// CacheKey 由模型和提示词生成缓存键
func CacheKey(model, systemPrompt, userPrompt string) string {
	h := sha256.New()
	for _, part := range []string{model, systemPrompt, userPrompt} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// cacheEntry 缓存条目
type cacheEntry struct {
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// MemoryCache 内存缓存实现
type MemoryCache struct {
	mutex sync.Mutex
	data  map[string]cacheEntry
	stats CacheStats
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get 获取缓存
func (c *MemoryCache) Get(key string) (string, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.data[key]
	if !ok {
		c.stats.Misses++
		return "", false
	}
	c.stats.Hits++
	return entry.Value, true
}

// Set 设置缓存
func (c *MemoryCache) Set(key, value string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = cacheEntry{Value: value, Timestamp: time.Now()}
	c.stats.Size = int64(len(c.data))
	return nil
}

// Stats 获取缓存统计信息
func (c *MemoryCache) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.stats
}

// FileCache 文件缓存实现，内存作为一级缓存
type FileCache struct {
	basePath string
	memory   *MemoryCache
}

// NewFileCache 创建文件缓存
func NewFileCache(basePath string) (*FileCache, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileCache{
		basePath: basePath,
		memory:   NewMemoryCache(),
	}, nil
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.basePath, key+".json")
}

// Get 获取缓存
func (c *FileCache) Get(key string) (string, bool) {
	if value, ok := c.memory.Get(key); ok {
		return value, true
	}

	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return "", false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", false
	}

	_ = c.memory.Set(key, entry.Value)
	return entry.Value, true
}

// Set 设置缓存
func (c *FileCache) Set(key, value string) error {
	if err := c.memory.Set(key, value); err != nil {
		return err
	}

	data, err := json.Marshal(cacheEntry{Value: value, Timestamp: time.Now()})
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(key), data, 0o644)
}

// Stats 获取缓存统计信息（仅内存层）
func (c *FileCache) Stats() CacheStats {
	return c.memory.Stats()
}
