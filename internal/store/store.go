package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrNotFound 任务不存在
	ErrNotFound = errors.New("job not found")
	// ErrExists 任务 ID 重复
	ErrExists = errors.New("job already exists")
)

// Store 任务存储。所有方法返回和接收的都是副本。
type Store interface {
	Create(job Job) error
	Get(id string) (Job, error)
	// Update 在锁内对任务副本执行 fn，fn 返回错误时放弃修改
	Update(id string, fn func(*Job) error) (Job, error)
	Delete(id string) error
}

// MemoryStore 带过期清理的内存任务存储
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]Job
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryStore 创建内存存储，ttl <= 0 表示不过期
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]Job),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Create 保存新任务
func (s *MemoryStore) Create(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("%s: %w", job.ID, ErrExists)
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = s.now()
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Get 读取任务
func (s *MemoryStore) Get(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return job.Clone(), nil
}

// Update 修改任务并刷新更新时间
func (s *MemoryStore) Update(id string, fn func(*Job) error) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	updated := job.Clone()
	if err := fn(&updated); err != nil {
		return job.Clone(), err
	}
	updated.ID = id
	updated.UpdatedAt = s.now()
	s.jobs[id] = updated
	return updated.Clone(), nil
}

// Delete 删除任务及其文件
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	delete(s.jobs, id)
	return nil
}

// Len 当前任务数
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup 删除过期任务，返回被删除的 ID
func (s *MemoryStore) Cleanup() []string {
	if s.ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	now := s.now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// RunCleanup 定期清理过期任务，直到 ctx 结束
func (s *MemoryStore) RunCleanup(ctx context.Context, interval time.Duration, onEvict func(ids []string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Cleanup(); len(removed) > 0 && onEvict != nil {
				onEvict(removed)
			}
		}
	}
}
