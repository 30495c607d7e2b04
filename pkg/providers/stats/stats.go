package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"
)

// ProviderStats 提供商调用统计
type ProviderStats struct {
	ProviderName       string           `json:"provider_name"`
	ModelName          string           `json:"model_name"`
	TotalRequests      int64            `json:"total_requests"`
	SuccessfulRequests int64            `json:"successful_requests"`
	FailedRequests     int64            `json:"failed_requests"`
	TotalTokensIn      int64            `json:"total_tokens_in"`
	TotalTokensOut     int64            `json:"total_tokens_out"`
	EstimatedUsage     int64            `json:"estimated_usage"`
	StreamedDeltas     int64            `json:"streamed_deltas"`
	AverageLatency     time.Duration    `json:"average_latency"`
	MinLatency         time.Duration    `json:"min_latency"`
	MaxLatency         time.Duration    `json:"max_latency"`
	TotalLatency       time.Duration    `json:"total_latency"`
	ErrorTypes         map[string]int64 `json:"error_types"`
	FirstRequestTime   time.Time        `json:"first_request_time"`
	LastRequestTime    time.Time        `json:"last_request_time"`
}

// RequestResult 单次请求结果
type RequestResult struct {
	Success   bool
	Latency   time.Duration
	TokensIn  int
	TokensOut int
	Estimated bool
	Deltas    int
	ErrorType string
}

// SuccessRate 成功率（百分比）
func (ps ProviderStats) SuccessRate() float64 {
	if ps.TotalRequests == 0 {
		return 0
	}
	return float64(ps.SuccessfulRequests) / float64(ps.TotalRequests) * 100
}

// Manager 统计管理器
type Manager struct {
	mu     sync.RWMutex
	stats  map[string]*ProviderStats // key: provider:model
	path   string
	logger *zap.Logger
}

// NewManager 创建统计管理器，path 为空时不落盘
func NewManager(path string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		stats:  make(map[string]*ProviderStats),
		path:   path,
		logger: logger,
	}
}

func key(provider, model string) string {
	return provider + ":" + model
}

// RecordRequest 记录请求结果
func (m *Manager) RecordRequest(provider, model string, result RequestResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(provider, model)
	s, ok := m.stats[k]
	if !ok {
		s = &ProviderStats{
			ProviderName: provider,
			ModelName:    model,
			ErrorTypes:   make(map[string]int64),
		}
		m.stats[k] = s
	}

	now := time.Now()
	if s.FirstRequestTime.IsZero() {
		s.FirstRequestTime = now
	}
	s.LastRequestTime = now

	s.TotalRequests++
	if result.Success {
		s.SuccessfulRequests++
	} else {
		s.FailedRequests++
		if result.ErrorType != "" {
			s.ErrorTypes[result.ErrorType]++
		}
	}

	s.TotalTokensIn += int64(result.TokensIn)
	s.TotalTokensOut += int64(result.TokensOut)
	s.StreamedDeltas += int64(result.Deltas)
	if result.Estimated {
		s.EstimatedUsage++
	}

	s.TotalLatency += result.Latency
	if s.MinLatency == 0 || result.Latency < s.MinLatency {
		s.MinLatency = result.Latency
	}
	if result.Latency > s.MaxLatency {
		s.MaxLatency = result.Latency
	}
	s.AverageLatency = s.TotalLatency / time.Duration(s.TotalRequests)
}

// Get 获取指定提供商的统计副本
func (m *Manager) Get(provider, model string) *ProviderStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.stats[key(provider, model)]
	if !ok {
		return nil
	}
	return s.clone()
}

// All 获取全部统计副本，按键排序
func (m *Manager) All() []*ProviderStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.stats))
	for k := range m.stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*ProviderStats, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.stats[k].clone())
	}
	return out
}

func (ps *ProviderStats) clone() *ProviderStats {
	c := *ps
	c.ErrorTypes = make(map[string]int64, len(ps.ErrorTypes))
	for k, v := range ps.ErrorTypes {
		c.ErrorTypes[k] = v
	}
	return &c
}

// Save 保存统计数据到文件
func (m *Manager) Save() error {
	if m.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create stats directory: %w", err)
	}

	data, err := json.MarshalIndent(m.All(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats data: %w", err)
	}

	tempPath := m.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	if err := os.Rename(tempPath, m.path); err != nil {
		return fmt.Errorf("failed to rename stats file: %w", err)
	}

	m.logger.Debug("stats saved", zap.String("path", m.path))
	return nil
}

// Load 从文件加载统计数据，文件不存在时从零开始
func (m *Manager) Load() error {
	if m.path == "" {
		return nil
	}

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read stats file: %w", err)
	}

	var loaded []*ProviderStats
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to unmarshal stats data: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range loaded {
		if s.ErrorTypes == nil {
			s.ErrorTypes = make(map[string]int64)
		}
		m.stats[key(s.ProviderName, s.ModelName)] = s
	}

	m.logger.Debug("stats loaded", zap.String("path", m.path), zap.Int("providers", len(loaded)))
	return nil
}

// RenderTable 以表格形式输出统计
func (m *Manager) RenderTable(w io.Writer) {
	all := m.All()
	if len(all) == 0 {
		fmt.Fprintln(w, "No statistics available.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Provider", "Model", "Requests", "Success%", "Tokens In", "Tokens Out", "Avg Latency", "Estimated"})
	for _, s := range all {
		t.AppendRow(table.Row{
			s.ProviderName,
			s.ModelName,
			s.TotalRequests,
			fmt.Sprintf("%.1f", s.SuccessRate()),
			s.TotalTokensIn,
			s.TotalTokensOut,
			s.AverageLatency.Round(time.Millisecond),
			s.EstimatedUsage,
		})
	}
	t.Render()
}
