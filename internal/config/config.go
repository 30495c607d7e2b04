package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/langdetect"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers/retry"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "PDFTRANS"

// RetrySettings 重试配置
type RetrySettings struct {
	MaxAttempts    int     `mapstructure:"max_attempts"`
	InitialDelayMs int     `mapstructure:"initial_delay_ms"`
	MaxDelayMs     int     `mapstructure:"max_delay_ms"`
	BackoffFactor  float64 `mapstructure:"backoff_factor"`
}

// TranslationSettings 翻译行为配置
type TranslationSettings struct {
	BufferSize         int  `mapstructure:"buffer_size"`
	FormalTone         bool `mapstructure:"formal_tone"`
	PreserveFormatting bool `mapstructure:"preserve_formatting"`
}

// ServerSettings HTTP 服务配置
type ServerSettings struct {
	ListenAddr    string `mapstructure:"listen_addr"`
	MaxFileSizeMB int    `mapstructure:"max_file_size_mb"`
	JobTTLMinutes int    `mapstructure:"job_ttl_minutes"`
}

// ExportSettings 导出配置
type ExportSettings struct {
	PaperSize       string `mapstructure:"paper_size"`
	PreserveLayout  bool   `mapstructure:"preserve_layout"`
	IncludeOriginal bool   `mapstructure:"include_original"`
}

// Config 保存翻译器的所有配置
type Config struct {
	Provider        string  `mapstructure:"provider"`
	Model           string  `mapstructure:"model"`
	BaseURL         string  `mapstructure:"base_url"`
	APIKey          string  `mapstructure:"api_key"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
	RequestTimeout  int     `mapstructure:"request_timeout"` // 请求超时时间（秒）

	// SourceLang 为空时自动检测
	SourceLang string `mapstructure:"source_lang"`

	Chunking    document.ChunkingOptions `mapstructure:"chunking"`
	Retry       RetrySettings            `mapstructure:"retry"`
	Translation TranslationSettings      `mapstructure:"translation"`
	Server      ServerSettings           `mapstructure:"server"`
	Export      ExportSettings           `mapstructure:"export"`

	GlossaryPath string `mapstructure:"glossary_path"`
	UseCache     bool   `mapstructure:"use_cache"`
	CacheDir     string `mapstructure:"cache_dir"`
	StatsPath    string `mapstructure:"stats_path"` // 为空时不持久化提供商统计
	Debug        bool   `mapstructure:"debug"`
}

// LoadConfig 从文件加载配置，未找到配置文件时使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 如果配置路径已指定，则直接使用
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".pdftrans")
		v.SetConfigType("yaml")
	}

	// 读取环境变量，嵌套键用下划线连接，如 PDFTRANS_CHUNKING_MAX_TOKENS_PER_CHUNK
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyFallbacks()
	return &config, nil
}

// NewDefaultConfig 创建一个新的默认配置
func NewDefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	// 默认值全部为基础类型，解码不会失败
	_ = v.Unmarshal(&config)
	config.applyFallbacks()
	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "openrouter")
	v.SetDefault("model", "")
	v.SetDefault("base_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("temperature", 0.3)
	v.SetDefault("max_output_tokens", 8192)
	v.SetDefault("request_timeout", 300)
	v.SetDefault("source_lang", "")

	v.SetDefault("chunking.max_tokens_per_chunk", document.DefaultMaxTokensPerChunk)
	v.SetDefault("chunking.overlap_tokens", document.DefaultOverlapTokens)
	v.SetDefault("chunking.context_tokens", document.DefaultContextTokens)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay_ms", 1000)
	v.SetDefault("retry.max_delay_ms", 30000)
	v.SetDefault("retry.backoff_factor", 2.0)

	v.SetDefault("translation.buffer_size", 64)
	v.SetDefault("translation.formal_tone", true)
	v.SetDefault("translation.preserve_formatting", true)

	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.max_file_size_mb", 50)
	v.SetDefault("server.job_ttl_minutes", 60)

	v.SetDefault("export.paper_size", "a4")
	v.SetDefault("export.preserve_layout", true)
	v.SetDefault("export.include_original", false)

	v.SetDefault("glossary_path", "")
	v.SetDefault("use_cache", false)
	v.SetDefault("cache_dir", getDefaultCacheDir())
	v.SetDefault("stats_path", filepath.Join(getDefaultCacheDir(), "provider-stats.json"))
	v.SetDefault("debug", false)
}

// applyFallbacks 未配置密钥时读取提供商的通用环境变量
func (c *Config) applyFallbacks() {
	if c.APIKey != "" {
		return
	}
	switch strings.ToLower(c.Provider) {
	case "openai":
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	default:
		c.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch strings.ToLower(c.Provider) {
	case "openai", "openrouter", "compat":
	default:
		return fmt.Errorf("unknown provider %q (supported: openai, openrouter, compat)", c.Provider)
	}

	if c.Chunking.MaxTokensPerChunk <= 0 {
		return fmt.Errorf("chunking.max_tokens_per_chunk must be positive, got %d", c.Chunking.MaxTokensPerChunk)
	}
	if c.Chunking.ContextTokens <= 0 {
		return fmt.Errorf("chunking.context_tokens must be positive, got %d", c.Chunking.ContextTokens)
	}
	if c.Chunking.OverlapTokens < 0 {
		return fmt.Errorf("chunking.overlap_tokens must not be negative, got %d", c.Chunking.OverlapTokens)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	if c.Server.MaxFileSizeMB <= 0 {
		return fmt.Errorf("server.max_file_size_mb must be positive, got %d", c.Server.MaxFileSizeMB)
	}

	if c.SourceLang != "" {
		if _, ok := langdetect.Parse(c.SourceLang); !ok {
			return fmt.Errorf("unsupported source language %q", c.SourceLang)
		}
	}

	switch strings.ToLower(c.Export.PaperSize) {
	case "a4", "letter":
	default:
		return fmt.Errorf("export.paper_size must be a4 or letter, got %q", c.Export.PaperSize)
	}

	return nil
}

// RetryConfig 转换为重试策略
func (c *Config) RetryConfig() retry.RetryConfig {
	return retry.RetryConfig{
		MaxAttempts:   c.Retry.MaxAttempts,
		InitialDelay:  time.Duration(c.Retry.InitialDelayMs) * time.Millisecond,
		MaxDelay:      time.Duration(c.Retry.MaxDelayMs) * time.Millisecond,
		BackoffFactor: c.Retry.BackoffFactor,
	}
}

// ProviderSettings 转换为提供商参数
func (c *Config) ProviderSettings() providers.Settings {
	return providers.Settings{
		Provider:    c.Provider,
		Model:       c.Model,
		BaseURL:     c.BaseURL,
		APIKey:      c.APIKey,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxOutputTokens,
		Timeout:     time.Duration(c.RequestTimeout) * time.Second,
	}
}

// MaxFileSize 上传文件大小上限（字节）
func (c *Config) MaxFileSize() int64 {
	return int64(c.Server.MaxFileSizeMB) << 20
}

// JobTTL 任务保留时间
func (c *Config) JobTTL() time.Duration {
	return time.Duration(c.Server.JobTTLMinutes) * time.Minute
}

// getDefaultCacheDir 获取默认缓存目录
func getDefaultCacheDir() string {
	// 优先使用系统缓存目录
	cacheDir, err := os.UserCacheDir()
	if err == nil {
		return filepath.Join(cacheDir, "pdftrans")
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(homeDir, ".pdftrans", "cache")
	}

	return "./pdftrans-cache"
}
