package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/internal/config"
	"github.com/nerdneilsfield/go-pdf-translator/internal/logger"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/langdetect"
)

var (
	cfgFile    string
	debugMode  bool
	sourceLang string
	provider   string // 指定翻译提供商
	model      string
	maxTokens  int // 每个分块的最大 token 数
)

// newLogger 创建命令使用的日志记录器，测试中可替换
var newLogger = logger.NewLogger

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pdftrans",
		Short: "PDF 文档翻译工具，将阿拉伯语、土耳其语和德语文档翻译为英语",
		Long: `PDF 文档翻译工具，按版面分析、分块、逐块流式翻译、重建版面的流程
将阿拉伯语、土耳其语和德语 PDF 翻译为英语，并导出为 PDF、DOCX、HTML 或纯文本。

支持的翻译提供商:
  - openrouter: OpenRouter（默认）
  - openai: OpenAI 官方接口
  - compat: 任意 OpenAI 兼容接口（配合 base_url 使用）

示例:
  pdftrans translate contract.pdf contract-en.docx
  pdftrans analyze contract.pdf
  pdftrans serve --addr :8080`,
		Version:      fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage: true,
	}

	addGlobalFlags(rootCmd)

	rootCmd.AddCommand(NewTranslateCommand())
	rootCmd.AddCommand(NewAnalyzeCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewStatsCommand())

	return rootCmd
}

// addGlobalFlags 添加全局标志
func addGlobalFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "启用调试模式")
	rootCmd.PersistentFlags().StringVarP(&sourceLang, "source-lang", "s", "", "源语言 (arabic, turkish, german 或 ar, tr, de)，为空时自动检测")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "翻译提供商 (openrouter, openai, compat)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "使用的模型")
	rootCmd.PersistentFlags().IntVar(&maxTokens, "max-tokens", 0, "每个分块的最大 token 数")
}

// loadConfig 加载配置并用命令行参数覆盖
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	updateConfigFromFlags(cmd, cfg)

	if cfg.SourceLang != "" {
		lang, err := resolveLanguage(cfg.SourceLang)
		if err != nil {
			return nil, err
		}
		cfg.SourceLang = string(lang)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// updateConfigFromFlags 使用命令行参数更新配置
func updateConfigFromFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("debug") {
		cfg.Debug = debugMode
	}
	if cmd.Flags().Changed("source-lang") {
		cfg.SourceLang = sourceLang
	}
	if cmd.Flags().Changed("provider") {
		cfg.Provider = provider
	}
	if cmd.Flags().Changed("model") {
		cfg.Model = model
	}
	if cmd.Flags().Changed("max-tokens") {
		cfg.Chunking.MaxTokensPerChunk = maxTokens
	}
}

// languageNames 可接受的语言写法
func languageNames() []string {
	var names []string
	for _, lang := range document.SupportedLanguages() {
		names = append(names, string(lang))
		base, _ := langdetect.Tag(lang).Base()
		names = append(names, base.String())
	}
	return names
}

// resolveLanguage 解析语言参数，无法识别时给出最接近的候选
func resolveLanguage(s string) (document.SourceLanguage, error) {
	if lang, ok := langdetect.Parse(s); ok {
		return lang, nil
	}

	ranks := fuzzy.RankFindNormalizedFold(s, languageNames())
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return "", fmt.Errorf("unsupported source language %q, did you mean %q?", s, ranks[0].Target)
	}
	return "", fmt.Errorf("unsupported source language %q (supported: %s)", s, strings.Join(languageNames(), ", "))
}

// commandLogger 按配置创建日志
func commandLogger(cfg *config.Config) *zap.Logger {
	return newLogger(cfg.Debug || debugMode)
}
