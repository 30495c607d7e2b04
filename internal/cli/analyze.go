package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/go-pdf-translator/internal/pipeline"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/langdetect"
)

var (
	analyzeJSON  bool
	previewWidth int
)

// NewAnalyzeCommand 创建 analyze 命令
func NewAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [flags] input.pdf",
		Short: "分析 PDF 的版面与分块，不调用翻译接口",
		Long: `解析 PDF 并显示页数、文本块数、估算 token 数、检测到的语言以及分块预览。
可用于在翻译前检查分块大小是否合适。`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().BoolVar(&analyzeJSON, "json", false, "以 JSON 格式输出")
	cmd.Flags().IntVar(&previewWidth, "width", 60, "预览列的显示宽度")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := commandLogger(cfg)
	defer func() {
		_ = log.Sync()
	}()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	svc := pipeline.New(nil,
		pipeline.WithLogger(log),
		pipeline.WithChunkingOptions(cfg.Chunking),
		pipeline.WithMaxFileSize(cfg.MaxFileSize()),
	)

	name := filepath.Base(args[0])
	up, err := svc.Upload(name, data, cfg.SourceLang)
	if err != nil {
		return err
	}
	parsed, err := svc.Parse(cmd.Context(), up.JobID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if analyzeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(parsed)
	}

	renderAnalysis(out, name, parsed, cfg.Chunking.MaxTokensPerChunk, previewWidth)
	return nil
}

// renderAnalysis 以表格输出解析摘要与分块预览
func renderAnalysis(w io.Writer, name string, parsed *pipeline.ParseResult, maxTokens, width int) {
	s := parsed.Parsing

	summary := table.NewWriter()
	summary.SetOutputMirror(w)
	summary.SetStyle(table.StyleLight)
	summary.SetTitle(name)
	summary.AppendRows([]table.Row{
		{"Pages", s.PageCount},
		{"Blocks", s.BlockCount},
		{"Estimated tokens", s.EstimatedTokens},
		{"Language", langdetect.DisplayName(s.DetectedLanguage)},
		{"Right-to-left", s.HasRTL},
		{"Chunks", len(parsed.Chunks)},
	})
	summary.Render()

	if len(parsed.Chunks) == 0 {
		fmt.Fprintln(w, "No text found.")
		return
	}

	oversized := make(map[int]bool, len(parsed.Oversized))
	for _, i := range parsed.Oversized {
		oversized[i] = true
	}

	chunks := table.NewWriter()
	chunks.SetOutputMirror(w)
	chunks.SetStyle(table.StyleLight)
	chunks.AppendHeader(table.Row{"#", "Pages", "Tokens", "Preview"})
	for _, p := range parsed.Chunks {
		tokens := fmt.Sprint(p.TokenCount)
		if oversized[p.Index] {
			tokens += " !"
		}
		chunks.AppendRow(table.Row{
			p.Index + 1,
			pageRange(p.PageRange),
			tokens,
			truncate(p.Preview, width),
		})
	}
	chunks.Render()

	if len(parsed.Oversized) > 0 {
		fmt.Fprintf(w, "! %d chunk(s) exceed the %d token limit\n", len(parsed.Oversized), maxTokens)
	}
}

func pageRange(r [2]int) string {
	if r[0] == r[1] {
		return fmt.Sprint(r[0])
	}
	return fmt.Sprintf("%d-%d", r[0], r[1])
}

// truncate 按显示宽度截断，阿拉伯文与全角字符按实际宽度计算
func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
