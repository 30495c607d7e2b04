package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/internal/config"
	"github.com/nerdneilsfield/go-pdf-translator/internal/export"
	"github.com/nerdneilsfield/go-pdf-translator/internal/pipeline"
	"github.com/nerdneilsfield/go-pdf-translator/internal/store"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/chunking"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/langdetect"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

var (
	// translate 命令的标志
	outputFormat    string
	paperSize       string
	includeOriginal bool
	noLayout        bool
	informalTone    bool
	quietMode       bool
	showStats       bool
)

// NewTranslateCommand 创建 translate 命令
func NewTranslateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate [flags] input.pdf [output]",
		Short: "翻译 PDF 文档并导出",
		Long: `翻译 PDF 文档并导出为 PDF、DOCX、HTML 或 TXT。

输出格式由 --format 指定，未指定时根据输出文件扩展名判断；
未给出输出文件时写入输入文件所在目录，文件名为 <name>-translated.<ext>。

示例:
  pdftrans translate vertrag.pdf
  pdftrans translate -s ar contract.pdf contract.docx
  pdftrans translate --format html --informal report.pdf`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runTranslate,
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "", "输出格式 (pdf, docx, html, txt)")
	cmd.Flags().StringVar(&paperSize, "paper", "", "流式 PDF 的纸张尺寸 (a4, letter)")
	cmd.Flags().BoolVar(&includeOriginal, "include-original", false, "DOCX 中附带原文")
	cmd.Flags().BoolVar(&noLayout, "no-layout", false, "PDF 不保留原版面，按段落排版")
	cmd.Flags().BoolVar(&informalTone, "informal", false, "使用自然口语化的语气")
	cmd.Flags().BoolVarP(&quietMode, "quiet", "q", false, "不显示进度条")
	cmd.Flags().BoolVar(&showStats, "show-stats", false, "完成后显示提供商统计")

	return cmd
}

func runTranslate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := commandLogger(cfg)
	defer func() {
		_ = log.Sync()
	}()

	input := args[0]
	format, output, err := resolveOutput(input, args[1:])
	if err != nil {
		return err
	}
	exportOpts, err := exportOptions(cmd, cfg)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	comps, err := pipeline.Build(cfg, log)
	if err != nil {
		return err
	}
	svc := comps.Service
	defer func() {
		if err := comps.Stats.Save(); err != nil {
			log.Warn("failed to save provider stats", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	up, err := svc.Upload(filepath.Base(input), data, cfg.SourceLang)
	if err != nil {
		return err
	}
	parsed, err := svc.Parse(ctx, up.JobID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Parsed %s: %d pages, %d blocks, %d chunks (%s)\n",
		up.FileName,
		parsed.Parsing.PageCount,
		parsed.Parsing.BlockCount,
		len(parsed.Chunks),
		langdetect.DisplayName(parsed.Parsing.DetectedLanguage))

	prompt := chunking.PromptOptions{
		FormalTone:         cfg.Translation.FormalTone && !informalTone,
		PreserveFormatting: cfg.Translation.PreserveFormatting,
	}

	view := newProgressView(len(parsed.Chunks), quietMode)
	start := time.Now()
	res, err := svc.Translate(ctx, pipeline.TranslateRequest{JobID: up.JobID, Options: &prompt}, view.handle)
	view.stop()
	if err != nil {
		return err
	}
	if res.Cancelled {
		return errors.New("translation cancelled")
	}
	if len(res.Translations) == 0 {
		return fmt.Errorf("all %d chunks failed to translate", len(res.Failed))
	}

	if err := writeExport(svc, up.JobID, output, format, exportOpts); err != nil {
		return err
	}

	report, err := svc.Status(up.JobID)
	if err != nil {
		return err
	}
	printSummary(out, report, output, res.TokensUsed, time.Since(start))

	if showStats {
		fmt.Fprintln(out)
		comps.Stats.RenderTable(out)
	}
	return nil
}

// resolveOutput 确定输出格式和路径
func resolveOutput(input string, rest []string) (export.Format, string, error) {
	if len(rest) == 0 {
		f := export.FormatPDF
		if outputFormat != "" {
			parsed, err := export.ParseFormat(outputFormat)
			if err != nil {
				return "", "", err
			}
			f = parsed
		}
		return f, filepath.Join(filepath.Dir(input), export.FileName(input, f)), nil
	}

	output := rest[0]
	name := outputFormat
	if name == "" {
		name = filepath.Ext(output)
	}
	f, err := export.ParseFormat(name)
	if err != nil {
		return "", "", err
	}
	return f, output, nil
}

// exportOptions 合并配置与命令行的导出选项
func exportOptions(cmd *cobra.Command, cfg *config.Config) (export.Options, error) {
	opts := export.Options{
		PaperSize:       strings.ToLower(cfg.Export.PaperSize),
		PreserveLayout:  cfg.Export.PreserveLayout && !noLayout,
		IncludeOriginal: cfg.Export.IncludeOriginal || includeOriginal,
		Date:            time.Now(),
	}
	if cmd.Flags().Changed("paper") {
		opts.PaperSize = strings.ToLower(paperSize)
	}
	switch opts.PaperSize {
	case export.PaperA4, export.PaperLetter:
	default:
		return opts, fmt.Errorf("unsupported paper size %q (supported: a4, letter)", opts.PaperSize)
	}
	return opts, nil
}

func writeExport(svc *pipeline.Service, jobID, output string, format export.Format, opts export.Options) error {
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := svc.Export(f, jobID, format, opts); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// progressView 用进度条展示翻译事件
type progressView struct {
	bar   *pterm.ProgressbarPrinter
	total int
}

func newProgressView(total int, quiet bool) *progressView {
	v := &progressView{total: total}
	if quiet || total == 0 {
		return v
	}
	bar, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle("Translating").
		WithRemoveWhenDone(false).
		Start()
	if err == nil {
		v.bar = bar
	}
	return v
}

func (v *progressView) handle(e translation.Event) {
	if v.bar == nil {
		return
	}
	switch e.Type {
	case translation.EventChunkStart:
		if e.Index != nil {
			v.bar.UpdateTitle(fmt.Sprintf("Chunk %d/%d", *e.Index+1, v.total))
		}
	case translation.EventRetry:
		v.bar.UpdateTitle(fmt.Sprintf("Retrying (attempt %d)", e.Attempt))
	case translation.EventChunkComplete, translation.EventError:
		v.bar.Increment()
	}
}

func (v *progressView) stop() {
	if v.bar != nil {
		_, _ = v.bar.Stop()
	}
}

// printSummary 输出翻译结果摘要
func printSummary(w io.Writer, report *pipeline.StatusReport, output string, tokens int, elapsed time.Duration) {
	title := color.New(color.FgGreen, color.Bold)
	label := color.New(color.FgCyan)

	p := report.Progress
	if p.ChunksFailed > 0 {
		title = color.New(color.FgYellow, color.Bold)
	}
	title.Fprintln(w, "Translation finished")

	row := func(name string, value interface{}) {
		label.Fprintf(w, "  %-10s", name)
		fmt.Fprintln(w, value)
	}
	row("Output:", output)
	row("Language:", langdetect.DisplayName(report.SourceLanguage))
	row("Chunks:", fmt.Sprintf("%d/%d translated", p.ChunksCompleted, p.TotalChunks))
	row("Tokens:", tokens)
	row("Elapsed:", elapsed.Round(time.Millisecond))

	if p.ChunksFailed == 0 {
		return
	}
	warn := color.New(color.FgRed)
	warn.Fprintf(w, "  %d chunk(s) failed:\n", p.ChunksFailed)
	for _, ch := range report.Chunks {
		if ch.Status == store.ChunkError {
			fmt.Fprintf(w, "    #%d %s\n", ch.Index+1, ch.Error)
		}
	}
}
