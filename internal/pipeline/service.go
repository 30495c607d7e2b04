// Package pipeline 串联上传、解析、分块、翻译和导出，管理任务生命周期。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/internal/export"
	"github.com/nerdneilsfield/go-pdf-translator/internal/logger"
	"github.com/nerdneilsfield/go-pdf-translator/internal/pdfextract"
	"github.com/nerdneilsfield/go-pdf-translator/internal/store"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/chunking"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/langdetect"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/layout"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/reconstruct"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

// DefaultMaxFileSize 默认上传上限 50MB
const DefaultMaxFileSize int64 = 50 << 20

// 未指定且无法检测时使用的源语言
const fallbackLanguage = document.LanguageArabic

var (
	// ErrNothingToTranslate 没有待翻译的分块
	ErrNothingToTranslate = errors.New("no chunks to translate")
	// ErrNotComplete 翻译尚未完成，不能导出
	ErrNotComplete = errors.New("translation not complete")
	// ErrNoTranslator 服务只用于解析，未配置翻译器
	ErrNoTranslator = errors.New("no translator configured")
	// ErrBusy 任务正在翻译
	ErrBusy = errors.New("translation already in progress")
)

// Service 翻译任务服务
type Service struct {
	store      store.Store
	extractor  *pdfextract.Extractor
	translator *translation.Translator
	exporter   *export.Exporter
	logger     *zap.Logger

	chunking    document.ChunkingOptions
	prompt      chunking.PromptOptions
	maxFileSize int64
	newID       func() string
}

// Option 服务选项
type Option func(*Service)

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger.OrNop(l)
	}
}

// WithStore 设置任务存储
func WithStore(st store.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithChunkingOptions 设置分块参数
func WithChunkingOptions(opts document.ChunkingOptions) Option {
	return func(s *Service) {
		s.chunking = opts.WithDefaults()
	}
}

// WithPromptOptions 设置默认提示词选项
func WithPromptOptions(opts chunking.PromptOptions) Option {
	return func(s *Service) {
		s.prompt = opts
	}
}

// WithMaxFileSize 设置上传上限（字节）
func WithMaxFileSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxFileSize = n
		}
	}
}

// WithIDGenerator 设置任务 ID 生成函数
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithExtractor 设置 PDF 提取器
func WithExtractor(e *pdfextract.Extractor) Option {
	return func(s *Service) {
		if e != nil {
			s.extractor = e
		}
	}
}

// New 创建服务。tr 为 nil 时服务只支持上传与解析
func New(tr *translation.Translator, opts ...Option) *Service {
	s := &Service{
		store:       store.NewMemoryStore(0),
		translator:  tr,
		logger:      zap.NewNop(),
		chunking:    document.DefaultChunkingOptions(),
		prompt:      chunking.DefaultPromptOptions(),
		maxFileSize: DefaultMaxFileSize,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.extractor == nil {
		s.extractor = pdfextract.New(pdfextract.WithLogger(s.logger))
	}
	s.exporter = export.New(s.logger)
	return s
}

// Store 返回任务存储
func (s *Service) Store() store.Store {
	return s.store
}

// RunCleanup 定期清理过期任务，仅对内存存储生效
func (s *Service) RunCleanup(ctx context.Context, interval time.Duration) {
	ms, ok := s.store.(*store.MemoryStore)
	if !ok {
		return
	}
	ms.RunCleanup(ctx, interval, func(ids []string) {
		s.logger.Info("expired jobs removed", zap.Strings("job_ids", ids))
	})
}

// load 读取任务，不存在时返回 InputMissing
func (s *Service) load(jobID string) (store.Job, error) {
	if jobID == "" {
		return store.Job{}, translation.InputMissing("job ID is required")
	}
	job, err := s.store.Get(jobID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Job{}, translation.InputMissing("job %s not found", jobID)
	}
	return job, err
}

// UploadResult 上传结果
type UploadResult struct {
	JobID    string `json:"jobId"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	Status   string `json:"status"`
}

// Upload 校验文件并创建任务。language 为空时在解析阶段自动检测。
func (s *Service) Upload(fileName string, data []byte, language string) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, translation.InputMissing("no file provided")
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, translation.UnsupportedFormat("file too large, maximum size is %dMB", s.maxFileSize>>20)
	}
	if !pdfextract.IsPDF(data) {
		return nil, translation.UnsupportedFormat("invalid file type, only PDF files are accepted")
	}

	lang := document.LanguageUnknown
	if language != "" {
		parsed, ok := langdetect.Parse(language)
		if !ok {
			return nil, translation.UnsupportedFormat("invalid source language %q, must be arabic, turkish, or german", language)
		}
		lang = parsed
	}

	job := store.NewJob(s.newID(), fileName, lang, data)
	if err := s.store.Create(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("file uploaded",
		zap.String("job_id", job.ID),
		zap.String("file", fileName),
		zap.Int64("size", job.FileSize),
		zap.String("language", string(lang)))

	return &UploadResult{
		JobID:    job.ID,
		FileName: fileName,
		FileSize: job.FileSize,
		Status:   "uploaded",
	}, nil
}

// ParsingSummary 解析摘要
type ParsingSummary struct {
	Status           string                  `json:"status"`
	PageCount        int                     `json:"pageCount"`
	BlockCount       int                     `json:"blockCount"`
	EstimatedTokens  int                     `json:"estimatedTokens"`
	DetectedLanguage document.SourceLanguage `json:"detectedLanguage"`
	HasRTL           bool                    `json:"hasRTL"`
}

// ParseResult 解析结果
type ParseResult struct {
	JobID     string                  `json:"jobId"`
	Parsing   ParsingSummary          `json:"parsing"`
	Chunks    []document.ChunkPreview `json:"chunks"`
	Oversized []int                   `json:"oversized,omitempty"`
}

// Parse 提取文本、分析版面并分块
func (s *Service) Parse(ctx context.Context, jobID string) (*ParseResult, error) {
	job, err := s.load(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == store.StatusTranslating {
		return nil, ErrBusy
	}
	log := logger.ForJob(s.logger, jobID)

	if _, err := s.store.Update(jobID, func(j *store.Job) error {
		j.Status = store.StatusParsing
		j.Error = ""
		return nil
	}); err != nil {
		return nil, err
	}

	doc, err := s.extractor.Extract(job.FileData, job.FileName)
	if err != nil {
		s.fail(jobID, err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		s.fail(jobID, err)
		return nil, err
	}

	doc.TotalBlocks = 0
	for i, page := range doc.Pages {
		doc.Pages[i] = layout.AnalyzePage(page)
		doc.TotalBlocks += len(doc.Pages[i].Blocks)
	}
	doc.DetectedLanguage = langdetect.DetectLanguage(layout.DocumentText(doc.Pages))

	result := chunking.NewChunker(s.chunking).Chunk(*doc)
	if len(result.Oversized) > 0 {
		log.Warn("chunks exceed token limit",
			zap.Ints("chunk_indices", result.Oversized),
			zap.Int("max_tokens", s.chunking.MaxTokensPerChunk))
	}

	if _, err := s.store.Update(jobID, func(j *store.Job) error {
		*j = j.WithChunks(result)
		j.Document = doc
		if j.SourceLanguage == document.LanguageUnknown {
			j.SourceLanguage = doc.DetectedLanguage
			if !j.SourceLanguage.IsSupported() {
				j.SourceLanguage = fallbackLanguage
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	log.Info("document parsed",
		zap.Int("pages", doc.PageCount),
		zap.Int("blocks", doc.TotalBlocks),
		zap.Int("chunks", len(result.Chunks)),
		zap.Int("tokens", result.TotalTokens),
		zap.String("language", string(doc.DetectedLanguage)))

	return &ParseResult{
		JobID: jobID,
		Parsing: ParsingSummary{
			Status:           "complete",
			PageCount:        doc.PageCount,
			BlockCount:       doc.TotalBlocks,
			EstimatedTokens:  result.TotalTokens,
			DetectedLanguage: doc.DetectedLanguage,
			HasRTL:           doc.HasRTL,
		},
		Chunks:    chunking.Previews(result.Chunks),
		Oversized: result.Oversized,
	}, nil
}

// fail 把任务标记为出错
func (s *Service) fail(jobID string, cause error) {
	if _, err := s.store.Update(jobID, func(j *store.Job) error {
		j.Status = store.StatusError
		j.Error = cause.Error()
		return nil
	}); err != nil {
		s.logger.Warn("failed to record job error", zap.String("job_id", jobID), zap.Error(err))
	}
}

// TranslateRequest 翻译请求
type TranslateRequest struct {
	JobID string
	// ChunkID 非空时只翻译该分块（可用于重试单个分块）
	ChunkID string
	// Options 为空时使用服务默认值
	Options *chunking.PromptOptions
}

// Translate 翻译任务中尚未完成的分块，或指定的单个分块。
// 从翻译器的事件通道依次读取事件，先写入任务状态再交给 emit；上下文取消时任务状态为 cancelled。
func (s *Service) Translate(ctx context.Context, req TranslateRequest, emit translation.EventFunc) (*translation.Result, error) {
	if s.translator == nil {
		return nil, ErrNoTranslator
	}
	if emit == nil {
		emit = func(translation.Event) {}
	}

	job, err := s.load(req.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status == store.StatusTranslating {
		return nil, ErrBusy
	}

	var pending []document.Chunk
	if req.ChunkID != "" {
		ch, ok := job.FindChunk(req.ChunkID)
		if !ok {
			return nil, translation.InputMissing("chunk %s not found", req.ChunkID)
		}
		pending = []document.Chunk{ch}
	} else {
		pending = job.Untranslated()
	}
	if len(pending) == 0 {
		return nil, ErrNothingToTranslate
	}

	opts := s.prompt
	if req.Options != nil {
		opts.FormalTone = req.Options.FormalTone
		opts.PreserveFormatting = req.Options.PreserveFormatting
	}

	if _, err := s.store.Update(req.JobID, func(j *store.Job) error {
		if j.Status == store.StatusTranslating {
			return ErrBusy
		}
		j.Status = store.StatusTranslating
		j.Error = ""
		return nil
	}); err != nil {
		return nil, err
	}

	log := logger.ForJob(s.logger, req.JobID)
	log.Info("translation started",
		zap.Int("chunks", len(pending)),
		zap.String("language", string(job.SourceLanguage)))

	res := &translation.Result{
		Translations: make(map[string]document.TranslatedChunk, len(pending)),
		Failed:       make(map[string]error),
	}
	completed := false

	for e := range s.translator.Stream(ctx, req.JobID, pending, job.SourceLanguage, opts) {
		switch e.Type {
		case translation.EventChunkStart:
			s.update(log, req.JobID, func(j *store.Job) { j.Active = e.ChunkID })
		case translation.EventChunkComplete:
			if e.Chunk == nil {
				break
			}
			tc := *e.Chunk
			res.Translations[tc.ChunkID] = tc
			res.TokensUsed += tc.TokensUsed
			s.update(log, req.JobID, func(j *store.Job) { *j = j.WithTranslation(tc) })
		case translation.EventError:
			res.Failed[e.ChunkID] = &translation.TranslationError{
				Code:    translation.ErrCodeTranslationTransient,
				Message: e.Error,
				ChunkID: e.ChunkID,
			}
			s.update(log, req.JobID, func(j *store.Job) { *j = j.WithFailure(e.ChunkID, e.Error) })
		case translation.EventComplete:
			completed = true
			total := len(job.Chunks)
			e.TotalChunks = &total
			s.update(log, req.JobID, func(j *store.Job) {
				j.Active = ""
				if j.Finished() {
					j.Status = store.StatusComplete
				} else {
					j.Status = store.StatusChunking
				}
			})
		}
		emit(e)
	}

	// 通道关闭前没有收到 complete 说明被取消
	if !completed && ctx.Err() != nil {
		res.Cancelled = true
		s.update(log, req.JobID, func(j *store.Job) {
			j.Status = store.StatusCancelled
			j.Active = ""
		})
	}

	log.Info("translation finished",
		zap.Int("translated", len(res.Translations)),
		zap.Int("failed", len(res.Failed)),
		zap.Int("tokens_used", res.TokensUsed),
		zap.Bool("cancelled", res.Cancelled))

	return res, nil
}

// update 修改任务，失败只记录日志
func (s *Service) update(log *zap.Logger, jobID string, fn func(*store.Job)) {
	if _, err := s.store.Update(jobID, func(j *store.Job) error {
		fn(j)
		return nil
	}); err != nil {
		log.Warn("failed to update job", zap.Error(err))
	}
}

// ChunkState 分块状态
type ChunkState struct {
	ID     string            `json:"id"`
	Index  int               `json:"index"`
	Status store.ChunkStatus `json:"status"`
	Error  string            `json:"error,omitempty"`
}

// ProgressReport 进度及完成百分比
type ProgressReport struct {
	store.Progress
	PercentComplete float64 `json:"percentComplete"`
}

// StatusReport 任务状态
type StatusReport struct {
	JobID          string                  `json:"jobId"`
	FileName       string                  `json:"fileName"`
	SourceLanguage document.SourceLanguage `json:"sourceLanguage"`
	Status         store.Status            `json:"status"`
	Progress       ProgressReport          `json:"progress"`
	Chunks         []ChunkState            `json:"chunks"`
	Error          string                  `json:"error,omitempty"`
}

// Status 返回任务进度和每个分块的状态
func (s *Service) Status(jobID string) (*StatusReport, error) {
	job, err := s.load(jobID)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		JobID:          job.ID,
		FileName:       job.FileName,
		SourceLanguage: job.SourceLanguage,
		Status:         job.Status,
		Progress: ProgressReport{
			Progress:        job.Progress,
			PercentComplete: job.Progress.PercentComplete(),
		},
		Chunks: make([]ChunkState, 0, len(job.Chunks)),
		Error:  job.Error,
	}
	for _, ch := range job.Chunks {
		report.Chunks = append(report.Chunks, ChunkState{
			ID:     ch.ID,
			Index:  ch.Index,
			Status: job.ChunkStatus(ch.ID),
			Error:  job.Failures[ch.ID],
		})
	}
	return report, nil
}

// Reconstruct 把已有译文放回原文版面
func (s *Service) Reconstruct(jobID string) (document.ReconstructedDocument, error) {
	job, err := s.load(jobID)
	if err != nil {
		return document.ReconstructedDocument{}, err
	}
	if job.Document == nil {
		return document.ReconstructedDocument{}, translation.InputMissing("job %s has not been parsed", jobID)
	}
	w, h := pdfextract.PageSize(job.Document)
	return reconstruct.ReconstructDocument(job.Chunks, job.Translated, w, h), nil
}

// Export 把已完成的任务渲染为指定格式
func (s *Service) Export(w io.Writer, jobID string, format export.Format, opts export.Options) error {
	job, err := s.load(jobID)
	if err != nil {
		return err
	}
	if job.Status != store.StatusComplete {
		return ErrNotComplete
	}

	src := export.Source{
		FileName:       job.FileName,
		SourceLanguage: job.SourceLanguage,
		Chunks:         job.Chunks,
		Translated:     job.Translated,
	}
	if format == export.FormatPDF && opts.PreserveLayout && job.Document != nil {
		pw, ph := pdfextract.PageSize(job.Document)
		doc := reconstruct.ReconstructDocument(job.Chunks, job.Translated, pw, ph)
		src.Reconstructed = &doc
	}
	return s.exporter.Render(w, format, src, opts)
}

// FullText 按顺序拼接的译文
func (s *Service) FullText(jobID string) (string, error) {
	job, err := s.load(jobID)
	if err != nil {
		return "", err
	}
	return job.FullTranslation(), nil
}

// Delete 删除任务及其文件
func (s *Service) Delete(jobID string) error {
	if _, err := s.load(jobID); err != nil {
		return err
	}
	if err := s.store.Delete(jobID); err != nil {
		return err
	}
	s.logger.Info("job deleted", zap.String("job_id", jobID))
	return nil
}
