package store

import (
	"math"
	"time"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/reconstruct"
)

// Status 任务状态
type Status string

const (
	StatusUploading   Status = "uploading"
	StatusParsing     Status = "parsing"
	StatusChunking    Status = "chunking"
	StatusTranslating Status = "translating"
	StatusComplete    Status = "complete"
	StatusError       Status = "error"
	StatusCancelled   Status = "cancelled"
)

// ChunkStatus 分块状态
type ChunkStatus string

const (
	ChunkPending     ChunkStatus = "pending"
	ChunkTranslating ChunkStatus = "translating"
	ChunkComplete    ChunkStatus = "complete"
	ChunkError       ChunkStatus = "error"
)

// Progress 任务进度
type Progress struct {
	ChunksCompleted int `json:"chunksCompleted"`
	ChunksFailed    int `json:"chunksFailed"`
	TotalChunks     int `json:"totalChunks"`
	TokensProcessed int `json:"tokensProcessed"`
	TotalTokens     int `json:"totalTokens"`
}

// PercentComplete 已翻译分块的百分比，保留一位小数
func (p Progress) PercentComplete() float64 {
	if p.TotalChunks == 0 {
		return 0
	}
	pct := float64(p.ChunksCompleted) / float64(p.TotalChunks) * 100
	return math.Round(pct*10) / 10
}

// Job 一次翻译任务。Store 读写的都是副本。
type Job struct {
	ID             string                              `json:"id"`
	FileName       string                              `json:"fileName"`
	FileSize       int64                               `json:"fileSize"`
	SourceLanguage document.SourceLanguage             `json:"sourceLanguage"`
	Status         Status                              `json:"status"`
	Document       *document.ParsedDocument            `json:"document,omitempty"`
	Chunks         []document.Chunk                    `json:"chunks"`
	Oversized      []int                               `json:"oversized,omitempty"`
	Translated     map[string]document.TranslatedChunk `json:"translatedChunks"`
	Failures       map[string]string                   `json:"failures,omitempty"`
	Active         string                              `json:"activeChunk,omitempty"`
	Progress       Progress                            `json:"progress"`
	Error          string                              `json:"error,omitempty"`
	CreatedAt      time.Time                           `json:"createdAt"`
	UpdatedAt      time.Time                           `json:"updatedAt"`

	// FileData 上传的原始文件，不序列化
	FileData []byte `json:"-"`
}

// NewJob 创建上传阶段的任务
func NewJob(id, fileName string, lang document.SourceLanguage, data []byte) Job {
	now := time.Now()
	return Job{
		ID:             id,
		FileName:       fileName,
		FileSize:       int64(len(data)),
		SourceLanguage: lang,
		Status:         StatusUploading,
		Translated:     make(map[string]document.TranslatedChunk),
		Failures:       make(map[string]string),
		CreatedAt:      now,
		UpdatedAt:      now,
		FileData:       data,
	}
}

// Clone 复制任务。分块与文档视为只读，仅复制切片头；映射表重新分配。
func (j Job) Clone() Job {
	c := j
	c.Chunks = append([]document.Chunk(nil), j.Chunks...)
	c.Oversized = append([]int(nil), j.Oversized...)
	c.Translated = make(map[string]document.TranslatedChunk, len(j.Translated))
	for k, v := range j.Translated {
		c.Translated[k] = v
	}
	c.Failures = make(map[string]string, len(j.Failures))
	for k, v := range j.Failures {
		c.Failures[k] = v
	}
	return c
}

// WithChunks 设置分块结果
func (j Job) WithChunks(result document.ChunkingResult) Job {
	j = j.Clone()
	j.Chunks = result.Chunks
	j.Oversized = result.Oversized
	j.Status = StatusChunking
	j.Translated = make(map[string]document.TranslatedChunk)
	j.Failures = make(map[string]string)
	j.Progress = Progress{
		TotalChunks: len(result.Chunks),
		TotalTokens: result.TotalTokens,
	}
	return j
}

// WithTranslation 记录一个分块的译文。原映射不被修改。
func (j Job) WithTranslation(tc document.TranslatedChunk) Job {
	j = j.Clone()
	if prev, ok := j.Translated[tc.ChunkID]; ok {
		j.Progress.TokensProcessed -= prev.TokensUsed
	}
	j.Translated[tc.ChunkID] = tc
	delete(j.Failures, tc.ChunkID)
	if j.Active == tc.ChunkID {
		j.Active = ""
	}
	j.Progress.TokensProcessed += tc.TokensUsed
	j.refreshCounts()
	return j
}

// WithFailure 记录一个分块的失败
func (j Job) WithFailure(chunkID, msg string) Job {
	j = j.Clone()
	if _, ok := j.Translated[chunkID]; !ok {
		j.Failures[chunkID] = msg
	}
	if j.Active == chunkID {
		j.Active = ""
	}
	j.refreshCounts()
	return j
}

func (j *Job) refreshCounts() {
	j.Progress.ChunksCompleted = len(j.Translated)
	j.Progress.ChunksFailed = len(j.Failures)
}

// Finished 每个分块都有译文或失败记录
func (j Job) Finished() bool {
	if len(j.Chunks) == 0 {
		return false
	}
	for _, ch := range j.Chunks {
		_, done := j.Translated[ch.ID]
		_, failed := j.Failures[ch.ID]
		if !done && !failed {
			return false
		}
	}
	return true
}

// ChunkStatus 返回分块的当前状态
func (j Job) ChunkStatus(chunkID string) ChunkStatus {
	switch {
	case j.Translated[chunkID].ChunkID != "":
		return ChunkComplete
	case j.Failures[chunkID] != "":
		return ChunkError
	case j.Status == StatusTranslating && j.Active == chunkID:
		return ChunkTranslating
	default:
		return ChunkPending
	}
}

// FindChunk 按 ID 查找分块
func (j Job) FindChunk(chunkID string) (document.Chunk, bool) {
	for _, ch := range j.Chunks {
		if ch.ID == chunkID {
			return ch, true
		}
	}
	return document.Chunk{}, false
}

// Untranslated 尚无译文的分块，按序号排列
func (j Job) Untranslated() []document.Chunk {
	var out []document.Chunk
	for _, ch := range j.Chunks {
		if _, ok := j.Translated[ch.ID]; !ok {
			out = append(out, ch)
		}
	}
	return out
}

// FullTranslation 按分块顺序拼接全部译文
func (j Job) FullTranslation() string {
	return reconstruct.FullTranslatedText(j.Chunks, j.Translated)
}
