package translation

import (
	"errors"
	"fmt"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers/retry"
)

// 错误代码常量
const (
	ErrCodeInputMissing           = "INPUT_MISSING"
	ErrCodeUnsupportedFormat      = "UNSUPPORTED_FORMAT"
	ErrCodeChunkOverflow          = "CHUNK_OVERFLOW"
	ErrCodeTranslationTransient   = "TRANSLATION_TRANSIENT"
	ErrCodeReconstructionMismatch = "RECONSTRUCTION_MISMATCH"
)

// 预定义错误，配合 errors.Is 使用
var (
	// ErrInputMissing 文档、任务或分块不存在
	ErrInputMissing = &TranslationError{Code: ErrCodeInputMissing, Message: "input missing"}

	// ErrUnsupportedFormat 非 PDF 输入
	ErrUnsupportedFormat = &TranslationError{Code: ErrCodeUnsupportedFormat, Message: "unsupported format"}

	// ErrChunkOverflow 分块超过上限。分块器只报告，不返回该错误
	ErrChunkOverflow = &TranslationError{Code: ErrCodeChunkOverflow, Message: "chunk exceeds token limit"}

	// ErrTranslationTransient 翻译调用失败
	ErrTranslationTransient = &TranslationError{Code: ErrCodeTranslationTransient, Message: "translation failed", Retry: true}

	// ErrReconstructionMismatch 段落数不一致。重建时回退到原文，不返回该错误
	ErrReconstructionMismatch = &TranslationError{Code: ErrCodeReconstructionMismatch, Message: "paragraph count mismatch"}
)

// TranslationError 翻译错误
type TranslationError struct {
	Code    string // 错误代码
	Message string // 错误消息
	Cause   error  // 原因
	ChunkID string // 发生错误的分块
	Retry   bool   // 是否可重试
}

// Error 实现error接口
func (e *TranslationError) Error() string {
	if e.ChunkID != "" {
		return fmt.Sprintf("[%s] %s (chunk %s)", e.Code, e.Message, e.ChunkID)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回原因错误
func (e *TranslationError) Unwrap() error {
	return e.Cause
}

// Is 按错误代码比较
func (e *TranslationError) Is(target error) bool {
	var te *TranslationError
	if !errors.As(target, &te) {
		return false
	}
	return te.Code == e.Code
}

// IsRetryable 是否可重试
func (e *TranslationError) IsRetryable() bool {
	return e.Retry
}

// NewTranslationError 创建翻译错误
func NewTranslationError(code, message string, cause error) *TranslationError {
	return &TranslationError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// InputMissing 创建资源不存在错误
func InputMissing(format string, args ...any) *TranslationError {
	return NewTranslationError(ErrCodeInputMissing, fmt.Sprintf(format, args...), nil)
}

// UnsupportedFormat 创建格式不支持错误
func UnsupportedFormat(format string, args ...any) *TranslationError {
	return NewTranslationError(ErrCodeUnsupportedFormat, fmt.Sprintf(format, args...), nil)
}

// WrapError 包装错误
func WrapError(err error, code, message string) *TranslationError {
	if err == nil {
		return nil
	}

	// 如果已经是TranslationError，保留原有信息
	var te *TranslationError
	if errors.As(err, &te) {
		wrapped := *te
		wrapped.Message = message + ": " + te.Message
		wrapped.Cause = err
		return &wrapped
	}

	return &TranslationError{
		Code:    code,
		Message: message + ": " + err.Error(),
		Cause:   err,
		Retry:   retry.IsRetryable(err),
	}
}

// Code 返回错误链中的错误代码
func Code(err error) string {
	var te *TranslationError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
