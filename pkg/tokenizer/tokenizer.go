// Package tokenizer 提供确定性、可逆的分词器，用于分块时的 token 计数和上下文截取。
//
// 预分词沿用 GPT-2 的正则规则，但连续空白整体作为一个预分词，
// 这样用空白拼接的文本计数可以相加。每个预分词再按最多 4 个字符切分，
// 近似 BPE 合并后的粒度。Decode(Encode(s)) 总是等于 s。
package tokenizer

import (
	"strings"
	"sync"

	"github.com/dlclark/regexp2"
)

// pretokenPattern GPT-2 风格的预分词规则
const pretokenPattern = `'(?:s|t|re|ve|m|ll|d)| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`

// DefaultPieceSize 单个 token 最多包含的字符数（不计前导空格）
const DefaultPieceSize = 4

// Tokenizer 分词器
type Tokenizer struct {
	pattern   *regexp2.Regexp
	pieceSize int
}

var (
	defaultOnce      sync.Once
	defaultTokenizer *Tokenizer
)

// Default 返回共享的默认分词器
func Default() *Tokenizer {
	defaultOnce.Do(func() {
		defaultTokenizer = New(DefaultPieceSize)
	})
	return defaultTokenizer
}

// New 创建分词器，pieceSize <= 0 时使用默认值
func New(pieceSize int) *Tokenizer {
	if pieceSize <= 0 {
		pieceSize = DefaultPieceSize
	}
	return &Tokenizer{
		pattern:   regexp2.MustCompile(pretokenPattern, regexp2.None),
		pieceSize: pieceSize,
	}
}

// Encode 将文本切分为 token
func (t *Tokenizer) Encode(text string) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	tokens := make([]string, 0, len(runes)/3+1)
	pos := 0

	m, _ := t.pattern.FindRunesMatch(runes)
	for m != nil {
		// 正则覆盖所有字符，这里只是保证可逆
		if m.Index > pos {
			tokens = t.appendPieces(tokens, runes[pos:m.Index])
		}
		tokens = t.appendPieces(tokens, runes[m.Index:m.Index+m.Length])
		pos = m.Index + m.Length
		m, _ = t.pattern.FindNextMatch(m)
	}
	if pos < len(runes) {
		tokens = t.appendPieces(tokens, runes[pos:])
	}

	return tokens
}

// appendPieces 把一个预分词切成不超过 pieceSize 的片段
func (t *Tokenizer) appendPieces(tokens []string, pre []rune) []string {
	if len(pre) == 0 {
		return tokens
	}

	lead := 0
	if pre[0] == ' ' && len(pre) > 1 {
		lead = 1
	}

	end := min(lead+t.pieceSize, len(pre))
	tokens = append(tokens, string(pre[:end]))
	for start := end; start < len(pre); start += t.pieceSize {
		stop := min(start+t.pieceSize, len(pre))
		tokens = append(tokens, string(pre[start:stop]))
	}
	return tokens
}

// Decode 将 token 还原为文本
func (t *Tokenizer) Decode(tokens []string) string {
	return strings.Join(tokens, "")
}

// Count 统计 token 数量
func (t *Tokenizer) Count(text string) int {
	return len(t.Encode(text))
}

// Head 返回前 n 个 token 对应的文本
func (t *Tokenizer) Head(text string, n int) string {
	if n <= 0 {
		return ""
	}
	tokens := t.Encode(text)
	if n >= len(tokens) {
		return text
	}
	return t.Decode(tokens[:n])
}

// Tail 返回最后 n 个 token 对应的文本
func (t *Tokenizer) Tail(text string, n int) string {
	if n <= 0 {
		return ""
	}
	tokens := t.Encode(text)
	if n >= len(tokens) {
		return text
	}
	return t.Decode(tokens[len(tokens)-n:])
}
