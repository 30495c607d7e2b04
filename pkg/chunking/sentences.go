package chunking

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// sentenceBoundary 句末标点（含阿拉伯问号）加空白，且下一个字符是大写字母或阿拉伯字母
var sentenceBoundary = regexp2.MustCompile(`([.!?؟]+)\s+(?=[\p{Lu}\u0600-\u06FF])`, regexp2.None)

// SplitIntoSentences 在句子边界处切分文本。没有边界时返回整段文本。
func SplitIntoSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	last := 0

	m, _ := sentenceBoundary.FindRunesMatch(runes)
	for m != nil {
		end := m.Index + m.GroupByNumber(1).Length
		if s := strings.TrimSpace(string(runes[last:end])); s != "" {
			sentences = append(sentences, s)
		}
		last = m.Index + m.Length
		m, _ = sentenceBoundary.FindNextMatch(m)
	}

	if rest := strings.TrimSpace(string(runes[last:])); rest != "" {
		sentences = append(sentences, rest)
	}

	if len(sentences) == 0 {
		return []string{text}
	}
	return sentences
}
