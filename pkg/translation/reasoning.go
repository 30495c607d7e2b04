package translation

import (
	"regexp"
	"strings"
)

// 推理模型常见的思考过程标记
var reasoningPatterns = func() []*regexp.Regexp {
	pairs := [][2]string{
		{"<think>", "</think>"},
		{"<thinking>", "</thinking>"},
		{"<thought>", "</thought>"},
		{"<reasoning>", "</reasoning>"},
		{"[THINKING]", "[/THINKING]"},
		{"[REASONING]", "[/REASONING]"},
	}
	out := make([]*regexp.Regexp, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, regexp.MustCompile(regexp.QuoteMeta(p[0])+`(?s:.*?)`+regexp.QuoteMeta(p[1])))
	}
	return out
}()

var blankLines = regexp.MustCompile(`\n{3,}`)

// HasReasoningTags 检查内容是否包含推理标记
func HasReasoningTags(content string) bool {
	for _, re := range reasoningPatterns {
		if re.MatchString(content) {
			return true
		}
	}
	return false
}

// StripReasoning 移除推理模型输出中的思考过程，并压缩多余空行
func StripReasoning(content string) string {
	if !HasReasoningTags(content) {
		return strings.TrimSpace(content)
	}
	for _, re := range reasoningPatterns {
		content = re.ReplaceAllString(content, "")
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(content, "\n\n"))
}
