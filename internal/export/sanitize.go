package export

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// winAnsiReplacer 标准 PDF 字体无法编码的常见字符
var winAnsiReplacer = strings.NewReplacer(
	// 土耳其语
	"\u0130", "I",
	"\u0131", "i",
	"\u011e", "G",
	"\u011f", "g",
	"\u015e", "S",
	"\u015f", "s",
	// 零宽字符
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\ufeff", "",
	// 弯引号与破折号
	"\u201c", `"`,
	"\u201d", `"`,
	"\u2018", "'",
	"\u2019", "'",
	"\u2013", "-",
	"\u2014", "-",
	"\u2026", "...",
	"\u2022", "*",
	"\u00b7", "*",
)

// SanitizeWinAnsi 把文本限制在 Latin-1 范围内。
// 超出范围的字符先去掉组合符号，仍无法表示时替换为 '?'。
func SanitizeWinAnsi(text string) string {
	text = winAnsiReplacer.Replace(text)

	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if r <= 0xFF {
			sb.WriteRune(r)
			continue
		}
		sb.WriteString(stripMarks(r))
	}
	return sb.String()
}

func stripMarks(r rune) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, string(r))
	if err != nil || out == "" {
		return "?"
	}
	for _, c := range out {
		if c > 0xFF {
			return "?"
		}
	}
	return out
}
