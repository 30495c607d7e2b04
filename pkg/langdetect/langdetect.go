// Package langdetect 检测文本方向和源语言（阿拉伯语、土耳其语、德语）。
package langdetect

import (
	"strings"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

const (
	directionSampleSize = 100
	languageSampleSize  = 1000

	rtlThreshold    = 0.3
	arabicThreshold = 0.2
)

const (
	turkishLetters = "çÇğĞıİöÖşŞüÜ"
	germanLetters  = "äÄöÖüÜß"
)

var (
	turkishWords = regexp2.MustCompile(`(?i)\b(ve|bir|bu|için|ile|olan|olarak)\b`, regexp2.None)
	germanWords  = regexp2.MustCompile(`(?i)\b(und|der|die|das|ist|ein|eine|auf|mit|für)\b`, regexp2.None)
)

// IsArabicRune 是否为阿拉伯文字符（含补充区和扩展 A 区）
func IsArabicRune(r rune) bool {
	return (r >= 0x0600 && r <= 0x06FF) ||
		(r >= 0x0750 && r <= 0x077F) ||
		(r >= 0x08A0 && r <= 0x08FF)
}

// HasRTLCharacters 文本中是否包含从右到左书写的字符
func HasRTLCharacters(text string) bool {
	return strings.IndexFunc(text, IsArabicRune) >= 0
}

// DetectDirection 前 100 个字符中阿拉伯文字符超过 30% 时判定为 RTL
func DetectDirection(text string) document.Direction {
	sample := head(text, directionSampleSize)
	if len(sample) == 0 {
		return document.DirectionLTR
	}

	count := 0
	for _, r := range sample {
		if IsArabicRune(r) {
			count++
		}
	}

	if float64(count) > float64(len(sample))*rtlThreshold {
		return document.DirectionRTL
	}
	return document.DirectionLTR
}

// DetectLanguage 根据前 1000 个字符推断源语言
func DetectLanguage(text string) document.SourceLanguage {
	sample := head(text, languageSampleSize)
	if len(sample) == 0 {
		return document.LanguageUnknown
	}

	var arabic, turkish, german int
	for _, r := range sample {
		if IsArabicRune(r) {
			arabic++
		}
		if strings.ContainsRune(turkishLetters, r) {
			turkish++
		}
		if strings.ContainsRune(germanLetters, r) {
			german++
		}
	}

	if float64(arabic) > float64(len(sample))*arabicThreshold {
		return document.LanguageArabic
	}

	s := string(sample)
	turkishPattern, _ := turkishWords.MatchString(s)
	germanPattern, _ := germanWords.MatchString(s)

	// ö、ü 同时计入两种语言，土耳其语优先
	if turkish > german || (turkishPattern && turkish >= german) {
		return document.LanguageTurkish
	}
	if german > 0 || germanPattern {
		return document.LanguageGerman
	}
	if turkishPattern {
		return document.LanguageTurkish
	}

	return document.LanguageUnknown
}

// Tag 返回语言对应的 BCP 47 标签
func Tag(lang document.SourceLanguage) language.Tag {
	switch lang {
	case document.LanguageArabic:
		return language.Arabic
	case document.LanguageTurkish:
		return language.Turkish
	case document.LanguageGerman:
		return language.German
	default:
		return language.Und
	}
}

// DisplayName 返回语言的英文名称
func DisplayName(lang document.SourceLanguage) string {
	tag := Tag(lang)
	if tag == language.Und {
		return "Unknown"
	}
	return display.English.Languages().Name(tag)
}

// Parse 解析语言名称或语言代码（如 "ar"、"tr"、"de"、"German"）
func Parse(s string) (document.SourceLanguage, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch document.SourceLanguage(s) {
	case document.LanguageArabic, document.LanguageTurkish, document.LanguageGerman:
		return document.SourceLanguage(s), true
	}

	tag, err := language.Parse(s)
	if err != nil {
		return document.LanguageUnknown, false
	}
	base, _ := tag.Base()
	for _, lang := range document.SupportedLanguages() {
		if b, _ := Tag(lang).Base(); b == base {
			return lang, true
		}
	}
	return document.LanguageUnknown, false
}

func head(text string, n int) []rune {
	runes := []rune(text)
	if len(runes) > n {
		runes = runes[:n]
	}
	return runes
}
