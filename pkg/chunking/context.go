package chunking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/langdetect"
)

// TranslationContext 发送给模型的提示词
type TranslationContext struct {
	SystemPrompt string
	UserPrompt   string
}

// PromptOptions 提示词选项
type PromptOptions struct {
	FormalTone         bool `json:"formalTone"`
	PreserveFormatting bool `json:"preserveFormatting"`
	// Glossary 术语表，源语言词 -> 英文译法
	Glossary map[string]string `json:"-"`
}

// DefaultPromptOptions 默认使用正式语气并保留格式
func DefaultPromptOptions() PromptOptions {
	return PromptOptions{
		FormalTone:         true,
		PreserveFormatting: true,
	}
}

const (
	beginNote = "[NOTE: This is the beginning of the document]\n\n"
	endNote   = "\n\n[NOTE: This is the end of the document]"
)

// BuildTranslationContext 构建分块的系统提示词和用户提示词
func BuildTranslationContext(chunk document.Chunk, lang document.SourceLanguage, opts PromptOptions) TranslationContext {
	var user strings.Builder

	if chunk.Metadata.IsFirstChunk {
		user.WriteString(beginNote)
	}
	if chunk.PreviousContext != "" {
		fmt.Fprintf(&user, "[CONTEXT - Previous text for continuity, already translated - DO NOT translate this again]:\n\"%s\"\n\n---\n\n", chunk.PreviousContext)
	}

	user.WriteString("[TEXT TO TRANSLATE]:\n")
	user.WriteString(chunk.Text)

	if chunk.NextContext != "" {
		fmt.Fprintf(&user, "\n\n---\n\n[CONTEXT - Following text for reference only - DO NOT translate this]:\n\"%s\"", chunk.NextContext)
	}
	if chunk.Metadata.IsLastChunk {
		user.WriteString(endNote)
	}

	return TranslationContext{
		SystemPrompt: systemPrompt(lang, opts, MatchGlossary(chunk.Text, opts.Glossary)),
		UserPrompt:   user.String(),
	}
}

// BuildQuickPrompt 构建用于快速翻译的简短提示词
func BuildQuickPrompt(text string, lang document.SourceLanguage) TranslationContext {
	return TranslationContext{
		SystemPrompt: fmt.Sprintf("Translate the following %s text to English. Output only the translation, nothing else.", langdetect.DisplayName(lang)),
		UserPrompt:   text,
	}
}

func systemPrompt(lang document.SourceLanguage, opts PromptOptions, terms [][2]string) string {
	structure := "Creating fluent, readable English prose"
	markers := "Using natural English formatting"
	if opts.PreserveFormatting {
		structure = "Maintaining paragraph structure (keep paragraph breaks as double newlines)"
		markers = "Preserving any formatting indicators (headers, lists, bullet points)"
	}
	tone := "natural, conversational"
	if opts.FormalTone {
		tone = "formal, professional"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert translator specializing in %s to English translation.\n\n", langdetect.DisplayName(lang))
	b.WriteString("Your task is to translate the provided text while:\n")
	b.WriteString("1. Preserving the exact meaning and nuance of the original\n")
	fmt.Fprintf(&b, "2. %s\n", structure)
	fmt.Fprintf(&b, "3. %s\n", markers)
	fmt.Fprintf(&b, "4. Using %s English tone\n", tone)
	b.WriteString("5. Handling technical terms and proper nouns appropriately (transliterate when no standard translation exists)\n\n")
	b.WriteString("CRITICAL RULES:\n")
	b.WriteString("- Output ONLY the translation, no explanations, notes, or commentary\n")
	b.WriteString("- Do NOT add any text that wasn't in the original\n")
	b.WriteString("- Do NOT include phrases like \"Here is the translation:\" or similar\n")
	b.WriteString("- Preserve any numbers, dates, and special characters exactly as they appear\n")
	b.WriteString("- If you encounter text that cannot be translated, leave it as-is")

	if len(terms) > 0 {
		b.WriteString("\n\nTerminology (use these translations consistently):\n")
		for _, t := range terms {
			fmt.Fprintf(&b, "- %s => %s\n", t[0], t[1])
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// MatchGlossary 返回在文本中出现的术语，按源词排序
func MatchGlossary(text string, glossary map[string]string) [][2]string {
	if len(glossary) == 0 {
		return nil
	}

	lower := strings.ToLower(text)
	var terms [][2]string
	for src, dst := range glossary {
		if src == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(src)) {
			terms = append(terms, [2]string{src, dst})
		}
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i][0] < terms[j][0] })
	return terms
}
