package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Glossary 术语表文件
type Glossary struct {
	SourceLang   string            `toml:"source_lang"`
	TargetLang   string            `toml:"target_lang"`
	Translations map[string]string `toml:"translations"`
}

// LoadGlossary 加载 TOML 格式的术语表
func LoadGlossary(path string) (*Glossary, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("glossary file not found: %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read glossary file: %w", err)
	}

	glossary := &Glossary{}
	if err := toml.Unmarshal(content, glossary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal glossary: %w", err)
	}
	if glossary.SourceLang == "" || glossary.TargetLang == "" {
		return nil, fmt.Errorf("glossary file is missing source_lang or target_lang")
	}
	if !strings.EqualFold(glossary.TargetLang, "english") && !strings.EqualFold(glossary.TargetLang, "en") {
		return nil, fmt.Errorf("glossary target_lang must be English, got %q", glossary.TargetLang)
	}

	// 去掉空白词条
	for k, v := range glossary.Translations {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			delete(glossary.Translations, k)
		}
	}
	return glossary, nil
}
