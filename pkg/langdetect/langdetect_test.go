package langdetect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

func TestDetectDirection(t *testing.T) {
	assert.Equal(t, document.DirectionRTL, DetectDirection("هذا نص عربي للاختبار"))
	assert.Equal(t, document.DirectionLTR, DetectDirection("This is English text"))
	assert.Equal(t, document.DirectionLTR, DetectDirection(""))

	t.Run("arabic ratio too low", func(t *testing.T) {
		text := strings.Repeat("a", 80) + "عربي"
		assert.Equal(t, document.DirectionLTR, DetectDirection(text))
	})

	t.Run("only first 100 characters", func(t *testing.T) {
		text := strings.Repeat("a", 100) + strings.Repeat("ع", 200)
		assert.Equal(t, document.DirectionLTR, DetectDirection(text))
	})
}

func TestHasRTLCharacters(t *testing.T) {
	assert.True(t, HasRTLCharacters("hello مرحبا"))
	assert.False(t, HasRTLCharacters("hello"))
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want document.SourceLanguage
	}{
		{"arabic script", "في البداية كان هناك نص عربي طويل", document.LanguageArabic},
		{"turkish letters", "Türkçe öğrenmek için çalışıyorum", document.LanguageTurkish},
		{"german letters", "Die Straße ist schön und groß", document.LanguageGerman},
		{"german stopwords", "Das ist ein Test mit dem Auto", document.LanguageGerman},
		{"turkish stopwords", "Ankara ve Istanbul bir sehir", document.LanguageTurkish},
		{"unknown", "Plain english words only here", document.LanguageUnknown},
		{"empty text", "", document.LanguageUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.text))
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Arabic", DisplayName(document.LanguageArabic))
	assert.Equal(t, "Turkish", DisplayName(document.LanguageTurkish))
	assert.Equal(t, "German", DisplayName(document.LanguageGerman))
	assert.Equal(t, "Unknown", DisplayName(document.LanguageUnknown))
}

func TestParse(t *testing.T) {
	for in, want := range map[string]document.SourceLanguage{
		"arabic": document.LanguageArabic,
		"German": document.LanguageGerman,
		"tr":     document.LanguageTurkish,
		"ar-EG":  document.LanguageArabic,
	} {
		got, ok := Parse(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := Parse("french")
	assert.False(t, ok)
	_, ok = Parse("fr")
	assert.False(t, ok)
}
