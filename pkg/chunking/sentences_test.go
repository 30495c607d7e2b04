package chunking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitIntoSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "mixed punctuation",
			text: "Hello world. This is Arabic؟ مرحبا بك! Next one",
			want: []string{"Hello world.", "This is Arabic؟", "مرحبا بك!", "Next one"},
		},
		{
			name: "no split before lowercase",
			text: "See e.g. this example. Done",
			want: []string{"See e.g. this example.", "Done"},
		},
		{
			name: "repeated punctuation",
			text: "Wait... What?! Über alles.",
			want: []string{"Wait...", "What?!", "Über alles."},
		},
		{
			name: "no boundary",
			text: "no boundary here at all",
			want: []string{"no boundary here at all"},
		},
		{
			name: "extra whitespace",
			text: "  One.   Two.  ",
			want: []string{"One.", "Two."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitIntoSentences(tt.text))
		})
	}
}
