package export

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s</body>
</html>
`

// WriteHTML 把译文当作 Markdown 渲染为完整的 HTML 页面
func WriteHTML(w io.Writer, title, fullText string) error {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(fullText), &body); err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	_, err := fmt.Fprintf(w, htmlTemplate, html.EscapeString(title), body.String())
	return err
}
