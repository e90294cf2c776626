package services

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Markdown renders assistant replies, which the travel agent writes in GitHub-flavored markdown,
// into HTML. Raw HTML in the source is not passed through.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown creates a Markdown renderer with GFM tables, links and fenced code highlighting.
func NewMarkdown() Markdown {
	return Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle("github"),
				),
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
			),
		),
	}
}

// Render converts source to HTML.
func (m Markdown) Render(source string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("error converting markdown: %w", err)
	}
	// goldmark escapes raw HTML unless html.WithUnsafe is set, so the output is safe to embed.
	return template.HTML(buf.String()), nil
}
