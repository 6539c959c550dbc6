package web

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
)

// markdown renders note content. Raw HTML in notes is omitted by goldmark's
// default renderer.
type markdown struct {
	md goldmark.Markdown
}

func newMarkdown() markdown {
	return markdown{md: goldmark.New()}
}

func (m markdown) render(content string) template.HTML {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(content), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(content) + "</p>")
	}
	return template.HTML(buf.String())
}
