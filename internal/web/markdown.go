package web

import (
	"bytes"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Markdown renders user-written text to sanitized HTML.
type Markdown struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewMarkdown builds a renderer with GitHub-flavoured extensions. Raw HTML in
// the source is dropped by the sanitizer.
func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// Render converts source to safe HTML. On a conversion error the escaped
// source is returned.
func (m *Markdown) Render(source string) template.HTML {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(source), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(source))
	}
	return template.HTML(m.policy.SanitizeBytes(buf.Bytes()))
}
