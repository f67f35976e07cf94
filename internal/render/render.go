// Package render converts chat text between markdown and safe HTML.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	policy = newPolicy()
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w+-]+$`)).OnElements("code")
	return p
}

// Markdown renders model or user text as sanitized HTML for a chat bubble.
// Text that fails to parse is shown escaped.
func Markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(policy.SanitizeBytes(buf.Bytes()))
}

// ToMarkdown converts an HTML fragment back to markdown.
func ToMarkdown(fragment string) (string, error) {
	md, err := htmltomarkdown.ConvertString(fragment)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	return strings.TrimSpace(md) + "\n", nil
}

// Entry is one block of a transcript.
type Entry struct {
	Heading string
	Meta    string
	Body    string
}

// Transcript lays out entries as an HTML document with each body rendered
// from markdown, then converts the whole document to markdown so that the
// result has uniform headings and escaping.
func Transcript(title string, entries []Entry) (string, error) {
	var doc strings.Builder
	fmt.Fprintf(&doc, "<h1>%s</h1>\n", template.HTMLEscapeString(title))
	for _, e := range entries {
		fmt.Fprintf(&doc, "<h3>%s</h3>\n", template.HTMLEscapeString(e.Heading))
		if e.Meta != "" {
			fmt.Fprintf(&doc, "<p><em>%s</em></p>\n", template.HTMLEscapeString(e.Meta))
		}
		doc.WriteString(string(Markdown(e.Body)))
		doc.WriteString("\n<hr/>\n")
	}
	return ToMarkdown(doc.String())
}
