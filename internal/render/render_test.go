package render

import (
	"strings"
	"testing"
)

func TestMarkdown(t *testing.T) {
	out := string(Markdown("**bold** and `code`"))
	if !strings.Contains(out, "<strong>bold</strong>") {
		t.Errorf("expected bold markup, got %q", out)
	}
	if !strings.Contains(out, "<code>code</code>") {
		t.Errorf("expected code markup, got %q", out)
	}
}

func TestMarkdownSanitizes(t *testing.T) {
	out := string(Markdown("hi <script>alert(1)</script>"))
	if strings.Contains(out, "<script>") {
		t.Errorf("expected script to be stripped, got %q", out)
	}

	out = string(Markdown("[x](javascript:alert(1))"))
	if strings.Contains(out, "javascript:") {
		t.Errorf("expected javascript link to be stripped, got %q", out)
	}
}

func TestMarkdownTable(t *testing.T) {
	out := string(Markdown("| a | b |\n|---|---|\n| 1 | 2 |\n"))
	if !strings.Contains(out, "<table>") {
		t.Errorf("expected GFM table, got %q", out)
	}
}

func TestToMarkdown(t *testing.T) {
	md, err := ToMarkdown("<h1>Title</h1><p>Some <strong>bold</strong> text</p>")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(md, "# Title") {
		t.Errorf("expected heading, got %q", md)
	}
	if !strings.Contains(md, "**bold**") {
		t.Errorf("expected bold, got %q", md)
	}
}

func TestTranscript(t *testing.T) {
	md, err := Transcript("Build a snake game", []Entry{
		{Heading: "Alice - Product Manager", Meta: "03:04 PM", Body: "Write the **PRD**"},
		{Heading: "Bob - Architect", Body: "Design done"},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"# Build a snake game", "### Alice - Product Manager", "**PRD**", "Design done"} {
		if !strings.Contains(md, want) {
			t.Errorf("expected %q in transcript:\n%s", want, md)
		}
	}
}
