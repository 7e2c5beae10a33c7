package markdown

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	out := Render("**bold** and `code`")
	if !strings.Contains(out, "<strong>bold</strong>") {
		t.Errorf("missing bold: %q", out)
	}
	if !strings.Contains(out, "<code>code</code>") {
		t.Errorf("missing code span: %q", out)
	}
}

func TestRenderEmpty(t *testing.T) {
	if out := Render(""); out != "" {
		t.Errorf("empty input rendered %q", out)
	}
}

func TestRenderTable(t *testing.T) {
	out := Render("| a | b |\n|---|---|\n| 1 | 2 |")
	if !strings.Contains(out, "<table>") {
		t.Errorf("gfm table not rendered: %q", out)
	}
}
