package markdown

import (
	"strings"
	"testing"
)

func TestToPlainText(t *testing.T) {
	md := "# 标题\n\n第一段，包含 **粗体** 和 [链接](https://example.com)。\n\n- 项目一\n- 项目二\n"
	got := ToPlainText([]byte(md))

	for _, want := range []string{"标题", "第一段，包含 粗体 和 链接。", "项目一", "项目二"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %q", want, got)
		}
	}
	if strings.ContainsAny(got, "<>*#") {
		t.Errorf("markup left in output: %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("expected single blank lines between paragraphs: %q", got)
	}
}

func TestToPlainText_UnescapesEntities(t *testing.T) {
	got := ToPlainText([]byte("a < b & c"))
	if got != "a < b & c" {
		t.Errorf("expected entities unescaped, got %q", got)
	}
}

func TestStripHTMLTags(t *testing.T) {
	got := StripHTMLTags(`<p class="x">one</p><p>two</p>`)
	if got != "one\n\ntwo\n\n" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestToHTML(t *testing.T) {
	got := ToHTML([]byte("**bold**"))
	if !strings.Contains(got, "<strong>bold</strong>") {
		t.Errorf("unexpected HTML %q", got)
	}
}
