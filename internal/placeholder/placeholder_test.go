package placeholder_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/valpere/dzerkalo/internal/placeholder"
)

func TestProtect_PlainText(t *testing.T) {
	text := "深度学习需要大量数据。"
	got, m := placeholder.Protect(text)
	if got != text {
		t.Errorf("expected unchanged text, got %q", got)
	}
	if m.Len() != 0 {
		t.Errorf("expected no spans, got %d", m.Len())
	}
	if m.Restore(got) != text {
		t.Error("restore of plain text should be a no-op")
	}
}

func TestProtect_Kinds(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		span string
	}{
		{"fenced code", "示例：\n```go\nfmt.Println(1)\n```\n结束", "示例：\n[[0]]\n结束", "```go\nfmt.Println(1)\n```"},
		{"inline code", "运行 `go test` 即可", "运行 [[0]] 即可", "`go test`"},
		{"display math", "公式 $$E=mc^2$$ 成立", "公式 [[0]] 成立", "$$E=mc^2$$"},
		{"inline math", "当 $x>0$ 时", "当 [[0]] 时", "$x>0$"},
		{"url", "参见 https://example.com/a?b=1 获取详情", "参见 [[0]] 获取详情", "https://example.com/a?b=1"},
		{"url before han", "见https://example.com/doc。", "见[[0]]。", "https://example.com/doc"},
		{"html tag", "<b>重点</b>", "[[0]]重点[[1]]", "<b>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, m := placeholder.Protect(tt.text)
			if got != tt.want {
				t.Errorf("Protect() = %q, want %q", got, tt.want)
			}
			if m.Len() == 0 || m.Restore("[[0]]") != tt.span {
				t.Errorf("first span = %q, want %q", m.Restore("[[0]]"), tt.span)
			}
			if back := m.Restore(got); back != tt.text {
				t.Errorf("Restore() = %q, want %q", back, tt.text)
			}
		})
	}
}

func TestProtect_CodeInsideFenceCountedOnce(t *testing.T) {
	text := "```\nuse `x` and <br>\n```"
	got, m := placeholder.Protect(text)
	if got != "[[0]]" || m.Len() != 1 {
		t.Errorf("expected a single span, got %q with %d spans", got, m.Len())
	}
}

func TestRestore_RoundTripForms(t *testing.T) {
	_, m := placeholder.Protect("运行 `make` 和 `make test`")

	tests := []struct {
		name string
		in   string
	}{
		{"ascii", "运行 [[0]] 和 [[1]]"},
		{"full width", "运行 【【0】】 和 【【1】】"},
		{"full width square", "运行 ［［0］］ 和 ［［1］］"},
		{"padded", "运行 [[ 0 ]] 和 [[1 ]]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Restore(tt.in); got != "运行 `make` 和 `make test`" {
				t.Errorf("Restore(%q) = %q", tt.in, got)
			}
		})
	}
}

func TestRestore_UnknownMarkerKept(t *testing.T) {
	_, m := placeholder.Protect("`a`")
	if got := m.Restore("[[0]] [[7]]"); got != "`a` [[7]]" {
		t.Errorf("unexpected %q", got)
	}
}

func TestMissing(t *testing.T) {
	_, m := placeholder.Protect("`a` `b` `c`")
	if got := m.Missing("[[0]] 【【2】】"); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("Missing() = %v, want [1]", got)
	}
	if got := m.Missing("[[0]][[1]][[2]]"); got != nil {
		t.Errorf("expected nothing missing, got %v", got)
	}
}

func TestNilMarkup(t *testing.T) {
	var m *placeholder.Markup
	if m.Len() != 0 || m.Restore("[[0]]") != "[[0]]" || m.Missing("x") != nil {
		t.Error("nil Markup should behave as empty")
	}
}

func TestStrip(t *testing.T) {
	if got := placeholder.Strip("[[0]] Deep learning needs data 【【1】】"); got != "Deep learning needs data" {
		t.Errorf("Strip() = %q", got)
	}
}

func TestInstructionMentionsMarkers(t *testing.T) {
	if !strings.Contains(placeholder.Instruction, "[[n]]") {
		t.Error("instruction should show the marker form")
	}
}
