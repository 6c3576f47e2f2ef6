package parser

import (
	"strings"
	"testing"
)

func TestHTMLParserBlocksBecomeLines(t *testing.T) {
	html := `<html><head><title>x</title><style>p{color:red}</style></head>
		<body><p>first</p><p>second</p><div>third</div></body></html>`

	text, err := NewHTMLParser().Parse(html)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	lines := strings.Split(text, "\n")
	want := []string{"first", "second", "third"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines %q, want %d", len(lines), lines, len(want))
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
}

func TestHTMLParserStripsScripts(t *testing.T) {
	text, err := NewHTMLParser().Parse(`<body><script>alert(1)</script><p>visible</p></body>`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if strings.Contains(text, "alert") {
		t.Errorf("text = %q, script content must be removed", text)
	}
	if !strings.Contains(text, "visible") {
		t.Errorf("text = %q, want the visible content kept", text)
	}
}

func TestHTMLParserCollapsesWhitespace(t *testing.T) {
	text, err := NewHTMLParser().Parse("<p>a     lot   of\tspace</p>")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if text != "a lot of space" {
		t.Errorf("text = %q, want %q", text, "a lot of space")
	}
}

func TestHTMLParserEmptyInput(t *testing.T) {
	text, err := NewHTMLParser().Parse("")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
}
