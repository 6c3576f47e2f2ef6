package formatter

import (
	"strings"
	"testing"

	appmodels "github.com/dreamcatchered/dreamMail/pkg/models"
)

func TestFormatPreviewHighlightsCodes(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"six digit code", "your code is 482913", "your code is <code>482913</code>"},
		{"four digit code", "pin 1234 ok", "pin <code>1234</code> ok"},
		{"too short", "room 123", "room 123"},
		{"too long", "order 123456789", "order 123456789"},
		{"several runs", "a 1234 b 56 c 987654", "a <code>1234</code> b 56 c <code>987654</code>"},
	}

	f := NewTelegramFormatter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.FormatPreview(tt.text); got != tt.want {
				t.Errorf("FormatPreview(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestFormatPreviewEscapesHTML(t *testing.T) {
	got := NewTelegramFormatter().FormatPreview("a <b> & c")
	if got != "a &lt;b&gt; &amp; c" {
		t.Errorf("FormatPreview() = %q, want escaped markup", got)
	}
}

func TestFormatPreviewTruncatesLongBodies(t *testing.T) {
	long := strings.Repeat("щ", previewBudget+100)
	got := NewTelegramFormatter().FormatPreview(long)

	if !strings.HasSuffix(got, "<i>(полный текст в файле)</i>") {
		t.Errorf("FormatPreview() = ...%q, want the continuation marker", got[len(got)-40:])
	}
	if n := len([]rune(got)); n > previewBudget+50 {
		t.Errorf("preview is %d runes, want it cut near the budget", n)
	}
}

func TestFormatIncoming(t *testing.T) {
	got := NewTelegramFormatter().FormatIncoming(
		"shop@dmail.example", "News <news@shop.example>", "welcome", "hello")

	for _, want := range []string{
		"новое письмо",
		"<code>shop@dmail.example</code>",
		"News &lt;news@shop.example&gt;",
		"welcome",
		"hello",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatIncoming() missing %q in %q", want, got)
		}
	}
}

func TestEncodeCallbackFitsTelegramLimit(t *testing.T) {
	// Telegram rejects callback data over 64 bytes.
	data := appmodels.CallbackData{
		Action:  appmodels.CallbackReadMail,
		Address: "shop@dmail.example",
		UID:     4294967295,
	}
	if encoded := EncodeCallback(data); len(encoded) > 64 {
		t.Errorf("encoded callback is %d bytes: %s", len(encoded), encoded)
	}
}

func TestDecodeCallbackRoundTrip(t *testing.T) {
	in := appmodels.CallbackData{Action: appmodels.CallbackListMail, Address: "a@b.example", Page: 2}
	out, err := DecodeCallback(EncodeCallback(in))
	if err != nil {
		t.Fatalf("DecodeCallback() error = %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}
