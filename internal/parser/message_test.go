package parser

import (
	"log/slog"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestParsePlainText(t *testing.T) {
	raw := strings.Join([]string{
		"From: Shop News <news@shop.example>",
		"To: Box Owner <shop@dmail.example>",
		"Subject: welcome",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"hello there",
		"",
	}, "\r\n")

	parsed, err := NewMessageParser(testLogger()).Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parsed.Subject != "welcome" {
		t.Errorf("Subject = %q, want %q", parsed.Subject, "welcome")
	}
	if parsed.ToAddr != "shop@dmail.example" {
		t.Errorf("ToAddr = %q, want %q", parsed.ToAddr, "shop@dmail.example")
	}
	if !strings.Contains(parsed.From, "news@shop.example") {
		t.Errorf("From = %q, want it to contain the sender address", parsed.From)
	}
	if strings.TrimSpace(parsed.Text) != "hello there" {
		t.Errorf("Text = %q, want %q", parsed.Text, "hello there")
	}
	if parsed.HTML != nil {
		t.Errorf("HTML = %q, want nil", parsed.HTML)
	}
}

func TestParseMultipartKeepsBothBodies(t *testing.T) {
	raw := strings.Join([]string{
		"From: a@b.example",
		"To: <shop@dmail.example>",
		"Subject: code",
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=BOUND",
		"",
		"--BOUND",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"your code is 482913",
		"--BOUND",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>your code is <b>482913</b></p>",
		"--BOUND--",
		"",
	}, "\r\n")

	parsed, err := NewMessageParser(testLogger()).Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !strings.Contains(parsed.Text, "482913") {
		t.Errorf("Text = %q, want the plain part preserved", parsed.Text)
	}
	if !strings.Contains(string(parsed.HTML), "<b>482913</b>") {
		t.Errorf("HTML = %q, want the html part preserved", parsed.HTML)
	}
}

func TestParseHTMLOnlySynthesizesText(t *testing.T) {
	raw := strings.Join([]string{
		"From: a@b.example",
		"To: <shop@dmail.example>",
		"Subject: html only",
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<html><body><p>first line</p><p>second line</p></body></html>",
		"",
	}, "\r\n")

	parsed, err := NewMessageParser(testLogger()).Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !strings.Contains(parsed.Text, "first line") || !strings.Contains(parsed.Text, "second line") {
		t.Errorf("Text = %q, want text synthesized from html", parsed.Text)
	}
	if len(parsed.HTML) == 0 {
		t.Error("HTML is empty, want the original body kept")
	}
}

func TestParseRecipientFallsBackToDeliveredTo(t *testing.T) {
	raw := strings.Join([]string{
		"From: a@b.example",
		"To: undisclosed-recipients:;",
		"Delivered-To: shop@dmail.example",
		"Subject: bcc delivery",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"body",
		"",
	}, "\r\n")

	parsed, err := NewMessageParser(testLogger()).Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.ToAddr != "shop@dmail.example" {
		t.Errorf("ToAddr = %q, want the Delivered-To address", parsed.ToAddr)
	}
}

func TestParseEncodedSubject(t *testing.T) {
	raw := strings.Join([]string{
		"From: a@b.example",
		"To: <shop@dmail.example>",
		"Subject: =?UTF-8?B?0L/RgNC40LLQtdGC?=",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"body",
		"",
	}, "\r\n")

	parsed, err := NewMessageParser(testLogger()).Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Subject != "привет" {
		t.Errorf("Subject = %q, want %q", parsed.Subject, "привет")
	}
}

func TestExtractAddress(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"angle brackets", "Box Owner <Shop@DMail.example>", "shop@dmail.example"},
		{"bare address", "shop@dmail.example", "shop@dmail.example"},
		{"bare address with spaces", "  Shop@dmail.example ", "shop@dmail.example"},
		{"no address", "undisclosed-recipients:;", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractAddress(tt.input); got != tt.want {
				t.Errorf("ExtractAddress(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
