package formatter

import (
	"fmt"
	"regexp"
	"strings"
)

// previewBudget is the preview character budget; Telegram allows 4096
// per message, the rest is left for markup and headers.
const previewBudget = 3000

var digitRunRegex = regexp.MustCompile(`\d+`)

// TelegramFormatter renders message previews and captions for Telegram
type TelegramFormatter struct {
	maxLength int
}

// NewTelegramFormatter creates a new formatter
func NewTelegramFormatter() *TelegramFormatter {
	return &TelegramFormatter{maxLength: previewBudget}
}

// FormatPreview escapes the plain body, truncates it to the preview
// budget and wraps standalone 4-8 digit runs in monospace markers so
// one-time codes stand out in the notification.
func (f *TelegramFormatter) FormatPreview(text string) string {
	text = EscapeHTML(text)
	text = f.truncate(text)
	return digitRunRegex.ReplaceAllStringFunc(text, func(run string) string {
		if len(run) >= 4 && len(run) <= 8 {
			return "<code>" + run + "</code>"
		}
		return run
	})
}

// FormatIncoming builds the caption for a new-mail notification
func (f *TelegramFormatter) FormatIncoming(toAddr, from, subject, text string) string {
	var sb strings.Builder
	sb.WriteString("📨 <b>новое письмо!</b>\n\n")
	sb.WriteString(fmt.Sprintf("📬 <b>на:</b> <code>%s</code>\n", EscapeHTML(toAddr)))
	sb.WriteString(fmt.Sprintf("👤 <b>от:</b> %s\n", EscapeHTML(from)))
	sb.WriteString(fmt.Sprintf("📌 <b>тема:</b> %s\n", EscapeHTML(subject)))
	sb.WriteString("──────────────────\n")
	sb.WriteString(f.FormatPreview(text))
	return sb.String()
}

// FormatStored builds the caption for the read view of a stored message
func (f *TelegramFormatter) FormatStored(from, subject, text string) string {
	var sb strings.Builder
	sb.WriteString("📨 <b>просмотр письма</b>\n")
	sb.WriteString(fmt.Sprintf("👤 <b>от:</b> %s\n", EscapeHTML(from)))
	sb.WriteString(fmt.Sprintf("📌 <b>тема:</b> %s\n", EscapeHTML(subject)))
	sb.WriteString("──────────────────\n")
	sb.WriteString(f.FormatPreview(text))
	return sb.String()
}

// EscapeHTML escapes HTML special characters for Telegram
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// truncate cuts text to maxLength runes with a continuation marker
func (f *TelegramFormatter) truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= f.maxLength {
		return s
	}
	return string(runes[:f.maxLength]) + "...\n<i>(полный текст в файле)</i>"
}
