package parser

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"regexp"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// ParsedMessage is the structured result of decoding one raw email.
// HTML is nil when the message has no HTML part; Text is synthesized
// from HTML when the message has no plain-text part.
type ParsedMessage struct {
	Subject string
	From    string // decoded display string, e.g. "Name <box@host>"
	ToRaw   string // decoded To header as received
	ToAddr  string // normalized recipient address, may be empty
	Text    string
	HTML    []byte
}

var angleAddrRegex = regexp.MustCompile(`<([^>]+)>`)

// MessageParser decodes raw MIME bytes into a ParsedMessage
type MessageParser struct {
	html   *HTMLParser
	logger *slog.Logger
}

// NewMessageParser creates a new message parser
func NewMessageParser(logger *slog.Logger) *MessageParser {
	return &MessageParser{
		html:   NewHTMLParser(),
		logger: logger.With("component", "parser"),
	}
}

// Parse decodes one raw message. A returned error means the message
// could not be read at all; per-part decode failures are logged at
// debug level and the part is simply left out of the result.
func (p *MessageParser) Parse(raw []byte) (*ParsedMessage, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	mr := mail.NewReader(entity)
	header := mr.Header

	parsed := &ParsedMessage{
		Subject: decodeHeader(header.Get("Subject")),
		From:    decodeHeader(header.Get("From")),
		ToRaw:   decodeHeader(header.Get("To")),
	}

	// The recipient determines ownership. Mail forwarded through the
	// shared mailbox often rewrites To while keeping the original
	// envelope recipient in Delivered-To / X-Original-To.
	parsed.ToAddr = ExtractAddress(parsed.ToRaw)
	if parsed.ToAddr == "" {
		for _, key := range []string{"Delivered-To", "X-Original-To"} {
			if addr := ExtractAddress(header.Get(key)); addr != "" {
				parsed.ToAddr = addr
				break
			}
		}
	}

	p.readParts(mr, parsed)

	if strings.TrimSpace(parsed.Text) == "" && len(parsed.HTML) > 0 {
		text, err := p.html.Parse(string(parsed.HTML))
		if err != nil {
			p.logger.Debug("failed to synthesize text from html", "error", err)
		} else {
			parsed.Text = text
		}
	}
	parsed.Text = strings.TrimSpace(parsed.Text)

	return parsed, nil
}

// readParts walks the part tree: inline text/plain parts accumulate
// into the text body, the first text/html part is kept as raw bytes.
// Attachment parts are skipped.
func (p *MessageParser) readParts(mr *mail.Reader, parsed *ParsedMessage) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				p.logger.Debug("part with unknown charset", "error", err)
				continue
			}
			p.logger.Debug("failed to read part", "error", err)
			return
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, err := inline.ContentType()
		if err != nil {
			p.logger.Debug("failed to read part content type", "error", err)
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			body, err := io.ReadAll(part.Body)
			if err != nil {
				p.logger.Debug("failed to decode text part", "error", err)
				continue
			}
			parsed.Text += string(body)
		case strings.HasPrefix(contentType, "text/html") && parsed.HTML == nil:
			body, err := io.ReadAll(part.Body)
			if err != nil {
				p.logger.Debug("failed to decode html part", "error", err)
				continue
			}
			parsed.HTML = body
		}
	}
}

// ExtractAddress pulls a normalized email address out of a header
// value like "Name <box@host>". Returns "" when no address is present.
func ExtractAddress(raw string) string {
	if m := angleAddrRegex.FindStringSubmatch(raw); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	if strings.Contains(raw, "@") {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return ""
}

// decodeHeader decodes MIME encoded-words. Unknown charsets fall back
// to whatever could be decoded, then to the raw value; it never fails.
func decodeHeader(value string) string {
	if value == "" {
		return ""
	}
	decoder := mime.WordDecoder{CharsetReader: charset.Reader}
	decoded, err := decoder.DecodeHeader(value)
	if err != nil || decoded == "" {
		return value
	}
	return decoded
}
