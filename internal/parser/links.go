package parser

import (
	"bytes"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ActionLink is a candidate action button for a notification.
// Score 2 means the keyword appeared in the visible link text,
// score 1 means it only appeared in the URL.
type ActionLink struct {
	URL   string
	Label string
	Score int
}

const maxActionLinks = 3

// actionKeywords is the ranked keyword table the scoring rule runs
// over. Kept explicit so the heuristic stays visible and adjustable.
var actionKeywords = []string{
	"confirm", "verify", "activate", "login", "sign in",
	"подтвердить", "активировать", "войти",
}

// LinkExtractor finds confirmation/activation links in a message
type LinkExtractor struct {
	keywords []string
	urlRegex *regexp.Regexp
}

// NewLinkExtractor creates a link extractor with the default keyword table
func NewLinkExtractor() *LinkExtractor {
	return &LinkExtractor{
		keywords: actionKeywords,
		urlRegex: regexp.MustCompile(`https?://[^\s<>"]+`),
	}
}

// Extract returns at most three action links, highest score first.
// Anchors from the HTML body win; the plain-text body is scanned only
// when no HTML anchor qualifies.
func (e *LinkExtractor) Extract(html []byte, text string) []ActionLink {
	links := e.fromHTML(html)
	if len(links) == 0 {
		links = e.fromText(text)
	}

	sort.SliceStable(links, func(i, j int) bool {
		return links[i].Score > links[j].Score
	})
	if len(links) > maxActionLinks {
		links = links[:maxActionLinks]
	}
	return links
}

func (e *LinkExtractor) fromHTML(html []byte) []ActionLink {
	if len(html) == 0 {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}

	var links []ActionLink
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.Contains(href, "http") || seen[href] {
			return
		}

		visible := strings.TrimSpace(s.Text())
		score := 0
		if e.containsKeyword(strings.ToLower(visible)) {
			score = 2
		} else if e.containsKeyword(strings.ToLower(href)) {
			score = 1
		}
		if score == 0 {
			return
		}

		label := visible
		if label == "" || len([]rune(label)) >= 30 {
			label = "🔗 action"
		}

		seen[href] = true
		links = append(links, ActionLink{URL: href, Label: label, Score: score})
	})

	return links
}

func (e *LinkExtractor) fromText(text string) []ActionLink {
	var links []ActionLink
	seen := make(map[string]bool)

	for _, url := range e.urlRegex.FindAllString(text, -1) {
		if seen[url] || !e.containsKeyword(strings.ToLower(url)) {
			continue
		}
		seen[url] = true
		links = append(links, ActionLink{URL: url, Label: "🔗 link", Score: 1})
	}
	return links
}

func (e *LinkExtractor) containsKeyword(s string) bool {
	for _, k := range e.keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
