// Package extractor finds supported video links in free-form message text.
package extractor

import (
	"regexp"
	"sort"
	"strings"
)

// Link is a supported video URL found in a message.
type Link struct {
	URL      string   `json:"url"`
	Platform Platform `json:"platform"`
}

const urlChars = `[^\s<>"{}|\\^` + "`" + `\[\]]+`

var (
	// schemedURLPattern matches anything that looks like an absolute http(s) URL.
	schemedURLPattern = regexp.MustCompile(`(?i)https?://` + urlChars)

	// barePattern matches known hosts written without a scheme. The leading group stands in
	// for a left word boundary so "box.com/..." never yields an "x.com" candidate.
	barePattern = regexp.MustCompile(`(?i)(?:^|[^\w./@-])((?:www\.)?(?:youtube\.com|youtu\.be|facebook\.com|fb\.watch|twitter\.com|x\.com|instagram\.com|vm\.tiktok\.com|tiktok\.com)` + urlChars + `)`)

	schemePrefix = regexp.MustCompile(`(?i)^https?://`)
)

const trailingPunctuation = `.,;:!?)]'"`

// Extractor extracts supported video links from message text
type Extractor struct{}

// New creates a new link extractor
func New() *Extractor {
	return &Extractor{}
}

type candidate struct {
	start int
	end   int
	url   string
}

// Extract returns every supported link in text, in order of first appearance, deduplicated
// by normalized URL. Unsupported links are dropped.
func (e *Extractor) Extract(text string) []Link {
	var candidates []candidate

	for _, loc := range schemedURLPattern.FindAllStringIndex(text, -1) {
		candidates = append(candidates, candidate{start: loc[0], end: loc[1], url: text[loc[0]:loc[1]]})
	}
	schemed := len(candidates)

	for _, loc := range barePattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2], loc[3]
		if insideAny(candidates[:schemed], start, end) {
			continue
		}
		candidates = append(candidates, candidate{start: start, end: end, url: text[start:end]})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].start < candidates[j].start
	})

	links := []Link{}
	seen := make(map[string]bool)
	for _, c := range candidates {
		url := Normalize(c.url)
		if url == "" || seen[url] {
			continue
		}
		platform := Identify(url)
		if platform == "" {
			continue
		}
		seen[url] = true
		links = append(links, Link{URL: url, Platform: platform})
	}

	return links
}

// Normalize trims trailing punctuation and adds an https scheme when none is present
func Normalize(raw string) string {
	url := strings.TrimRight(strings.TrimSpace(raw), trailingPunctuation)
	if url == "" {
		return ""
	}
	if !schemePrefix.MatchString(url) {
		url = "https://" + url
	}
	return url
}

func insideAny(spans []candidate, start, end int) bool {
	for _, s := range spans {
		if start >= s.start && end <= s.end {
			return true
		}
	}
	return false
}
