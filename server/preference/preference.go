// Package preference infers how a user wants a downloaded video delivered.
package preference

import (
	"regexp"
	"strings"
)

// Preference is the delivery method for a single link.
type Preference string

const (
	// File delivers the video as a chat attachment
	File Preference = "file"
	// Link delivers a download URL
	Link Preference = "link"
)

// Default is used when the message carries no keyword
const Default = Link

var (
	sendFilePattern = regexp.MustCompile(`\bsend\s+file\b`)
	sendLinkPattern = regexp.MustCompile(`\bsend\s+link\b`)
)

// String returns the preference name
func (p Preference) String() string {
	return string(p)
}

// Valid reports whether p is a known preference
func (p Preference) Valid() bool {
	return p == File || p == Link
}

// Parse converts a string into a Preference, reporting false for unknown values
func Parse(s string) (Preference, bool) {
	p := Preference(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}

// Resolve determines the delivery preference for url within message text.
//
// A keyword following the URL applies to that URL only; otherwise a keyword anywhere in
// the message acts as a global preference. When the URL does not appear verbatim in the
// text (for instance after a scheme was added during extraction) the whole message is
// treated as the URL's tail.
func Resolve(text, url string) Preference {
	lower := strings.ToLower(text)

	tail := lower
	if idx := strings.Index(lower, strings.ToLower(url)); idx >= 0 {
		tail = lower[idx:]
	}

	if p, ok := keyword(tail); ok {
		return p
	}
	if p, ok := keyword(lower); ok {
		return p
	}
	return Default
}

func keyword(s string) (Preference, bool) {
	if sendFilePattern.MatchString(s) {
		return File, true
	}
	if sendLinkPattern.MatchString(s) {
		return Link, true
	}
	return "", false
}
