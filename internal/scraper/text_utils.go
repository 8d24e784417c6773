// Package scraper provides text processing utilities for content extraction.
package scraper

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode"
)

// CleanWhitespace removes excessive whitespace from text content
func CleanWhitespace(text string) string {
	if text == "" {
		return ""
	}

	cleaned := text
	for strings.Contains(cleaned, TripleNewline) {
		cleaned = strings.ReplaceAll(cleaned, TripleNewline, DoubleNewline)
	}
	for strings.Contains(cleaned, DoubleSpace) {
		cleaned = strings.ReplaceAll(cleaned, DoubleSpace, SingleSpace)
	}
	return strings.TrimSpace(cleaned)
}

// ParseCount reads a displayed counter such as "1,234" or "再生 1,234回".
// Only the digits are kept.
func ParseCount(s string) (int64, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return 0, fmt.Errorf("no digits in %q", s)
	}
	return strconv.ParseInt(digits, 10, 64)
}

// LastPathSegment returns the final path segment of a URL, ignoring the query,
// a trailing slash and an ".html" suffix.
func LastPathSegment(raw string) string {
	return PathSegment(raw, 1)
}

// PathSegment returns the n-th path segment counted from the end, 1-based.
func PathSegment(raw string, n int) string {
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if n < 1 || n > len(parts) {
		return ""
	}
	return strings.TrimSuffix(parts[len(parts)-n], ".html")
}
