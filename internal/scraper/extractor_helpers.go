// Package scraper provides helper functions for page content extraction.
package scraper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoJSONLD is returned when a page carries no structured data block.
var ErrNoJSONLD = errors.New("no JSON-LD block")

// FindMetaTag searches for a meta tag with the given property or name
func FindMetaTag(doc *goquery.Selection, property, name string) string {
	var value string

	doc.Find("meta").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if property != "" {
			if prop, exists := s.Attr("property"); exists && prop == property {
				if content, exists := s.Attr("content"); exists {
					value = strings.TrimSpace(content)
					return false
				}
			}
		}

		if name != "" {
			if n, exists := s.Attr("name"); exists && n == name {
				if content, exists := s.Attr("content"); exists {
					value = strings.TrimSpace(content)
					return false
				}
			}
		}
		return true
	})

	return value
}

// ExtractTextFromElements extracts text content preserving structure from HTML elements
func ExtractTextFromElements(selection *goquery.Selection, elements string) string {
	var content strings.Builder

	selection.Find(elements).Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}

		tagName := goquery.NodeName(s)
		switch tagName {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			if content.Len() > 0 {
				content.WriteString(DoubleNewline)
			}
			content.WriteString(text)
			content.WriteString(SingleNewline)
		case "p", "li", "blockquote":
			if content.Len() > 0 {
				content.WriteString(SingleNewline)
			}
			content.WriteString(text)
		}
	})

	return content.String()
}

// ExtractFallbackText extracts all text content when structured extraction fails
func ExtractFallbackText(selection *goquery.Selection) string {
	selection.Find(NonContentTags).Remove()
	return strings.TrimSpace(selection.Text())
}

// JSONLD decodes the first JSON-LD block of doc into v. Pages that wrap their
// data in an array are unwrapped to the first element.
func JSONLD(doc *goquery.Selection, v any) error {
	script := doc.Find(JSONLDSelector).First()
	if script.Length() == 0 {
		return ErrNoJSONLD
	}

	raw := bytes.TrimSpace([]byte(script.Text()))
	if len(raw) > 0 && raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("decode JSON-LD array: %w", err)
		}
		if len(items) == 0 {
			return ErrNoJSONLD
		}
		raw = items[0]
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode JSON-LD: %w", err)
	}
	return nil
}
