package scraper

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	styleURLRe   = regexp.MustCompile(`url\(\s*["']?(.*?)["']?\s*\)`)
	srcsetItemRe = regexp.MustCompile(`^(\S+)\s+(\d+)w$`)
)

// ImageSource returns the absolute URL an img element displays, looking at
// lazy-loading attributes and srcset when src is absent.
func ImageSource(s *goquery.Selection, baseURL string) string {
	src := ""
	for _, attr := range []string{"src", "data-src", "data-original", "data-lazy-src"} {
		if v, exists := s.Attr(attr); exists && strings.TrimSpace(v) != "" {
			src = strings.TrimSpace(v)
			break
		}
	}

	if src == "" {
		if srcset, exists := s.Attr("srcset"); exists {
			src = pickFromSrcset(srcset)
		}
	}
	if src == "" {
		return ""
	}

	abs, err := ToAbsoluteURL(src, baseURL)
	if err != nil {
		return ""
	}
	return abs
}

// StyleURL extracts the url(...) of an inline background-image style.
func StyleURL(style string) string {
	m := styleURLRe.FindStringSubmatch(style)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// OGImage returns the page's og:image, resolved against baseURL.
func OGImage(doc *goquery.Selection, baseURL string) string {
	src := FindMetaTag(doc, OGImageProp, "")
	if src == "" {
		src = FindMetaTag(doc, "og:image:secure_url", "")
	}
	if src == "" {
		return ""
	}
	abs, err := ToAbsoluteURL(src, baseURL)
	if err != nil {
		return ""
	}
	return abs
}

// pickFromSrcset selects the widest image from srcset
func pickFromSrcset(srcset string) string {
	best, bestW := "", -1
	for _, item := range strings.Split(srcset, ",") {
		matches := srcsetItemRe.FindStringSubmatch(strings.TrimSpace(item))
		if len(matches) < 3 {
			continue
		}
		if w, err := strconv.Atoi(matches[2]); err == nil && w > bestW {
			best, bestW = matches[1], w
		}
	}
	return best
}

// ToAbsoluteURL resolves ref against baseURL. Protocol-relative references
// take the base scheme.
func ToAbsoluteURL(ref, baseURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	rel, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}

	return base.ResolveReference(rel).String(), nil
}
