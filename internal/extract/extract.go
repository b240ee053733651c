// Package extract pulls the dashboard-facing fields out of an HTML page:
// title, readable text, links, and images.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// MaxContent caps the extracted text, in characters.
	MaxContent = 5000
	// MaxLinks caps the number of extracted links.
	MaxLinks = 50
	// MaxImages caps the number of extracted image URLs.
	MaxImages = 20
)

var whitespace = regexp.MustCompile(`\s+`)

// Extraction is what a page boils down to.
type Extraction struct {
	Title   string
	Content string
	Links   []string
	Images  []string
}

// Page parses an HTML document and extracts its title, visible text,
// links, and images. base is the page's own URL, used to resolve
// root-relative references. Non-HTML input degrades gracefully rather
// than erroring: goquery treats it as text.
func Page(body []byte, base string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "No title"
	}

	// Script and style bodies are markup plumbing, not page text.
	doc.Find("script, style").Remove()
	content := whitespace.ReplaceAllString(doc.Text(), " ")
	content = strings.TrimSpace(content)
	if runes := []rune(content); len(runes) > MaxContent {
		content = string(runes[:MaxContent])
	}

	ext := &Extraction{
		Title:   title,
		Content: content,
		Links:   []string{},
		Images:  []string{},
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if u := absolutize(href, baseURL); u != "" {
			ext.Links = append(ext.Links, u)
		}
	})
	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if u := absolutize(src, baseURL); u != "" {
			ext.Images = append(ext.Images, u)
		}
	})

	if len(ext.Links) > MaxLinks {
		ext.Links = ext.Links[:MaxLinks]
	}
	if len(ext.Images) > MaxImages {
		ext.Images = ext.Images[:MaxImages]
	}
	return ext, nil
}

// absolutize keeps absolute http(s) references as-is and resolves
// root-relative ones against the base. Anything else (fragments,
// mailto:, javascript:, bare relative paths) is dropped.
func absolutize(ref string, base *url.URL) string {
	switch {
	case strings.HasPrefix(ref, "http"):
		return ref
	case strings.HasPrefix(ref, "/"):
		u, err := url.Parse(ref)
		if err != nil {
			return ""
		}
		return base.ResolveReference(u).String()
	default:
		return ""
	}
}
