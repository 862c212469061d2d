// Package page implements crawler.Page over parsed forum HTML and the
// crawler.Browser that produces it from static or headless fetches.
package page

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

var (
	pageParam  = regexp.MustCompile(`page=(\d+)`)
	fidParam   = regexp.MustCompile(`\bfid=(-?\d+)\b`)
	stidParam  = regexp.MustCompile(`\bstid=(\d+)\b`)
	leadingInt = regexp.MustCompile(`^[+-]?\d+`)
)

// Document is a parsed page. It holds no browser resources, so Close is a no-op.
type Document struct {
	url  string
	base *url.URL
	doc  *goquery.Document
}

var _ crawler.Page = (*Document)(nil)

// FromHTML parses body as the page found at rawURL. Relative links resolve
// against rawURL.
func FromHTML(rawURL string, body []byte) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		base = &url.URL{}
	}
	return &Document{url: rawURL, base: base, doc: doc}, nil
}

// Parse is FromHTML returning the crawler.Page interface, for callers that
// hold saved HTML rather than a browser.
func Parse(rawURL string, body []byte) (crawler.Page, error) {
	d, err := FromHTML(rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", crawler.ErrExtraction, err)
	}
	return d, nil
}

// URL returns the address the document was loaded from.
func (d *Document) URL() string {
	return d.url
}

// Close is a no-op.
func (d *Document) Close() {}

// Title returns the thread subject header, else a title derived from <title>.
func (d *Document) Title(context.Context) (string, error) {
	if subject := d.doc.Find("h3#postsubject0"); subject.Length() > 0 {
		if t := strings.TrimSpace(subject.First().Text()); t != "" {
			return t, nil
		}
	}
	return crawler.SiteTitle(strings.TrimSpace(d.doc.Find("title").First().Text())), nil
}

// Description returns the opening post body.
func (d *Document) Description(context.Context) (string, error) {
	return strings.TrimSpace(d.doc.Find("p#postcontent0").First().Text()), nil
}

// resolve turns an href into an absolute URL; "" when href is empty or invalid.
func (d *Document) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return d.base.ResolveReference(ref).String()
}

// parseLeadingInt reads the integer prefix of s the way a lenient number
// parse would, returning ok=false when s does not start with digits.
func parseLeadingInt(s string) (int, bool) {
	m := leadingInt.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

func pageNumber(href string) (int, bool) {
	m := pageParam.FindStringSubmatch(strings.ReplaceAll(href, "&amp;", "&"))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
