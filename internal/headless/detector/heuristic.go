// Package detector decides when a static forum probe must be re-fetched with a headless browser.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

// Heuristic promotes probes by status code and page markers.
type Heuristic struct {
	// BodyLengthThreshold is the size under which a body is checked for being
	// a script-only shell.
	BodyLengthThreshold int
}

// NewHeuristic creates a detector; a non-positive threshold uses 2048 bytes.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = 2048
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

// guestMarkers appear on pages served to visitors without a session.
var guestMarkers = [][]byte{
	[]byte("访客不能直接访问"),
	[]byte("如不能自动跳转"),
}

// forumMarkers appear in server-rendered thread, listing and index markup.
var forumMarkers = [][]byte{
	[]byte("postrow"),
	[]byte("postcontent"),
	[]byte("topicrow"),
	[]byte("indexblock"),
	[]byte("sub_forums"),
	[]byte("thread.php?fid="),
}

// ShouldPromote reports whether a static probe response is unusable as is:
// refused, empty, a guest interstitial, a short script-only shell, or a page
// without any forum markup.
func (h *Heuristic) ShouldPromote(resp crawler.FetchResponse) bool {
	switch {
	case resp.StatusCode == http.StatusForbidden:
		return true
	case resp.StatusCode != http.StatusOK:
		return false
	case len(resp.Body) == 0, containsAny(resp.Body, guestMarkers):
		return true
	case len(resp.Body) < h.BodyLengthThreshold && mostlyScript(resp.Body):
		return true
	default:
		return !containsAny(resp.Body, forumMarkers)
	}
}

func containsAny(body []byte, markers [][]byte) bool {
	for _, marker := range markers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// mostlyScript reports whether inline script outweighs the visible text of a page.
func mostlyScript(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	script := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		script += len(strings.TrimSpace(s.Text()))
	})
	if script == 0 {
		return false
	}
	doc.Find("script, style, noscript").Remove()
	visible := len(strings.TrimSpace(doc.Text()))
	return script*100/(script+visible) >= 50
}
