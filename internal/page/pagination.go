package page

import (
	"context"
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

// InferTotalPages reads the last-page control, else the largest page number
// among paging links, else 1.
func (d *Document) InferTotalPages(context.Context) int {
	last := d.doc.Find("a[title*='最后页'], a[title*='末页'], a[title*='尾页']").First()
	if href := last.AttrOr("href", ""); href != "" {
		if n, ok := pageNumber(href); ok {
			return max(n, 1)
		}
	}
	total := 1
	d.doc.Find("a.uitxt1, a[href*='page=']").Each(func(_ int, a *goquery.Selection) {
		if n, ok := pageNumber(a.AttrOr("href", "")); ok {
			total = max(total, n)
		}
	})
	return total
}

// FindNextPageURL returns the next-page control's target, else the paging
// link for the current page number plus one, else "".
func (d *Document) FindNextPageURL(context.Context) string {
	next := d.doc.Find("a[title*='加载下一页'], a[title*='下一页'], a[title*='后页']").First()
	if href := next.AttrOr("href", ""); href != "" {
		if target := d.resolve(href); target != "" {
			return target
		}
	}
	want := d.currentPage() + 1
	var found string
	d.doc.Find("a.uitxt1").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		target := d.resolve(a.AttrOr("href", ""))
		if target == "" {
			return true
		}
		if queryPage(target) == want {
			found = target
			return false
		}
		return true
	})
	return found
}

func (d *Document) currentPage() int {
	if n := queryPage(d.url); n > 0 {
		return n
	}
	return 1
}

// queryPage returns the page query value of rawURL, or 0.
func queryPage(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil {
		return 0
	}
	return n
}
