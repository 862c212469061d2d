package page

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

var (
	pidAnchorID = regexp.MustCompile(`^pid(\d+)Anchor$`)
	floorAnchor = regexp.MustCompile(`^l(\d+)$`)
	floorButton = regexp.MustCompile(`#(\d+)`)
	containerID = regexp.MustCompile(`postcontainer(\d+)`)
	quotedPID   = regexp.MustCompile(`#pid(\d+)Anchor`)
	postBodyID  = regexp.MustCompile(`^postcontent(?:andsubject)?(\d+)$`)
)

const (
	postBodySel  = "p[id^='postcontent'], span[id^='postcontent']"
	containerSel = `td.c2[id^="postcontainer"]`
)

// ExtractPosts reads structured post rows.
func (d *Document) ExtractPosts(context.Context) ([]crawler.RawPost, error) {
	var out []crawler.RawPost
	d.doc.Find("tr.postrow").Each(func(_ int, row *goquery.Selection) {
		right := row.Find(containerSel).First()
		if right.Length() == 0 {
			return
		}
		post := crawler.RawPost{
			PID:   postPID(right),
			Floor: postFloor(row.Find("td.c1").First(), right),
		}
		post.Time = postTime(right, post.Floor)
		if body := postBody(right, post.Floor); body != nil {
			post.ContentText = textWithoutQuotes(body)
			post.QuotedPID = quotedPostID(body)
		}
		post.Likes = postLikes(right)
		out = append(out, post)
	})
	return out, nil
}

// ExtractPostsFallback reads every post body element on the page, without
// relying on row structure. Records carry no PID or quote.
func (d *Document) ExtractPostsFallback(context.Context) ([]crawler.RawPost, error) {
	var out []crawler.RawPost
	d.doc.Find(postBodySel).Each(func(_ int, body *goquery.Selection) {
		m := postBodyID.FindStringSubmatch(body.AttrOr("id", ""))
		if m == nil {
			return
		}
		floor, err := strconv.Atoi(m[1])
		if err != nil {
			return
		}
		post := crawler.RawPost{Floor: &floor, ContentText: textWithoutQuotes(body)}
		if right := body.Closest(containerSel); right.Length() > 0 {
			post.Time = postTime(right, post.Floor)
			post.Likes = postLikes(right)
		}
		out = append(out, post)
	})
	return out, nil
}

func postPID(right *goquery.Selection) string {
	anchor := right.Find("a[id^='pid'][id$='Anchor']").First()
	if m := pidAnchorID.FindStringSubmatch(anchor.AttrOr("id", "")); m != nil {
		return m[1]
	}
	return ""
}

func postFloor(left, right *goquery.Selection) *int {
	if m := floorAnchor.FindStringSubmatch(right.Find(`a[name^="l"]`).First().AttrOr("name", "")); m != nil {
		return crawler.ParseFloor(m[1])
	}
	if left.Length() > 0 {
		text := strings.TrimSpace(left.Find("a.small_colored_text_btn").First().Text())
		if m := floorButton.FindStringSubmatch(text); m != nil {
			return crawler.ParseFloor(m[1])
		}
	}
	if m := containerID.FindStringSubmatch(right.AttrOr("id", "")); m != nil {
		return crawler.ParseFloor(m[1])
	}
	return nil
}

func postTime(right *goquery.Selection, floor *int) string {
	if floor != nil {
		if t := strings.TrimSpace(right.Find("#postdate" + strconv.Itoa(*floor)).First().Text()); t != "" {
			return t
		}
	}
	return strings.TrimSpace(right.Find(".postInfo .postdatec").First().Text())
}

func postBody(right *goquery.Selection, floor *int) *goquery.Selection {
	if floor != nil {
		n := strconv.Itoa(*floor)
		if body := right.Find("#postcontent" + n).First(); body.Length() > 0 {
			return body
		}
		if body := right.Find("#postcontentandsubject" + n).First(); body.Length() > 0 {
			return body
		}
	}
	if body := right.Find(postBodySel).First(); body.Length() > 0 {
		return body
	}
	return nil
}

func textWithoutQuotes(body *goquery.Selection) string {
	clone := body.Clone()
	clone.Find("div.quote").Remove()
	return strings.TrimSpace(clone.Text())
}

func quotedPostID(body *goquery.Selection) string {
	quote := body.Find("div.quote").First()
	if quote.Length() == 0 {
		return ""
	}
	link := quote.Find("a[href*='#pid']").First()
	if link.Length() == 0 {
		link = quote.Find("a.block_txt").First()
	}
	if m := quotedPID.FindStringSubmatch(link.AttrOr("href", "")); m != nil {
		return m[1]
	}
	return ""
}

func postLikes(right *goquery.Selection) int {
	n, ok := parseLeadingInt(right.Find(".goodbad .recommendvalue").First().Text())
	if !ok {
		return 0
	}
	return n
}
