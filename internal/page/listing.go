package page

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

var threadLink = regexp.MustCompile(`read\.php\?tid=\d+`)

// Link labels that name a board or collection rather than a thread.
const (
	labelBoard      = "版面"
	labelCollection = "合集"
)

// ExtractTopicRows reads the topic table of a board, forum or collection page.
func (d *Document) ExtractTopicRows(context.Context) ([]crawler.RawTopic, error) {
	var out []crawler.RawTopic
	d.doc.Find("table#topicrows tr.topicrow").Each(func(_ int, row *goquery.Selection) {
		cell := row.Find("td.c2").First()
		if cell.Length() == 0 {
			return
		}
		link := d.topicLink(cell)
		if link == nil {
			return
		}
		target := d.resolve(link.AttrOr("href", ""))
		if !threadLink.MatchString(target) {
			return
		}
		title := strings.TrimSpace(link.Text())
		if title == labelBoard || title == labelCollection {
			return
		}
		topic := crawler.RawTopic{
			Title:         title,
			PostDate:      attrOrText(row.Find("td.c3 .postdate").First()),
			LastReplyTime: attrOrText(row.Find("td.c4 .replydate").First()),
			URL:           target,
		}
		if n, ok := parseLeadingInt(row.Find("td.c1 a.replies").First().Text()); ok {
			topic.Replies = n
		}
		out = append(out, topic)
	})
	return out, nil
}

// topicLink prefers the a.topic anchor and otherwise takes the first thread
// link that is not a board or collection shortcut or a moderation marker.
func (d *Document) topicLink(cell *goquery.Selection) *goquery.Selection {
	if topic := cell.Find("a.topic").First(); topic.Length() > 0 {
		if threadLink.MatchString(d.resolve(topic.AttrOr("href", ""))) {
			return topic
		}
	}
	var chosen *goquery.Selection
	cell.Find(`a[href*="read.php?tid="]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.TrimSpace(a.Text())
		if text == labelBoard || text == labelCollection || a.HasClass("vertmod") {
			return true
		}
		chosen = a
		return false
	})
	return chosen
}

func attrOrText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	if title := strings.TrimSpace(sel.AttrOr("title", "")); title != "" {
		return title
	}
	return strings.TrimSpace(sel.Text())
}
