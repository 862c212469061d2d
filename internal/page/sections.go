package page

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

const sectionLinkSel = "a[href*='thread.php?fid=']"

// ExtractSectionEvents walks each landing page category block in document
// order. Every block starts with a category event (empty when the block has
// no header) followed by its sub-category headers and section links.
func (d *Document) ExtractSectionEvents(context.Context) ([]crawler.SectionEvent, error) {
	var events []crawler.SectionEvent
	d.doc.Find(".indexblock").Each(func(_ int, block *goquery.Selection) {
		label := block.Find("h2.catetitle").First().Text()
		events = append(events, crawler.SectionEvent{Kind: crawler.EventCategory, Label: label})
		block.Find("*").Each(func(_ int, el *goquery.Selection) {
			switch {
			case el.Is("h3.catetitle"):
				events = append(events, crawler.SectionEvent{Kind: crawler.EventSubCategory, Label: el.Text()})
			case el.Is(sectionLinkSel):
				if section, ok := d.sectionLink(el); ok {
					events = append(events, crawler.SectionEvent{Kind: crawler.EventLink, Section: section})
				}
			}
		})
	})
	return events, nil
}

// ExtractSectionLinks returns every section link on the page without
// category labels.
func (d *Document) ExtractSectionLinks(context.Context) ([]crawler.RawSection, error) {
	var out []crawler.RawSection
	d.doc.Find(sectionLinkSel).Each(func(_ int, a *goquery.Selection) {
		if section, ok := d.sectionLink(a); ok {
			out = append(out, section)
		}
	})
	return out, nil
}

func (d *Document) sectionLink(a *goquery.Selection) (crawler.RawSection, bool) {
	target := d.resolve(a.AttrOr("href", ""))
	m := fidParam.FindStringSubmatch(target)
	name := strings.TrimSpace(a.Text())
	if target == "" || m == nil || name == "" {
		return crawler.RawSection{}, false
	}
	return crawler.RawSection{
		Name:        name,
		URL:         target,
		FID:         m[1],
		Description: sectionDescription(a),
	}, true
}

// sectionDescription reads the first paragraph of the link's card.
func sectionDescription(a *goquery.Selection) string {
	box := a.Closest("div.b")
	if box.Length() == 0 {
		box = a.Closest("div.a")
	}
	if box.Length() == 0 {
		box = a.Parent()
	}
	return strings.TrimSpace(box.Find("p").First().Text())
}

// ExtractChildLinks collects forum (fid=) and collection (stid=) links from
// the sub-forum panel, or the whole page when there is none.
func (d *Document) ExtractChildLinks(context.Context) (crawler.ChildLinks, error) {
	scope := d.doc.Find("#sub_forums").First()
	if scope.Length() == 0 {
		scope = d.doc.Selection
	}
	var (
		out         crawler.ChildLinks
		seenForum   = map[string]bool{}
		seenCollect = map[string]bool{}
	)
	scope.Find("a[href*='thread.php?']").Each(func(_ int, a *goquery.Selection) {
		target := d.resolve(a.AttrOr("href", ""))
		name := strings.TrimSpace(a.Text())
		if target == "" || name == "" {
			return
		}
		if m := fidParam.FindStringSubmatch(target); m != nil {
			if !seenForum[m[1]] {
				seenForum[m[1]] = true
				out.Forums = append(out.Forums, crawler.ForumRef{Name: name, URL: target, FID: m[1]})
			}
			return
		}
		if m := stidParam.FindStringSubmatch(target); m != nil && !seenCollect[m[1]] {
			seenCollect[m[1]] = true
			out.Collections = append(out.Collections, crawler.CollectionRef{Name: name, URL: target, STID: m[1]})
		}
	})
	return out, nil
}
