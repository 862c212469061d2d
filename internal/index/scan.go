package index

import (
	"strings"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

// ScanSections folds landing page events into labeled sections. Each link
// takes the category of its block and the latest sub-category header seen in
// that block. Links of unnamed or reserved blocks are dropped, as are the
// generic "版面" and "合集" entries; repeated fid and name pairs keep the first.
func ScanSections(events []crawler.SectionEvent) []crawler.RawSection {
	var (
		out      []crawler.RawSection
		seen     = map[string]bool{}
		category string
		sub      string
		skip     = true
	)
	for _, evt := range events {
		switch evt.Kind {
		case crawler.EventCategory:
			category = crawler.CleanCategory(evt.Label)
			sub = ""
			skip = reservedCategory(category)
		case crawler.EventSubCategory:
			sub = crawler.CleanCategory(evt.Label)
		case crawler.EventLink:
			if skip {
				continue
			}
			section, ok := accept(evt.Section, seen)
			if !ok {
				continue
			}
			section.CategoryL1 = category
			section.CategoryL2 = sub
			out = append(out, section)
		}
	}
	return out
}

// flatSections applies the link filters of ScanSections to an unlabeled list.
func flatSections(links []crawler.RawSection) []crawler.RawSection {
	var out []crawler.RawSection
	seen := map[string]bool{}
	for _, link := range links {
		if section, ok := accept(link, seen); ok {
			out = append(out, section)
		}
	}
	return out
}

func accept(s crawler.RawSection, seen map[string]bool) (crawler.RawSection, bool) {
	s.Name = strings.TrimSpace(s.Name)
	if s.URL == "" || s.FID == "" || s.Name == "" {
		return s, false
	}
	key := s.FID + "|" + s.Name
	if seen[key] {
		return s, false
	}
	seen[key] = true
	if s.Name == "版面" || s.Name == "合集" {
		return s, false
	}
	return s, true
}

func reservedCategory(name string) bool {
	return name == "" || strings.EqualFold(name, "undefined") || name == "收藏版面"
}
