package crawler

import (
	"regexp"
	"strings"
)

var (
	undefinedPrefix  = regexp.MustCompile(`.*?\(undefined\)`)
	imagePlaceholder = regexp.MustCompile(`显示图片\([^)]*\)`)
)

const (
	siteSuffixCommunity = "NGA玩家社区"
	siteSuffixLegacy    = "艾泽拉斯国家地理论坛"
)

// CleanText strips zero-width spaces, client-side rendering artifacts and
// image placeholders, then collapses all whitespace to single spaces.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	t := strings.TrimSpace(strings.ReplaceAll(text, "\u200b", ""))
	t = undefinedPrefix.ReplaceAllString(t, "")
	t = imagePlaceholder.ReplaceAllString(t, "")
	return strings.Join(strings.Fields(t), " ")
}

// CleanTitle removes the site-name suffixes from a title.
func CleanTitle(title string) string {
	t := strings.TrimSpace(title)
	for _, suffix := range []string{siteSuffixCommunity, siteSuffixLegacy} {
		if strings.HasSuffix(t, suffix) {
			t = strings.TrimRight(strings.TrimSuffix(t, suffix), " -")
		}
	}
	return t
}

// SiteTitle derives a thread title from a document <title> of the form
// "subject - board - site".
func SiteTitle(docTitle string) string {
	parts := strings.Split(docTitle, " - ")
	last := parts[len(parts)-1]
	switch {
	case len(parts) > 2 && strings.Contains(last, siteSuffixCommunity):
		return CleanTitle(strings.Join(parts[:len(parts)-2], " - "))
	case len(parts) > 1 && (strings.Contains(last, siteSuffixCommunity) || strings.Contains(last, siteSuffixLegacy)):
		return CleanTitle(parts[0])
	default:
		return CleanTitle(docTitle)
	}
}

// CleanCategory trims a category header, including leading and trailing colons.
func CleanCategory(label string) string {
	t := strings.TrimSpace(label)
	t = strings.TrimLeft(t, ":")
	t = strings.TrimRight(t, ":")
	return strings.TrimSpace(t)
}
