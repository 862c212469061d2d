package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	pagePlaceholder = "{page}"
	defaultScheme   = "https"
	defaultHost     = "bbs.nga.cn"
	defaultReadPath = "/read.php"
)

var pageParam = regexp.MustCompile(`page=\d+`)

// URLTemplate is a thread URL parameterized by page number.
type URLTemplate struct {
	pattern string
}

// NewURLTemplate derives a page template from a thread URL. A URL carrying an
// integer tid is canonicalized to path?tid=<id>&page={page}, dropping every
// other query parameter and the fragment. Otherwise the page parameter is
// rewritten in place. Unparseable input falls back to textual substitution.
func NewURLTemplate(raw string) URLTemplate {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return URLTemplate{pattern: naiveTemplate(raw)}
	}
	q := u.Query()
	if tid, ok := parseTID(q.Get("tid")); ok {
		scheme := u.Scheme
		if scheme == "" {
			scheme = defaultScheme
		}
		host := u.Host
		if host == "" {
			host = defaultHost
		}
		path := u.Path
		if path == "" {
			path = defaultReadPath
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return URLTemplate{pattern: fmt.Sprintf("%s://%s%s?tid=%d&page=%s", scheme, host, path, tid, pagePlaceholder)}
	}
	q.Set("page", pagePlaceholder)
	u.RawQuery = strings.Replace(q.Encode(), url.QueryEscape(pagePlaceholder), pagePlaceholder, 1)
	return URLTemplate{pattern: u.String()}
}

// Instantiate returns the URL of the given page.
func (t URLTemplate) Instantiate(page int) string {
	return strings.ReplaceAll(t.pattern, pagePlaceholder, strconv.Itoa(page))
}

// Pattern returns the template with its {page} placeholder.
func (t URLTemplate) Pattern() string {
	return t.pattern
}

func parseTID(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	tid, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return tid, true
}

func naiveTemplate(raw string) string {
	if pageParam.MatchString(raw) {
		return pageParam.ReplaceAllString(raw, "page="+pagePlaceholder)
	}
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + "page=" + pagePlaceholder
}
