// Package cookies loads browser-exported cookie files for authenticated forum sessions.
package cookies

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cookie is one normalized cookie entry.
type Cookie struct {
	Name     string
	Value    string
	URL      string
	Domain   string
	Path     string
	Expires  int64
	HTTPOnly bool
	Secure   bool
	SameSite string
}

// fileEntry mirrors the exported JSON shape. Values are decoded loosely
// because exporters disagree on types.
type fileEntry struct {
	Name     any     `json:"name"`
	Value    any     `json:"value"`
	URL      string  `json:"url"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// Resolve returns path when it names an existing file, otherwise "".
func Resolve(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}

// Load reads a cookie file. A missing file yields no cookies and no error.
func Load(path string) ([]Cookie, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cookies %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a JSON array of cookie objects. Entries that are not objects
// or lack a name or value are skipped. The path defaults to "/", SameSite=None
// forces Secure and fractional expiry is truncated.
func Parse(data []byte) ([]Cookie, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode cookies: %w", err)
	}
	out := make([]Cookie, 0, len(raw))
	for _, item := range raw {
		var entry fileEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			continue
		}
		name := strings.TrimSpace(stringify(entry.Name))
		value := stringify(entry.Value)
		if name == "" || value == "" {
			continue
		}
		c := Cookie{
			Name:     name,
			Value:    value,
			URL:      entry.URL,
			Domain:   entry.Domain,
			Path:     entry.Path,
			Expires:  int64(entry.Expires),
			HTTPOnly: entry.HTTPOnly,
			Secure:   entry.Secure,
			SameSite: entry.SameSite,
		}
		if c.Path == "" {
			c.Path = "/"
		}
		if c.SameSite == "None" {
			c.Secure = true
		}
		out = append(out, c)
	}
	return out, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(t)
	}
}

// HTTPCookies converts cookies for use with an http.CookieJar.
func HTTPCookies(cookies []Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: sameSite(c.SameSite),
		}
		if c.Expires > 0 {
			hc.Expires = time.Unix(c.Expires, 0)
		}
		out = append(out, hc)
	}
	return out
}

func sameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
