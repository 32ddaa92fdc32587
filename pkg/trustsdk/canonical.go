package trustsdk

import (
	"net/url"
	"strings"
)

// CanonicalPath normalizes a request path for use as a token cache key:
// scheme and host are dropped when a full URL is supplied, query string and
// fragment are stripped, and the result always starts with "/".
//
// The function is idempotent: CanonicalPath(CanonicalPath(p)) == CanonicalPath(p).
func CanonicalPath(p string) string {
	if strings.Contains(p, "://") {
		if u, err := url.Parse(p); err == nil {
			p = u.EscapedPath()
		}
	}

	// Strip query and fragment even when the input was not a full URL.
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
