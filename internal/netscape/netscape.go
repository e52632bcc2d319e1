// Package netscape parses Netscape cookie-jar files, the format produced by
// browser "export cookies" extensions and consumed by most downloader tools.
package netscape

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidFormat is returned when a blob is not a parseable cookie-jar file.
var ErrInvalidFormat = errors.New("invalid cookie jar format")

const httpOnlyPrefix = "#HttpOnly_"

// Entry is one cookie line from a jar file.
type Entry struct {
	Domain            string
	IncludeSubdomains bool
	Path              string
	Secure            bool
	Expires           time.Time
	Name              string
	Value             string
}

// Parse decodes newline-delimited cookie-jar lines. Blank lines and comments
// are skipped, except the #HttpOnly_ comment prefix which marks a real cookie.
// A line that is neither a comment nor a 7-field tab-separated record makes
// the whole blob invalid.
func Parse(blob []byte) ([]Entry, error) {
	var entries []Entry
	for _, line := range strings.Split(string(blob), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "#") && !strings.HasPrefix(line, httpOnlyPrefix) {
			continue
		}
		line = strings.TrimPrefix(line, httpOnlyPrefix)

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return nil, errors.Wrapf(ErrInvalidFormat, "expected 7 tab-separated fields, got %d", len(fields))
		}

		expiry, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidFormat, "bad expiry %q", fields[4])
		}
		var expires time.Time
		if expiry > 0 {
			expires = time.Unix(expiry, 0)
		}

		entries = append(entries, Entry{
			Domain:            fields[0],
			IncludeSubdomains: strings.EqualFold(fields[1], "TRUE"),
			Path:              fields[2],
			Secure:            strings.EqualFold(fields[3], "TRUE"),
			Expires:           expires,
			Name:              fields[5],
			Value:             fields[6],
		})
	}
	if len(entries) == 0 {
		return nil, errors.Wrap(ErrInvalidFormat, "no cookie entries found")
	}
	return entries, nil
}

// HTTPCookies converts entries to http.Cookie values for a client jar.
func HTTPCookies(entries []Entry) []*http.Cookie {
	cookies := make([]*http.Cookie, 0, len(entries))
	for _, e := range entries {
		cookies = append(cookies, &http.Cookie{
			Name:    e.Name,
			Value:   e.Value,
			Domain:  strings.TrimPrefix(e.Domain, "."),
			Path:    e.Path,
			Expires: e.Expires,
			Secure:  e.Secure,
		})
	}
	return cookies
}

// MatchesDomain reports whether any entry's domain equals one of the given
// domains (ignoring a leading dot on either side).
func MatchesDomain(entries []Entry, domains []string) bool {
	for _, e := range entries {
		got := strings.TrimPrefix(strings.ToLower(e.Domain), ".")
		for _, d := range domains {
			if got == strings.TrimPrefix(strings.ToLower(d), ".") {
				return true
			}
		}
	}
	return false
}
