// Package urlnorm implements the canonical-URL normalization shared by
// Link-Store, Chat-Pipeline, and Tools-Client item normalization: lowercase scheme, http/https
// only, no userinfo, no fragment, no trailing slash, query preserved.
package urlnorm

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalid is returned when a URL cannot be normalized into a canonical
// catalog identity (not http/https, unparseable, or missing a host).
var ErrInvalid = errors.New("url does not normalize to a canonical form")

// Canonicalize implements spec.md §3's CanonicalURL invariant.
func Canonicalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalid
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrInvalid
	}
	if u.Hostname() == "" {
		return "", ErrInvalid
	}

	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), nil
}

// MustCanonicalize is Canonicalize without the error, for use where the
// input is already known-valid (tests, constants).
func MustCanonicalize(raw string) string {
	c, err := Canonicalize(raw)
	if err != nil {
		panic(err)
	}
	return c
}
