// Package identity derives stable article identifiers from detail URLs and
// DOM attributes. The same input always yields the same identifier, which
// the reconciliation engine relies on for idempotent upserts.
package identity

import (
	"encoding/base64"
	"regexp"
	"strings"
)

const fallbackIDLength = 20

var (
	queryParamPattern  = regexp.MustCompile(`[?&]p=(\d+)`)
	trailingPattern    = regexp.MustCompile(`/(\d+)/?$`)
	pathSegmentPattern = regexp.MustCompile(`(?i)/(?:article|details|post)/(\d+)`)
	articlePattern     = regexp.MustCompile(`(?i)article-(\d+)`)
)

// Resolve returns the original identifier for an article, or "" when none
// can be derived. Strategies are tried in order, first match wins:
// a p= query parameter, a trailing numeric path segment, a numeric
// article/details/post path segment, an article-<n> marker, an explicit
// data attribute, and finally a truncated base64 of the title. The title fallback is lossy and collision-prone;
// it exists so sparse markup still yields a usable key, not because it is
// guaranteed unique.
func Resolve(url, dataID, title string) string {
	if id := FromURL(url); id != "" {
		return id
	}
	if dataID = strings.TrimSpace(dataID); dataID != "" {
		return dataID
	}
	return fromTitle(title)
}

// FromURL extracts an identifier from a detail URL alone.
func FromURL(url string) string {
	if m := queryParamPattern.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	if m := trailingPattern.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	// Catches detail URLs whose numeric segment is followed by a query
	// string or slug, which defeats the trailing probe.
	if m := pathSegmentPattern.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	if m := articlePattern.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

func fromTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(title))
	if len(encoded) > fallbackIDLength {
		return encoded[:fallbackIDLength]
	}
	return encoded
}
