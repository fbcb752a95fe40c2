package models

import (
	"strings"

	"github.com/gosimple/slug"
)

// Slug column widths. Slugs may come out longer than the text they are made
// from ("&" becomes "and"), so they are checked after slugging.
const (
	PostSlugMax     = 191
	CategorySlugMax = 191
	TagSlugMax      = 50
)

// MakeSlug slugs s and cuts the result to at most limit bytes without leaving
// a trailing separator.
func MakeSlug(s string, limit int) string {
	out := slug.Make(s)
	if len(out) > limit {
		out = strings.TrimRight(out[:limit], "-")
	}
	return out
}
