package notion

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	uuidPattern     = regexp.MustCompile(`(?i)[0-9a-f]{8}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{12}`)
	trailingCompact = regexp.MustCompile(`(?i)[0-9a-f]{32}$`)
	trailingUUID    = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

var idStripper = strings.NewReplacer("-", "", "/", "")

// NormalizeID turns a page reference into the canonical record map key.
// Accepted forms are a notion.so / notion.site URL whose last path segment
// ends in the page id, a UUID with or without hyphens, or an opaque slug.
// Hyphens and slashes are stripped from the result.
func NormalizeID(ref string) string {
	ref = strings.TrimSpace(ref)
	if isNotionURL(ref) {
		if seg := lastPathSegment(ref); seg != "" {
			return idStripper.Replace(urlIDSegment(seg))
		}
	}
	if m := uuidPattern.FindString(ref); m != "" {
		return idStripper.Replace(m)
	}
	return idStripper.Replace(ref)
}

// FormatUUID renders a compact 32-hex id as 8-4-4-4-12. Other input is
// returned unchanged.
func FormatUUID(id string) string {
	u, err := uuid.Parse(NormalizeID(id))
	if err != nil {
		return id
	}
	return u.String()
}

func isNotionURL(ref string) bool {
	return strings.Contains(ref, "notion.so") || strings.Contains(ref, "notion.site")
}

func lastPathSegment(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimRight(ref, "/")
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	if isNotionURL(ref) {
		// bare host, no path
		return ""
	}
	return ref
}

// urlIDSegment extracts the id part of a "Some-Title-<id>" path segment.
func urlIDSegment(seg string) string {
	if m := trailingCompact.FindString(seg); m != "" {
		return m
	}
	if m := trailingUUID.FindString(seg); m != "" {
		return m
	}
	if i := strings.LastIndex(seg, "-"); i >= 0 && i < len(seg)-1 {
		return seg[i+1:]
	}
	return seg
}
