// Package hls contains pure M3U8 parsing helpers: master playlist variant
// discovery, media playlist segment listing, and URL resolution. Nothing in
// this package performs I/O.
package hls

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Variant is one quality rendition advertised by a master playlist.
type Variant struct {
	URI       string
	Bandwidth int
	Width     int
	Height    int
}

// ParseMaster scans master playlist text for #EXT-X-STREAM-INF entries and
// returns the advertised variants with their URIs resolved against baseURL.
// Attribute values may be quoted; BANDWIDTH defaults to 0 and RESOLUTION to
// 0x0 when absent or malformed.
func ParseMaster(text, baseURL string) []Variant {
	lines := nonEmptyLines(text)

	var variants []Variant
	for i := 0; i < len(lines); i++ {
		if !strings.HasPrefix(lines[i], "#EXT-X-STREAM-INF:") {
			continue
		}
		if i+1 >= len(lines) {
			break
		}

		attrs := parseAttributes(strings.TrimPrefix(lines[i], "#EXT-X-STREAM-INF:"))

		v := Variant{URI: ResolveURL(baseURL, lines[i+1])}
		if bw, err := strconv.Atoi(attrs["BANDWIDTH"]); err == nil {
			v.Bandwidth = bw
		}
		if res, ok := attrs["RESOLUTION"]; ok {
			v.Width, v.Height = parseResolution(res)
		}
		variants = append(variants, v)
		i++ // the URI line is consumed
	}
	return variants
}

// BestVariant returns the URI of the variant maximising (bandwidth, width,
// height) compared lexicographically, or "" for an empty slice.
func BestVariant(variants []Variant) string {
	if len(variants) == 0 {
		return ""
	}
	best := variants[0]
	for _, v := range variants[1:] {
		if v.betterThan(best) {
			best = v
		}
	}
	return best.URI
}

func (v Variant) betterThan(o Variant) bool {
	if v.Bandwidth != o.Bandwidth {
		return v.Bandwidth > o.Bandwidth
	}
	if v.Width != o.Width {
		return v.Width > o.Width
	}
	return v.Height > o.Height
}

// ParseMedia returns the segment URIs of a media playlist: every non-empty,
// non-comment line, in file order.
func ParseMedia(text string) []string {
	var uris []string
	for _, line := range nonEmptyLines(text) {
		if strings.HasPrefix(line, "#") {
			continue
		}
		uris = append(uris, line)
	}
	return uris
}

// ResolveURL resolves ref against base per standard relative-URL resolution.
// On any parse error the ref is returned as-is.
func ResolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// Some origins encode the segment capture time into the path as
// YYYY/MM/DD/HH/MM/SS-<seq>.ts; when present the whole dated tail is the
// segment's identity.
var segmentTimePath = regexp.MustCompile(`(\d{4})/(\d{2})/(\d{2})/(\d{2})/(\d{2})/(\d{2})-[^/]*$`)

// SegmentIdentity derives a segment name from its URL and, when the path
// encodes a capture time, that timestamp (UTC). The returned time is zero
// when the URL carries no timestamp.
func SegmentIdentity(rawURL string) (string, time.Time) {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}

	if m := segmentTimePath.FindStringSubmatch(path); m != nil {
		stamp := strings.Join(m[1:7], "/")
		if ts, err := time.Parse("2006/01/02/15/04/05", stamp); err == nil {
			return m[0], ts
		}
	}

	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:], time.Time{}
	}
	return path, time.Time{}
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// parseAttributes parses a comma-separated KEY=VALUE attribute list, honouring
// commas inside quoted values (e.g. CODECS="avc1.4d401f,mp4a.40.2").
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	start := 0
	inQuotes := false
	flush := func(part string) {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return
		}
		attrs[strings.TrimSpace(k)] = strings.Trim(strings.TrimSpace(v), `"`)
	}
	for i, r := range s {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				flush(s[start:i])
				start = i + 1
			}
		}
	}
	flush(s[start:])
	return attrs
}

func parseResolution(s string) (int, int) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return 0, 0
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return 0, 0
	}
	return width, height
}
