package hls

import "regexp"

// attributeListPattern tokenizes an HLS attribute list (the comma-separated
// KEY=VALUE pairs after a tag's colon), correctly skipping commas that
// appear inside a quoted value. Grounded on the same regex shape
// stephan-gh-hlsdump/hls/master.go uses for its own #EXT-X-... attribute
// lists.
var attributeListPattern = regexp.MustCompile(`([A-Z0-9-]+)=([^",]+|"[^"]*")(?:,|$)`)

// parseAttributeList returns nil if value contains no recognizable
// attribute pairs at all (the caller treats that as malformed).
func parseAttributeList(value string) map[string]string {
	matches := attributeListPattern.FindAllStringSubmatch(value, -1)
	if matches == nil {
		return nil
	}

	attrs := make(map[string]string, len(matches))
	for _, m := range matches {
		v := m[2]
		if n := len(v); n >= 2 && v[0] == '"' && v[n-1] == '"' {
			v = v[1 : n-1]
		}
		attrs[m[1]] = v
	}
	return attrs
}

// splitTag splits a line's tag name from its colon-delimited value, e.g.
// "EXT-X-STREAM-INF:BANDWIDTH=100" -> ("EXT-X-STREAM-INF", "BANDWIDTH=100").
// A tag with no colon (e.g. "EXTM3U") returns an empty value.
func splitTag(line string) (name, value string) {
	body := line[1:] // strip leading '#'
	for i := 0; i < len(body); i++ {
		if body[i] == ':' {
			return body[:i], body[i+1:]
		}
	}
	return body, ""
}
