// Package hls implements the HLS Localizer: parsing a remote master
// playlist and its referenced media playlists, selecting renditions,
// planning the fetch tasks they require, and rewriting playlists to
// reference a local on-disk layout.
package hls

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/playkit/dtg/internal/domain"
)

// Kind classifies a parsed playlist as master or media (spec §4.1).
type Kind int

const (
	KindUnknown Kind = iota
	KindMaster
	KindMedia
)

// Detect classifies playlist text without fully parsing it, by looking for
// the first tag that is unambiguous to one playlist type.
func Detect(text string) Kind {
	for _, line := range splitLines(text) {
		if line == "" || line[0] != '#' {
			continue
		}
		name, _ := splitTag(line)
		switch name {
		case "EXT-X-STREAM-INF", "EXT-X-MEDIA", "EXT-X-SESSION-KEY":
			return KindMaster
		case "EXTINF", "EXT-X-TARGETDURATION", "EXT-X-MEDIA-SEQUENCE", "EXT-X-MAP", "EXT-X-ENDLIST":
			return KindMedia
		}
	}
	return KindUnknown
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// resolve resolves a possibly-relative URI against a playlist's base URL
// (spec §4.1: "the URL of the playlist with its last path component
// removed" — url.Parse + ResolveReference already implements exactly that).
func resolve(base *url.URL, ref string) (string, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(refURL).String(), nil
}

// ParseMaster parses master playlist text (spec §4.1). baseURL is the
// playlist's own URL, used to resolve every relative URI it contains.
func ParseMaster(text, baseURL string) (*domain.MasterPlaylist, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, domain.NewMalformedPlaylist("invalid base URL: " + err.Error())
	}

	lines := splitLines(text)
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "#EXTM3U" {
		return nil, domain.NewMalformedPlaylist("missing #EXTM3U header")
	}

	m := &domain.MasterPlaylist{URL: baseURL}

	var pendingStream *domain.VideoStream

	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		if line[0] != '#' {
			// A URI line. It belongs to the most recently seen
			// EXT-X-STREAM-INF tag.
			if pendingStream == nil {
				continue
			}
			abs, err := resolve(base, line)
			if err != nil {
				return nil, domain.NewMalformedPlaylist("invalid variant URI: " + err.Error())
			}
			pendingStream.PlaylistURL = abs
			m.VideoStreams = append(m.VideoStreams, *pendingStream)
			pendingStream = nil
			continue
		}

		name, value := splitTag(line)
		switch name {
		case "EXT-X-STREAM-INF":
			attrs := parseAttributeList(value)
			if attrs == nil {
				return nil, domain.NewMalformedPlaylist("invalid EXT-X-STREAM-INF attribute list: " + line)
			}
			vs := domain.VideoStream{
				Bandwidth:       atoiOr(attrs["BANDWIDTH"], 0),
				Codecs:          splitCodecs(attrs["CODECS"]),
				AudioGroupID:    attrs["AUDIO"],
				SubtitleGroupID: attrs["SUBTITLES"],
			}
			if w, h, ok := parseResolution(attrs["RESOLUTION"]); ok {
				vs.Width, vs.Height = w, h
			}
			pendingStream = &vs

		case "EXT-X-MEDIA":
			attrs := parseAttributeList(value)
			if attrs == nil {
				return nil, domain.NewMalformedPlaylist("invalid EXT-X-MEDIA attribute list: " + line)
			}
			ms := domain.MediaStream{
				Type:       domain.MediaType(attrs["TYPE"]),
				GroupID:    attrs["GROUP-ID"],
				Language:   attrs["LANGUAGE"],
				Name:       attrs["NAME"],
				Default:    attrs["DEFAULT"] == "YES",
				Autoselect: attrs["AUTOSELECT"] == "YES",
				Forced:     attrs["FORCED"] == "YES",
				Bandwidth:  atoiOr(attrs["BANDWIDTH"], 0),
			}
			if uri, ok := attrs["URI"]; ok && uri != "" {
				abs, err := resolve(base, uri)
				if err != nil {
					return nil, domain.NewMalformedPlaylist("invalid EXT-X-MEDIA URI: " + err.Error())
				}
				ms.PlaylistURL = abs
			}
			switch ms.Type {
			case domain.MediaTypeAudio:
				m.AudioStreams = append(m.AudioStreams, ms)
			case domain.MediaTypeText:
				m.TextStreams = append(m.TextStreams, ms)
			}

		case "EXT-X-SESSION-KEY":
			m.SessionKeys = append(m.SessionKeys, domain.SessionKey{RawLine: line})

		case "EXT-X-INDEPENDENT-SEGMENTS", "EXT-X-START":
			m.PreambleLines = append(m.PreambleLines, line)
		}
	}

	if len(m.VideoStreams) == 0 {
		return nil, domain.NewMalformedPlaylist("master playlist declares no variants")
	}

	return m, nil
}

// ParseMedia parses media playlist text (spec §4.1).
func ParseMedia(text, baseURL string) (*domain.MediaPlaylist, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, domain.NewMalformedPlaylist("invalid base URL: " + err.Error())
	}

	lines := splitLines(text)
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "#EXTM3U" {
		return nil, domain.NewMalformedPlaylist("missing #EXTM3U header")
	}

	mp := &domain.MediaPlaylist{URL: baseURL, RawText: text}

	var pendingDuration float64
	var haveDuration bool
	offset := 0

	for i := 1; i < len(lines); i++ {
		raw := lines[i]
		line := strings.TrimSpace(raw)
		lineOffset := offset
		offset += len(raw) + 1 // +1 for the stripped newline

		if line == "" {
			continue
		}

		if line[0] != '#' {
			if !haveDuration {
				continue
			}
			abs, err := resolve(base, line)
			if err != nil {
				return nil, domain.NewMalformedPlaylist("invalid segment URI: " + err.Error())
			}
			mp.Segments = append(mp.Segments, domain.Segment{URI: abs, Duration: pendingDuration})
			haveDuration = false
			continue
		}

		name, value := splitTag(line)
		switch name {
		case "EXTINF":
			durPart, _ := splitComma(value)
			d, err := strconv.ParseFloat(durPart, 64)
			if err != nil {
				return nil, domain.NewMalformedPlaylist("invalid EXTINF duration: " + line)
			}
			pendingDuration = d
			haveDuration = true

		case "EXT-X-MAP":
			attrs := parseAttributeList(value)
			if attrs == nil || attrs["URI"] == "" {
				return nil, domain.NewMalformedPlaylist("invalid EXT-X-MAP tag: " + line)
			}
			abs, err := resolve(base, attrs["URI"])
			if err != nil {
				return nil, domain.NewMalformedPlaylist("invalid EXT-X-MAP URI: " + err.Error())
			}
			mp.MapURI = abs

		case "EXT-X-KEY":
			attrs := parseAttributeList(value)
			if attrs == nil {
				return nil, domain.NewMalformedPlaylist("invalid EXT-X-KEY tag: " + line)
			}
			key := domain.KeyRef{
				Method:    domain.KeyMethod(attrs["METHOD"]),
				IV:        attrs["IV"],
				KeyFormat: attrs["KEYFORMAT"],
				RawLine:   line,
				Offset:    lineOffset,
			}
			if uri, ok := attrs["URI"]; ok && uri != "" {
				abs, err := resolve(base, uri)
				if err != nil {
					return nil, domain.NewMalformedPlaylist("invalid EXT-X-KEY URI: " + err.Error())
				}
				key.URI = abs
			}
			mp.Keys = append(mp.Keys, key)
		}
	}

	return mp, nil
}

func splitComma(s string) (before, after string) {
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func splitCodecs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseResolution(s string) (w, h int, ok bool) {
	if s == "" {
		return 0, 0, false
	}
	i := strings.IndexByte(s, 'x')
	if i < 0 {
		return 0, 0, false
	}
	w, err1 := strconv.Atoi(s[:i])
	h, err2 := strconv.Atoi(s[i+1:])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return w, h, true
}
