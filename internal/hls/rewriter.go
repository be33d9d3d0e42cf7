package hls

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/playkit/dtg/internal/domain"
)

// WriteMaster renders the localized master playlist (spec §4.4): header,
// preserved passthrough/session-key lines, one EXT-X-STREAM-INF for the
// chosen video stream, one EXT-X-MEDIA per selected audio/text stream.
func WriteMaster(master *domain.MasterPlaylist, sel Selection) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")

	for _, line := range master.PreambleLines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, k := range master.SessionKeys {
		b.WriteString(k.RawLine)
		b.WriteByte('\n')
	}

	writeStreamInf(&b, sel)
	fmt.Fprintf(&b, "%s/%s\n", domain.TaskVideo, RelativeVideoURI(sel))

	for _, a := range sel.Audio {
		writeMediaTag(&b, domain.TaskAudio, a)
	}
	for _, t := range sel.Text {
		writeMediaTag(&b, domain.TaskText, t)
	}

	return b.String()
}

// RelativeVideoURI is the "<md5>.<ext>" leaf for the chosen video stream's
// own media playlist file — not to be confused with the segment URIs
// inside that playlist.
func RelativeVideoURI(sel Selection) string {
	return domain.RelativeDestination(domain.TaskVideo, sel.Video.Stream.PlaylistURL)
}

func writeStreamInf(b *strings.Builder, sel Selection) {
	v := sel.Video.Stream
	fmt.Fprintf(b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d", v.Bandwidth, v.Width, v.Height)
	if v.AudioGroupID != "" && len(sel.Audio) > 0 {
		fmt.Fprintf(b, ",AUDIO=%q", v.AudioGroupID)
	}
	if v.SubtitleGroupID != "" && len(sel.Text) > 0 {
		fmt.Fprintf(b, ",SUBTITLES=%q", v.SubtitleGroupID)
	}
	if len(v.Codecs) > 0 {
		fmt.Fprintf(b, ",CODECS=%q", strings.Join(v.Codecs, ","))
	}
	b.WriteByte('\n')
}

func writeMediaTag(b *strings.Builder, kind domain.TaskType, m domain.MediaStream) {
	fmt.Fprintf(b, "#EXT-X-MEDIA:TYPE=%s", m.Type)
	fmt.Fprintf(b, ",GROUP-ID=%q", m.GroupID)
	fmt.Fprintf(b, ",NAME=%q", m.Name)
	if m.Language != "" {
		fmt.Fprintf(b, ",LANGUAGE=%q", m.Language)
	}
	fmt.Fprintf(b, ",AUTOSELECT=%s", yesNo(m.Autoselect))
	fmt.Fprintf(b, ",DEFAULT=%s", yesNo(m.Default))
	if m.Type == domain.MediaTypeText {
		fmt.Fprintf(b, ",FORCED=%s", yesNo(m.Forced))
	}
	if m.Bandwidth > 0 {
		fmt.Fprintf(b, ",BANDWIDTH=%d", m.Bandwidth)
	}
	fmt.Fprintf(b, ",URI=%q", fmt.Sprintf("%s/%s", kind, domain.RelativeDestination(kind, m.PlaylistURL)))
	b.WriteByte('\n')
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

// RewriteMedia transforms a media playlist's original text into its
// localized form (spec §4.4): segment and EXT-X-MAP URIs become
// same-directory "<md5>.<ext>" references, AES-128 EXT-X-KEY URIs become
// "../key/<md5>.<ext>", every other line is kept verbatim, blank lines are
// dropped. kind is the owning stream's type (video/audio/text) — segments
// and the init map always live alongside the rewritten playlist under
// "<kind>/", which is what the same-directory references resolve to.
func RewriteMedia(mp *domain.MediaPlaylist, kind domain.TaskType) (string, error) {
	base, err := url.Parse(mp.URL)
	if err != nil {
		return "", domain.NewMalformedPlaylist("invalid playlist base URL during rewrite: " + err.Error())
	}

	segmentSet := make(map[string]bool, len(mp.Segments))
	for _, s := range mp.Segments {
		segmentSet[s.URI] = true
	}

	keyByOffset := make(map[int]domain.KeyRef, len(mp.Keys))
	for _, k := range mp.Keys {
		keyByOffset[k.Offset] = k
	}

	lines := splitLines(mp.RawText)

	var b strings.Builder
	if len(lines) > 0 {
		b.WriteString(lines[0])
		b.WriteByte('\n')
	}

	offset := 0
	for i := 1; i < len(lines); i++ {
		raw := lines[i]
		line := strings.TrimSpace(raw)
		lineOffset := offset
		offset += len(raw) + 1

		if line == "" {
			continue
		}

		if line[0] != '#' {
			abs, err := resolve(base, line)
			if err != nil {
				return "", domain.NewMalformedPlaylist("invalid segment URI during rewrite: " + err.Error())
			}
			if segmentSet[abs] {
				b.WriteString(domain.RelativeDestination(kind, abs))
				b.WriteByte('\n')
				continue
			}
			b.WriteString(raw)
			b.WriteByte('\n')
			continue
		}

		name, value := splitTag(line)
		switch name {
		case "EXT-X-MAP":
			attrs := parseAttributeList(value)
			if attrs == nil || attrs["URI"] == "" {
				return "", domain.NewMalformedPlaylist("invalid EXT-X-MAP during rewrite: " + line)
			}
			rel := domain.RelativeDestination(kind, mp.MapURI)
			fmt.Fprintf(&b, "#EXT-X-MAP:URI=%q\n", rel)

		case "EXT-X-KEY":
			if key, ok := keyByOffset[lineOffset]; ok && key.IsFetchable() {
				rel := "../key/" + domain.RelativeDestination(domain.TaskKey, key.URI)
				b.WriteString(rewriteKeyURI(line, rel))
				b.WriteByte('\n')
				continue
			}
			b.WriteString(raw)
			b.WriteByte('\n')

		default:
			b.WriteString(raw)
			b.WriteByte('\n')
		}
	}

	return b.String(), nil
}

// rewriteKeyURI rebuilds an #EXT-X-KEY line with its URI attribute
// replaced, preserving the other attributes in a stable order.
func rewriteKeyURI(line, newRelURI string) string {
	name, value := splitTag(line)
	attrs := parseAttributeList(value)
	if attrs == nil {
		return line
	}
	attrs["URI"] = newRelURI

	quoted := map[string]bool{"URI": true, "KEYFORMAT": true, "KEYFORMATVERSIONS": true}

	var b strings.Builder
	fmt.Fprintf(&b, "#%s:", name)
	first := true
	for _, k := range []string{"METHOD", "URI", "IV", "KEYFORMAT", "KEYFORMATVERSIONS"} {
		v, ok := attrs[k]
		if !ok {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		if quoted[k] {
			fmt.Fprintf(&b, "%s=%q", k, v)
		} else {
			fmt.Fprintf(&b, "%s=%s", k, v)
		}
	}
	return b.String()
}
