package domain

// Segment is one fetchable media segment (spec §3): a URI plus duration.
type Segment struct {
	URI      string
	Duration float64 // seconds
}

// KeyMethod is an #EXT-X-KEY METHOD value.
type KeyMethod string

const (
	KeyMethodNone    KeyMethod = "NONE"
	KeyMethodAES128  KeyMethod = "AES-128"
	KeyMethodSampleAES KeyMethod = "SAMPLE-AES"
)

// KeyRef is a captured #EXT-X-KEY tag (spec §3). Only AES-128 keys using the
// default key format are ever turned into a fetch task.
type KeyRef struct {
	URI       string
	Method    KeyMethod
	IV        string
	KeyFormat string // empty means the default ("identity") HLS key format
	RawLine   string // the tag as it appeared in the source playlist
	Offset    int    // byte offset of the tag's line, counted from the start of the line after #EXTM3U
}

// IsFetchable reports whether this key reference should be enumerated as a
// download task (spec §3: "Only AES-128 with the default HLS key format").
func (k KeyRef) IsFetchable() bool {
	return k.Method == KeyMethodAES128 && (k.KeyFormat == "" || k.KeyFormat == "identity")
}

// MediaPlaylist is the parsed form of an HLS media playlist (spec §4.1).
type MediaPlaylist struct {
	URL      string // absolute URL this playlist was fetched from
	Segments []Segment
	Keys     []KeyRef
	MapURI   string // #EXT-X-MAP URI, resolved absolute; "" if none
	RawText  string // original playlist text, scanned again by the rewriter
}

// TotalDuration sums EXTINF durations (spec §4.3).
func (m MediaPlaylist) TotalDuration() float64 {
	var total float64
	for _, s := range m.Segments {
		total += s.Duration
	}
	return total
}

// VideoStream is a parsed video rendition (spec §3).
type VideoStream struct {
	Bandwidth      int
	Width, Height  int
	Codecs         []string
	AudioGroupID   string
	SubtitleGroupID string
	PlaylistURL    string
	Playlist       MediaPlaylist
}

// MediaType distinguishes audio from text alternate renditions.
type MediaType string

const (
	MediaTypeAudio MediaType = "AUDIO"
	MediaTypeText  MediaType = "SUBTITLES"
)

// MediaStream is a parsed audio or subtitle rendition (spec §3).
type MediaStream struct {
	Type       MediaType
	GroupID    string
	Language   string
	Name       string
	Default    bool
	Autoselect bool
	Forced     bool
	Bandwidth  int // 0 if not declared

	PlaylistURL string
	Playlist    MediaPlaylist
}

// SessionKey is a preserved #EXT-X-SESSION-KEY line from a master playlist
// (spec §4.1): FairPlay (or any other) session keys are carried through to
// the rewritten master verbatim, never fetched.
type SessionKey struct {
	RawLine string
}

// MasterPlaylist is the parsed form of an HLS master playlist (spec §4.1).
type MasterPlaylist struct {
	URL            string
	VideoStreams   []VideoStream
	AudioStreams   []MediaStream
	TextStreams    []MediaStream
	SessionKeys    []SessionKey
	PreambleLines  []string // verbatim passthrough tags (EXT-X-INDEPENDENT-SEGMENTS, EXT-X-START, ...)
}
