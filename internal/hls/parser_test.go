package hls

import (
	"testing"
)

const sampleMaster = `#EXTM3U
#EXT-X-INDEPENDENT-SEGMENTS
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aac",NAME="English",LANGUAGE="en",DEFAULT=YES,AUTOSELECT=YES,URI="audio/en/index.m3u8"
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aac",NAME="French",LANGUAGE="fr",DEFAULT=NO,AUTOSELECT=YES,URI="audio/fr/index.m3u8"
#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID="subs",NAME="English",LANGUAGE="en",DEFAULT=YES,AUTOSELECT=YES,URI="subs/en/index.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=1280x720,CODECS="avc1.4d401f,mp4a.40.2",AUDIO="aac",SUBTITLES="subs"
video/720/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=6000000,RESOLUTION=1920x1080,CODECS="hvc1.2.4.L120.90,mp4a.40.2",AUDIO="aac",SUBTITLES="subs"
video/1080hevc/index.m3u8
`

const sampleMedia = `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-MAP:URI="init.mp4"
#EXT-X-KEY:METHOD=AES-128,URI="https://keys.example.com/key1",IV=0x0102030405060708090a0b0c0d0e0f10
#EXTINF:6.006,
seg0.m4s
#EXTINF:6.006,
seg1.m4s
#EXT-X-ENDLIST
`

func TestDetect(t *testing.T) {
	if got := Detect(sampleMaster); got != KindMaster {
		t.Errorf("Detect(master) = %v, want KindMaster", got)
	}
	if got := Detect(sampleMedia); got != KindMedia {
		t.Errorf("Detect(media) = %v, want KindMedia", got)
	}
	if got := Detect("not a playlist"); got != KindUnknown {
		t.Errorf("Detect(garbage) = %v, want KindUnknown", got)
	}
}

func TestParseMaster(t *testing.T) {
	m, err := ParseMaster(sampleMaster, "https://cdn.example.com/show/master.m3u8")
	if err != nil {
		t.Fatalf("ParseMaster: %v", err)
	}

	if len(m.VideoStreams) != 2 {
		t.Fatalf("got %d video streams, want 2", len(m.VideoStreams))
	}
	if m.VideoStreams[0].PlaylistURL != "https://cdn.example.com/show/video/720/index.m3u8" {
		t.Errorf("unexpected resolved variant URL: %s", m.VideoStreams[0].PlaylistURL)
	}
	if m.VideoStreams[1].Width != 1920 || m.VideoStreams[1].Height != 1080 {
		t.Errorf("unexpected resolution: %dx%d", m.VideoStreams[1].Width, m.VideoStreams[1].Height)
	}
	if len(m.AudioStreams) != 2 {
		t.Fatalf("got %d audio streams, want 2", len(m.AudioStreams))
	}
	if m.AudioStreams[0].PlaylistURL != "https://cdn.example.com/show/audio/en/index.m3u8" {
		t.Errorf("unexpected resolved audio URL: %s", m.AudioStreams[0].PlaylistURL)
	}
	if len(m.TextStreams) != 1 {
		t.Fatalf("got %d text streams, want 1", len(m.TextStreams))
	}
	if len(m.PreambleLines) != 1 || m.PreambleLines[0] != "#EXT-X-INDEPENDENT-SEGMENTS" {
		t.Errorf("expected passthrough preamble, got %v", m.PreambleLines)
	}
}

func TestParseMasterRejectsMissingHeader(t *testing.T) {
	_, err := ParseMaster("#EXT-X-STREAM-INF:BANDWIDTH=1\nfoo.m3u8\n", "https://x/master.m3u8")
	if err == nil {
		t.Fatal("expected error for missing #EXTM3U header")
	}
}

func TestParseMasterRejectsNoVariants(t *testing.T) {
	_, err := ParseMaster("#EXTM3U\n", "https://x/master.m3u8")
	if err == nil {
		t.Fatal("expected error for a master with no variants")
	}
}

func TestParseMedia(t *testing.T) {
	mp, err := ParseMedia(sampleMedia, "https://cdn.example.com/show/video/720/index.m3u8")
	if err != nil {
		t.Fatalf("ParseMedia: %v", err)
	}

	if len(mp.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(mp.Segments))
	}
	if mp.Segments[0].URI != "https://cdn.example.com/show/video/720/seg0.m4s" {
		t.Errorf("unexpected resolved segment URI: %s", mp.Segments[0].URI)
	}
	if mp.Segments[0].Duration != 6.006 {
		t.Errorf("unexpected duration: %v", mp.Segments[0].Duration)
	}
	if mp.MapURI != "https://cdn.example.com/show/video/720/init.mp4" {
		t.Errorf("unexpected resolved init map URI: %s", mp.MapURI)
	}
	if len(mp.Keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(mp.Keys))
	}
	if !mp.Keys[0].IsFetchable() {
		t.Error("expected AES-128 default-format key to be fetchable")
	}
	if mp.Keys[0].URI != "https://keys.example.com/key1" {
		t.Errorf("unexpected key URI: %s", mp.Keys[0].URI)
	}
}

func TestKeyRefNotFetchableForSampleAES(t *testing.T) {
	mp, err := ParseMedia(`#EXTM3U
#EXT-X-KEY:METHOD=SAMPLE-AES,URI="skd://fairplay",KEYFORMAT="com.apple.streamingkeydelivery"
#EXTINF:2,
seg0.ts
`, "https://cdn.example.com/a/index.m3u8")
	if err != nil {
		t.Fatalf("ParseMedia: %v", err)
	}
	if len(mp.Keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(mp.Keys))
	}
	if mp.Keys[0].IsFetchable() {
		t.Error("SAMPLE-AES key should not be fetchable")
	}
}

func TestAttributeListPreservesCommasInQuotes(t *testing.T) {
	attrs := parseAttributeList(`BANDWIDTH=100,CODECS="avc1.4d401f, mp4a.40.2",NAME="A, B"`)
	if attrs == nil {
		t.Fatal("expected non-nil attribute map")
	}
	if attrs["CODECS"] != "avc1.4d401f, mp4a.40.2" {
		t.Errorf("unexpected CODECS value: %q", attrs["CODECS"])
	}
	if attrs["NAME"] != "A, B" {
		t.Errorf("unexpected NAME value: %q", attrs["NAME"])
	}
	if attrs["BANDWIDTH"] != "100" {
		t.Errorf("unexpected BANDWIDTH value: %q", attrs["BANDWIDTH"])
	}
}
