package hls

import (
	"testing"

	"github.com/playkit/dtg/internal/domain"
)

type fakeFetcher map[string]string

func (f fakeFetcher) FetchText(url string) (string, error) {
	text, ok := f[url]
	if !ok {
		return "", domain.NewNetworkTimeout(url, nil)
	}
	return text, nil
}

func selectionFixture() Selection {
	return Selection{
		Video: VideoChoice{
			Stream: domain.VideoStream{Bandwidth: 1200000, PlaylistURL: "https://x/video/index.m3u8"},
			Codec:  domain.CodecH264,
		},
		Audio: []domain.MediaStream{
			{Type: domain.MediaTypeAudio, PlaylistURL: "https://x/audio/en/index.m3u8"},
		},
		Text: []domain.MediaStream{
			{Type: domain.MediaTypeText, PlaylistURL: "https://x/text/en/index.m3u8"},
		},
	}
}

const videoMedia = `#EXTM3U
#EXT-X-MAP:URI="init.mp4"
#EXT-X-KEY:METHOD=AES-128,URI="https://keys.example.com/k1"
#EXTINF:6,
seg0.m4s
#EXTINF:6,
seg1.m4s
#EXT-X-ENDLIST
`

const audioMedia = `#EXTM3U
#EXT-X-KEY:METHOD=AES-128,URI="https://keys.example.com/k1"
#EXTINF:6,
a0.m4s
#EXT-X-ENDLIST
`

const textMedia = `#EXTM3U
#EXTINF:6,
t0.vtt
#EXT-X-ENDLIST
`

func TestHydrateAndPlan(t *testing.T) {
	sel := selectionFixture()
	fetcher := fakeFetcher{
		"https://x/video/index.m3u8": videoMedia,
		"https://x/audio/en/index.m3u8": audioMedia,
		"https://x/text/en/index.m3u8":  textMedia,
	}

	if err := Hydrate(&sel, fetcher); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}

	result := Plan("/items/abc", sel, 128000)

	// video: map + 2 segments + 1 key; audio: 1 segment (its key URI was
	// already planned for video — key dedup spans the whole Plan call);
	// text: 1 segment, no key.
	var video, audio, text, key int
	for _, task := range result.Tasks {
		switch task.Type {
		case domain.TaskVideo:
			video++
		case domain.TaskAudio:
			audio++
		case domain.TaskText:
			text++
		case domain.TaskKey:
			key++
		}
	}
	if video != 3 {
		t.Errorf("expected 3 video tasks (map+2 segments), got %d", video)
	}
	if audio != 1 {
		t.Errorf("expected 1 audio task (1 segment), got %d", audio)
	}
	if text != 1 {
		t.Errorf("expected 1 text task (1 segment), got %d", text)
	}
	if key != 1 {
		t.Errorf("expected 1 key task (video and audio share the same AES-128 key URI), got %d", key)
	}

	if result.EstimatedSize == 0 {
		t.Error("expected a nonzero estimated size")
	}

	// No task should ever target the media playlist's own destination —
	// that would collide with the rewriter's own output file.
	videoPlaylistDest := domain.DestinationPath("/items/abc", domain.TaskVideo, sel.Video.Stream.PlaylistURL)
	for _, task := range result.Tasks {
		if task.Destination == videoPlaylistDest {
			t.Errorf("task %+v collides with the rewritten playlist's own destination", task)
		}
	}
}

func TestPlanOrderIsSequential(t *testing.T) {
	sel := selectionFixture()
	fetcher := fakeFetcher{
		"https://x/video/index.m3u8": videoMedia,
		"https://x/audio/en/index.m3u8": audioMedia,
		"https://x/text/en/index.m3u8":  textMedia,
	}
	if err := Hydrate(&sel, fetcher); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	result := Plan("/items/abc", sel, 128000)

	for i, task := range result.Tasks {
		if task.Order != i {
			t.Errorf("task[%d].Order = %d, want %d", i, task.Order, i)
		}
	}
}

func TestHydrateFailsOnFetchError(t *testing.T) {
	sel := selectionFixture()
	err := Hydrate(&sel, fakeFetcher{})
	if err == nil {
		t.Fatal("expected an error when the fetcher has no matching URL")
	}
}

func TestPathDerivationMatchesBetweenPlannerAndRewriter(t *testing.T) {
	sel := selectionFixture()
	fetcher := fakeFetcher{
		"https://x/video/index.m3u8": videoMedia,
		"https://x/audio/en/index.m3u8": audioMedia,
		"https://x/text/en/index.m3u8":  textMedia,
	}
	if err := Hydrate(&sel, fetcher); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}

	result := Plan("/items/abc", sel, 128000)

	// The planner's segment destination for the video stream's first
	// segment must equal what a rewriter-produced playlist would reference
	// relative to its own directory.
	segURL := sel.Video.Stream.Playlist.Segments[0].URI
	plannerDest := domain.DestinationPath("/items/abc", domain.TaskVideo, segURL)
	rewriterRel := domain.RelativeDestination(domain.TaskVideo, segURL)

	found := false
	for _, task := range result.Tasks {
		if task.SourceURL == segURL {
			found = true
			if task.Destination != plannerDest {
				t.Errorf("planner destination mismatch: %s != %s", task.Destination, plannerDest)
			}
		}
	}
	if !found {
		t.Fatal("expected the segment to be planned as a task")
	}
	if plannerDest[len(plannerDest)-len(rewriterRel):] != rewriterRel {
		t.Errorf("planner destination %q does not end with rewriter's relative leaf %q", plannerDest, rewriterRel)
	}
}
