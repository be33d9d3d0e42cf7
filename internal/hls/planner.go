package hls

import (
	"path"

	"github.com/playkit/dtg/internal/domain"
)

// PlanResult is the full output of the Task Planner (spec §4.3).
type PlanResult struct {
	Tasks         []domain.DownloadTask
	EstimatedSize uint64
}

// Fetcher loads a media playlist's text given its URL. Hydrate is the only
// caller of Component A for every selected stream's own media playlist.
type Fetcher interface {
	FetchText(url string) (string, error)
}

// Hydrate fetches and parses every selected stream's media playlist,
// filling in the Playlist field the selector left empty. Plan, WriteMaster
// and RewriteMedia all assume a hydrated Selection.
func Hydrate(sel *Selection, fetcher Fetcher) error {
	mp, err := fetchAndParse(fetcher, sel.Video.Stream.PlaylistURL)
	if err != nil {
		return err
	}
	sel.Video.Stream.Playlist = *mp

	for i := range sel.Audio {
		mp, err := fetchAndParse(fetcher, sel.Audio[i].PlaylistURL)
		if err != nil {
			return err
		}
		sel.Audio[i].Playlist = *mp
	}
	for i := range sel.Text {
		mp, err := fetchAndParse(fetcher, sel.Text[i].PlaylistURL)
		if err != nil {
			return err
		}
		sel.Text[i].Playlist = *mp
	}
	return nil
}

func fetchAndParse(fetcher Fetcher, url string) (*domain.MediaPlaylist, error) {
	text, err := fetcher.FetchText(url)
	if err != nil {
		return nil, err
	}
	return ParseMedia(text, url)
}

// Plan implements spec §4.3: from a hydrated selection's streams, produce
// every fetch task (segment, init-map, key) with a stable, deterministic
// destination. itemRoot is the directory DestinationPath paths are rooted
// under. audioBitrateFallback is used when an audio stream declares no
// bandwidth of its own.
func Plan(itemRoot string, sel Selection, audioBitrateFallback int) PlanResult {
	var result PlanResult
	order := 0
	seenKeys := make(map[string]bool)

	planOneStream(&result, itemRoot, domain.TaskVideo, sel.Video.Stream.Playlist, &order, seenKeys)
	result.EstimatedSize += videoSize(sel.Video.Stream.Bandwidth, sel.Video.Stream.Playlist.TotalDuration())

	for _, a := range sel.Audio {
		planOneStream(&result, itemRoot, domain.TaskAudio, a.Playlist, &order, seenKeys)
		bw := a.Bandwidth
		if bw <= 0 {
			bw = audioBitrateFallback
		}
		result.EstimatedSize += videoSize(bw, a.Playlist.TotalDuration())
	}

	for _, t := range sel.Text {
		planOneStream(&result, itemRoot, domain.TaskText, t.Playlist, &order, seenKeys)
	}

	return result
}

// videoSize implements spec §4.3's "bandwidth × duration / 8" estimate.
func videoSize(bandwidth int, duration float64) uint64 {
	if bandwidth <= 0 || duration <= 0 {
		return 0
	}
	return uint64(float64(bandwidth) * duration / 8)
}

// planOneStream emits a stream's init-map task, one task per segment in
// order, then its key tasks (spec §4.3: "segment, init-map, key" — the
// media playlist itself is not a fetch task; its localized text is written
// directly by the rewriter, and a fetch task at the same destination would
// overwrite that rewritten text with the original remote bytes).
func planOneStream(result *PlanResult, itemRoot string, kind domain.TaskType, mp domain.MediaPlaylist, order *int, seenKeys map[string]bool) {
	if mp.MapURI != "" {
		result.Tasks = append(result.Tasks, domain.DownloadTask{
			SourceURL:   mp.MapURI,
			Type:        kind,
			Destination: domain.DestinationPath(itemRoot, kind, mp.MapURI),
			Order:       *order,
		})
		*order++
	}
	for _, seg := range mp.Segments {
		result.Tasks = append(result.Tasks, domain.DownloadTask{
			SourceURL:   seg.URI,
			Type:        kind,
			Destination: domain.DestinationPath(itemRoot, kind, seg.URI),
			Order:       *order,
		})
		*order++
	}

	planKeys(result, itemRoot, mp, order, seenKeys)
}

// planKeys scans a media playlist's own text for AES-128 #EXT-X-KEY lines
// and emits one key task per distinct URI (spec §4.3). seenKeys is shared
// across every stream's call so a key referenced by both the video and an
// audio playlist (a common case: one AES-128 key protecting the whole
// asset) is planned exactly once — the tasks table's primary key is
// (item, source URL), so a duplicate would otherwise collide.
func planKeys(result *PlanResult, itemRoot string, mp domain.MediaPlaylist, order *int, seenKeys map[string]bool) {
	for _, k := range mp.Keys {
		if !k.IsFetchable() || k.URI == "" || seenKeys[k.URI] {
			continue
		}
		seenKeys[k.URI] = true
		result.Tasks = append(result.Tasks, domain.DownloadTask{
			SourceURL:   k.URI,
			Type:        domain.TaskKey,
			Destination: domain.DestinationPath(itemRoot, domain.TaskKey, k.URI),
			Order:       *order,
		})
		*order++
	}
}

// Subdirs are the four type subdirectories the planner must create before
// persistence (spec §4.3).
func Subdirs(itemRoot string) []string {
	return []string{
		path.Join(itemRoot, string(domain.TaskVideo)),
		path.Join(itemRoot, string(domain.TaskAudio)),
		path.Join(itemRoot, string(domain.TaskText)),
		path.Join(itemRoot, string(domain.TaskKey)),
	}
}
