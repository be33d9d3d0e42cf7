package hls

import (
	"github.com/playkit/dtg/internal/domain"
)

// LocalizeResult is everything the Task Planner and Task Store need to
// start downloading and later serving an item (spec §4): the concrete
// fetch tasks, an optimistic size estimate, and the two playlist trees
// already rewritten to local references so they can be written to disk
// verbatim once their referenced files land.
type LocalizeResult struct {
	Plan       PlanResult
	MasterText string

	VideoRelPath string // e.g. "<md5>.m3u8", relative to itemRoot/video/
	VideoText    string

	AudioText map[string]string // keyed by "<md5>.m3u8", relative to itemRoot/audio/
	TextText  map[string]string // keyed by "<md5>.m3u8", relative to itemRoot/text/
}

// Localize runs the full pipeline spec §4 describes as one operation:
// parse the master, select renditions, hydrate every chosen stream's own
// media playlist, plan the fetch tasks, and pre-render every rewritten
// playlist. itemRoot roots every DestinationPath the plan produces.
func Localize(masterText, masterURL string, opts domain.SelectionOptions, caps domain.DeviceCapabilities, fetcher Fetcher, itemRoot string, audioBitrateFallback int) (*LocalizeResult, error) {
	master, err := ParseMaster(masterText, masterURL)
	if err != nil {
		return nil, err
	}

	sel, err := Select(master, opts, caps)
	if err != nil {
		return nil, err
	}

	if err := Hydrate(&sel, fetcher); err != nil {
		return nil, err
	}

	plan := Plan(itemRoot, sel, audioBitrateFallback)

	videoText, err := RewriteMedia(&sel.Video.Stream.Playlist, domain.TaskVideo)
	if err != nil {
		return nil, err
	}

	audioText := make(map[string]string, len(sel.Audio))
	for i := range sel.Audio {
		text, err := RewriteMedia(&sel.Audio[i].Playlist, domain.TaskAudio)
		if err != nil {
			return nil, err
		}
		audioText[RelativeDestination(domain.TaskAudio, sel.Audio[i])] = text
	}

	textText := make(map[string]string, len(sel.Text))
	for i := range sel.Text {
		text, err := RewriteMedia(&sel.Text[i].Playlist, domain.TaskText)
		if err != nil {
			return nil, err
		}
		textText[RelativeDestination(domain.TaskText, sel.Text[i])] = text
	}

	return &LocalizeResult{
		Plan:         plan,
		MasterText:   WriteMaster(master, sel),
		VideoRelPath: RelativeVideoURI(sel),
		VideoText:    videoText,
		AudioText:    audioText,
		TextText:     textText,
	}, nil
}

// RelativeDestination mirrors domain.RelativeDestination for a media
// stream's own playlist URL, giving callers a stable map key without
// reaching into domain directly.
func RelativeDestination(kind domain.TaskType, m domain.MediaStream) string {
	return domain.RelativeDestination(kind, m.PlaylistURL)
}
