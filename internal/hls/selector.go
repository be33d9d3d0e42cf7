package hls

import (
	"sort"
	"strings"

	"golang.org/x/text/language"

	"github.com/playkit/dtg/internal/domain"
)

const (
	defaultH264BitrateFloor = 180000
	defaultHEVCBitrateFloor = 120000
)

// Selection is the result of the Rendition Selector (spec §4.2).
type Selection struct {
	Video VideoChoice
	Audio []domain.MediaStream
	Text  []domain.MediaStream
}

// VideoChoice pairs the chosen variant with the codec bucket it came from,
// since the rewriter needs to know which codec family won.
type VideoChoice struct {
	Stream domain.VideoStream
	Codec  domain.VideoCodec
}

// Select runs the full selection algorithm from spec §4.2.
func Select(master *domain.MasterPlaylist, opts domain.SelectionOptions, caps domain.DeviceCapabilities) (Selection, error) {
	playable := eliminateUnplayable(master.VideoStreams, caps)

	h264Bucket, hevcBucket := bucketByCodec(playable, caps, opts)

	h264Bucket = applyDimensionalFilters(h264Bucket, opts)
	hevcBucket = applyDimensionalFilters(hevcBucket, opts)

	h264Bucket = applyBitrateFloor(h264Bucket, domain.CodecH264, opts)
	hevcBucket = applyBitrateFloor(hevcBucket, domain.CodecHEVC, opts)

	h264Bucket = applyAudioCodecPreference(h264Bucket, opts.PreferredAudioCodecs)
	hevcBucket = applyAudioCodecPreference(hevcBucket, opts.PreferredAudioCodecs)

	choice, err := pickBucket(h264Bucket, hevcBucket, opts)
	if err != nil {
		return Selection{}, err
	}

	audio := selectMedia(master.AudioStreams, choice.Stream.AudioGroupID, opts.AudioLanguages)
	text := selectMedia(master.TextStreams, choice.Stream.SubtitleGroupID, opts.TextLanguages)

	return Selection{Video: choice, Audio: audio, Text: text}, nil
}

// eliminateUnplayable drops variants whose codec list contains an audio
// codec the device cannot play (spec §4.2 step 1).
func eliminateUnplayable(variants []domain.VideoStream, caps domain.DeviceCapabilities) []domain.VideoStream {
	out := make([]domain.VideoStream, 0, len(variants))
	for _, v := range variants {
		playable := true
		for _, c := range v.Codecs {
			if isAudioCodecToken(c) && !caps.CanPlayAudioCodec(c) {
				playable = false
				break
			}
		}
		if playable {
			out = append(out, v)
		}
	}
	return out
}

func isAudioCodecToken(codec string) bool {
	lc := strings.ToLower(codec)
	return strings.HasPrefix(lc, "mp4a") || strings.HasPrefix(lc, "ac-3") || strings.HasPrefix(lc, "ec-3")
}

func isHEVCCodecToken(codec string) bool {
	lc := strings.ToLower(codec)
	return strings.HasPrefix(lc, "hev1") || strings.HasPrefix(lc, "hvc1")
}

func isAVCCodecToken(codec string) bool {
	return strings.HasPrefix(strings.ToLower(codec), "avc1")
}

// bucketByCodec implements spec §4.2 step 2: variants with no declared
// codecs or any avc1 codec go to H.264; variants with any HEVC codec go to
// HEVC only if HEVC is allowed for this device+options combination.
func bucketByCodec(variants []domain.VideoStream, caps domain.DeviceCapabilities, opts domain.SelectionOptions) (h264, hevc []domain.VideoStream) {
	hevcAllowed := caps.CanPlayHEVC(opts)
	for _, v := range variants {
		hasHEVC := false
		hasAVC := false
		for _, c := range v.Codecs {
			if isHEVCCodecToken(c) {
				hasHEVC = true
			}
			if isAVCCodecToken(c) {
				hasAVC = true
			}
		}
		switch {
		case hasHEVC && hevcAllowed:
			hevc = append(hevc, v)
		case len(v.Codecs) == 0 || hasAVC:
			h264 = append(h264, v)
		}
	}
	return h264, hevc
}

// applyDimensionalFilters implements spec §4.2 step 3.
func applyDimensionalFilters(variants []domain.VideoStream, opts domain.SelectionOptions) []domain.VideoStream {
	if opts.MinVideoHeight > 0 {
		variants = filterByDimension(variants, opts.MinVideoHeight, func(v domain.VideoStream) int { return v.Height })
	}
	if opts.MinVideoWidth > 0 {
		variants = filterByDimension(variants, opts.MinVideoWidth, func(v domain.VideoStream) int { return v.Width })
	}
	return variants
}

func filterByDimension(variants []domain.VideoStream, min int, dim func(domain.VideoStream) int) []domain.VideoStream {
	if len(variants) == 0 {
		return variants
	}
	sorted := make([]domain.VideoStream, len(variants))
	copy(sorted, variants)
	sort.SliceStable(sorted, func(i, j int) bool { return dim(sorted[i]) < dim(sorted[j]) })

	kept := make([]domain.VideoStream, 0, len(sorted))
	for _, v := range sorted {
		if dim(v) >= min {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		// Best-effort fallback: the single largest variant.
		return []domain.VideoStream{sorted[len(sorted)-1]}
	}
	return kept
}

// applyBitrateFloor implements spec §4.2 step 4.
func applyBitrateFloor(variants []domain.VideoStream, codec domain.VideoCodec, opts domain.SelectionOptions) []domain.VideoStream {
	if len(variants) == 0 {
		return variants
	}
	floor, ok := opts.MinBitrate[codec]
	if !ok || floor == 0 {
		if codec == domain.CodecHEVC {
			floor = defaultHEVCBitrateFloor
		} else {
			floor = defaultH264BitrateFloor
		}
	}

	sorted := make([]domain.VideoStream, len(variants))
	copy(sorted, variants)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Bandwidth < sorted[j].Bandwidth })

	kept := make([]domain.VideoStream, 0, len(sorted))
	for _, v := range sorted {
		if v.Bandwidth >= floor {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return []domain.VideoStream{sorted[len(sorted)-1]}
	}
	return kept
}

// applyAudioCodecPreference breaks a bandwidth tie among the surviving
// variants using the caller's audio codec preference order (spec §3):
// CODECS on EXT-X-STREAM-INF lists the audio codec alongside the video
// one (e.g. "avc1.4d001f,ec-3"), so it is the only per-variant signal for
// which audio codec a variant's group carries before that group is
// fetched. Ordering beyond the tied minimum bandwidth is left untouched,
// since bandwidth remains the primary selection criterion.
func applyAudioCodecPreference(variants []domain.VideoStream, prefs []domain.AudioCodec) []domain.VideoStream {
	if len(variants) < 2 || len(prefs) == 0 {
		return variants
	}
	tieBandwidth := variants[0].Bandwidth
	sort.SliceStable(variants, func(i, j int) bool {
		if variants[i].Bandwidth != tieBandwidth || variants[j].Bandwidth != tieBandwidth {
			return false
		}
		return audioCodecRank(variants[i].Codecs, prefs) < audioCodecRank(variants[j].Codecs, prefs)
	})
	return variants
}

// audioCodecRank returns the index of the first preference an audio codec
// token in codecs satisfies, or len(prefs) if none match.
func audioCodecRank(codecs []string, prefs []domain.AudioCodec) int {
	for rank, pref := range prefs {
		for _, c := range codecs {
			if strings.HasPrefix(strings.ToLower(c), string(pref)) {
				return rank
			}
		}
	}
	return len(prefs)
}

// pickBucket implements spec §4.2 step 5.
func pickBucket(h264, hevc []domain.VideoStream, opts domain.SelectionOptions) (VideoChoice, error) {
	switch {
	case len(h264) == 0 && len(hevc) == 0:
		return VideoChoice{}, domain.NewInvalidInternalState("no playable video variant survived selection")
	case len(h264) > 0 && len(hevc) == 0:
		return VideoChoice{Stream: h264[0], Codec: domain.CodecH264}, nil
	case len(hevc) > 0 && len(h264) == 0:
		return VideoChoice{Stream: hevc[0], Codec: domain.CodecHEVC}, nil
	}

	for _, pref := range opts.PreferredVideoCodecs {
		switch pref {
		case domain.CodecH264:
			return VideoChoice{Stream: h264[0], Codec: domain.CodecH264}, nil
		case domain.CodecHEVC:
			return VideoChoice{Stream: hevc[0], Codec: domain.CodecHEVC}, nil
		}
	}
	// No preference: default to HEVC (spec §4.2 step 5).
	return VideoChoice{Stream: hevc[0], Codec: domain.CodecHEVC}, nil
}

// selectMedia filters a master's media list to the group the chosen video
// variant declared, then applies the language policy (spec §4.2).
func selectMedia(all []domain.MediaStream, groupID string, policy domain.LanguagePolicy) []domain.MediaStream {
	if groupID == "" {
		return nil
	}
	var out []domain.MediaStream
	for _, m := range all {
		if m.GroupID != groupID {
			continue
		}
		if languageMatches(m.Language, policy) {
			out = append(out, m)
		}
	}
	return out
}

func languageMatches(streamLang string, policy domain.LanguagePolicy) bool {
	switch policy.Kind {
	case domain.LanguageAll:
		return true
	case domain.LanguageNone:
		return streamLang == ""
	case domain.LanguageList:
		if streamLang == "" {
			// spec §4.2: a stream with no declared language is kept
			// unconditionally (see DESIGN.md for the open-question call).
			return true
		}
		canon := CanonicalLanguage(streamLang)
		for _, t := range policy.Tags {
			if CanonicalLanguage(t) == canon {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// CanonicalLanguage normalizes an IETF BCP-47 tag to canonical form (spec
// §3: "normalized to canonical form before matching"). Tags that fail to
// parse are returned lowercased as a best-effort fallback.
func CanonicalLanguage(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(tag))
	}
	canon, _ := language.All.Canonicalize(t)
	return canon.String()
}
