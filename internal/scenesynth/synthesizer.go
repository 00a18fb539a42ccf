// Package scenesynth implements the Scene Synthesizer (C7): it turns a
// director-plan entry plus an LLM-produced (or absent) prompt pair into
// a fully populated workbook.Scene row, applying reference resolution,
// duplicate-rate fallback, and the video_note policy.
package scenesynth

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"scenepipe/internal/fallback"
	"scenepipe/internal/reference"
	"scenepipe/internal/workbook"
)

// VideoNoteMode selects the video_note assignment policy (spec.md §4.7
// step 4). It is a per-project configuration choice, not per-segment —
// see DESIGN.md for the Open Question resolution.
type VideoNoteMode string

const (
	ModeBasic VideoNoteMode = "basic"
	ModeFull  VideoNoteMode = "full"
)

// DuplicateThreshold is the batch-wide fraction of matching prompts
// above which every prompt in the batch is treated as too similar to
// trust and every scene falls back to the deterministic template.
// Exposed as a variable, not a constant, so callers/tests can tune it
// per spec.md §9's "implementations should expose this as a tunable".
var DuplicateThreshold = 0.80

// PromptResult is the LLM's per-scene output for one director-plan
// entry in a Stage 7 batch; ImgPrompt/VideoPrompt may be empty when the
// model produced nothing usable for that scene.
type PromptResult struct {
	SceneID     string
	ImgPrompt   string
	VideoPrompt string
}

// Input bundles everything the synthesizer needs to build one Scene
// row: the director-plan entry it derives from, the segment it belongs
// to (for the fallback template's segment name), this scene's 0-based
// ordinal among every scene in the run (for the fallback template's
// opening-hook selection), the LLM's prompt for this scene (possibly
// empty), and whether the batch it came from was judged near-duplicate
// as a whole.
type Input struct {
	Entry            workbook.DirectorPlanEntry
	Segment          workbook.Segment
	SceneOrdinal     int
	SRTText          string
	SRTStartMS       int64
	SRTEndMS         int64
	Prompt           PromptResult
	BatchIsDuplicate bool
	Characters       []fallback.Character
	Locations        []fallback.Location
	Mode             VideoNoteMode
}

// Synthesize implements spec.md §4.7 steps 1-5 for a single scene.
func Synthesize(in Input) workbook.Scene {
	imgPrompt := strings.TrimSpace(in.Prompt.ImgPrompt)
	videoPrompt := strings.TrimSpace(in.Prompt.VideoPrompt)

	if imgPrompt == "" || in.BatchIsDuplicate {
		fb := fallback.Generate(fallback.Scene{
			SceneID:     in.Entry.SceneID,
			SegmentName: in.Segment.Name,
			Ordinal:     in.SceneOrdinal,
			SRTText:     truncate(in.SRTText, 120),
		}, in.Characters, in.Locations)
		imgPrompt = fb.ImgPrompt
		videoPrompt = fb.VideoPrompt
	} else {
		imgPrompt = fallback.CleanNarration(imgPrompt, in.SRTText)
		if videoPrompt == "" {
			videoPrompt = imgPrompt
		}
	}

	res := reference.Resolve(imgPrompt, in.Entry.CharactersUsed, in.Entry.LocationUsed)

	return workbook.Scene{
		SceneID:           in.Entry.SceneID,
		SRTStartMS:        in.SRTStartMS,
		SRTEndMS:          in.SRTEndMS,
		PlannedDurationMS: in.Entry.PlannedDurationMS,
		SRTText:           in.SRTText,
		ImgPrompt:         imgPrompt,
		VideoPrompt:       videoPrompt,
		CharactersUsed:    res.CharactersUsed,
		LocationUsed:      res.LocationUsed,
		ReferenceFiles:    res.ReferenceFiles,
		StatusImg:         "pending",
		StatusVid:         "pending",
		VideoNote:         videoNote(in.Mode, in.Entry.SegmentID),
		SegmentID:         in.Entry.SegmentID,
	}
}

func videoNote(mode VideoNoteMode, segmentID int) string {
	if mode == ModeFull {
		return ""
	}
	if segmentID > 1 {
		return "SKIP"
	}
	return ""
}

// IsBatchDuplicate reports whether the fraction of prompts in a Stage 7
// batch that match another prompt in the same batch exceeds
// DuplicateThreshold. Matching is exact-or-near-exact: prompts are
// NFC-normalized and lowercased before comparison, so accented or
// differently-cased renderings of the same text still count as
// duplicates (see DESIGN.md's Open Question resolution for "near-exact").
func IsBatchDuplicate(prompts []string) bool {
	n := len(prompts)
	if n < 2 {
		return false
	}

	counts := make(map[string]int, n)
	for _, p := range prompts {
		key := normalizeForComparison(p)
		if key == "" {
			continue
		}
		counts[key]++
	}

	duplicates := 0
	for _, c := range counts {
		if c > 1 {
			duplicates += c
		}
	}

	return float64(duplicates)/float64(n) > DuplicateThreshold
}

func normalizeForComparison(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
