package pipeline

import (
	"context"
	"fmt"
	"sort"

	"scenepipe/internal/batch"
	"scenepipe/internal/coverage"
	"scenepipe/internal/fallback"
	"scenepipe/internal/llm"
	"scenepipe/internal/pipelineerr"
	"scenepipe/internal/srt"
	"scenepipe/internal/workbook"
)

const directorPlanPrompt = `You are a director planning shots for a video segment named %q (SRT indices %d-%d). You must return exactly %d shot entries whose SRT sub-ranges partition [%d, %d] without gap or overlap. Known characters: %s. Known locations: %s.

Return JSON {"entries": [{"visual_moment": "...", "srt_start_index": N, "srt_end_index": N, "planned_duration_ms": N, "characters_used": ["nv1", ...], "location_used": "loc1"}, ...]}.

NARRATION LINES:
%s`

type directorPlanResponse struct {
	Entries []directorPlanEntryJSON `json:"entries"`
}

type directorPlanEntryJSON struct {
	VisualMoment      string   `json:"visual_moment"`
	SRTStartIndex     int      `json:"srt_start_index"`
	SRTEndIndex       int      `json:"srt_end_index"`
	PlannedDurationMS int64    `json:"planned_duration_ms"`
	CharactersUsed    []string `json:"characters_used"`
	LocationUsed      string   `json:"location_used"`
}

func directorPlanComplete(st *State) (bool, error) {
	entries, err := st.Store.ReadDirectorPlan()
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}
	return coverage.IsPartition(directorPlanIntervals(entries), len(st.Entries)), nil
}

// DirectorPlanStage implements spec.md's Stage 5: one LLM call per
// segment, dispatched through the Batch Executor with fan-out
// max_parallel_api, followed by GAP-FILL over any indices left
// uncovered and stable scene_id assignment across the whole plan.
type DirectorPlanStage struct{}

func (DirectorPlanStage) Prepare(_ context.Context, st *State) error {
	segments, err := st.Store.ReadSegments()
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return pipelineerr.Wrap(pipelineerr.ErrInputInvalid, "director_plan", "prepare", "no segments available", nil)
	}
	return nil
}

func (d DirectorPlanStage) Execute(ctx context.Context, st *State) error {
	segments, err := st.Store.ReadSegments()
	if err != nil {
		return err
	}
	characters, err := st.Store.ReadCharacters()
	if err != nil {
		return err
	}
	locations, err := st.Store.ReadLocations()
	if err != nil {
		return err
	}

	tasks := make([]batch.Task[[]workbook.DirectorPlanEntry], len(segments))
	for i, seg := range segments {
		seg := seg
		tasks[i] = func(ctx context.Context) ([]workbook.DirectorPlanEntry, error) {
			return d.planSegment(ctx, st, seg, characters, locations)
		}
	}

	results := batch.Run(ctx, st.Config.Pipeline.MaxParallelAPI, tasks)

	var entries []workbook.DirectorPlanEntry
	for i, r := range results {
		if r.Err != nil {
			if !pipelineerr.Tolerable(r.Err) {
				return r.Err
			}
			st.Logger.Warn("director plan segment failed, will rely on gap-fill",
				"segment_id", segments[i].SegmentID)
			continue
		}
		entries = append(entries, r.Value...)
	}

	entries = gapFillDirectorPlan(entries, segments, characters, locations, len(st.Entries))

	if !coverage.IsPartition(directorPlanIntervals(entries), len(st.Entries)) {
		return pipelineerr.Wrap(pipelineerr.ErrCoverageIrreparable, "director_plan", "gap_fill", "director plan does not partition SRT range after gap-fill", nil)
	}

	assignSceneIDs(entries)
	return st.Store.WriteDirectorPlan(entries)
}

func (DirectorPlanStage) HealthCheck(_ context.Context, st *State) Health {
	return Health{Name: "director_plan", Healthy: st.LLM != nil}
}

func (DirectorPlanStage) planSegment(ctx context.Context, st *State, seg workbook.Segment, characters []workbook.Character, locations []workbook.Location) ([]workbook.DirectorPlanEntry, error) {
	slice := srt.Slice(st.Entries, seg.SRTStartIndex, seg.SRTEndIndex)
	prompt := fmt.Sprintf(directorPlanPrompt,
		seg.Name, seg.SRTStartIndex, seg.SRTEndIndex, seg.ImageCount,
		seg.SRTStartIndex, seg.SRTEndIndex,
		summarizeCharacters(characters), summarizeLocations(locations),
		numberedLines(slice))

	text, err := st.LLM.Complete(ctx, prompt, 0.5, 3000)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.ErrTransientAPI, "director_plan", "complete", fmt.Sprintf("segment %d", seg.SegmentID), err)
	}

	var resp directorPlanResponse
	if err := llm.DecodeLLMJSON(text, &resp); err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.ErrParse, "director_plan", "decode", fmt.Sprintf("segment %d", seg.SegmentID), err)
	}

	entries := make([]workbook.DirectorPlanEntry, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		if e.SRTEndIndex < e.SRTStartIndex {
			continue
		}
		entries = append(entries, workbook.DirectorPlanEntry{
			SegmentID:         seg.SegmentID,
			VisualMoment:      e.VisualMoment,
			SRTStartIndex:     e.SRTStartIndex,
			SRTEndIndex:       e.SRTEndIndex,
			PlannedDurationMS: e.PlannedDurationMS,
			CharactersUsed:    e.CharactersUsed,
			LocationUsed:      e.LocationUsed,
			Status:            workbook.StatusPending,
		})
	}
	return entries, nil
}

// gapFillDirectorPlan synthesizes additional entries, each covering at
// most 10 SRT indices, for every contiguous run left uncovered by the
// per-segment LLM calls, assigning each to the segment whose range
// contains it and inferring defaults from the segment's dominant
// characters/location via the deterministic fallback matcher.
func gapFillDirectorPlan(entries []workbook.DirectorPlanEntry, segments []workbook.Segment, characters []workbook.Character, locations []workbook.Location, n int) []workbook.DirectorPlanEntry {
	gaps := coverage.Gaps(directorPlanIntervals(entries), n)
	for _, gap := range gaps {
		seg, ok := segmentContaining(segments, gap.Start)
		if !ok {
			continue
		}
		start := gap.Start
		for start <= gap.End {
			end := start + 9
			if end > gap.End {
				end = gap.End
			}
			entries = append(entries, workbook.DirectorPlanEntry{
				SegmentID:         seg.SegmentID,
				VisualMoment:      "",
				SRTStartIndex:     start,
				SRTEndIndex:       end,
				PlannedDurationMS: int64(end-start+1) * 2000,
				CharactersUsed:    inferDominantCharacters(seg, characters),
				LocationUsed:      inferDominantLocation(seg, locations),
				Status:            workbook.StatusPending,
			})
			start = end + 1
		}
	}
	return entries
}

func segmentContaining(segments []workbook.Segment, srtIndex int) (workbook.Segment, bool) {
	for _, seg := range segments {
		if srtIndex >= seg.SRTStartIndex && srtIndex <= seg.SRTEndIndex {
			return seg, true
		}
	}
	return workbook.Segment{}, false
}

func inferDominantCharacters(seg workbook.Segment, characters []workbook.Character) []string {
	matched := matchCharactersByName(seg.Name, characters)
	if len(matched) == 0 {
		return nil
	}
	return matched
}

func matchCharactersByName(name string, characters []workbook.Character) []string {
	fbChars := make([]fallback.Character, len(characters))
	for i, c := range characters {
		fbChars[i] = fallback.Character{ID: c.CharacterID, Name: c.Name}
	}
	res := fallback.Generate(fallback.Scene{SRTText: name}, fbChars, nil)
	if len(res.CharactersUsed) == 1 && res.CharactersUsed[0] == "nvc" {
		return nil
	}
	return res.CharactersUsed
}

func inferDominantLocation(seg workbook.Segment, locations []workbook.Location) string {
	if len(locations) == 0 {
		return ""
	}
	fbLocs := make([]fallback.Location, len(locations))
	for i, l := range locations {
		fbLocs[i] = fallback.Location{ID: l.LocationID, Name: l.Name}
	}
	res := fallback.Generate(fallback.Scene{SRTText: seg.Name}, nil, fbLocs)
	return res.LocationUsed
}

func directorPlanIntervals(entries []workbook.DirectorPlanEntry) []coverage.Interval {
	out := make([]coverage.Interval, len(entries))
	for i, e := range entries {
		out[i] = coverage.Interval{Start: e.SRTStartIndex, End: e.SRTEndIndex}
	}
	return out
}

// assignSceneIDs assigns scene_001, scene_002, ... by stable ordering
// on srt_start_index, per spec.md §4.5.5.
func assignSceneIDs(entries []workbook.DirectorPlanEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].SRTStartIndex < entries[j].SRTStartIndex })
	for i := range entries {
		entries[i].SceneID = fallback.FallbackSceneID(i + 1)
	}
}

func summarizeCharacters(characters []workbook.Character) string {
	if len(characters) == 0 {
		return "none"
	}
	out := ""
	for _, c := range characters {
		out += fmt.Sprintf("%s=%s; ", c.CharacterID, c.Name)
	}
	return out
}

func summarizeLocations(locations []workbook.Location) string {
	if len(locations) == 0 {
		return "none"
	}
	out := ""
	for _, l := range locations {
		out += fmt.Sprintf("%s=%s; ", l.LocationID, l.Name)
	}
	return out
}
