package workbook

import (
	"strconv"
	"strings"
)

// Sheet names are contractual (spec.md §6); downstream collaborators
// depend on them verbatim.
const (
	SheetMeta          = "meta"
	SheetStoryAnalysis = "story_analysis"
	SheetSegments      = "segments"
	SheetCharacters    = "characters"
	SheetLocations     = "locations"
	SheetDirectorPlan  = "director_plan"
	SheetScenePlanning = "scene_planning"
	SheetScenes        = "scenes"
)

// SchemaVersion is bumped whenever a column is appended; existing
// columns must never move (spec.md §4.2 / §9 "Schema evolution").
const SchemaVersion = 1

var storyAnalysisColumns = []string{"genre", "mood", "style", "summary"}

var segmentColumns = []string{"segment_id", "name", "srt_start_index", "srt_end_index", "image_count"}

var characterColumns = []string{"character_id", "name", "description", "appearance"}

var locationColumns = []string{"location_id", "name", "description", "atmosphere"}

// directorPlanColumns: segment_id is the second column, status is last,
// per spec.md §6 — this layout must not change without a migration step.
var directorPlanColumns = []string{
	"scene_id", "segment_id", "visual_moment", "srt_start_index", "srt_end_index",
	"planned_duration_ms", "characters_used", "location_used", "status",
}

var scenePlanningColumns = []string{"scene_id", "camera", "lighting", "composition"}

// sceneColumns: segment_id is appended last so prior workbooks remain
// readable, per spec.md §6.
var sceneColumns = []string{
	"scene_id", "srt_start_ms", "srt_end_ms", "planned_duration_ms", "srt_text",
	"img_prompt", "video_prompt", "characters_used", "location_used", "reference_files",
	"status_img", "status_vid", "video_note", "segment_id",
}

// cell reads column idx from row, defaulting to "" both when the row is
// shorter than idx (missing trailing column) and when the stored cell is
// itself empty — the two cases are indistinguishable to a caller, by
// design (spec.md §4.2 "a stored empty cell is present, not absent").
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func cellInt(row []string, idx int) int {
	v, _ := strconv.Atoi(strings.TrimSpace(cell(row, idx)))
	return v
}

func cellInt64(row []string, idx int) int64 {
	v, _ := strconv.ParseInt(strings.TrimSpace(cell(row, idx)), 10, 64)
	return v
}

func cellList(row []string, idx int) []string {
	raw := strings.TrimSpace(cell(row, idx))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func joinList(values []string) string {
	return strings.Join(values, ",")
}

func storyAnalysisToRow(s StoryAnalysis) []string {
	return []string{s.Genre, s.Mood, s.Style, s.Summary}
}

func storyAnalysisFromRow(row []string) StoryAnalysis {
	return StoryAnalysis{
		Genre:   cell(row, 0),
		Mood:    cell(row, 1),
		Style:   cell(row, 2),
		Summary: cell(row, 3),
	}
}

func segmentToRow(s Segment) []string {
	return []string{
		strconv.Itoa(s.SegmentID), s.Name,
		strconv.Itoa(s.SRTStartIndex), strconv.Itoa(s.SRTEndIndex), strconv.Itoa(s.ImageCount),
	}
}

func segmentFromRow(row []string) Segment {
	return Segment{
		SegmentID:     cellInt(row, 0),
		Name:          cell(row, 1),
		SRTStartIndex: cellInt(row, 2),
		SRTEndIndex:   cellInt(row, 3),
		ImageCount:    cellInt(row, 4),
	}
}

func characterToRow(c Character) []string {
	return []string{c.CharacterID, c.Name, c.Description, c.Appearance}
}

func characterFromRow(row []string) Character {
	return Character{
		CharacterID: cell(row, 0),
		Name:        cell(row, 1),
		Description: cell(row, 2),
		Appearance:  cell(row, 3),
	}
}

func locationToRow(l Location) []string {
	return []string{l.LocationID, l.Name, l.Description, l.Atmosphere}
}

func locationFromRow(row []string) Location {
	return Location{
		LocationID:  cell(row, 0),
		Name:        cell(row, 1),
		Description: cell(row, 2),
		Atmosphere:  cell(row, 3),
	}
}

func directorPlanToRow(d DirectorPlanEntry) []string {
	return []string{
		d.SceneID, strconv.Itoa(d.SegmentID), d.VisualMoment,
		strconv.Itoa(d.SRTStartIndex), strconv.Itoa(d.SRTEndIndex),
		strconv.FormatInt(d.PlannedDurationMS, 10),
		joinList(d.CharactersUsed), d.LocationUsed, string(d.Status),
	}
}

func directorPlanFromRow(row []string) DirectorPlanEntry {
	return DirectorPlanEntry{
		SceneID:           cell(row, 0),
		SegmentID:         cellInt(row, 1),
		VisualMoment:      cell(row, 2),
		SRTStartIndex:     cellInt(row, 3),
		SRTEndIndex:       cellInt(row, 4),
		PlannedDurationMS: cellInt64(row, 5),
		CharactersUsed:    cellList(row, 6),
		LocationUsed:      cell(row, 7),
		Status:            DirectorPlanStatus(defaultString(cell(row, 8), string(StatusPending))),
	}
}

func scenePlanningToRow(p ScenePlan) []string {
	return []string{p.SceneID, p.Camera, p.Lighting, p.Composition}
}

func scenePlanningFromRow(row []string) ScenePlan {
	return ScenePlan{
		SceneID:     cell(row, 0),
		Camera:      cell(row, 1),
		Lighting:    cell(row, 2),
		Composition: cell(row, 3),
	}
}

func sceneToRow(s Scene) []string {
	return []string{
		s.SceneID, strconv.FormatInt(s.SRTStartMS, 10), strconv.FormatInt(s.SRTEndMS, 10),
		strconv.FormatInt(s.PlannedDurationMS, 10), s.SRTText, s.ImgPrompt, s.VideoPrompt,
		joinList(s.CharactersUsed), s.LocationUsed, joinList(s.ReferenceFiles),
		s.StatusImg, s.StatusVid, s.VideoNote, strconv.Itoa(s.SegmentID),
	}
}

func sceneFromRow(row []string) Scene {
	return Scene{
		SceneID:           cell(row, 0),
		SRTStartMS:        cellInt64(row, 1),
		SRTEndMS:          cellInt64(row, 2),
		PlannedDurationMS: cellInt64(row, 3),
		SRTText:           cell(row, 4),
		ImgPrompt:         cell(row, 5),
		VideoPrompt:       cell(row, 6),
		CharactersUsed:    cellList(row, 7),
		LocationUsed:      cell(row, 8),
		ReferenceFiles:    cellList(row, 9),
		StatusImg:         cell(row, 10),
		StatusVid:         cell(row, 11),
		VideoNote:         cell(row, 12),
		SegmentID:         cellInt(row, 13),
	}
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
