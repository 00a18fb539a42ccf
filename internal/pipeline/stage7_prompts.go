package pipeline

import (
	"context"
	"fmt"

	"scenepipe/internal/batch"
	"scenepipe/internal/fallback"
	"scenepipe/internal/llm"
	"scenepipe/internal/pipelineerr"
	"scenepipe/internal/scenesynth"
	"scenepipe/internal/srt"
	"scenepipe/internal/workbook"
)

const scenePromptsPrompt = `You are a visual prompt writer for an AI image/video generator. For each scene below, write an img_prompt and video_prompt. Reference characters as "(nvN.png)" and locations as "(locN.png)" inline when they appear in the scene. Return JSON {"prompts": [{"scene_id": "...", "img_prompt": "...", "video_prompt": "..."}, ...]} covering every listed scene_id.

SCENES:
%s`

type scenePromptsResponse struct {
	Prompts []struct {
		SceneID     string `json:"scene_id"`
		ImgPrompt   string `json:"img_prompt"`
		VideoPrompt string `json:"video_prompt"`
	} `json:"prompts"`
}

func scenePromptsComplete(st *State) (bool, error) {
	entries, err := st.Store.ReadDirectorPlan()
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}
	scenes, err := st.Store.ReadScenes()
	if err != nil {
		return false, err
	}
	return len(scenes) >= len(entries), nil
}

// ScenePromptsStage implements spec.md's Stage 7: director-plan entries
// fanned out in batches of stage7_batch_size, each scene finalized by
// the Scene Synthesizer (reference resolution, duplicate-rate fallback,
// video_note policy). Only scene_ids not already present in the Scene
// sheet are processed, making this stage resumable.
type ScenePromptsStage struct{}

func (ScenePromptsStage) Prepare(_ context.Context, st *State) error {
	entries, err := st.Store.ReadDirectorPlan()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return pipelineerr.Wrap(pipelineerr.ErrInputInvalid, "scene_prompts", "prepare", "no director plan entries available", nil)
	}
	return nil
}

func (s ScenePromptsStage) Execute(ctx context.Context, st *State) error {
	entries, err := st.Store.ReadDirectorPlan()
	if err != nil {
		return err
	}
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
	existingScenes, err := st.Store.ReadScenes()
	if err != nil {
		return err
	}

	done := make(map[string]bool, len(existingScenes))
	for _, sc := range existingScenes {
		done[sc.SceneID] = true
	}

	var pending []workbook.DirectorPlanEntry
	for _, e := range entries {
		if !done[e.SceneID] {
			pending = append(pending, e)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	segmentByID := make(map[int]workbook.Segment, len(segments))
	for _, seg := range segments {
		segmentByID[seg.SegmentID] = seg
	}

	// entries is already sorted by SRTStartIndex (assignSceneIDs in
	// Stage 5 sorts before numbering scene_001, scene_002, ...), so its
	// position here is each scene's 0-based ordinal across the run.
	ordinalBySceneID := make(map[string]int, len(entries))
	for i, e := range entries {
		ordinalBySceneID[e.SceneID] = i
	}

	batchSize := st.Config.Pipeline.Stage7BatchSize
	batches := chunkDirectorPlan(pending, batchSize)
	mode := scenesynth.VideoNoteMode(st.Config.Pipeline.VideoMode)

	tasks := make([]batch.Task[[]workbook.Scene], len(batches))
	for i, group := range batches {
		group := group
		tasks[i] = func(ctx context.Context) ([]workbook.Scene, error) {
			return s.processBatch(ctx, st, group, segmentByID, ordinalBySceneID, characters, locations, mode)
		}
	}
	results := batch.Run(ctx, st.Config.Pipeline.MaxParallelAPI, tasks)

	all := append([]workbook.Scene{}, existingScenes...)
	for i, r := range results {
		if r.Err != nil {
			if !pipelineerr.Tolerable(r.Err) {
				return r.Err
			}
			st.Logger.Warn("scene prompt batch failed, using fallback for every scene in it", "batch", i)
			all = append(all, s.fallbackBatch(st, batches[i], segmentByID, ordinalBySceneID, characters, locations, mode)...)
			continue
		}
		all = append(all, r.Value...)
	}

	if err := st.Store.WriteScenes(all); err != nil {
		return err
	}
	return st.Store.WriteDirectorPlan(advanceStatus(entries, pending, workbook.StatusPrompted))
}

func (ScenePromptsStage) HealthCheck(_ context.Context, st *State) Health {
	return Health{Name: "scene_prompts", Healthy: st.LLM != nil}
}

func (ScenePromptsStage) processBatch(ctx context.Context, st *State, group []workbook.DirectorPlanEntry, segmentByID map[int]workbook.Segment, ordinalBySceneID map[string]int, characters []workbook.Character, locations []workbook.Location, mode scenesynth.VideoNoteMode) ([]workbook.Scene, error) {
	listing := ""
	for _, e := range group {
		listing += fmt.Sprintf("- %s: %s\n", e.SceneID, e.VisualMoment)
	}

	text, err := st.LLM.Complete(ctx, fmt.Sprintf(scenePromptsPrompt, listing), 0.7, 3000)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.ErrTransientAPI, "scene_prompts", "complete", "batch call failed", err)
	}

	var resp scenePromptsResponse
	if err := llm.DecodeLLMJSON(text, &resp); err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.ErrParse, "scene_prompts", "decode", "could not parse scene prompts JSON", err)
	}

	byScene := make(map[string]scenesynth.PromptResult, len(resp.Prompts))
	imgPrompts := make([]string, 0, len(resp.Prompts))
	for _, p := range resp.Prompts {
		byScene[p.SceneID] = scenesynth.PromptResult{SceneID: p.SceneID, ImgPrompt: p.ImgPrompt, VideoPrompt: p.VideoPrompt}
		imgPrompts = append(imgPrompts, p.ImgPrompt)
	}
	duplicate := scenesynth.IsBatchDuplicate(imgPrompts)

	scenes := make([]workbook.Scene, 0, len(group))
	for _, e := range group {
		scenes = append(scenes, buildScene(st, e, segmentByID, ordinalBySceneID, characters, locations, byScene[e.SceneID], duplicate, mode))
	}
	return scenes, nil
}

func (ScenePromptsStage) fallbackBatch(st *State, group []workbook.DirectorPlanEntry, segmentByID map[int]workbook.Segment, ordinalBySceneID map[string]int, characters []workbook.Character, locations []workbook.Location, mode scenesynth.VideoNoteMode) []workbook.Scene {
	scenes := make([]workbook.Scene, 0, len(group))
	for _, e := range group {
		scenes = append(scenes, buildScene(st, e, segmentByID, ordinalBySceneID, characters, locations, scenesynth.PromptResult{SceneID: e.SceneID}, false, mode))
	}
	return scenes
}

func buildScene(st *State, e workbook.DirectorPlanEntry, segmentByID map[int]workbook.Segment, ordinalBySceneID map[string]int, characters []workbook.Character, locations []workbook.Location, prompt scenesynth.PromptResult, duplicate bool, mode scenesynth.VideoNoteMode) workbook.Scene {
	startMS, endMS, _ := srt.Bounds(st.Entries, e.SRTStartIndex, e.SRTEndIndex)
	text := srt.ConcatText(st.Entries, e.SRTStartIndex, e.SRTEndIndex)

	fbChars := make([]fallback.Character, len(characters))
	for i, c := range characters {
		fbChars[i] = fallback.Character{ID: c.CharacterID, Name: c.Name}
	}
	fbLocs := make([]fallback.Location, len(locations))
	for i, l := range locations {
		fbLocs[i] = fallback.Location{ID: l.LocationID, Name: l.Name}
	}

	scene := scenesynth.Synthesize(scenesynth.Input{
		Entry:            e,
		Segment:          segmentByID[e.SegmentID],
		SceneOrdinal:     ordinalBySceneID[e.SceneID],
		SRTText:          text,
		SRTStartMS:       startMS,
		SRTEndMS:         endMS,
		Prompt:           prompt,
		BatchIsDuplicate: duplicate,
		Characters:       fbChars,
		Locations:        fbLocs,
		Mode:             mode,
	})
	return scene
}
