package pipeline

import (
	"context"
	"fmt"

	"scenepipe/internal/batch"
	"scenepipe/internal/llm"
	"scenepipe/internal/pipelineerr"
	"scenepipe/internal/workbook"
)

const scenePlanningPrompt = `You are a cinematographer detailing shots. For each scene below, return camera, lighting, and composition notes. Return JSON {"plans": [{"scene_id": "...", "camera": "...", "lighting": "...", "composition": "..."}, ...]} covering every listed scene_id.

SCENES:
%s`

type scenePlanningResponse struct {
	Plans []struct {
		SceneID     string `json:"scene_id"`
		Camera      string `json:"camera"`
		Lighting    string `json:"lighting"`
		Composition string `json:"composition"`
	} `json:"plans"`
}

func scenePlanningComplete(st *State) (bool, error) {
	entries, err := st.Store.ReadDirectorPlan()
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}
	plans, err := st.Store.ReadScenePlanning()
	if err != nil {
		return false, err
	}
	planned := make(map[string]bool, len(plans))
	for _, p := range plans {
		planned[p.SceneID] = true
	}
	for _, e := range entries {
		if !planned[e.SceneID] {
			return false, nil
		}
	}
	return true, nil
}

// ScenePlanningStage implements spec.md's Stage 6: director-plan
// entries fanned out in batches of stage6_batch_size, one LLM call per
// batch, writing the scene_planning sheet keyed by scene_id.
type ScenePlanningStage struct{}

func (ScenePlanningStage) Prepare(_ context.Context, st *State) error {
	entries, err := st.Store.ReadDirectorPlan()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return pipelineerr.Wrap(pipelineerr.ErrInputInvalid, "scene_planning", "prepare", "no director plan entries available", nil)
	}
	return nil
}

func (s ScenePlanningStage) Execute(ctx context.Context, st *State) error {
	entries, err := st.Store.ReadDirectorPlan()
	if err != nil {
		return err
	}
	existing, err := st.Store.ReadScenePlanning()
	if err != nil {
		return err
	}
	planned := make(map[string]bool, len(existing))
	for _, p := range existing {
		planned[p.SceneID] = true
	}

	var pending []workbook.DirectorPlanEntry
	for _, e := range entries {
		if !planned[e.SceneID] {
			pending = append(pending, e)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	batchSize := st.Config.Pipeline.Stage6BatchSize
	batches := chunkDirectorPlan(pending, batchSize)

	tasks := make([]batch.Task[[]workbook.ScenePlan], len(batches))
	for i, group := range batches {
		group := group
		tasks[i] = func(ctx context.Context) ([]workbook.ScenePlan, error) {
			return s.planBatch(ctx, st, group)
		}
	}
	results := batch.Run(ctx, st.Config.Pipeline.MaxParallelAPI, tasks)

	all := append([]workbook.ScenePlan{}, existing...)
	for i, r := range results {
		if r.Err != nil {
			if !pipelineerr.Tolerable(r.Err) {
				return r.Err
			}
			st.Logger.Warn("scene planning batch failed, leaving fields empty", "batch", i)
			for _, e := range batches[i] {
				all = append(all, workbook.ScenePlan{SceneID: e.SceneID})
			}
			continue
		}
		all = append(all, r.Value...)
	}

	if err := st.Store.WriteScenePlanning(all); err != nil {
		return err
	}
	return st.Store.WriteDirectorPlan(advanceStatus(entries, pending, workbook.StatusPlanned))
}

// advanceStatus returns entries with the status of every entry whose
// SceneID appears in processed bumped to status; entries not in
// processed are returned unchanged.
func advanceStatus(entries, processed []workbook.DirectorPlanEntry, status workbook.DirectorPlanStatus) []workbook.DirectorPlanEntry {
	touched := make(map[string]bool, len(processed))
	for _, e := range processed {
		touched[e.SceneID] = true
	}
	out := make([]workbook.DirectorPlanEntry, len(entries))
	for i, e := range entries {
		if touched[e.SceneID] {
			e.Status = status
		}
		out[i] = e
	}
	return out
}

func (ScenePlanningStage) HealthCheck(_ context.Context, st *State) Health {
	return Health{Name: "scene_planning", Healthy: st.LLM != nil}
}

func (ScenePlanningStage) planBatch(ctx context.Context, st *State, group []workbook.DirectorPlanEntry) ([]workbook.ScenePlan, error) {
	listing := ""
	for _, e := range group {
		listing += fmt.Sprintf("- %s: %s\n", e.SceneID, e.VisualMoment)
	}

	text, err := st.LLM.Complete(ctx, fmt.Sprintf(scenePlanningPrompt, listing), 0.5, 2000)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.ErrTransientAPI, "scene_planning", "complete", "batch call failed", err)
	}

	var resp scenePlanningResponse
	if err := llm.DecodeLLMJSON(text, &resp); err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.ErrParse, "scene_planning", "decode", "could not parse scene planning JSON", err)
	}

	plans := make([]workbook.ScenePlan, len(resp.Plans))
	for i, p := range resp.Plans {
		plans[i] = workbook.ScenePlan{
			SceneID:     p.SceneID,
			Camera:      p.Camera,
			Lighting:    p.Lighting,
			Composition: p.Composition,
		}
	}
	return plans, nil
}

func chunkDirectorPlan(entries []workbook.DirectorPlanEntry, size int) [][]workbook.DirectorPlanEntry {
	if size <= 0 {
		size = len(entries)
	}
	var out [][]workbook.DirectorPlanEntry
	for i := 0; i < len(entries); i += size {
		end := i + size
		if end > len(entries) {
			end = len(entries)
		}
		out = append(out, entries[i:end])
	}
	return out
}
