package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scenepipe/internal/pipelineerr"
	"scenepipe/internal/pipelog"
)

// pipelineStage pairs a named Handler with the completeness predicate
// that decides whether the runner can skip it on this invocation.
type pipelineStage struct {
	name     string
	handler  Handler
	complete func(*State) (bool, error)
}

// Runner drives stages 1-7 in order, skip-if-complete, persist-then-
// exit-nonzero on failure, resumable from the workbook's last
// checkpoint (spec.md §4.5).
type Runner struct {
	stages []pipelineStage
}

// NewRunner builds the fixed seven-stage pipeline.
func NewRunner() *Runner {
	return &Runner{stages: []pipelineStage{
		{name: "story_analysis", handler: &StoryAnalysisStage{}, complete: storyAnalysisComplete},
		{name: "segmentation", handler: &SegmentationStage{}, complete: segmentationComplete},
		{name: "characters", handler: &CharactersStage{}, complete: charactersComplete},
		{name: "locations", handler: &LocationsStage{}, complete: locationsComplete},
		{name: "director_plan", handler: &DirectorPlanStage{}, complete: directorPlanComplete},
		{name: "scene_planning", handler: &ScenePlanningStage{}, complete: scenePlanningComplete},
		{name: "scene_prompts", handler: &ScenePromptsStage{}, complete: scenePromptsComplete},
	}}
}

// Run executes every stage in order against st, skipping stages whose
// output is already complete. A stage failure is returned immediately;
// every write a stage performed before failing is already durable
// (workbook writes are atomic per call), so the next invocation resumes
// from the last persisted checkpoint without repeating finished work.
func (r *Runner) Run(ctx context.Context, st *State) error {
	requestID := uuid.NewString()
	logger := st.Logger.With(pipelog.String("run_id", requestID), pipelog.String("project", st.ProjectCode))

	for _, stage := range r.stages {
		done, err := stage.complete(st)
		if err != nil {
			return pipelineerr.Wrap(pipelineerr.ErrTerminal, stage.name, "completeness_check", "failed to evaluate completeness", err)
		}
		if done {
			logger.Info("stage skipped", pipelog.String("stage", stage.name), pipelog.String("status", "SKIPPED"))
			continue
		}

		stageLogger := logger.With(pipelog.String("stage", stage.name))
		start := time.Now()
		stageLogger.Info("stage started")

		if err := stage.handler.Prepare(ctx, st); err != nil {
			stageLogger.Error("stage preparation failed", pipelog.Error(err))
			return fmt.Errorf("stage %s: prepare: %w", stage.name, err)
		}
		if err := stage.handler.Execute(ctx, st); err != nil {
			stageLogger.Error("stage execution failed", pipelog.Error(err))
			return fmt.Errorf("stage %s: execute: %w", stage.name, err)
		}

		stageLogger.Info("stage completed", pipelog.Duration("stage_duration", time.Since(start)))
	}

	return nil
}
