package pipeline

import (
	"context"
	"fmt"

	"scenepipe/internal/llm"
	"scenepipe/internal/pipelineerr"
	"scenepipe/internal/srt"
	"scenepipe/internal/workbook"
)

const storyAnalysisPrompt = `You are a film story analyst. Read the following narration and return a JSON object with exactly these keys: "genre", "mood", "style", "summary". Keep the summary under 400 characters.

NARRATION:
%s`

type storyAnalysisResponse struct {
	Genre   string `json:"genre"`
	Mood    string `json:"mood"`
	Style   string `json:"style"`
	Summary string `json:"summary"`
}

func storyAnalysisComplete(st *State) (bool, error) {
	_, ok, err := st.Store.ReadStoryAnalysis()
	return ok, err
}

// StoryAnalysisStage implements spec.md's Stage 1: a single LLM call
// over the full narration text, producing the one-row StoryAnalysis
// sheet every later stage conditions on.
type StoryAnalysisStage struct{}

func (StoryAnalysisStage) Prepare(_ context.Context, st *State) error {
	if len(st.Entries) == 0 {
		return pipelineerr.Wrap(pipelineerr.ErrInputInvalid, "story_analysis", "prepare", "no SRT entries loaded", nil)
	}
	return nil
}

func (StoryAnalysisStage) Execute(ctx context.Context, st *State) error {
	prompt := fmt.Sprintf(storyAnalysisPrompt, srt.FullText(st.Entries))

	text, err := st.LLM.Complete(ctx, prompt, 0.4, 1000)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrTerminal, "story_analysis", "complete", "LLM returned no result after retries", err)
	}
	if text == "" {
		return pipelineerr.Wrap(pipelineerr.ErrTerminal, "story_analysis", "complete", "LLM returned None after full retry", nil)
	}

	var resp storyAnalysisResponse
	if err := llm.DecodeLLMJSON(text, &resp); err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrParse, "story_analysis", "decode", "could not parse story analysis JSON", err)
	}

	return st.Store.WriteStoryAnalysis(workbook.StoryAnalysis{
		Genre:   resp.Genre,
		Mood:    resp.Mood,
		Style:   resp.Style,
		Summary: resp.Summary,
	})
}

func (StoryAnalysisStage) HealthCheck(_ context.Context, st *State) Health {
	if st.LLM == nil {
		return Health{Name: "story_analysis", Healthy: false, Detail: "no LLM client configured"}
	}
	return Health{Name: "story_analysis", Healthy: true}
}
