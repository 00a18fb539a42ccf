package pipeline

import (
	"context"
	"fmt"

	"scenepipe/internal/llm"
	"scenepipe/internal/pipelineerr"
	"scenepipe/internal/srt"
	"scenepipe/internal/workbook"
)

const charactersPrompt = `You are a casting analyst. The story's genre is %q, mood is %q. Read the narration below and list every distinct character mentioned. Return JSON {"characters": [{"name": "...", "description": "...", "appearance": "..."}, ...]} in first-mention order. If there are no characters, return {"characters": []}.

NARRATION:
%s`

type charactersResponse struct {
	Characters []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Appearance  string `json:"appearance"`
	} `json:"characters"`
}

func charactersComplete(st *State) (bool, error) {
	return st.Store.IsStageComplete("characters")
}

// CharactersStage implements spec.md's Stage 3: one LLM call producing
// the character roster, IDs assigned nv1, nv2, ... in returned order.
type CharactersStage struct{}

func (CharactersStage) Prepare(_ context.Context, st *State) error {
	if _, ok, err := st.Store.ReadStoryAnalysis(); err != nil {
		return err
	} else if !ok {
		return pipelineerr.Wrap(pipelineerr.ErrInputInvalid, "characters", "prepare", "story analysis missing", nil)
	}
	return nil
}

func (CharactersStage) Execute(ctx context.Context, st *State) error {
	analysis, _, err := st.Store.ReadStoryAnalysis()
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf(charactersPrompt, analysis.Genre, analysis.Mood, srt.FullText(st.Entries))
	text, err := st.LLM.Complete(ctx, prompt, 0.3, 2000)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrTerminal, "characters", "complete", "LLM returned no result after retries", err)
	}

	var characters []workbook.Character
	if text == "" {
		st.Logger.Warn("characters: LLM returned None, recording an empty roster")
	} else {
		var resp charactersResponse
		if err := llm.DecodeLLMJSON(text, &resp); err != nil {
			return pipelineerr.Wrap(pipelineerr.ErrParse, "characters", "decode", "could not parse characters JSON", err)
		}
		characters = make([]workbook.Character, len(resp.Characters))
		for i, c := range resp.Characters {
			characters[i] = workbook.Character{
				CharacterID: fmt.Sprintf("nv%d", i+1),
				Name:        c.Name,
				Description: c.Description,
				Appearance:  c.Appearance,
			}
		}
	}
	if err := st.Store.WriteCharacters(characters); err != nil {
		return err
	}
	return st.Store.MarkStageComplete("characters")
}

func (CharactersStage) HealthCheck(_ context.Context, st *State) Health {
	return Health{Name: "characters", Healthy: st.LLM != nil}
}
