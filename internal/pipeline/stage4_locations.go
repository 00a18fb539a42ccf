package pipeline

import (
	"context"
	"fmt"

	"scenepipe/internal/llm"
	"scenepipe/internal/pipelineerr"
	"scenepipe/internal/srt"
	"scenepipe/internal/workbook"
)

const locationsPrompt = `You are a location scout. The story's genre is %q, style is %q. Read the narration below and list every distinct location mentioned. Return JSON {"locations": [{"name": "...", "description": "...", "atmosphere": "..."}, ...]} in first-mention order. If there are no locations, return {"locations": []}.

NARRATION:
%s`

type locationsResponse struct {
	Locations []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Atmosphere  string `json:"atmosphere"`
	} `json:"locations"`
}

func locationsComplete(st *State) (bool, error) {
	return st.Store.IsStageComplete("locations")
}

// LocationsStage implements spec.md's Stage 4: identical shape to
// Stage 3, IDs assigned loc1, loc2, ... in returned order.
type LocationsStage struct{}

func (LocationsStage) Prepare(_ context.Context, st *State) error {
	if _, ok, err := st.Store.ReadStoryAnalysis(); err != nil {
		return err
	} else if !ok {
		return pipelineerr.Wrap(pipelineerr.ErrInputInvalid, "locations", "prepare", "story analysis missing", nil)
	}
	return nil
}

func (LocationsStage) Execute(ctx context.Context, st *State) error {
	analysis, _, err := st.Store.ReadStoryAnalysis()
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf(locationsPrompt, analysis.Genre, analysis.Style, srt.FullText(st.Entries))
	text, err := st.LLM.Complete(ctx, prompt, 0.3, 2000)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrTerminal, "locations", "complete", "LLM returned no result after retries", err)
	}

	var locations []workbook.Location
	if text == "" {
		st.Logger.Warn("locations: LLM returned None, recording an empty roster")
	} else {
		var resp locationsResponse
		if err := llm.DecodeLLMJSON(text, &resp); err != nil {
			return pipelineerr.Wrap(pipelineerr.ErrParse, "locations", "decode", "could not parse locations JSON", err)
		}
		locations = make([]workbook.Location, len(resp.Locations))
		for i, l := range resp.Locations {
			locations[i] = workbook.Location{
				LocationID:  fmt.Sprintf("loc%d", i+1),
				Name:        l.Name,
				Description: l.Description,
				Atmosphere:  l.Atmosphere,
			}
		}
	}
	if err := st.Store.WriteLocations(locations); err != nil {
		return err
	}
	return st.Store.MarkStageComplete("locations")
}

func (LocationsStage) HealthCheck(_ context.Context, st *State) Health {
	return Health{Name: "locations", Healthy: st.LLM != nil}
}
