package scenesynth

import (
	"testing"

	"scenepipe/internal/workbook"
)

func baseEntry() workbook.DirectorPlanEntry {
	return workbook.DirectorPlanEntry{
		SceneID:           "scene_001",
		SegmentID:         1,
		SRTStartIndex:     1,
		SRTEndIndex:       3,
		PlannedDurationMS: 5000,
		CharactersUsed:    []string{"nv9"},
		LocationUsed:      "loc9",
		Status:            workbook.StatusPlanned,
	}
}

func TestSynthesizeUsesLLMPromptWhenPresent(t *testing.T) {
	in := Input{
		Entry:   baseEntry(),
		Segment: workbook.Segment{Name: "Opening"},
		SRTText: "A figure stands at the edge of the cliff.",
		Prompt:  PromptResult{ImgPrompt: "A figure (nv1.png) stands at (loc1.png)", VideoPrompt: "A figure moves"},
		Mode:    ModeBasic,
	}
	scene := Synthesize(in)

	if scene.ImgPrompt != in.Prompt.ImgPrompt {
		t.Fatalf("expected LLM prompt to be used, got %q", scene.ImgPrompt)
	}
	if len(scene.CharactersUsed) != 1 || scene.CharactersUsed[0] != "nv1" {
		t.Fatalf("unexpected characters_used: %v", scene.CharactersUsed)
	}
	if scene.LocationUsed != "loc1" {
		t.Fatalf("unexpected location_used: %q", scene.LocationUsed)
	}
	if scene.StatusImg != "pending" || scene.StatusVid != "pending" {
		t.Fatalf("expected pending status_img/status_vid, got %q/%q", scene.StatusImg, scene.StatusVid)
	}
	if scene.SegmentID != 1 {
		t.Fatalf("expected segment_id to be populated, got %d", scene.SegmentID)
	}
}

func TestSynthesizeFallsBackWhenPromptEmpty(t *testing.T) {
	in := Input{
		Entry:   baseEntry(),
		Segment: workbook.Segment{Name: "Opening"},
		SRTText: "A quiet moment of reflection.",
		Prompt:  PromptResult{},
		Mode:    ModeBasic,
	}
	scene := Synthesize(in)

	if scene.ImgPrompt == "" {
		t.Fatal("expected a non-empty fallback prompt")
	}
	if len(scene.CharactersUsed) != 1 || scene.CharactersUsed[0] != "nv9" {
		t.Fatalf("expected fallback to director-plan characters, got %v", scene.CharactersUsed)
	}
	if scene.LocationUsed != "loc9" {
		t.Fatalf("expected fallback to director-plan location, got %q", scene.LocationUsed)
	}
}

func TestSynthesizeFallsBackWhenBatchIsDuplicate(t *testing.T) {
	in := Input{
		Entry:            baseEntry(),
		Segment:          workbook.Segment{Name: "Climax"},
		SRTText:          "Everything falls apart.",
		Prompt:           PromptResult{ImgPrompt: "A generic cinematic shot.", VideoPrompt: "A generic cinematic shot."},
		BatchIsDuplicate: true,
		Mode:             ModeBasic,
	}
	scene := Synthesize(in)
	if scene.ImgPrompt == in.Prompt.ImgPrompt {
		t.Fatal("expected duplicate-triggered fallback to replace the LLM prompt")
	}
}

func TestVideoNoteBasicModeSkipsAfterFirstSegment(t *testing.T) {
	entry1 := baseEntry()
	entry1.SegmentID = 1
	scene1 := Synthesize(Input{Entry: entry1, Prompt: PromptResult{ImgPrompt: "shot"}, Mode: ModeBasic})
	if scene1.VideoNote != "" {
		t.Fatalf("expected empty video_note for segment 1, got %q", scene1.VideoNote)
	}

	entry2 := baseEntry()
	entry2.SegmentID = 2
	scene2 := Synthesize(Input{Entry: entry2, Prompt: PromptResult{ImgPrompt: "shot"}, Mode: ModeBasic})
	if scene2.VideoNote != "SKIP" {
		t.Fatalf("expected SKIP video_note for segment 2, got %q", scene2.VideoNote)
	}
}

func TestVideoNoteFullModeNeverSkips(t *testing.T) {
	entry := baseEntry()
	entry.SegmentID = 4
	scene := Synthesize(Input{Entry: entry, Prompt: PromptResult{ImgPrompt: "shot"}, Mode: ModeFull})
	if scene.VideoNote != "" {
		t.Fatalf("expected empty video_note in full mode, got %q", scene.VideoNote)
	}
}

func TestIsBatchDuplicateDetectsHighSimilarity(t *testing.T) {
	prompts := make([]string, 10)
	for i := range prompts {
		prompts[i] = "A cinematic wide shot of the storm."
	}
	prompts[9] = "Something entirely different here."

	if !IsBatchDuplicate(prompts) {
		t.Fatal("expected 9/10 identical prompts to exceed the duplicate threshold")
	}
}

func TestIsBatchDuplicateNormalizesCaseAndUnicode(t *testing.T) {
	prompts := []string{"A café at dusk.", "A CAFÉ AT DUSK.", "a café at dusk."}
	if !IsBatchDuplicate(prompts) {
		t.Fatal("expected case-insensitive, NFC-normalized duplicates to be detected")
	}
}

func TestIsBatchDuplicateFalseWhenAllDistinct(t *testing.T) {
	prompts := []string{"one", "two", "three", "four"}
	if IsBatchDuplicate(prompts) {
		t.Fatal("expected all-distinct prompts to not trigger duplicate fallback")
	}
}
