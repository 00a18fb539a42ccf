package fallback

import "testing"

func TestGenerateMatchesCharacterAndLocationByName(t *testing.T) {
	scene := Scene{SceneID: "scene_001", Ordinal: 5, SRTText: "Maria walked into the old lighthouse alone."}
	characters := []Character{{ID: "nv1", Name: "Maria"}, {ID: "nv2", Name: "John"}}
	locations := []Location{{ID: "loc1", Name: "lighthouse"}, {ID: "loc2", Name: "harbor"}}

	got := Generate(scene, characters, locations)
	if len(got.CharactersUsed) != 1 || got.CharactersUsed[0] != "nv1" {
		t.Fatalf("unexpected characters: %v", got.CharactersUsed)
	}
	if got.LocationUsed != "loc1" {
		t.Fatalf("unexpected location: %v", got.LocationUsed)
	}
	if got.ImgPrompt == "" || got.VideoPrompt != got.ImgPrompt {
		t.Fatalf("expected non-empty matching img/video prompts, got %+v", got)
	}
}

func TestGenerateDefaultsWhenNoNameMatches(t *testing.T) {
	scene := Scene{SceneID: "scene_002", Ordinal: 9, SRTText: "The rain fell over an empty street."}
	locations := []Location{{ID: "loc3", Name: "harbor"}}

	got := Generate(scene, nil, locations)
	if len(got.CharactersUsed) != 1 || got.CharactersUsed[0] != defaultCharacterID {
		t.Fatalf("expected default character id, got %v", got.CharactersUsed)
	}
	if got.LocationUsed != "loc3" {
		t.Fatalf("expected fallback to first location, got %q", got.LocationUsed)
	}
}

func TestGenerateAppliesHookVisualForFirstThreeScenes(t *testing.T) {
	scene := Scene{SceneID: "scene_001", Ordinal: 0, SRTText: "The judge read the verdict in the courtroom."}
	got := Generate(scene, nil, nil)
	if got.ImgPrompt == "" {
		t.Fatal("expected a hook visual prompt")
	}
}

func TestGenerateOmitsHookVisualAfterThirdScene(t *testing.T) {
	sceneWithHook := Generate(Scene{Ordinal: 2, SRTText: "A quiet afternoon passed."}, nil, nil)
	sceneWithoutHook := Generate(Scene{Ordinal: 3, SRTText: "A quiet afternoon passed."}, nil, nil)
	if sceneWithHook.ImgPrompt == sceneWithoutHook.ImgPrompt {
		t.Fatalf("expected hook and non-hook prompts to differ")
	}
}

func TestCleanNarrationRemovesLeakedPhrase(t *testing.T) {
	srtText := "By the time I was ten years old I had already lost everything."
	imgPrompt := "Wide cinematic shot. By the time I was ten years old I had already lost everything. Dramatic lighting."
	cleaned := CleanNarration(imgPrompt, srtText)
	if cleaned == imgPrompt {
		t.Fatalf("expected narration phrase to be removed, got %q", cleaned)
	}
	if len(cleaned) == 0 {
		t.Fatalf("expected non-empty cleaned prompt")
	}
}

func TestCleanNarrationNoopWhenNoOverlap(t *testing.T) {
	imgPrompt := "Wide cinematic shot, dramatic lighting, 4K photorealistic."
	cleaned := CleanNarration(imgPrompt, "Completely unrelated narration text here today now.")
	if cleaned != imgPrompt {
		t.Fatalf("expected no change, got %q", cleaned)
	}
}

func TestFallbackSceneIDPadsToThreeDigits(t *testing.T) {
	if got := FallbackSceneID(7); got != "scene_007" {
		t.Fatalf("got %q", got)
	}
	if got := FallbackSceneID(123); got != "scene_123" {
		t.Fatalf("got %q", got)
	}
}
