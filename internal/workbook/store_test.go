package workbook

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "EP01_prompts.xlsx")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenCreatesAllSheetsEmpty(t *testing.T) {
	store := openTestStore(t)
	for _, sheet := range []string{SheetStoryAnalysis, SheetSegments, SheetCharacters, SheetLocations, SheetDirectorPlan, SheetScenePlanning, SheetScenes} {
		if !store.SheetExists(sheet) {
			t.Fatalf("expected sheet %s to exist", sheet)
		}
	}
	analysis, ok, err := store.ReadStoryAnalysis()
	if err != nil {
		t.Fatalf("ReadStoryAnalysis: %v", err)
	}
	if ok {
		t.Fatalf("expected no story analysis on a fresh workbook, got %+v", analysis)
	}
}

func TestWriteAndReadSegmentsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	segments := []Segment{
		{SegmentID: 1, Name: "Opening", SRTStartIndex: 1, SRTEndIndex: 5, ImageCount: 1},
		{SegmentID: 2, Name: "Climax", SRTStartIndex: 6, SRTEndIndex: 10, ImageCount: 1},
	}
	if err := store.WriteSegments(segments); err != nil {
		t.Fatalf("WriteSegments: %v", err)
	}
	got, err := store.ReadSegments()
	if err != nil {
		t.Fatalf("ReadSegments: %v", err)
	}
	if len(got) != 2 || got[0] != segments[0] || got[1] != segments[1] {
		t.Fatalf("unexpected segments after round trip: %+v", got)
	}
}

func TestReopenPreservesWrittenData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "EP02_prompts.xlsx")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.WriteStoryAnalysis(StoryAnalysis{Genre: "thriller", Mood: "tense", Style: "noir", Summary: "a chase"}); err != nil {
		t.Fatalf("WriteStoryAnalysis: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	analysis, ok, err := reopened.ReadStoryAnalysis()
	if err != nil {
		t.Fatalf("ReadStoryAnalysis: %v", err)
	}
	if !ok || analysis.Genre != "thriller" {
		t.Fatalf("unexpected analysis after reopen: ok=%v %+v", ok, analysis)
	}
}

func TestSecondOpenIsRejectedWhileLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "EP03_prompts.xlsx")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer first.Close()

	if _, err := Open(path); err == nil {
		t.Fatal("expected second concurrent Open to fail")
	}
}

func TestCharactersAndReferenceFilesRoundTripLists(t *testing.T) {
	store := openTestStore(t)
	scenes := []Scene{
		{
			SceneID:        "scene_001",
			CharactersUsed: []string{"nv1", "nv2"},
			ReferenceFiles: []string{"nv1.png", "nv2.png"},
			SegmentID:      1,
		},
	}
	if err := store.WriteScenes(scenes); err != nil {
		t.Fatalf("WriteScenes: %v", err)
	}
	got, err := store.ReadScenes()
	if err != nil {
		t.Fatalf("ReadScenes: %v", err)
	}
	if len(got) != 1 || len(got[0].CharactersUsed) != 2 || got[0].CharactersUsed[1] != "nv2" || len(got[0].ReferenceFiles) != 2 || got[0].ReferenceFiles[1] != "nv2.png" {
		t.Fatalf("unexpected scene after round trip: %+v", got)
	}
}

func TestEmptyCellsDefaultRatherThanError(t *testing.T) {
	store := openTestStore(t)
	if err := store.WriteDirectorPlan([]DirectorPlanEntry{{SceneID: "scene_001"}}); err != nil {
		t.Fatalf("WriteDirectorPlan: %v", err)
	}
	got, err := store.ReadDirectorPlan()
	if err != nil {
		t.Fatalf("ReadDirectorPlan: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].Status != StatusPending {
		t.Fatalf("expected empty status cell to default to pending, got %q", got[0].Status)
	}
	if got[0].CharactersUsed != nil {
		t.Fatalf("expected empty characters_used cell to decode as nil slice, got %v", got[0].CharactersUsed)
	}
}
