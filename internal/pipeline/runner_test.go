package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"scenepipe/internal/config"
	"scenepipe/internal/llm"
	"scenepipe/internal/pipelog"
	"scenepipe/internal/srt"
	"scenepipe/internal/testsupport"
	"scenepipe/internal/workbook"
)

// TestRunEndToEndTenLineScript exercises scenario S1: a 10-entry SRT,
// mode basic, two segments each producing one director-plan entry and
// one scene, the second scene's video_note SKIPped because it belongs
// to segment 2.
func TestRunEndToEndTenLineScript(t *testing.T) {
	server := testsupport.NewScriptedLLMServer()
	defer server.Close()

	server.WhenPromptContains("You are a film story analyst", `{"genre":"drama","mood":"somber","style":"realistic","summary":"a story"}`)
	server.WhenPromptContains("You are a video editor splitting narration", `{"segments":[{"name":"Opening","srt_start_index":1,"srt_end_index":5,"image_count":1},{"name":"Closing","srt_start_index":6,"srt_end_index":10,"image_count":1}]}`)
	server.WhenPromptContains("You are a casting analyst", `{"characters":[{"name":"Alex","description":"the protagonist","appearance":"tall"}]}`)
	server.WhenPromptContains("You are a location scout", `{"locations":[]}`)
	server.WhenPromptContains(`"Opening"`, `{"entries":[{"visual_moment":"open","srt_start_index":1,"srt_end_index":5,"planned_duration_ms":5000,"characters_used":["nv1"],"location_used":""}]}`)
	server.WhenPromptContains(`"Closing"`, `{"entries":[{"visual_moment":"close","srt_start_index":6,"srt_end_index":10,"planned_duration_ms":5000,"characters_used":["nv1"],"location_used":""}]}`)
	server.WhenPromptContains("You are a cinematographer", `{"plans":[{"scene_id":"scene_001","camera":"static","lighting":"soft","composition":"centered"},{"scene_id":"scene_002","camera":"pan","lighting":"hard","composition":"rule of thirds"}]}`)
	server.WhenPromptContains("You are a visual prompt writer", `{"prompts":[{"scene_id":"scene_001","img_prompt":"A figure (nv1.png) stands at dawn.","video_prompt":"A figure (nv1.png) moves."},{"scene_id":"scene_002","img_prompt":"A figure (nv1.png) walks away.","video_prompt":"A figure (nv1.png) leaves."}]}`)

	client := llm.New(llm.Config{Endpoint: server.Server.URL, Model: "test-model", APIKeys: []string{"key"}, TimeoutSeconds: 5})

	entries, err := srt.ParseString(testsupport.NewFixtureSRT(10))
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}

	store, err := workbook.Open(filepath.Join(t.TempDir(), "EP01_prompts.xlsx"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	cfg := config.Default()
	cfg.Pipeline.VideoMode = "basic"

	st := &State{
		ProjectCode: "EP01",
		Config:      &cfg,
		Store:       store,
		LLM:         client,
		Logger:      slog.New(pipelog.NoopHandler{}),
		Entries:     entries,
	}

	runner := NewRunner()
	if err := runner.Run(context.Background(), st); err != nil {
		t.Fatalf("Run: %v", err)
	}

	scenes, err := store.ReadScenes()
	if err != nil {
		t.Fatalf("ReadScenes: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d: %+v", len(scenes), scenes)
	}
	if scenes[0].SceneID != "scene_001" || scenes[0].SegmentID != 1 || scenes[0].VideoNote != "" {
		t.Fatalf("unexpected scene 1: %+v", scenes[0])
	}
	if scenes[1].SceneID != "scene_002" || scenes[1].SegmentID != 2 || scenes[1].VideoNote != "SKIP" {
		t.Fatalf("unexpected scene 2: %+v", scenes[1])
	}
	for _, sc := range scenes {
		if len(sc.CharactersUsed) != 1 || sc.CharactersUsed[0] != "nv1" {
			t.Fatalf("expected characters_used=[nv1], got %v", sc.CharactersUsed)
		}
		if len(sc.ReferenceFiles) != 1 || sc.ReferenceFiles[0] != "nv1.png" {
			t.Fatalf("expected reference_files=[nv1.png], got %v", sc.ReferenceFiles)
		}
	}
}

// TestRunSkipsCompletedStages verifies a second Run against an
// already-finished workbook performs no further work (every stage is
// skip-if-complete).
func TestRunSkipsCompletedStages(t *testing.T) {
	server := testsupport.NewScriptedLLMServer()
	defer server.Close()
	server.FallbackResponse = `{"genre":"g","mood":"m","style":"s","summary":"sum","segments":[],"characters":[],"locations":[],"entries":[],"plans":[],"prompts":[]}`
	server.WhenPromptContains("You are a video editor splitting narration", `{"segments":[{"name":"Only","srt_start_index":1,"srt_end_index":3,"image_count":1}]}`)
	server.WhenPromptContains(`"Only"`, `{"entries":[{"visual_moment":"only","srt_start_index":1,"srt_end_index":3,"planned_duration_ms":3000,"characters_used":[],"location_used":""}]}`)
	server.WhenPromptContains("You are a cinematographer", `{"plans":[{"scene_id":"scene_001","camera":"static","lighting":"soft","composition":"centered"}]}`)
	server.WhenPromptContains("You are a visual prompt writer", `{"prompts":[{"scene_id":"scene_001","img_prompt":"A quiet frame.","video_prompt":"A quiet frame."}]}`)

	client := llm.New(llm.Config{Endpoint: server.Server.URL, Model: "test-model", APIKeys: []string{"key"}, TimeoutSeconds: 5})
	entries, err := srt.ParseString(testsupport.NewFixtureSRT(3))
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}

	store, err := workbook.Open(filepath.Join(t.TempDir(), "EP02_prompts.xlsx"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	cfg := config.Default()
	st := &State{ProjectCode: "EP02", Config: &cfg, Store: store, LLM: client, Logger: slog.New(pipelog.NoopHandler{}), Entries: entries}

	runner := NewRunner()
	if err := runner.Run(context.Background(), st); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	callsAfterFirst := server.Calls

	if err := runner.Run(context.Background(), st); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if server.Calls != callsAfterFirst {
		t.Fatalf("expected no additional LLM calls on a fully complete workbook, first=%d second=%d", callsAfterFirst, server.Calls)
	}
}
