package pipeline

import (
	"context"
	"log/slog"
	"testing"

	"scenepipe/internal/coverage"
	"scenepipe/internal/llm"
	"scenepipe/internal/pipelog"
	"scenepipe/internal/srt"
	"scenepipe/internal/testsupport"
	"scenepipe/internal/workbook"
)

func newSegmentationState(t *testing.T, server *testsupport.ScriptedLLMServer, n int) *State {
	t.Helper()
	entries, err := srt.ParseString(testsupport.NewFixtureSRT(n))
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	client := llm.New(llm.Config{Endpoint: server.Server.URL, Model: "test-model", APIKeys: []string{"key"}, TimeoutSeconds: 5})
	return &State{
		LLM:     client,
		Logger:  slog.New(pipelog.NoopHandler{}),
		Entries: entries,
	}
}

// TestValidationARecursivelyResplitsDisproportionateSegment exercises
// scenario S2: a segment whose length/image_count ratio is 208 (well
// above the 30 threshold) must trigger a scoped recursive LLM call
// rather than a local split, and the recursion must terminate once the
// returned sub-segments fall back within ratio<=15.
func TestValidationARecursivelyResplitsDisproportionateSegment(t *testing.T) {
	server := testsupport.NewScriptedLLMServer()
	defer server.Close()
	server.WhenPromptContains("finer segmentation", `{"segments":[{"name":"Opening (resplit)","srt_start_index":1,"srt_end_index":208,"image_count":20}]}`)

	st := newSegmentationState(t, server, 208)

	raw := []segmentJSON{{Name: "Opening", SRTStartIndex: 1, SRTEndIndex: 208, ImageCount: 1}}

	stage := SegmentationStage{}
	segments, err := stage.validationA(context.Background(), st, raw, 0)
	if err != nil {
		t.Fatalf("validationA: %v", err)
	}
	if server.Calls != 1 {
		t.Fatalf("expected exactly one recursive resplit call, got %d", server.Calls)
	}
	if len(segments) != 1 {
		t.Fatalf("expected the resplit response to end recursion with one segment, got %d: %+v", len(segments), segments)
	}
	if segments[0].SRTStartIndex != 1 || segments[0].SRTEndIndex != 208 {
		t.Fatalf("expected resolved segment to cover 1-208, got %+v", segments[0])
	}
	if !coverage.IsPartition(segmentIntervals(segments), 208) {
		t.Fatalf("resolved segments do not partition [1,208]: %+v", segments)
	}
}

// TestValidationARecursionStopsAtMaxDepth verifies that a segment still
// disproportionate after maxValidationADepth recursive calls falls back
// to a local split instead of recursing forever.
func TestValidationARecursionStopsAtMaxDepth(t *testing.T) {
	server := testsupport.NewScriptedLLMServer()
	defer server.Close()
	server.FallbackResponse = `{"segments":[{"name":"still bad","srt_start_index":1,"srt_end_index":100,"image_count":1}]}`

	st := newSegmentationState(t, server, 100)
	raw := []segmentJSON{{Name: "Bad", SRTStartIndex: 1, SRTEndIndex: 100, ImageCount: 1}}

	stage := SegmentationStage{}
	segments, err := stage.validationA(context.Background(), st, raw, 0)
	if err != nil {
		t.Fatalf("validationA: %v", err)
	}
	if server.Calls != maxValidationADepth {
		t.Fatalf("expected recursion to stop after %d calls, got %d", maxValidationADepth, server.Calls)
	}
	if !coverage.IsPartition(segmentIntervals(segments), 100) {
		t.Fatalf("segments do not partition [1,100] after local-split fallback: %+v", segments)
	}
	for _, seg := range segments {
		length := seg.SRTEndIndex - seg.SRTStartIndex + 1
		ratio := float64(length) / float64(seg.ImageCount)
		if ratio > 15 {
			t.Fatalf("expected local split to bring ratio<=15, got %.1f for %+v", ratio, seg)
		}
	}
}

// TestValidationBRepairsGapViaScopedCall exercises scenario S3: a
// coverage gap left after the initial split is repaired by a scoped
// gap-fill LLM call whose response replaces the AUTO SEGMENT fallback.
func TestValidationBRepairsGapViaScopedCall(t *testing.T) {
	server := testsupport.NewScriptedLLMServer()
	defer server.Close()
	server.WhenPromptContains("was left unsegmented", `{"segments":[{"name":"Bridge","srt_start_index":6,"srt_end_index":10,"image_count":1}]}`)

	st := newSegmentationState(t, server, 10)
	segments := []workbook.Segment{{Name: "Opening", SRTStartIndex: 1, SRTEndIndex: 5, ImageCount: 1}}

	stage := SegmentationStage{}
	repaired, err := stage.validationB(context.Background(), st, segments)
	if err != nil {
		t.Fatalf("validationB: %v", err)
	}
	if !coverage.IsPartition(segmentIntervals(repaired), 10) {
		t.Fatalf("repaired segments do not partition [1,10]: %+v", repaired)
	}
	found := false
	for _, seg := range repaired {
		if seg.Name == "Bridge" && seg.SRTStartIndex == 6 && seg.SRTEndIndex == 10 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the LLM's gap-fill segment to appear in the repaired set: %+v", repaired)
	}
}

// TestValidationBFallsBackToAutoSegmentOnRepairFailure verifies that
// when the gap-fill call yields nothing usable, validationB synthesizes
// an AUTO SEGMENT placeholder so the partition invariant still holds.
func TestValidationBFallsBackToAutoSegmentOnRepairFailure(t *testing.T) {
	server := testsupport.NewScriptedLLMServer()
	defer server.Close()
	server.FallbackResponse = `{"segments":[]}`

	st := newSegmentationState(t, server, 10)
	segments := []workbook.Segment{{Name: "Opening", SRTStartIndex: 1, SRTEndIndex: 5, ImageCount: 1}}

	stage := SegmentationStage{}
	repaired, err := stage.validationB(context.Background(), st, segments)
	if err != nil {
		t.Fatalf("validationB: %v", err)
	}
	if !coverage.IsPartition(segmentIntervals(repaired), 10) {
		t.Fatalf("repaired segments do not partition [1,10]: %+v", repaired)
	}
	found := false
	for _, seg := range repaired {
		if seg.Name == "AUTO SEGMENT" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an AUTO SEGMENT placeholder when the LLM returns nothing usable: %+v", repaired)
	}
}
