package reference

import (
	"reflect"
	"testing"
)

func TestExtractCharacterIDsDedupesAndOrders(t *testing.T) {
	prompt := "Wide shot of (nv_1.png) and (NV2.png), then back to (nv_1.png)."
	got := ExtractCharacterIDs(prompt)
	want := []string{"nv1", "nv2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestExtractLocationIDsCaseInsensitive(t *testing.T) {
	prompt := "Establishing shot of (LOC_3.png)."
	got := ExtractLocationIDs(prompt)
	want := []string{"loc3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestResolvePrefersPromptTokensOverFallback(t *testing.T) {
	res := Resolve("Shot of (nv1.png) at (loc2.png)", []string{"nv9"}, "loc9")
	if !reflect.DeepEqual(res.CharactersUsed, []string{"nv1"}) {
		t.Fatalf("unexpected characters: %v", res.CharactersUsed)
	}
	if res.LocationUsed != "loc2" {
		t.Fatalf("unexpected location: %v", res.LocationUsed)
	}
	wantFiles := []string{"nv1.png", "loc2.png"}
	if !reflect.DeepEqual(res.ReferenceFiles, wantFiles) {
		t.Fatalf("unexpected reference files: %v", res.ReferenceFiles)
	}
}

func TestResolveFallsBackWhenPromptHasNoTokens(t *testing.T) {
	res := Resolve("A moody, wordless establishing shot.", []string{"NV_4", "nv4", "nv5"}, "Loc_7")
	wantCharacters := []string{"nv4", "nv5"}
	if !reflect.DeepEqual(res.CharactersUsed, wantCharacters) {
		t.Fatalf("unexpected characters: %v", res.CharactersUsed)
	}
	if res.LocationUsed != "loc7" {
		t.Fatalf("unexpected location: %v", res.LocationUsed)
	}
	wantFiles := []string{"nv4.png", "nv5.png", "loc7.png"}
	if !reflect.DeepEqual(res.ReferenceFiles, wantFiles) {
		t.Fatalf("unexpected reference files: %v", res.ReferenceFiles)
	}
}

func TestResolveNoCharactersNoLocation(t *testing.T) {
	res := Resolve("Silent pan across an empty street.", nil, "")
	if len(res.CharactersUsed) != 0 {
		t.Fatalf("expected no characters, got %v", res.CharactersUsed)
	}
	if res.LocationUsed != "" {
		t.Fatalf("expected no location, got %q", res.LocationUsed)
	}
	if len(res.ReferenceFiles) != 0 {
		t.Fatalf("expected no reference files, got %v", res.ReferenceFiles)
	}
}
