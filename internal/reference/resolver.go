// Package reference implements the Reference Resolver (spec.md's C8):
// it parses prompt text for character/location tokens and derives a
// scene's reference metadata from them, falling back to the
// director-plan entry's own IDs. Extracted IDs are not checked against
// the character/location tables.
package reference

import (
	"regexp"
	"strings"
)

var (
	characterTokenPattern = regexp.MustCompile(`\(([nN][vV]_?\d+)\.png\)`)
	locationTokenPattern  = regexp.MustCompile(`\(([lL][oO][cC]_?\d+)\.png\)`)
)

// ExtractCharacterIDs returns the unique character IDs referenced in
// prompt, in first-occurrence order, normalized to lowercase canonical
// form (case folded, underscore separators removed: "NV_3" -> "nv3").
func ExtractCharacterIDs(prompt string) []string {
	return extractUnique(characterTokenPattern, prompt)
}

// ExtractLocationIDs returns the unique location IDs referenced in
// prompt, in first-occurrence order, normalized the same way.
func ExtractLocationIDs(prompt string) []string {
	return extractUnique(locationTokenPattern, prompt)
}

func extractUnique(pattern *regexp.Regexp, prompt string) []string {
	matches := pattern.FindAllStringSubmatch(prompt, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		id := Canonicalize(m[1])
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Canonicalize normalizes a raw matched ID (e.g. "NV_03", "Loc2") into
// its canonical lowercase, underscore-free form ("nv03", "loc2").
func Canonicalize(id string) string {
	return strings.ToLower(strings.ReplaceAll(id, "_", ""))
}

// Resolution is the metadata the Scene Synthesizer attaches to a scene
// row: the prompt's extracted IDs are authoritative, falling back to
// the director-plan entry's own fields only when the prompt names none.
type Resolution struct {
	CharactersUsed []string
	LocationUsed   string
	ReferenceFiles []string
}

// Resolve implements spec.md §4.7 step 3 in full: extract tokens from
// imgPrompt; if none are found, fall back to the director-plan entry's
// characters_used/location_used; compute reference_files as the union
// of the resulting IDs, each rendered as "{id}.png".
func Resolve(imgPrompt string, fallbackCharacters []string, fallbackLocation string) Resolution {
	characters := ExtractCharacterIDs(imgPrompt)
	if len(characters) == 0 {
		characters = canonicalizeAll(fallbackCharacters)
	}

	location := ""
	if locations := ExtractLocationIDs(imgPrompt); len(locations) > 0 {
		location = locations[0]
	} else if fallbackLocation != "" {
		location = Canonicalize(fallbackLocation)
	}

	files := make([]string, 0, len(characters)+1)
	for _, c := range characters {
		files = append(files, c+".png")
	}
	if location != "" {
		files = append(files, location+".png")
	}

	return Resolution{
		CharactersUsed: characters,
		LocationUsed:   location,
		ReferenceFiles: files,
	}
}

func canonicalizeAll(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		canon := Canonicalize(id)
		if canon == "" {
			continue
		}
		if _, ok := seen[canon]; ok {
			continue
		}
		seen[canon] = struct{}{}
		out = append(out, canon)
	}
	return out
}
