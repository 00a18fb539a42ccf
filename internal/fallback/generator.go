// Package fallback provides deterministic, template-based prompt
// generation for scenes where the LLM produced no usable output. It
// never calls the network: every result is derived from the segment,
// scene ID, and narration text alone, so retries always produce the
// same fallback for the same input.
package fallback

import (
	"fmt"
	"strconv"
	"strings"
)

// Character and Location are the minimal fields the generator needs
// from the canonical character/location tables — keyword matching
// against a scene's narration text.
type Character struct {
	ID   string
	Name string
}

type Location struct {
	ID   string
	Name string
}

// Scene is the minimal shape of a director-plan entry the generator
// needs: an ID, the name of the segment it belongs to, its narration
// text, and its 0-based ordinal among every scene in the run (used, for
// the first three scenes, to pick a dramatic "hook" framing for the
// retention-critical opening; the shot type comes from the narration
// text alone).
type Scene struct {
	SceneID     string
	SegmentName string
	Ordinal     int
	SRTText     string
}

// Prompt is a self-contained fallback result: the caller assigns it
// directly to a Scene row's img_prompt/video_prompt/characters_used/
// location_used fields.
type Prompt struct {
	ImgPrompt      string
	VideoPrompt    string
	CharactersUsed []string
	LocationUsed   string
}

const defaultCharacterID = "nvc"

// Generate builds a deterministic fallback prompt for scene, matching
// character and location names against the scene's narration text
// (case-insensitive substring match), falling back to the default
// character ID and the first known location when nothing matches.
func Generate(scene Scene, characters []Character, locations []Location) Prompt {
	text := strings.ToLower(scene.SRTText)

	chars := matchCharacters(text, characters)
	if len(chars) == 0 {
		chars = []string{defaultCharacterID}
	}

	location := matchLocation(text, locations)

	shot := shotType(text)
	visual := hookVisual(scene.Ordinal, text)
	segment := strings.TrimSpace(scene.SegmentName)
	if segment == "" {
		segment = "this segment"
	}

	var img string
	if visual != "" {
		img = fmt.Sprintf("[%s / %s] %s. %s, cinematic lighting, 4K photorealistic.", scene.SceneID, segment, visual, shot)
	} else {
		img = fmt.Sprintf("[%s / %s] %s of: %s. Cinematic lighting, 4K photorealistic.", scene.SceneID, segment, shot, truncate(scene.SRTText, 120))
	}

	return Prompt{
		ImgPrompt:      img,
		VideoPrompt:    img,
		CharactersUsed: chars,
		LocationUsed:   location,
	}
}

func matchCharacters(lowerText string, characters []Character) []string {
	var out []string
	for _, c := range characters {
		if c.Name == "" {
			continue
		}
		if strings.Contains(lowerText, strings.ToLower(c.Name)) {
			out = append(out, c.ID)
		}
	}
	return out
}

func matchLocation(lowerText string, locations []Location) string {
	if len(locations) == 0 {
		return ""
	}
	for _, l := range locations {
		if l.Name == "" {
			continue
		}
		if strings.Contains(lowerText, strings.ToLower(l.Name)) {
			return l.ID
		}
	}
	return locations[0].ID
}

var shotKeywords = []struct {
	shot     string
	keywords []string
}{
	{"Close-up shot", []string{"said", "asked", "cried", "laughed", "whispered", "screamed"}},
	{"Wide establishing shot", []string{"looked out", "skyline", "horizon", "landscape", "overview"}},
}

func shotType(lowerText string) string {
	for _, sk := range shotKeywords {
		for _, kw := range sk.keywords {
			if strings.Contains(lowerText, kw) {
				return sk.shot
			}
		}
	}
	return "Medium shot"
}

// hookVisual returns a dramatic establishing visual for the first
// three scenes of a run (index 0-2), which carry the retention-critical
// opening; every other scene gets no hook and falls through to the
// generic narration-derived prompt.
func hookVisual(index int, lowerText string) string {
	switch index {
	case 0:
		switch {
		case containsAny(lowerText, "court", "legal", "lawsuit", "judge"):
			return "Tiny figure hunched alone on massive courthouse steps, head in hands, dwarfed by towering columns, dramatic low angle emphasizing isolation"
		case containsAny(lowerText, "hospital", "doctor", "sick", "ill"):
			return "Tiny figure sitting alone in a vast hospital corridor, hunched in despair, fluorescent lights stretching endlessly, dramatic low angle"
		case containsAny(lowerText, "house", "home", "evict", "lost"):
			return "Tiny figure standing alone before a house, shoulders slumped, belongings scattered, dramatic low angle, overwhelming sky"
		default:
			return "Tiny figure hunched alone in a vast empty space, head bowed, dramatic low angle emphasizing human fragility"
		}
	case 1:
		switch {
		case containsAny(lowerText, "betray", "trust", "lie", "deceive"):
			return "Extreme close-up of a face, eyes glistening with tears of betrayal, jaw clenched, a single tear rolling down the cheek"
		case containsAny(lowerText, "remember", "memory", "past"):
			return "Extreme close-up of a face, eyes distant and glistening with painful memory, bittersweet ache visible"
		default:
			return "Extreme close-up of a face, eyes red and swollen, the weight of the moment carved into every feature"
		}
	case 2:
		return "Extreme close-up of a meaningful detail: trembling hands, a worn photograph, or scattered documents"
	default:
		return ""
	}
}

func containsAny(text string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}

// CleanNarration strips narration text that leaked into an LLM-produced
// img_prompt (image generators otherwise render it as burned-in
// subtitles). It drops every sentence of imgPrompt that contains a run
// of 5 consecutive words from srtText and keeps the others. A '.', '!'
// or '?' ends a sentence only when followed by whitespace or the end of
// the text, so file tokens such as "(nv1.png)" stay intact.
func CleanNarration(imgPrompt, srtText string) string {
	if imgPrompt == "" || srtText == "" {
		return imgPrompt
	}
	words := strings.Fields(srtText)
	if len(words) < 5 {
		return imgPrompt
	}

	sentences := splitSentences(imgPrompt)
	lowerWords := make([]string, len(words))
	for i, w := range words {
		lowerWords[i] = strings.ToLower(w)
	}

	kept := sentences[:0:0]
	for _, sentence := range sentences {
		lowerSentence := strings.ToLower(sentence)
		if containsNarrationPhrase(lowerSentence, lowerWords) {
			continue
		}
		kept = append(kept, sentence)
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

func containsNarrationPhrase(lowerSentence string, lowerWords []string) bool {
	for i := 0; i+5 <= len(lowerWords); i++ {
		phrase := strings.Join(lowerWords[i:i+5], " ")
		if strings.Contains(lowerSentence, phrase) {
			return true
		}
	}
	return false
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if next := i + 1; next < len(text) && text[next] != ' ' && text[next] != '\n' && text[next] != '\t' {
				continue
			}
			out = append(out, strings.TrimSpace(text[start:i+1]))
			start = i + 1
		}
	}
	if start < len(text) {
		if rest := strings.TrimSpace(text[start:]); rest != "" {
			out = append(out, rest)
		}
	}
	return out
}

// FallbackSceneID formats a stable scene ID for a 1-based ordinal,
// matching the scene_NNN convention used across the workbook.
func FallbackSceneID(ordinal int) string {
	return "scene_" + pad3(ordinal)
}

func pad3(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}
