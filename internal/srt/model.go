// Package srt parses the subtitle format into an indexed, immutable
// sequence of timed text entries (spec.md's SRT Model, C3).
package srt

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"scenepipe/internal/pipelineerr"
)

// Entry is one subtitle cue. Index is 1-based and dense across the
// parsed file; StartMS/EndMS are milliseconds from the start of the
// media. Entries are immutable once parsed.
type Entry struct {
	Index   int
	StartMS int64
	EndMS   int64
	Text    string
}

// Parse reads path and returns its entries in ascending index order.
// It fails with pipelineerr.ErrInputInvalid if indices are
// non-sequential or a timestamp cannot be parsed.
func Parse(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.ErrInputInvalid, "srt", "read", path, err)
	}
	return ParseString(string(data))
}

// ParseString parses raw SRT content held in memory, normalizing to
// NFC and stripping a leading UTF-8 BOM first so the same accented
// source text always compares identically downstream (duplicate
// detection in Stage 7, prompt token matching in the Reference
// Resolver).
func ParseString(content string) ([]Entry, error) {
	normalized := norm.NFC.String(stripBOM(content))
	normalized = strings.ReplaceAll(normalized, "\r\n", "\n")

	blocks := splitBlocks(normalized)
	entries := make([]Entry, 0, len(blocks))

	for _, block := range blocks {
		entry, err := parseBlock(block)
		if err != nil {
			return nil, pipelineerr.Wrap(pipelineerr.ErrInputInvalid, "srt", "parse", "", err)
		}
		entries = append(entries, entry)
	}

	if err := validateSequence(entries); err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.ErrInputInvalid, "srt", "validate", "", err)
	}

	return entries, nil
}

// Serialize renders entries back into SRT text. Reparsing the result
// with Parse/ParseString yields an identical entry sequence.
func Serialize(entries []Entry) string {
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%d\n", e.Index)
		fmt.Fprintf(&b, "%s --> %s\n", formatTimestamp(e.StartMS), formatTimestamp(e.EndMS))
		b.WriteString(e.Text)
		b.WriteString("\n")
		if i != len(entries)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}

func splitBlocks(content string) []string {
	raw := strings.Split(strings.TrimSpace(content), "\n\n")
	blocks := make([]string, 0, len(raw))
	for _, block := range raw {
		trimmed := strings.TrimSpace(block)
		if trimmed != "" {
			blocks = append(blocks, trimmed)
		}
	}
	return blocks
}

func parseBlock(block string) (Entry, error) {
	lines := strings.Split(block, "\n")
	if len(lines) < 2 {
		return Entry{}, fmt.Errorf("cue block too short: %q", block)
	}

	index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return Entry{}, fmt.Errorf("parse cue index %q: %w", lines[0], err)
	}

	startMS, endMS, err := parseTimestampLine(lines[1])
	if err != nil {
		return Entry{}, err
	}

	text := strings.TrimSpace(strings.Join(lines[2:], "\n"))

	return Entry{Index: index, StartMS: startMS, EndMS: endMS, Text: text}, nil
}

func parseTimestampLine(line string) (int64, int64, error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed timestamp line %q", line)
	}
	start, err := parseTimestamp(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestamp(parts[1])
	if err != nil {
		return 0, 0, err
	}
	if start > end {
		return 0, 0, fmt.Errorf("start_ms %d after end_ms %d", start, end)
	}
	return start, end, nil
}

// parseTimestamp parses "HH:MM:SS,mmm" (or "HH:MM:SS.mmm") into
// milliseconds, generalizing the comma/period normalization the
// teacher's subtitle timestamp parser uses.
func parseTimestamp(raw string) (int64, error) {
	value := strings.TrimSpace(raw)
	value = strings.ReplaceAll(value, ".", ",")
	fields := strings.SplitN(value, ",", 2)
	if len(fields) != 2 {
		return 0, fmt.Errorf("malformed timestamp %q", raw)
	}
	hms := strings.Split(fields[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("malformed timestamp %q", raw)
	}
	hours, err := strconv.Atoi(hms[0])
	if err != nil {
		return 0, fmt.Errorf("parse hours in %q: %w", raw, err)
	}
	minutes, err := strconv.Atoi(hms[1])
	if err != nil {
		return 0, fmt.Errorf("parse minutes in %q: %w", raw, err)
	}
	seconds, err := strconv.Atoi(hms[2])
	if err != nil {
		return 0, fmt.Errorf("parse seconds in %q: %w", raw, err)
	}
	millis, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("parse milliseconds in %q: %w", raw, err)
	}
	total := int64(hours)*3600000 + int64(minutes)*60000 + int64(seconds)*1000 + int64(millis)
	return total, nil
}

func formatTimestamp(ms int64) string {
	hours := ms / 3600000
	ms -= hours * 3600000
	minutes := ms / 60000
	ms -= minutes * 60000
	seconds := ms / 1000
	millis := ms - seconds*1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}

func validateSequence(entries []Entry) error {
	for i, e := range entries {
		want := i + 1
		if e.Index != want {
			return fmt.Errorf("non-sequential index: expected %d, got %d", want, e.Index)
		}
		if e.StartMS > e.EndMS {
			return fmt.Errorf("entry %d: start_ms %d after end_ms %d", e.Index, e.StartMS, e.EndMS)
		}
		if i > 0 && e.StartMS < entries[i-1].StartMS {
			return fmt.Errorf("entry %d: start_ms out of order", e.Index)
		}
	}
	return nil
}

// FullText concatenates every entry's text, in order, separated by a
// single space, for stages that need the whole transcript as one prompt
// input (Story Analysis, Characters, Locations).
func FullText(entries []Entry) string {
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	return strings.Join(texts, " ")
}

// Slice returns the entries whose 1-based index lies within
// [startIndex, endIndex] inclusive.
func Slice(entries []Entry, startIndex, endIndex int) []Entry {
	out := make([]Entry, 0, endIndex-startIndex+1)
	for _, e := range entries {
		if e.Index >= startIndex && e.Index <= endIndex {
			out = append(out, e)
		}
	}
	return out
}

// ConcatText concatenates the text of entries within [startIndex, endIndex].
func ConcatText(entries []Entry, startIndex, endIndex int) string {
	return FullText(Slice(entries, startIndex, endIndex))
}

// Bounds returns (startMS, endMS) spanned by entries within
// [startIndex, endIndex], and false if the range matches no entries.
func Bounds(entries []Entry, startIndex, endIndex int) (int64, int64, bool) {
	slice := Slice(entries, startIndex, endIndex)
	if len(slice) == 0 {
		return 0, 0, false
	}
	start := slice[0].StartMS
	end := slice[0].EndMS
	for _, e := range slice[1:] {
		if e.StartMS < start {
			start = e.StartMS
		}
		if e.EndMS > end {
			end = e.EndMS
		}
	}
	return start, end, true
}
