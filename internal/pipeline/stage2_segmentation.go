package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"

	"scenepipe/internal/coverage"
	"scenepipe/internal/llm"
	"scenepipe/internal/pipelineerr"
	"scenepipe/internal/srt"
	"scenepipe/internal/workbook"
)

const segmentationPrompt = `You are a video editor splitting narration into visual segments. The story's genre is %q, mood is %q. Given the numbered narration lines below, return a JSON object {"segments": [{"name": "...", "srt_start_index": N, "srt_end_index": N, "image_count": N}, ...]} that partitions all line indices from %d to %d without gap or overlap.

NARRATION LINES:
%s`

const segmentSplitPrompt = `You are a video editor. The following narration slice (SRT indices %d-%d) needs finer segmentation. Return JSON {"segments": [{"name": "...", "srt_start_index": N, "srt_end_index": N, "image_count": N}, ...]} covering exactly this range without gap or overlap.

NARRATION LINES:
%s`

const gapFillSegmentPrompt = `You are a video editor. The following narration slice (SRT indices %d-%d) was left unsegmented. Return JSON {"segments": [{"name": "...", "srt_start_index": N, "srt_end_index": N, "image_count": N}, ...]} covering exactly this range without gap or overlap.

NARRATION LINES:
%s`

type segmentationResponse struct {
	Segments []segmentJSON `json:"segments"`
}

type segmentJSON struct {
	Name          string `json:"name"`
	SRTStartIndex int    `json:"srt_start_index"`
	SRTEndIndex   int    `json:"srt_end_index"`
	ImageCount    int    `json:"image_count"`
}

const maxValidationADepth = 3

func segmentationComplete(st *State) (bool, error) {
	segments, err := st.Store.ReadSegments()
	if err != nil {
		return false, err
	}
	if len(segments) == 0 {
		return false, nil
	}
	return coverage.IsPartition(segmentIntervals(segments), len(st.Entries)), nil
}

// SegmentationStage implements spec.md's Stage 2: one LLM call for the
// initial split, then Validation A (disproportion repair, recursive to
// depth 3) and Validation B (gap repair via the Coverage Validator)
// until the segment sheet exactly partitions [1..N].
type SegmentationStage struct{}

func (SegmentationStage) Prepare(_ context.Context, st *State) error {
	analysis, ok, err := st.Store.ReadStoryAnalysis()
	if err != nil {
		return err
	}
	if !ok {
		return pipelineerr.Wrap(pipelineerr.ErrInputInvalid, "segmentation", "prepare", "story analysis missing", nil)
	}
	_ = analysis
	return nil
}

func (s SegmentationStage) Execute(ctx context.Context, st *State) error {
	analysis, _, err := st.Store.ReadStoryAnalysis()
	if err != nil {
		return err
	}
	n := len(st.Entries)

	numbered := numberedLines(st.Entries)
	prompt := fmt.Sprintf(segmentationPrompt, analysis.Genre, analysis.Mood, 1, n, numbered)
	raw, err := s.callSegmentation(ctx, st, prompt)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrTerminal, "segmentation", "complete", "initial segmentation call failed", err)
	}

	segments, err := s.validationA(ctx, st, raw, 0)
	if err != nil {
		return err
	}

	segments, err = s.validationB(ctx, st, segments)
	if err != nil {
		return err
	}

	assignSegmentIDs(segments)
	return st.Store.WriteSegments(segments)
}

func (SegmentationStage) HealthCheck(_ context.Context, st *State) Health {
	return Health{Name: "segmentation", Healthy: st.LLM != nil}
}

func (SegmentationStage) callSegmentation(ctx context.Context, st *State, prompt string) ([]segmentJSON, error) {
	text, err := st.LLM.Complete(ctx, prompt, 0.4, 2000)
	if err != nil {
		return nil, err
	}
	var resp segmentationResponse
	if err := llm.DecodeLLMJSON(text, &resp); err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.ErrParse, "segmentation", "decode", "could not parse segmentation JSON", err)
	}
	return resp.Segments, nil
}

// validationA applies spec.md §4.5.2's disproportion policy per
// segment: ratio <= 15 accepted, 15 < ratio <= 30 split locally into
// ceil(ratio/10) equal sub-segments, ratio > 30 re-invokes the LLM on
// just that segment's slice, recursing up to maxValidationADepth.
func (s SegmentationStage) validationA(ctx context.Context, st *State, raw []segmentJSON, depth int) ([]workbook.Segment, error) {
	var out []workbook.Segment
	for _, seg := range raw {
		length := seg.SRTEndIndex - seg.SRTStartIndex + 1
		if length <= 0 {
			continue
		}
		imageCount := seg.ImageCount
		if imageCount < 1 {
			imageCount = 1
		}
		ratio := float64(length) / float64(imageCount)

		switch {
		case ratio <= 15:
			out = append(out, workbook.Segment{
				Name:          seg.Name,
				SRTStartIndex: seg.SRTStartIndex,
				SRTEndIndex:   seg.SRTEndIndex,
				ImageCount:    imageCount,
			})
		case ratio <= 30:
			out = append(out, splitLocally(seg, length, ratio)...)
		default:
			if depth >= maxValidationADepth {
				out = append(out, splitLocally(seg, length, ratio)...)
				continue
			}
			slice := srt.Slice(st.Entries, seg.SRTStartIndex, seg.SRTEndIndex)
			prompt := fmt.Sprintf(segmentSplitPrompt, seg.SRTStartIndex, seg.SRTEndIndex, numberedLines(slice))
			subRaw, err := s.callSegmentation(ctx, st, prompt)
			if err != nil {
				return nil, pipelineerr.Wrap(pipelineerr.ErrTerminal, "segmentation", "validation_a", "recursive resplit call failed", err)
			}
			resolved, err := s.validationA(ctx, st, subRaw, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, resolved...)
		}
	}
	return out, nil
}

// splitLocally divides a disproportionate segment into ceil(ratio/10)
// equal-length sub-segments, each re-assigned image_count = ceil(len/10).
func splitLocally(seg segmentJSON, length int, ratio float64) []workbook.Segment {
	parts := int(math.Ceil(ratio / 10))
	if parts < 1 {
		parts = 1
	}
	base := length / parts
	remainder := length % parts

	var out []workbook.Segment
	cursor := seg.SRTStartIndex
	for i := 0; i < parts; i++ {
		subLen := base
		if i < remainder {
			subLen++
		}
		if subLen <= 0 {
			continue
		}
		end := cursor + subLen - 1
		out = append(out, workbook.Segment{
			Name:          fmt.Sprintf("%s (part %d)", seg.Name, i+1),
			SRTStartIndex: cursor,
			SRTEndIndex:   end,
			ImageCount:    int(math.Ceil(float64(subLen) / 10)),
		})
		cursor = end + 1
	}
	return out
}

// validationB repairs coverage gaps: for every uncovered run, it issues
// a scoped LLM call to produce replacement segments, recomputing
// image_count = ceil(length/10) per returned segment, repeating until
// the partition invariant holds.
func (s SegmentationStage) validationB(ctx context.Context, st *State, segments []workbook.Segment) ([]workbook.Segment, error) {
	n := len(st.Entries)
	for attempt := 0; attempt < maxValidationADepth+1; attempt++ {
		gaps := coverage.Gaps(segmentIntervals(segments), n)
		if len(gaps) == 0 {
			return segments, nil
		}
		for _, gap := range gaps {
			slice := srt.Slice(st.Entries, gap.Start, gap.End)
			prompt := fmt.Sprintf(gapFillSegmentPrompt, gap.Start, gap.End, numberedLines(slice))
			raw, err := s.callSegmentation(ctx, st, prompt)
			if err != nil || len(raw) == 0 {
				length := gap.End - gap.Start + 1
				segments = append(segments, workbook.Segment{
					Name:          "AUTO SEGMENT",
					SRTStartIndex: gap.Start,
					SRTEndIndex:   gap.End,
					ImageCount:    int(math.Ceil(float64(length) / 10)),
				})
				continue
			}
			for _, seg := range raw {
				length := seg.SRTEndIndex - seg.SRTStartIndex + 1
				if length <= 0 {
					continue
				}
				segments = append(segments, workbook.Segment{
					Name:          seg.Name,
					SRTStartIndex: seg.SRTStartIndex,
					SRTEndIndex:   seg.SRTEndIndex,
					ImageCount:    int(math.Ceil(float64(length) / 10)),
				})
			}
		}
	}

	if !coverage.IsPartition(segmentIntervals(segments), n) {
		return nil, pipelineerr.Wrap(pipelineerr.ErrCoverageIrreparable, "segmentation", "validation_b", "gap repair did not converge within recursion budget", nil)
	}
	return segments, nil
}

func segmentIntervals(segments []workbook.Segment) []coverage.Interval {
	out := make([]coverage.Interval, len(segments))
	for i, seg := range segments {
		out[i] = coverage.Interval{Start: seg.SRTStartIndex, End: seg.SRTEndIndex}
	}
	return out
}

func assignSegmentIDs(segments []workbook.Segment) {
	sort.Slice(segments, func(i, j int) bool { return segments[i].SRTStartIndex < segments[j].SRTStartIndex })
	for i := range segments {
		segments[i].SegmentID = i + 1
	}
}

func numberedLines(entries []srt.Entry) string {
	out := ""
	for _, e := range entries {
		out += fmt.Sprintf("[%d] %s\n", e.Index, e.Text)
	}
	return out
}
