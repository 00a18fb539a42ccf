package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scenepipe/internal/coverage"
	"scenepipe/internal/workbook"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-stage completeness for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if project == "" {
				return fmt.Errorf("status: --project is required")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			path := cfg.WorkbookPath(project)
			if _, statErr := os.Stat(path); statErr != nil {
				return fmt.Errorf("status: no workbook found for project %s at %s", project, path)
			}

			store, err := workbook.Open(path)
			if err != nil {
				return fmt.Errorf("status: open workbook: %w", err)
			}
			defer store.Close()

			rows, err := statusRows(store)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Stage", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project code to inspect")
	return cmd
}

func statusRows(store *workbook.Store) ([][]string, error) {
	var rows [][]string

	analysis, ok, err := store.ReadStoryAnalysis()
	if err != nil {
		return nil, fmt.Errorf("status: read story analysis: %w", err)
	}
	rows = append(rows, []string{"story_analysis", stageStatus(ok), analysis.Genre})

	segments, err := store.ReadSegments()
	if err != nil {
		return nil, fmt.Errorf("status: read segments: %w", err)
	}
	segDetail := fmt.Sprintf("%d segments", len(segments))
	if maxIndex := maxSegmentIndex(segments); maxIndex > 0 {
		gaps := coverage.Gaps(segmentIntervals(segments), maxIndex)
		if len(gaps) > 0 {
			segDetail = fmt.Sprintf("%s, %d gap(s)", segDetail, len(gaps))
		}
	}
	rows = append(rows, []string{"segmentation", stageStatus(len(segments) > 0), segDetail})

	charsDone, err := store.IsStageComplete("characters")
	if err != nil {
		return nil, fmt.Errorf("status: read characters marker: %w", err)
	}
	characters, err := store.ReadCharacters()
	if err != nil {
		return nil, fmt.Errorf("status: read characters: %w", err)
	}
	rows = append(rows, []string{"characters", stageStatus(charsDone), fmt.Sprintf("%d characters", len(characters))})

	locsDone, err := store.IsStageComplete("locations")
	if err != nil {
		return nil, fmt.Errorf("status: read locations marker: %w", err)
	}
	locations, err := store.ReadLocations()
	if err != nil {
		return nil, fmt.Errorf("status: read locations: %w", err)
	}
	rows = append(rows, []string{"locations", stageStatus(locsDone), fmt.Sprintf("%d locations", len(locations))})

	plan, err := store.ReadDirectorPlan()
	if err != nil {
		return nil, fmt.Errorf("status: read director plan: %w", err)
	}
	planDetail := fmt.Sprintf("%d entries", len(plan))
	if maxIndex := maxPlanIndex(plan); maxIndex > 0 {
		gaps := coverage.Gaps(planIntervals(plan), maxIndex)
		if len(gaps) > 0 {
			planDetail = fmt.Sprintf("%s, %d gap(s)", planDetail, len(gaps))
		}
	}
	rows = append(rows, []string{"director_plan", stageStatus(len(plan) > 0), planDetail})

	plans, err := store.ReadScenePlanning()
	if err != nil {
		return nil, fmt.Errorf("status: read scene planning: %w", err)
	}
	rows = append(rows, []string{"scene_planning", stageStatus(len(plans) >= len(plan) && len(plan) > 0), fmt.Sprintf("%d/%d planned", len(plans), len(plan))})

	scenes, err := store.ReadScenes()
	if err != nil {
		return nil, fmt.Errorf("status: read scenes: %w", err)
	}
	rows = append(rows, []string{"scene_prompts", stageStatus(len(scenes) >= len(plan) && len(plan) > 0), fmt.Sprintf("%d/%d prompted", len(scenes), len(plan))})

	return rows, nil
}

func stageStatus(complete bool) string {
	if complete {
		return "complete"
	}
	return "pending"
}

func maxSegmentIndex(segments []workbook.Segment) int {
	max := 0
	for _, s := range segments {
		if s.SRTEndIndex > max {
			max = s.SRTEndIndex
		}
	}
	return max
}

func segmentIntervals(segments []workbook.Segment) []coverage.Interval {
	intervals := make([]coverage.Interval, len(segments))
	for i, s := range segments {
		intervals[i] = coverage.Interval{Start: s.SRTStartIndex, End: s.SRTEndIndex}
	}
	return intervals
}

func maxPlanIndex(plan []workbook.DirectorPlanEntry) int {
	max := 0
	for _, e := range plan {
		if e.SRTEndIndex > max {
			max = e.SRTEndIndex
		}
	}
	return max
}

func planIntervals(plan []workbook.DirectorPlanEntry) []coverage.Interval {
	intervals := make([]coverage.Interval, len(plan))
	for i, e := range plan {
		intervals[i] = coverage.Interval{Start: e.SRTStartIndex, End: e.SRTEndIndex}
	}
	return intervals
}
