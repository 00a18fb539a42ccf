package workbook

// ReadStoryAnalysis returns the single story-analysis row, and false if
// the sheet is empty (Stage 1 has not run yet).
func (s *Store) ReadStoryAnalysis() (StoryAnalysis, bool, error) {
	rows, err := s.readRows(SheetStoryAnalysis)
	if err != nil {
		return StoryAnalysis{}, false, err
	}
	if len(rows) == 0 {
		return StoryAnalysis{}, false, nil
	}
	return storyAnalysisFromRow(rows[0]), true, nil
}

// WriteStoryAnalysis replaces the story-analysis sheet with exactly one row.
func (s *Store) WriteStoryAnalysis(analysis StoryAnalysis) error {
	return s.writeRows(SheetStoryAnalysis, storyAnalysisColumns, [][]string{storyAnalysisToRow(analysis)})
}

// ReadSegments returns every segment, in stored order.
func (s *Store) ReadSegments() ([]Segment, error) {
	rows, err := s.readRows(SheetSegments)
	if err != nil {
		return nil, err
	}
	out := make([]Segment, len(rows))
	for i, row := range rows {
		out[i] = segmentFromRow(row)
	}
	return out, nil
}

// WriteSegments replaces the segments sheet.
func (s *Store) WriteSegments(segments []Segment) error {
	rows := make([][]string, len(segments))
	for i, seg := range segments {
		rows[i] = segmentToRow(seg)
	}
	return s.writeRows(SheetSegments, segmentColumns, rows)
}

// ReadCharacters returns every character, in stored (assignment) order.
func (s *Store) ReadCharacters() ([]Character, error) {
	rows, err := s.readRows(SheetCharacters)
	if err != nil {
		return nil, err
	}
	out := make([]Character, len(rows))
	for i, row := range rows {
		out[i] = characterFromRow(row)
	}
	return out, nil
}

// WriteCharacters replaces the characters sheet (append-only lifecycle;
// callers pass the full accumulated list).
func (s *Store) WriteCharacters(characters []Character) error {
	rows := make([][]string, len(characters))
	for i, c := range characters {
		rows[i] = characterToRow(c)
	}
	return s.writeRows(SheetCharacters, characterColumns, rows)
}

// ReadLocations returns every location, in stored (assignment) order.
func (s *Store) ReadLocations() ([]Location, error) {
	rows, err := s.readRows(SheetLocations)
	if err != nil {
		return nil, err
	}
	out := make([]Location, len(rows))
	for i, row := range rows {
		out[i] = locationFromRow(row)
	}
	return out, nil
}

// WriteLocations replaces the locations sheet.
func (s *Store) WriteLocations(locations []Location) error {
	rows := make([][]string, len(locations))
	for i, l := range locations {
		rows[i] = locationToRow(l)
	}
	return s.writeRows(SheetLocations, locationColumns, rows)
}

// ReadDirectorPlan returns every director-plan entry, in stored order
// (stable ordering by srt_start_index per spec.md §4.5.5).
func (s *Store) ReadDirectorPlan() ([]DirectorPlanEntry, error) {
	rows, err := s.readRows(SheetDirectorPlan)
	if err != nil {
		return nil, err
	}
	out := make([]DirectorPlanEntry, len(rows))
	for i, row := range rows {
		out[i] = directorPlanFromRow(row)
	}
	return out, nil
}

// WriteDirectorPlan replaces the director_plan sheet.
func (s *Store) WriteDirectorPlan(entries []DirectorPlanEntry) error {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = directorPlanToRow(e)
	}
	return s.writeRows(SheetDirectorPlan, directorPlanColumns, rows)
}

// ReadScenePlanning returns every scene-planning row.
func (s *Store) ReadScenePlanning() ([]ScenePlan, error) {
	rows, err := s.readRows(SheetScenePlanning)
	if err != nil {
		return nil, err
	}
	out := make([]ScenePlan, len(rows))
	for i, row := range rows {
		out[i] = scenePlanningFromRow(row)
	}
	return out, nil
}

// WriteScenePlanning replaces the scene_planning sheet.
func (s *Store) WriteScenePlanning(plans []ScenePlan) error {
	rows := make([][]string, len(plans))
	for i, p := range plans {
		rows[i] = scenePlanningToRow(p)
	}
	return s.writeRows(SheetScenePlanning, scenePlanningColumns, rows)
}

// ReadScenes returns every finished scene row.
func (s *Store) ReadScenes() ([]Scene, error) {
	rows, err := s.readRows(SheetScenes)
	if err != nil {
		return nil, err
	}
	out := make([]Scene, len(rows))
	for i, row := range rows {
		out[i] = sceneFromRow(row)
	}
	return out, nil
}

// WriteScenes replaces the scenes sheet. Stage 7 resumes by reading the
// existing scenes, appending newly synthesized ones, and calling this
// with the combined list — prior rows are carried through unchanged, so
// a second full run reproduces a bit-identical sheet.
func (s *Store) WriteScenes(scenes []Scene) error {
	rows := make([][]string, len(scenes))
	for i, sc := range scenes {
		rows[i] = sceneToRow(sc)
	}
	return s.writeRows(SheetScenes, sceneColumns, rows)
}
