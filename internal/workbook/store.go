package workbook

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/xuri/excelize/v2"
)

// Store is the typed, checkpointed workbook persistence layer. Within a
// run only the Stage Runner writes it, and only between stages; the
// underlying file is held exclusively by one pipeline instance for the
// lifetime of the Store (spec.md §5).
type Store struct {
	path string
	file *excelize.File
	lock *flock.Flock
}

// Open opens an existing workbook or creates a new one at path,
// acquiring an exclusive file lock for the lifetime of the returned
// Store. Two pipeline instances can never hold the same workbook open
// for write at once.
func Open(path string) (*Store, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("workbook: acquire lock for %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("workbook: %s is already open by another pipeline instance", path)
	}

	store := &Store{path: path, lock: lock}

	if _, statErr := os.Stat(path); statErr == nil {
		f, openErr := excelize.OpenFile(path)
		if openErr != nil {
			_ = lock.Unlock()
			return nil, fmt.Errorf("workbook: open %s: %w", path, openErr)
		}
		if verErr := verifySchemaVersion(f); verErr != nil {
			_ = lock.Unlock()
			return nil, verErr
		}
		store.file = f
		return store, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("workbook: create directory for %s: %w", path, err)
	}
	store.file = newEmptyWorkbook()
	if err := store.persist(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

// Close releases the workbook's file lock. It does not persist pending
// changes; callers must call a Write*/persist path before Close.
func (s *Store) Close() error {
	if s.lock != nil {
		return s.lock.Unlock()
	}
	return nil
}

// Path returns the workbook's on-disk location.
func (s *Store) Path() string { return s.path }

func newEmptyWorkbook() *excelize.File {
	f := excelize.NewFile()
	defaultSheet := f.GetSheetName(0)

	_, _ = f.NewSheet(SheetMeta)
	_ = f.SetSheetRow(SheetMeta, "A1", &[]string{"schema_version", "completed_stages"})
	_ = f.SetSheetRow(SheetMeta, "A2", &[]string{strconv.Itoa(SchemaVersion), ""})

	for _, sheet := range []struct {
		name    string
		columns []string
	}{
		{SheetStoryAnalysis, storyAnalysisColumns},
		{SheetSegments, segmentColumns},
		{SheetCharacters, characterColumns},
		{SheetLocations, locationColumns},
		{SheetDirectorPlan, directorPlanColumns},
		{SheetScenePlanning, scenePlanningColumns},
		{SheetScenes, sceneColumns},
	} {
		_, _ = f.NewSheet(sheet.name)
		writeHeader(f, sheet.name, sheet.columns)
	}

	_ = f.DeleteSheet(defaultSheet)
	return f
}

func writeHeader(f *excelize.File, sheet string, columns []string) {
	header := make([]string, len(columns))
	copy(header, columns)
	_ = f.SetSheetRow(sheet, "A1", &header)
}

func verifySchemaVersion(f *excelize.File) error {
	rows, err := f.GetRows(SheetMeta)
	if err != nil {
		return fmt.Errorf("workbook: missing meta sheet: %w", err)
	}
	if len(rows) < 2 {
		return fmt.Errorf("workbook: meta sheet has no schema_version row")
	}
	version, err := strconv.Atoi(cell(rows[1], 0))
	if err != nil {
		return fmt.Errorf("workbook: unreadable schema_version: %w", err)
	}
	if version > SchemaVersion {
		return fmt.Errorf("workbook: schema_version %d is newer than this build supports (%d)", version, SchemaVersion)
	}
	return nil
}

// persist writes the entire in-memory workbook to a temp file and
// renames it over s.path — a whole-file atomic replace. Since an .xlsx
// has no independently addressable per-sheet storage, this is the
// atomic unit spec.md §4.2/§5 requires: it is only called after a
// stage's validator has accepted the sheet being written.
func (s *Store) persist() error {
	ext := filepath.Ext(s.path)
	tmp := strings.TrimSuffix(s.path, ext) + ".tmp" + ext
	if err := s.file.SaveAs(tmp); err != nil {
		return fmt.Errorf("workbook: write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("workbook: atomic replace %s: %w", s.path, err)
	}
	return nil
}

// MarkStageComplete records name in the meta sheet's completed_stages
// list and persists the workbook. Stage handlers whose output sheet
// cannot distinguish "not yet run" from "ran and produced nothing"
// (characters, locations) rely on this marker for completeness checks.
func (s *Store) MarkStageComplete(name string) error {
	stages, err := s.CompletedStages()
	if err != nil {
		return err
	}
	for _, existing := range stages {
		if existing == name {
			return nil
		}
	}
	stages = append(stages, name)
	if err := s.file.SetCellValue(SheetMeta, "B2", joinList(stages)); err != nil {
		return fmt.Errorf("workbook: mark stage complete: %w", err)
	}
	return s.persist()
}

// IsStageComplete reports whether MarkStageComplete(name) has been
// called for this workbook.
func (s *Store) IsStageComplete(name string) (bool, error) {
	stages, err := s.CompletedStages()
	if err != nil {
		return false, err
	}
	for _, existing := range stages {
		if existing == name {
			return true, nil
		}
	}
	return false, nil
}

// CompletedStages returns the meta sheet's recorded stage-completion list.
func (s *Store) CompletedStages() ([]string, error) {
	value, err := s.file.GetCellValue(SheetMeta, "B2")
	if err != nil {
		return nil, fmt.Errorf("workbook: read completed_stages: %w", err)
	}
	return cellList([]string{"", value}, 1), nil
}

// SheetExists reports whether a sheet is present in the workbook.
func (s *Store) SheetExists(name string) bool {
	idx, err := s.file.GetSheetIndex(name)
	return (err == nil && idx != -1) || sheetHasAnyName(s.file, name)
}

func sheetHasAnyName(f *excelize.File, name string) bool {
	for _, n := range f.GetSheetList() {
		if n == name {
			return true
		}
	}
	return false
}

// readRows returns every data row (header excluded) of sheet.
func (s *Store) readRows(sheet string) ([][]string, error) {
	rows, err := s.file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("workbook: read sheet %s: %w", sheet, err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

// writeRows replaces sheet's entire body (header plus every data row)
// and persists the workbook atomically.
func (s *Store) writeRows(sheet string, columns []string, rows [][]string) error {
	if err := s.file.DeleteSheet(sheet); err != nil {
		return fmt.Errorf("workbook: reset sheet %s: %w", sheet, err)
	}
	if _, err := s.file.NewSheet(sheet); err != nil {
		return fmt.Errorf("workbook: recreate sheet %s: %w", sheet, err)
	}
	writeHeader(s.file, sheet, columns)
	for i, row := range rows {
		rowCopy := make([]string, len(row))
		copy(rowCopy, row)
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("workbook: compute cell reference: %w", err)
		}
		if err := s.file.SetSheetRow(sheet, cellRef, &rowCopy); err != nil {
			return fmt.Errorf("workbook: write row %d of %s: %w", i, sheet, err)
		}
	}
	return s.persist()
}
