package memoryRepo

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"spreadsheet-service/internal/model/sheetdata"
	"spreadsheet-service/internal/repository"
	"spreadsheet-service/pkg/apperr"
)

// Sparse grid store over a per-sheet map keyed by (row, col).

func (s *Store) GetCell(ctx context.Context, sheetID uuid.UUID, row, col int) (*sheetdata.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if value, ok := s.cells[sheetID][repository.CellRef{Row: row, Col: col}]; ok {
		return &sheetdata.Cell{SheetID: sheetID, RowIndex: row, ColumnIndex: col, Value: value}, nil
	}
	return nil, nil
}

func (s *Store) UpsertCell(ctx context.Context, sheetID uuid.UUID, row, col int, value string) error {
	if value == "" {
		return apperr.InvalidArgument("cell value must be non-blank")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(sheetID, row, col, value)
	return nil
}

func (s *Store) RemoveCell(ctx context.Context, sheetID uuid.UUID, row, col int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(sheetID, row, col)
	return nil
}

func (s *Store) RowCells(ctx context.Context, sheetID uuid.UUID, row int) ([]sheetdata.Cell, error) {
	return s.selectCells(sheetID, func(ref repository.CellRef) bool { return ref.Row == row }), nil
}

func (s *Store) ColumnCells(ctx context.Context, sheetID uuid.UUID, col int) ([]sheetdata.Cell, error) {
	return s.selectCells(sheetID, func(ref repository.CellRef) bool { return ref.Col == col }), nil
}

func (s *Store) CellsBelowRow(ctx context.Context, sheetID uuid.UUID, row int) ([]sheetdata.Cell, error) {
	return s.selectCells(sheetID, func(ref repository.CellRef) bool { return ref.Row > row }), nil
}

func (s *Store) CellsFromColumn(ctx context.Context, sheetID uuid.UUID, col int) ([]sheetdata.Cell, error) {
	return s.selectCells(sheetID, func(ref repository.CellRef) bool { return ref.Col >= col }), nil
}

func (s *Store) CellsAfterColumn(ctx context.Context, sheetID uuid.UUID, col int) ([]sheetdata.Cell, error) {
	return s.selectCells(sheetID, func(ref repository.CellRef) bool { return ref.Col > col }), nil
}

func (s *Store) AllCells(ctx context.Context, sheetID uuid.UUID) ([]sheetdata.Cell, error) {
	return s.selectCells(sheetID, func(repository.CellRef) bool { return true }), nil
}

func (s *Store) MaxRowIndex(ctx context.Context, sheetID uuid.UUID) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grid, ok := s.cells[sheetID]
	if !ok || len(grid) == 0 {
		return 0, false, nil
	}
	max := 0
	for ref := range grid {
		if ref.Row > max {
			max = ref.Row
		}
	}
	return max, true, nil
}

func (s *Store) DeleteSheetCells(ctx context.Context, sheetID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cells, sheetID)
	return nil
}

// ApplyChanges applies removes before upserts under one lock, so the
// batch is indivisible for readers and shifted cells never collide
// with stale entries at their target address.
func (s *Store) ApplyChanges(ctx context.Context, sheetID uuid.UUID, removes []repository.CellRef, upserts []sheetdata.Cell) error {
	for _, cell := range upserts {
		if cell.Value == "" {
			return apperr.InvalidArgument("cell value must be non-blank")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ref := range removes {
		s.removeLocked(sheetID, ref.Row, ref.Col)
	}
	for _, cell := range upserts {
		s.upsertLocked(sheetID, cell.RowIndex, cell.ColumnIndex, cell.Value)
	}
	return nil
}

func (s *Store) upsertLocked(sheetID uuid.UUID, row, col int, value string) {
	grid, ok := s.cells[sheetID]
	if !ok {
		grid = make(map[repository.CellRef]string)
		s.cells[sheetID] = grid
	}
	grid[repository.CellRef{Row: row, Col: col}] = value
}

func (s *Store) removeLocked(sheetID uuid.UUID, row, col int) {
	delete(s.cells[sheetID], repository.CellRef{Row: row, Col: col})
}

func (s *Store) selectCells(sheetID uuid.UUID, match func(repository.CellRef) bool) []sheetdata.Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []sheetdata.Cell
	for ref, value := range s.cells[sheetID] {
		if match(ref) {
			out = append(out, sheetdata.Cell{SheetID: sheetID, RowIndex: ref.Row, ColumnIndex: ref.Col, Value: value})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RowIndex != out[j].RowIndex {
			return out[i].RowIndex < out[j].RowIndex
		}
		return out[i].ColumnIndex < out[j].ColumnIndex
	})
	return out
}
