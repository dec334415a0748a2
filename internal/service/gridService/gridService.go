package gridService

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"spreadsheet-service/internal/access"
	"spreadsheet-service/internal/model/sheetdata"
	"spreadsheet-service/internal/repository"
	"spreadsheet-service/pkg/apperr"
)

// CellChange is one entry of a batch cell update. A blank Value
// deletes the cell at that address.
type CellChange struct {
	Row   int
	Col   int
	Value string
}

// GridService implements the structural mutations of a sheet's sparse
// grid. Every operation authorizes EDIT on the owning spreadsheet and
// runs under that sheet's mutation lock, so read-shift-write sequences
// appear atomic to other mutations on the same sheet.
type GridService struct {
	sheets       repository.SheetStore
	spreadsheets repository.SpreadsheetStore
	cells        repository.CellStore
	gate         *access.Gate

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func New(sheets repository.SheetStore, spreadsheets repository.SpreadsheetStore, cells repository.CellStore, gate *access.Gate) *GridService {
	return &GridService{
		sheets:       sheets,
		spreadsheets: spreadsheets,
		cells:        cells,
		gate:         gate,
		locks:        make(map[uuid.UUID]*sync.Mutex),
	}
}

// lockSheet serializes mutations per sheet. Different sheets proceed
// concurrently.
func (s *GridService) lockSheet(sheetID uuid.UUID) func() {
	s.mu.Lock()
	lock, ok := s.locks[sheetID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sheetID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (s *GridService) editableSheet(ctx context.Context, sheetID uuid.UUID, userID uint32) (*sheetdata.Sheet, error) {
	sheet, err := s.sheets.GetSheet(ctx, sheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sheet: %w", err)
	}
	if sheet == nil {
		return nil, apperr.NotFound("sheet")
	}

	spreadsheet, err := s.spreadsheets.GetSpreadsheet(ctx, sheet.SpreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet: %w", err)
	}
	if spreadsheet == nil {
		return nil, apperr.NotFound("spreadsheet")
	}

	if err := s.gate.Authorize(ctx, spreadsheet, userID, sheetdata.LevelEdit); err != nil {
		return nil, err
	}
	return sheet, nil
}

// UpdateCells applies a batch of point updates. Duplicate addresses
// within one batch resolve last-write-wins by list order.
func (s *GridService) UpdateCells(ctx context.Context, sheetID uuid.UUID, changes []CellChange, userID uint32) error {
	sheet, err := s.editableSheet(ctx, sheetID, userID)
	if err != nil {
		return err
	}

	unlock := s.lockSheet(sheet.ID)
	defer unlock()

	final := make(map[repository.CellRef]string, len(changes))
	order := make([]repository.CellRef, 0, len(changes))
	for _, change := range changes {
		ref := repository.CellRef{Row: change.Row, Col: change.Col}
		if _, seen := final[ref]; !seen {
			order = append(order, ref)
		}
		final[ref] = change.Value
	}

	var removes []repository.CellRef
	var upserts []sheetdata.Cell
	for _, ref := range order {
		value := final[ref]
		if value == "" {
			removes = append(removes, ref)
		} else {
			upserts = append(upserts, sheetdata.Cell{SheetID: sheet.ID, RowIndex: ref.Row, ColumnIndex: ref.Col, Value: value})
		}
	}

	if err := s.cells.ApplyChanges(ctx, sheet.ID, removes, upserts); err != nil {
		return fmt.Errorf("failed to apply cell updates: %w", err)
	}
	return s.sheets.TouchSheet(ctx, sheet.ID, time.Now())
}

// ReplaceRow clears the row and writes the trimmed non-blank values.
func (s *GridService) ReplaceRow(ctx context.Context, sheetID uuid.UUID, row int, values []string, userID uint32) error {
	if row < 0 {
		return apperr.InvalidArgument("row index must be non-negative")
	}
	sheet, err := s.editableSheet(ctx, sheetID, userID)
	if err != nil {
		return err
	}

	unlock := s.lockSheet(sheet.ID)
	defer unlock()

	existing, err := s.cells.RowCells(ctx, sheet.ID, row)
	if err != nil {
		return fmt.Errorf("failed to read row: %w", err)
	}

	removes := refsOf(existing)
	upserts := rowUpserts(sheet.ID, row, values)

	if err := s.cells.ApplyChanges(ctx, sheet.ID, removes, upserts); err != nil {
		return fmt.Errorf("failed to replace row: %w", err)
	}
	return s.sheets.TouchSheet(ctx, sheet.ID, time.Now())
}

// AppendRow writes values at maxRowIndex+1 (or 0 on an empty sheet)
// and returns the assigned row index.
func (s *GridService) AppendRow(ctx context.Context, sheetID uuid.UUID, values []string, userID uint32) (int, error) {
	sheet, err := s.editableSheet(ctx, sheetID, userID)
	if err != nil {
		return 0, err
	}

	unlock := s.lockSheet(sheet.ID)
	defer unlock()

	newRow, err := s.nextRowIndex(ctx, sheet.ID)
	if err != nil {
		return 0, err
	}

	if err := s.cells.ApplyChanges(ctx, sheet.ID, nil, rowUpserts(sheet.ID, newRow, values)); err != nil {
		return 0, fmt.Errorf("failed to append row: %w", err)
	}
	if err := s.sheets.TouchSheet(ctx, sheet.ID, time.Now()); err != nil {
		return 0, err
	}
	return newRow, nil
}

// AppendRows writes each row at consecutive indices in input order.
// A fully blank row still consumes one row index. Returns the count
// of rows appended.
func (s *GridService) AppendRows(ctx context.Context, sheetID uuid.UUID, rows [][]string, userID uint32) (int, error) {
	sheet, err := s.editableSheet(ctx, sheetID, userID)
	if err != nil {
		return 0, err
	}

	unlock := s.lockSheet(sheet.ID)
	defer unlock()

	startRow, err := s.nextRowIndex(ctx, sheet.ID)
	if err != nil {
		return 0, err
	}

	var upserts []sheetdata.Cell
	for i, values := range rows {
		upserts = append(upserts, rowUpserts(sheet.ID, startRow+i, values)...)
	}

	if err := s.cells.ApplyChanges(ctx, sheet.ID, nil, upserts); err != nil {
		return 0, fmt.Errorf("failed to append rows: %w", err)
	}
	if err := s.sheets.TouchSheet(ctx, sheet.ID, time.Now()); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// DeleteRows removes count rows starting at startRow and shifts every
// cell below the deleted block up by count. The block is cleared in
// the same batch, before the shifted cells land, so the decremented
// addresses can never collide with a pre-existing cell.
func (s *GridService) DeleteRows(ctx context.Context, sheetID uuid.UUID, startRow, count int, userID uint32) error {
	if startRow < 0 || count < 1 {
		return apperr.InvalidArgument("invalid row range")
	}
	sheet, err := s.editableSheet(ctx, sheetID, userID)
	if err != nil {
		return err
	}

	unlock := s.lockSheet(sheet.ID)
	defer unlock()

	var removes []repository.CellRef
	for i := 0; i < count; i++ {
		rowCells, err := s.cells.RowCells(ctx, sheet.ID, startRow+i)
		if err != nil {
			return fmt.Errorf("failed to read row: %w", err)
		}
		removes = append(removes, refsOf(rowCells)...)
	}

	below, err := s.cells.CellsBelowRow(ctx, sheet.ID, startRow+count-1)
	if err != nil {
		return fmt.Errorf("failed to read rows below: %w", err)
	}

	var upserts []sheetdata.Cell
	for _, cell := range below {
		removes = append(removes, repository.CellRef{Row: cell.RowIndex, Col: cell.ColumnIndex})
		cell.RowIndex -= count
		upserts = append(upserts, cell)
	}

	if err := s.cells.ApplyChanges(ctx, sheet.ID, removes, upserts); err != nil {
		return fmt.Errorf("failed to delete rows: %w", err)
	}
	return s.sheets.TouchSheet(ctx, sheet.ID, time.Now())
}

// InsertColumn shifts every cell at colIndex or beyond one column to
// the right, then writes the trimmed non-blank values into the freed
// column. The full target set is computed before anything moves.
func (s *GridService) InsertColumn(ctx context.Context, sheetID uuid.UUID, colIndex int, values []string, userID uint32) error {
	if colIndex < 0 {
		return apperr.InvalidArgument("column index must be non-negative")
	}
	sheet, err := s.editableSheet(ctx, sheetID, userID)
	if err != nil {
		return err
	}

	unlock := s.lockSheet(sheet.ID)
	defer unlock()

	shifted, err := s.cells.CellsFromColumn(ctx, sheet.ID, colIndex)
	if err != nil {
		return fmt.Errorf("failed to read columns: %w", err)
	}

	var removes []repository.CellRef
	var upserts []sheetdata.Cell
	for _, cell := range shifted {
		removes = append(removes, repository.CellRef{Row: cell.RowIndex, Col: cell.ColumnIndex})
		cell.ColumnIndex++
		upserts = append(upserts, cell)
	}

	for row, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		upserts = append(upserts, sheetdata.Cell{SheetID: sheet.ID, RowIndex: row, ColumnIndex: colIndex, Value: trimmed})
	}

	if err := s.cells.ApplyChanges(ctx, sheet.ID, removes, upserts); err != nil {
		return fmt.Errorf("failed to insert column: %w", err)
	}
	return s.sheets.TouchSheet(ctx, sheet.ID, time.Now())
}

// DeleteColumn removes the column and shifts every cell to its right
// one column left.
func (s *GridService) DeleteColumn(ctx context.Context, sheetID uuid.UUID, colIndex int, userID uint32) error {
	if colIndex < 0 {
		return apperr.InvalidArgument("column index must be non-negative")
	}
	sheet, err := s.editableSheet(ctx, sheetID, userID)
	if err != nil {
		return err
	}

	unlock := s.lockSheet(sheet.ID)
	defer unlock()

	deleted, err := s.cells.ColumnCells(ctx, sheet.ID, colIndex)
	if err != nil {
		return fmt.Errorf("failed to read column: %w", err)
	}
	removes := refsOf(deleted)

	after, err := s.cells.CellsAfterColumn(ctx, sheet.ID, colIndex)
	if err != nil {
		return fmt.Errorf("failed to read columns after: %w", err)
	}

	var upserts []sheetdata.Cell
	for _, cell := range after {
		removes = append(removes, repository.CellRef{Row: cell.RowIndex, Col: cell.ColumnIndex})
		cell.ColumnIndex--
		upserts = append(upserts, cell)
	}

	if err := s.cells.ApplyChanges(ctx, sheet.ID, removes, upserts); err != nil {
		return fmt.Errorf("failed to delete column: %w", err)
	}
	return s.sheets.TouchSheet(ctx, sheet.ID, time.Now())
}

// DeleteSheet removes a sheet with its cells and renumbers the
// remaining sheets' order indices densely from 0. Deleting the last
// remaining sheet of a spreadsheet is rejected.
func (s *GridService) DeleteSheet(ctx context.Context, sheetID uuid.UUID, userID uint32) error {
	sheet, err := s.editableSheet(ctx, sheetID, userID)
	if err != nil {
		return err
	}

	unlock := s.lockSheet(sheet.ID)
	defer unlock()

	count, err := s.sheets.CountSheets(ctx, sheet.SpreadsheetID)
	if err != nil {
		return fmt.Errorf("failed to count sheets: %w", err)
	}
	if count <= 1 {
		return apperr.InvalidState("cannot delete the last sheet in a spreadsheet")
	}

	if err := s.cells.DeleteSheetCells(ctx, sheet.ID); err != nil {
		return fmt.Errorf("failed to delete sheet cells: %w", err)
	}
	if err := s.sheets.DeleteSheet(ctx, sheet.ID); err != nil {
		return fmt.Errorf("failed to delete sheet: %w", err)
	}

	remaining, err := s.sheets.ListSheets(ctx, sheet.SpreadsheetID)
	if err != nil {
		return fmt.Errorf("failed to list remaining sheets: %w", err)
	}
	for i, remainingSheet := range remaining {
		if remainingSheet.OrderIndex == i {
			continue
		}
		if err := s.sheets.UpdateSheetOrder(ctx, remainingSheet.ID, i); err != nil {
			return fmt.Errorf("failed to renumber sheet: %w", err)
		}
	}

	if err := s.spreadsheets.TouchSpreadsheet(ctx, sheet.SpreadsheetID, time.Now()); err != nil {
		return err
	}

	s.forgetLock(sheet.ID)
	return nil
}

// forgetLock drops a deleted sheet's mutex so the lock map does not
// grow without bound.
func (s *GridService) forgetLock(sheetID uuid.UUID) {
	s.mu.Lock()
	delete(s.locks, sheetID)
	s.mu.Unlock()
}

func (s *GridService) nextRowIndex(ctx context.Context, sheetID uuid.UUID) (int, error) {
	maxRow, ok, err := s.cells.MaxRowIndex(ctx, sheetID)
	if err != nil {
		return 0, fmt.Errorf("failed to find max row index: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return maxRow + 1, nil
}

func rowUpserts(sheetID uuid.UUID, row int, values []string) []sheetdata.Cell {
	var upserts []sheetdata.Cell
	for col, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		upserts = append(upserts, sheetdata.Cell{SheetID: sheetID, RowIndex: row, ColumnIndex: col, Value: trimmed})
	}
	return upserts
}

func refsOf(cells []sheetdata.Cell) []repository.CellRef {
	refs := make([]repository.CellRef, 0, len(cells))
	for _, cell := range cells {
		refs = append(refs, repository.CellRef{Row: cell.RowIndex, Col: cell.ColumnIndex})
	}
	return refs
}
