package workbookService

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"spreadsheet-service/internal/access"
	"spreadsheet-service/internal/model/sheetdata"
	"spreadsheet-service/internal/repository"
	"spreadsheet-service/pkg/apperr"
)

// WorkbookService converts spreadsheets to and from xlsx workbooks.
// Only string values travel; formulas come back as their cached values.
type WorkbookService struct {
	spreadsheets repository.SpreadsheetStore
	sheets       repository.SheetStore
	cells        repository.CellStore
	users        repository.UserStore
	gate         *access.Gate
}

func New(
	spreadsheets repository.SpreadsheetStore,
	sheets repository.SheetStore,
	cells repository.CellStore,
	users repository.UserStore,
	gate *access.Gate,
) *WorkbookService {
	return &WorkbookService{
		spreadsheets: spreadsheets,
		sheets:       sheets,
		cells:        cells,
		users:        users,
		gate:         gate,
	}
}

// Export renders the spreadsheet as an xlsx workbook with one worksheet
// per sheet, in order index order. Requires VIEW.
func (s *WorkbookService) Export(ctx context.Context, spreadsheetID uuid.UUID, userID uint32) ([]byte, error) {
	spreadsheet, err := s.spreadsheets.GetSpreadsheet(ctx, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet: %w", err)
	}
	if spreadsheet == nil {
		return nil, apperr.NotFound("spreadsheet")
	}
	if err := s.gate.Authorize(ctx, spreadsheet, userID, sheetdata.LevelView); err != nil {
		return nil, err
	}

	sheets, err := s.sheets.ListSheets(ctx, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sheets: %w", err)
	}

	workbook := excelize.NewFile()
	defer workbook.Close()

	keepDefault := false
	for _, sheet := range sheets {
		if sheet.Name == "Sheet1" {
			keepDefault = true
		}
		if _, err := workbook.NewSheet(sheet.Name); err != nil {
			return nil, apperr.Format(fmt.Sprintf("invalid worksheet name %q", sheet.Name))
		}

		cells, err := s.cells.AllCells(ctx, sheet.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list cells: %w", err)
		}
		for _, cell := range cells {
			ref, err := excelize.CoordinatesToCellName(cell.ColumnIndex+1, cell.RowIndex+1)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve cell reference: %w", err)
			}
			if err := workbook.SetCellStr(sheet.Name, ref, cell.Value); err != nil {
				return nil, fmt.Errorf("failed to set cell value: %w", err)
			}
		}
	}
	if !keepDefault {
		if err := workbook.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("failed to drop default worksheet: %w", err)
		}
	}

	buf, err := workbook.WriteToBuffer()
	if err != nil {
		return nil, apperr.Storage("failed to serialize workbook", err)
	}
	return buf.Bytes(), nil
}

// Import creates a spreadsheet from an xlsx workbook, one sheet per
// worksheet in workbook order. The caller becomes the owner.
func (s *WorkbookService) Import(ctx context.Context, name, description string, workbookData []byte, ownerID uint32) (*sheetdata.Spreadsheet, error) {
	owner, err := s.users.GetUserByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if owner == nil {
		return nil, apperr.NotFound("user")
	}

	workbook, err := excelize.OpenReader(bytes.NewReader(workbookData))
	if err != nil {
		return nil, apperr.Format("not an xlsx workbook")
	}
	defer workbook.Close()

	now := time.Now()
	spreadsheet := &sheetdata.Spreadsheet{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.spreadsheets.CreateSpreadsheet(ctx, spreadsheet); err != nil {
		return nil, fmt.Errorf("failed to create spreadsheet: %w", err)
	}

	for i, worksheetName := range workbook.GetSheetList() {
		sheet := &sheetdata.Sheet{
			ID:            uuid.New(),
			SpreadsheetID: spreadsheet.ID,
			Name:          worksheetName,
			OrderIndex:    i,
			RowCount:      1000,
			ColumnCount:   26,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.sheets.CreateSheet(ctx, sheet); err != nil {
			return nil, fmt.Errorf("failed to create sheet: %w", err)
		}

		rows, err := workbook.GetRows(worksheetName)
		if err != nil {
			return nil, apperr.Format(fmt.Sprintf("failed to read worksheet %q", worksheetName))
		}
		var upserts []sheetdata.Cell
		for row, record := range rows {
			for col, value := range record {
				if strings.TrimSpace(value) == "" {
					continue
				}
				upserts = append(upserts, sheetdata.Cell{
					SheetID:     sheet.ID,
					RowIndex:    row,
					ColumnIndex: col,
					Value:       value,
				})
			}
		}
		if len(upserts) > 0 {
			if err := s.cells.ApplyChanges(ctx, sheet.ID, nil, upserts); err != nil {
				return nil, fmt.Errorf("failed to import cells: %w", err)
			}
		}
	}

	return spreadsheet, nil
}
