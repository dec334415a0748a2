package repository

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"spreadsheet-service/internal/model/sheetdata"
	"spreadsheet-service/internal/model/user"
)

// Stores return (nil, nil) when a looked-up record does not exist.

type UserStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (uint32, error)
	GetUserByID(ctx context.Context, id uint32) (*user.User, error)
	GetUserByUsername(ctx context.Context, username string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
}

type SpreadsheetStore interface {
	CreateSpreadsheet(ctx context.Context, spreadsheet *sheetdata.Spreadsheet) error
	GetSpreadsheet(ctx context.Context, id uuid.UUID) (*sheetdata.Spreadsheet, error)
	// DeleteSpreadsheet removes the spreadsheet row together with its
	// sheets, cells, permissions and media rows in one atomic unit.
	DeleteSpreadsheet(ctx context.Context, id uuid.UUID) error
	ListSpreadsheetsByOwner(ctx context.Context, ownerID uint32) ([]*sheetdata.Spreadsheet, error)
	ListSpreadsheetsSharedWith(ctx context.Context, userID uint32) ([]*sheetdata.Spreadsheet, error)
	TouchSpreadsheet(ctx context.Context, id uuid.UUID, at time.Time) error
}

type SheetStore interface {
	CreateSheet(ctx context.Context, sheet *sheetdata.Sheet) error
	GetSheet(ctx context.Context, id uuid.UUID) (*sheetdata.Sheet, error)
	// ListSheets returns the spreadsheet's sheets ordered by OrderIndex.
	ListSheets(ctx context.Context, spreadsheetID uuid.UUID) ([]*sheetdata.Sheet, error)
	CountSheets(ctx context.Context, spreadsheetID uuid.UUID) (int, error)
	DeleteSheet(ctx context.Context, id uuid.UUID) error
	UpdateSheetOrder(ctx context.Context, id uuid.UUID, orderIndex int) error
	TouchSheet(ctx context.Context, id uuid.UUID, at time.Time) error
}

type PermissionStore interface {
	GetPermission(ctx context.Context, spreadsheetID uuid.UUID, userID uint32) (*sheetdata.Permission, error)
	// UpsertPermission replaces an existing grant for the same
	// (spreadsheet, user) pair.
	UpsertPermission(ctx context.Context, permission *sheetdata.Permission) error
	DeletePermission(ctx context.Context, spreadsheetID uuid.UUID, userID uint32) error
	ListPermissionsBySpreadsheet(ctx context.Context, spreadsheetID uuid.UUID) ([]sheetdata.Permission, error)
	ListPermissionsByUser(ctx context.Context, userID uint32) ([]sheetdata.Permission, error)
}

type MediaStore interface {
	CreateMedia(ctx context.Context, media *sheetdata.Media) error
	GetMedia(ctx context.Context, id uuid.UUID) (*sheetdata.Media, error)
	ListMedia(ctx context.Context, spreadsheetID uuid.UUID) ([]*sheetdata.Media, error)
	DeleteMedia(ctx context.Context, id uuid.UUID) error
}

// CellRef addresses one cell inside a sheet.
type CellRef struct {
	Row int
	Col int
}

// CellStore is the sparse grid store for sheet cells. Only non-blank
// values are ever persisted; absence of a row is the blank value.
type CellStore interface {
	GetCell(ctx context.Context, sheetID uuid.UUID, row, col int) (*sheetdata.Cell, error)
	UpsertCell(ctx context.Context, sheetID uuid.UUID, row, col int, value string) error
	// RemoveCell is a no-op if the cell is absent.
	RemoveCell(ctx context.Context, sheetID uuid.UUID, row, col int) error

	RowCells(ctx context.Context, sheetID uuid.UUID, row int) ([]sheetdata.Cell, error)
	ColumnCells(ctx context.Context, sheetID uuid.UUID, col int) ([]sheetdata.Cell, error)
	// CellsBelowRow returns cells with RowIndex > row.
	CellsBelowRow(ctx context.Context, sheetID uuid.UUID, row int) ([]sheetdata.Cell, error)
	// CellsFromColumn returns cells with ColumnIndex >= col,
	// CellsAfterColumn the strict variant.
	CellsFromColumn(ctx context.Context, sheetID uuid.UUID, col int) ([]sheetdata.Cell, error)
	CellsAfterColumn(ctx context.Context, sheetID uuid.UUID, col int) ([]sheetdata.Cell, error)

	// AllCells returns every cell of the sheet ordered by row then column.
	AllCells(ctx context.Context, sheetID uuid.UUID) ([]sheetdata.Cell, error)
	// MaxRowIndex reports false when the sheet holds no cells.
	MaxRowIndex(ctx context.Context, sheetID uuid.UUID) (int, bool, error)

	DeleteSheetCells(ctx context.Context, sheetID uuid.UUID) error

	// ApplyChanges applies removes, then upserts, as one atomic batch.
	// A concurrent reader sees either none or all of the batch.
	ApplyChanges(ctx context.Context, sheetID uuid.UUID, removes []CellRef, upserts []sheetdata.Cell) error
}

// ObjectStorage stores raw media bytes under opaque keys.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
