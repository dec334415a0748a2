package sheetdata

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Level is the wire-visible permission level of a grant.
type Level string

const (
	LevelView  Level = "VIEW"
	LevelEdit  Level = "EDIT"
	LevelAdmin Level = "ADMIN"
)

func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelView, LevelEdit, LevelAdmin:
		return Level(s), nil
	}
	return "", fmt.Errorf("unknown permission level %q", s)
}

type Spreadsheet struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     uint32    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Sheet struct {
	ID            uuid.UUID `json:"id"`
	SpreadsheetID uuid.UUID `json:"spreadsheet_id"`
	Name          string    `json:"name"`
	OrderIndex    int       `json:"order_index"`
	// Display hints only, never enforced as bounds.
	RowCount    int       `json:"row_count"`
	ColumnCount int       `json:"column_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Cell is one non-blank entry of a sheet's sparse grid.
// (SheetID, RowIndex, ColumnIndex) is a uniqueness key.
type Cell struct {
	SheetID     uuid.UUID `json:"sheet_id"`
	RowIndex    int       `json:"row"`
	ColumnIndex int       `json:"col"`
	Value       string    `json:"value"`
}

// Permission grants a user a level on a spreadsheet, unique per
// (spreadsheet, user) pair. The owner never appears here.
type Permission struct {
	SpreadsheetID uuid.UUID `json:"spreadsheet_id"`
	UserID        uint32    `json:"user_id"`
	Level         Level     `json:"level"`
}

type Media struct {
	ID            uuid.UUID `json:"id"`
	SpreadsheetID uuid.UUID `json:"spreadsheet_id"`
	Filename      string    `json:"filename"`
	ContentType   string    `json:"content_type"`
	Size          int64     `json:"size"`
	StorageKey    string    `json:"storage_key"`
	UploadedAt    time.Time `json:"uploaded_at"`
}
