package spreadsheetService

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spreadsheet-service/internal/access"
	"spreadsheet-service/internal/model/sheetdata"
	"spreadsheet-service/internal/repository"
	"spreadsheet-service/pkg/apperr"
	"spreadsheet-service/pkg/logger"
)

const defaultSheetName = "Sheet1"

// Invalidator drops cached permission entries after a grant changes.
type Invalidator interface {
	Invalidate(ctx context.Context, spreadsheetID uuid.UUID, userID uint32) error
}

// SpreadsheetService manages spreadsheet and sheet lifecycle and
// permission grants. It is the sole mutator of sheet ordering and
// spreadsheet/media existence.
type SpreadsheetService struct {
	spreadsheets repository.SpreadsheetStore
	sheets       repository.SheetStore
	cells        repository.CellStore
	permissions  repository.PermissionStore
	media        repository.MediaStore
	users        repository.UserStore
	objects      repository.ObjectStorage
	gate         *access.Gate
	invalidator  Invalidator
}

func New(
	spreadsheets repository.SpreadsheetStore,
	sheets repository.SheetStore,
	cells repository.CellStore,
	permissions repository.PermissionStore,
	media repository.MediaStore,
	users repository.UserStore,
	objects repository.ObjectStorage,
	gate *access.Gate,
	invalidator Invalidator,
) *SpreadsheetService {
	return &SpreadsheetService{
		spreadsheets: spreadsheets,
		sheets:       sheets,
		cells:        cells,
		permissions:  permissions,
		media:        media,
		users:        users,
		objects:      objects,
		gate:         gate,
		invalidator:  invalidator,
	}
}

// Create creates a spreadsheet with one default sheet at order index 0.
func (s *SpreadsheetService) Create(ctx context.Context, name, description string, ownerID uint32) (*sheetdata.Spreadsheet, error) {
	owner, err := s.users.GetUserByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if owner == nil {
		return nil, apperr.NotFound("user")
	}

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

	sheet := newSheet(spreadsheet.ID, defaultSheetName, 0, now)
	if err := s.sheets.CreateSheet(ctx, sheet); err != nil {
		return nil, fmt.Errorf("failed to create default sheet: %w", err)
	}

	return spreadsheet, nil
}

// Get returns a spreadsheet and its ordered sheets. Requires VIEW.
func (s *SpreadsheetService) Get(ctx context.Context, id uuid.UUID, userID uint32) (*sheetdata.Spreadsheet, []*sheetdata.Sheet, error) {
	spreadsheet, err := s.viewableSpreadsheet(ctx, id, userID)
	if err != nil {
		return nil, nil, err
	}

	sheets, err := s.sheets.ListSheets(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list sheets: %w", err)
	}
	return spreadsheet, sheets, nil
}

// GetSheet returns a sheet and its non-blank cells. Requires VIEW.
func (s *SpreadsheetService) GetSheet(ctx context.Context, sheetID uuid.UUID, userID uint32) (*sheetdata.Sheet, []sheetdata.Cell, error) {
	sheet, err := s.sheets.GetSheet(ctx, sheetID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sheet: %w", err)
	}
	if sheet == nil {
		return nil, nil, apperr.NotFound("sheet")
	}

	if _, err := s.viewableSpreadsheet(ctx, sheet.SpreadsheetID, userID); err != nil {
		return nil, nil, err
	}

	cells, err := s.cells.AllCells(ctx, sheetID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list cells: %w", err)
	}
	return sheet, cells, nil
}

// ListForUser returns spreadsheets the user owns plus spreadsheets
// shared with the user, deduplicated.
func (s *SpreadsheetService) ListForUser(ctx context.Context, userID uint32) ([]*sheetdata.Spreadsheet, error) {
	owned, err := s.spreadsheets.ListSpreadsheetsByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned spreadsheets: %w", err)
	}
	shared, err := s.spreadsheets.ListSpreadsheetsSharedWith(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shared spreadsheets: %w", err)
	}

	seen := make(map[uuid.UUID]bool, len(owned))
	all := make([]*sheetdata.Spreadsheet, 0, len(owned)+len(shared))
	for _, spreadsheet := range append(owned, shared...) {
		if seen[spreadsheet.ID] {
			continue
		}
		seen[spreadsheet.ID] = true
		all = append(all, spreadsheet)
	}
	return all, nil
}

// Delete removes a spreadsheet with all of its sheets, cells, grants
// and media. Only the owner may delete. Removal of media bytes from
// object storage is best-effort; a failure is logged, not fatal.
func (s *SpreadsheetService) Delete(ctx context.Context, id uuid.UUID, callerID uint32) error {
	spreadsheet, err := s.spreadsheets.GetSpreadsheet(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}
	if spreadsheet == nil {
		return apperr.NotFound("spreadsheet")
	}
	if spreadsheet.OwnerID != callerID {
		return apperr.Unauthorized("only owner can delete spreadsheet")
	}

	mediaFiles, err := s.media.ListMedia(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list media: %w", err)
	}

	if err := s.spreadsheets.DeleteSpreadsheet(ctx, id); err != nil {
		return fmt.Errorf("failed to delete spreadsheet: %w", err)
	}

	for _, media := range mediaFiles {
		if err := s.objects.Delete(ctx, media.StorageKey); err != nil {
			logger.GetLogger(ctx).Warn("failed to delete media object",
				zap.String("storage_key", media.StorageKey), zap.Error(err))
		}
	}
	return nil
}

// CreateSheet appends a sheet at order index = current sheet count.
// Requires EDIT.
func (s *SpreadsheetService) CreateSheet(ctx context.Context, spreadsheetID uuid.UUID, name string, userID uint32) (*sheetdata.Sheet, error) {
	spreadsheet, err := s.spreadsheets.GetSpreadsheet(ctx, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet: %w", err)
	}
	if spreadsheet == nil {
		return nil, apperr.NotFound("spreadsheet")
	}
	if err := s.gate.Authorize(ctx, spreadsheet, userID, sheetdata.LevelEdit); err != nil {
		return nil, err
	}

	count, err := s.sheets.CountSheets(ctx, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to count sheets: %w", err)
	}

	now := time.Now()
	sheet := newSheet(spreadsheetID, name, count, now)
	if err := s.sheets.CreateSheet(ctx, sheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := s.spreadsheets.TouchSpreadsheet(ctx, spreadsheetID, now); err != nil {
		return nil, err
	}
	return sheet, nil
}

// Grant gives targetUsername a permission level on the spreadsheet,
// replacing any existing grant for that user. The owner or an
// ADMIN-level grantee may grant; the owner can never be a target.
func (s *SpreadsheetService) Grant(ctx context.Context, spreadsheetID uuid.UUID, callerID uint32, targetUsername string, level sheetdata.Level) error {
	spreadsheet, err := s.spreadsheets.GetSpreadsheet(ctx, spreadsheetID)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}
	if spreadsheet == nil {
		return apperr.NotFound("spreadsheet")
	}

	if spreadsheet.OwnerID != callerID {
		if err := s.gate.Authorize(ctx, spreadsheet, callerID, sheetdata.LevelAdmin); err != nil {
			return err
		}
	}

	target, err := s.users.GetUserByUsername(ctx, targetUsername)
	if err != nil {
		return fmt.Errorf("failed to get target user: %w", err)
	}
	if target == nil {
		return apperr.NotFound("target user")
	}
	if target.ID == spreadsheet.OwnerID {
		return apperr.InvalidArgument("cannot change owner permissions")
	}

	permission := &sheetdata.Permission{SpreadsheetID: spreadsheetID, UserID: target.ID, Level: level}
	if err := s.permissions.UpsertPermission(ctx, permission); err != nil {
		return fmt.Errorf("failed to save permission: %w", err)
	}
	return s.invalidate(ctx, spreadsheetID, target.ID)
}

// Revoke removes targetUsername's grant. Only the owner may revoke;
// revoking an absent grant is a no-op.
func (s *SpreadsheetService) Revoke(ctx context.Context, spreadsheetID uuid.UUID, callerID uint32, targetUsername string) error {
	spreadsheet, err := s.spreadsheets.GetSpreadsheet(ctx, spreadsheetID)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}
	if spreadsheet == nil {
		return apperr.NotFound("spreadsheet")
	}
	if spreadsheet.OwnerID != callerID {
		return apperr.Unauthorized("only owner can revoke permissions")
	}

	target, err := s.users.GetUserByUsername(ctx, targetUsername)
	if err != nil {
		return fmt.Errorf("failed to get target user: %w", err)
	}
	if target == nil {
		return apperr.NotFound("target user")
	}

	if err := s.permissions.DeletePermission(ctx, spreadsheetID, target.ID); err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}
	return s.invalidate(ctx, spreadsheetID, target.ID)
}

// Authorize exposes the permission gate to sibling services.
func (s *SpreadsheetService) Authorize(ctx context.Context, spreadsheet *sheetdata.Spreadsheet, userID uint32, required sheetdata.Level) error {
	return s.gate.Authorize(ctx, spreadsheet, userID, required)
}

func (s *SpreadsheetService) viewableSpreadsheet(ctx context.Context, id uuid.UUID, userID uint32) (*sheetdata.Spreadsheet, error) {
	spreadsheet, err := s.spreadsheets.GetSpreadsheet(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet: %w", err)
	}
	if spreadsheet == nil {
		return nil, apperr.NotFound("spreadsheet")
	}
	if err := s.gate.Authorize(ctx, spreadsheet, userID, sheetdata.LevelView); err != nil {
		return nil, err
	}
	return spreadsheet, nil
}

func (s *SpreadsheetService) invalidate(ctx context.Context, spreadsheetID uuid.UUID, userID uint32) error {
	if s.invalidator == nil {
		return nil
	}
	if err := s.invalidator.Invalidate(ctx, spreadsheetID, userID); err != nil {
		logger.GetLogger(ctx).Warn("failed to invalidate permission cache",
			zap.String("spreadsheet_id", spreadsheetID.String()), zap.Uint32("user_id", userID), zap.Error(err))
	}
	return nil
}

func newSheet(spreadsheetID uuid.UUID, name string, orderIndex int, now time.Time) *sheetdata.Sheet {
	return &sheetdata.Sheet{
		ID:            uuid.New(),
		SpreadsheetID: spreadsheetID,
		Name:          name,
		OrderIndex:    orderIndex,
		RowCount:      1000,
		ColumnCount:   26,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
