package access

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"spreadsheet-service/internal/model/sheetdata"
	"spreadsheet-service/pkg/apperr"
)

// GrantSource resolves the unique permission grant for a
// (spreadsheet, user) pair. A nil permission with a nil error
// means no grant exists.
type GrantSource interface {
	GetPermission(ctx context.Context, spreadsheetID uuid.UUID, userID uint32) (*sheetdata.Permission, error)
}

// Check is the pure authorization decision over an existing grant:
// VIEW is covered by any grant, EDIT by EDIT or ADMIN, ADMIN only by ADMIN.
func Check(granted, required sheetdata.Level) bool {
	switch required {
	case sheetdata.LevelView:
		return true
	case sheetdata.LevelEdit:
		return granted == sheetdata.LevelEdit || granted == sheetdata.LevelAdmin
	case sheetdata.LevelAdmin:
		return granted == sheetdata.LevelAdmin
	}
	return false
}

// Gate decides whether a user may act on a spreadsheet at a required
// level. The owner always passes; everyone else needs a grant.
type Gate struct {
	grants GrantSource
}

func NewGate(grants GrantSource) *Gate {
	return &Gate{grants: grants}
}

func (g *Gate) Authorize(ctx context.Context, spreadsheet *sheetdata.Spreadsheet, userID uint32, required sheetdata.Level) error {
	if spreadsheet.OwnerID == userID {
		return nil
	}

	permission, err := g.grants.GetPermission(ctx, spreadsheet.ID, userID)
	if err != nil {
		return fmt.Errorf("failed to look up permission: %w", err)
	}
	if permission == nil {
		return apperr.Unauthorized("no permission to access this spreadsheet")
	}
	if !Check(permission.Level, required) {
		return apperr.Unauthorized(fmt.Sprintf("%s permission required", required))
	}
	return nil
}
