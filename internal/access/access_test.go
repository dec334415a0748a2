package access_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spreadsheet-service/internal/access"
	"spreadsheet-service/internal/model/sheetdata"
	"spreadsheet-service/internal/repository/memoryRepo"
	"spreadsheet-service/pkg/apperr"
)

func TestCheck(t *testing.T) {
	cases := []struct {
		granted  sheetdata.Level
		required sheetdata.Level
		want     bool
	}{
		{sheetdata.LevelView, sheetdata.LevelView, true},
		{sheetdata.LevelEdit, sheetdata.LevelView, true},
		{sheetdata.LevelAdmin, sheetdata.LevelView, true},
		{sheetdata.LevelView, sheetdata.LevelEdit, false},
		{sheetdata.LevelEdit, sheetdata.LevelEdit, true},
		{sheetdata.LevelAdmin, sheetdata.LevelEdit, true},
		{sheetdata.LevelView, sheetdata.LevelAdmin, false},
		{sheetdata.LevelEdit, sheetdata.LevelAdmin, false},
		{sheetdata.LevelAdmin, sheetdata.LevelAdmin, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, access.Check(tc.granted, tc.required),
			"granted=%s required=%s", tc.granted, tc.required)
	}
}

func TestGate_Authorize(t *testing.T) {
	ctx := context.Background()
	store := memoryRepo.New()
	gate := access.NewGate(store)

	const ownerID, granteeID, strangerID uint32 = 1, 2, 3

	spreadsheet := &sheetdata.Spreadsheet{
		ID:        uuid.New(),
		Name:      "budget",
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.CreateSpreadsheet(ctx, spreadsheet))
	require.NoError(t, store.UpsertPermission(ctx, &sheetdata.Permission{
		SpreadsheetID: spreadsheet.ID,
		UserID:        granteeID,
		Level:         sheetdata.LevelEdit,
	}))

	t.Run("owner passes at every level", func(t *testing.T) {
		assert.NoError(t, gate.Authorize(ctx, spreadsheet, ownerID, sheetdata.LevelView))
		assert.NoError(t, gate.Authorize(ctx, spreadsheet, ownerID, sheetdata.LevelEdit))
		assert.NoError(t, gate.Authorize(ctx, spreadsheet, ownerID, sheetdata.LevelAdmin))
	})

	t.Run("grantee passes up to granted level", func(t *testing.T) {
		assert.NoError(t, gate.Authorize(ctx, spreadsheet, granteeID, sheetdata.LevelView))
		assert.NoError(t, gate.Authorize(ctx, spreadsheet, granteeID, sheetdata.LevelEdit))

		err := gate.Authorize(ctx, spreadsheet, granteeID, sheetdata.LevelAdmin)
		assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
	})

	t.Run("no grant fails even for VIEW", func(t *testing.T) {
		err := gate.Authorize(ctx, spreadsheet, strangerID, sheetdata.LevelView)
		assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
	})

	t.Run("re-grant replaces previous level", func(t *testing.T) {
		require.NoError(t, store.UpsertPermission(ctx, &sheetdata.Permission{
			SpreadsheetID: spreadsheet.ID,
			UserID:        granteeID,
			Level:         sheetdata.LevelView,
		}))
		err := gate.Authorize(ctx, spreadsheet, granteeID, sheetdata.LevelEdit)
		assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
	})
}
