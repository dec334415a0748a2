package gridService_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spreadsheet-service/internal/access"
	"spreadsheet-service/internal/model/sheetdata"
	"spreadsheet-service/internal/repository"
	"spreadsheet-service/internal/repository/memoryRepo"
	"spreadsheet-service/internal/service/gridService"
	"spreadsheet-service/pkg/apperr"
)

const ownerID uint32 = 1

type fixture struct {
	store   *memoryRepo.Store
	svc     *gridService.GridService
	sheetID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memoryRepo.New()

	spreadsheet := &sheetdata.Spreadsheet{ID: uuid.New(), Name: "test", OwnerID: ownerID}
	require.NoError(t, store.CreateSpreadsheet(ctx, spreadsheet))

	sheet := &sheetdata.Sheet{
		ID:            uuid.New(),
		SpreadsheetID: spreadsheet.ID,
		Name:          "Sheet1",
		OrderIndex:    0,
	}
	require.NoError(t, store.CreateSheet(ctx, sheet))

	return &fixture{
		store:   store,
		svc:     gridService.New(store, store, store, access.NewGate(store)),
		sheetID: sheet.ID,
	}
}

func (f *fixture) grid(t *testing.T) map[repository.CellRef]string {
	t.Helper()
	cells, err := f.store.AllCells(context.Background(), f.sheetID)
	require.NoError(t, err)

	out := make(map[repository.CellRef]string, len(cells))
	for _, cell := range cells {
		out[repository.CellRef{Row: cell.RowIndex, Col: cell.ColumnIndex}] = cell.Value
	}
	return out
}

func TestUpdateCells(t *testing.T) {
	ctx := context.Background()

	t.Run("writes and deletes in one batch", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.UpdateCells(ctx, f.sheetID, []gridService.CellChange{
			{Row: 0, Col: 0, Value: "a"},
			{Row: 1, Col: 1, Value: "b"},
		}, ownerID))

		require.NoError(t, f.svc.UpdateCells(ctx, f.sheetID, []gridService.CellChange{
			{Row: 0, Col: 0, Value: ""},
			{Row: 2, Col: 0, Value: "c"},
		}, ownerID))

		assert.Equal(t, map[repository.CellRef]string{
			{Row: 1, Col: 1}: "b",
			{Row: 2, Col: 0}: "c",
		}, f.grid(t))
	})

	t.Run("duplicate addresses resolve last-write-wins", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.UpdateCells(ctx, f.sheetID, []gridService.CellChange{
			{Row: 0, Col: 0, Value: "first"},
			{Row: 0, Col: 0, Value: "second"},
		}, ownerID))

		assert.Equal(t, map[repository.CellRef]string{{Row: 0, Col: 0}: "second"}, f.grid(t))
	})

	t.Run("unknown sheet", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.UpdateCells(ctx, uuid.New(), []gridService.CellChange{{Value: "x"}}, ownerID)
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})

	t.Run("VIEW grant cannot edit", func(t *testing.T) {
		f := newFixture(t)
		const viewerID uint32 = 7

		sheet, err := f.store.GetSheet(ctx, f.sheetID)
		require.NoError(t, err)
		require.NoError(t, f.store.UpsertPermission(ctx, &sheetdata.Permission{
			SpreadsheetID: sheet.SpreadsheetID,
			UserID:        viewerID,
			Level:         sheetdata.LevelView,
		}))

		err = f.svc.UpdateCells(ctx, f.sheetID, []gridService.CellChange{{Value: "x"}}, viewerID)
		assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
	})
}

func TestReplaceRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.ReplaceRow(ctx, f.sheetID, 1, []string{"a", "b", "c"}, ownerID))
	require.NoError(t, f.svc.ReplaceRow(ctx, f.sheetID, 1, []string{"x", "  ", ""}, ownerID))

	// Old cells beyond the new values are cleared, blanks are skipped.
	assert.Equal(t, map[repository.CellRef]string{{Row: 1, Col: 0}: "x"}, f.grid(t))
}

func TestAppendRow(t *testing.T) {
	ctx := context.Background()

	t.Run("empty sheet starts at row zero", func(t *testing.T) {
		f := newFixture(t)
		row, err := f.svc.AppendRow(ctx, f.sheetID, []string{"a"}, ownerID)
		require.NoError(t, err)
		assert.Equal(t, 0, row)
	})

	t.Run("appends after the highest occupied row", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.UpdateCells(ctx, f.sheetID,
			[]gridService.CellChange{{Row: 4, Col: 2, Value: "far"}}, ownerID))

		row, err := f.svc.AppendRow(ctx, f.sheetID, []string{"a", "b"}, ownerID)
		require.NoError(t, err)
		assert.Equal(t, 5, row)

		assert.Equal(t, map[repository.CellRef]string{
			{Row: 4, Col: 2}: "far",
			{Row: 5, Col: 0}: "a",
			{Row: 5, Col: 1}: "b",
		}, f.grid(t))
	})

	t.Run("values are trimmed", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.AppendRow(ctx, f.sheetID, []string{"  a  ", "   "}, ownerID)
		require.NoError(t, err)

		assert.Equal(t, map[repository.CellRef]string{{Row: 0, Col: 0}: "a"}, f.grid(t))
	})
}

func TestAppendRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	count, err := f.svc.AppendRows(ctx, f.sheetID, [][]string{
		{"a"},
		{""}, // blank row still consumes an index
		{"c"},
	}, ownerID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	assert.Equal(t, map[repository.CellRef]string{
		{Row: 0, Col: 0}: "a",
		{Row: 2, Col: 0}: "c",
	}, f.grid(t))
}

func TestDeleteRows(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes block and shifts rows below up", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.UpdateCells(ctx, f.sheetID, []gridService.CellChange{
			{Row: 0, Col: 0, Value: "keep"},
			{Row: 1, Col: 0, Value: "gone1"},
			{Row: 2, Col: 0, Value: "gone2"},
			{Row: 3, Col: 1, Value: "moves"},
			{Row: 5, Col: 0, Value: "moves too"},
		}, ownerID))

		require.NoError(t, f.svc.DeleteRows(ctx, f.sheetID, 1, 2, ownerID))

		assert.Equal(t, map[repository.CellRef]string{
			{Row: 0, Col: 0}: "keep",
			{Row: 1, Col: 1}: "moves",
			{Row: 3, Col: 0}: "moves too",
		}, f.grid(t))
	})

	t.Run("shift target occupied by deleted cell", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.UpdateCells(ctx, f.sheetID, []gridService.CellChange{
			{Row: 0, Col: 0, Value: "old"},
			{Row: 1, Col: 0, Value: "new"},
		}, ownerID))

		require.NoError(t, f.svc.DeleteRows(ctx, f.sheetID, 0, 1, ownerID))

		assert.Equal(t, map[repository.CellRef]string{{Row: 0, Col: 0}: "new"}, f.grid(t))
	})

	t.Run("invalid range", func(t *testing.T) {
		f := newFixture(t)
		assert.True(t, errors.Is(f.svc.DeleteRows(ctx, f.sheetID, -1, 1, ownerID), apperr.ErrInvalidArgument))
		assert.True(t, errors.Is(f.svc.DeleteRows(ctx, f.sheetID, 0, 0, ownerID), apperr.ErrInvalidArgument))
	})
}

func TestInsertColumn(t *testing.T) {
	ctx := context.Background()

	t.Run("shifts right and writes new values", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.UpdateCells(ctx, f.sheetID, []gridService.CellChange{
			{Row: 0, Col: 0, Value: "left"},
			{Row: 0, Col: 1, Value: "shifted"},
			{Row: 1, Col: 2, Value: "also shifted"},
		}, ownerID))

		require.NoError(t, f.svc.InsertColumn(ctx, f.sheetID, 1, []string{"new0", "", "new2"}, ownerID))

		assert.Equal(t, map[repository.CellRef]string{
			{Row: 0, Col: 0}: "left",
			{Row: 0, Col: 1}: "new0",
			{Row: 2, Col: 1}: "new2",
			{Row: 0, Col: 2}: "shifted",
			{Row: 1, Col: 3}: "also shifted",
		}, f.grid(t))
	})

	t.Run("insert then delete restores the grid", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.UpdateCells(ctx, f.sheetID, []gridService.CellChange{
			{Row: 0, Col: 0, Value: "a"},
			{Row: 1, Col: 2, Value: "b"},
		}, ownerID))
		before := f.grid(t)

		require.NoError(t, f.svc.InsertColumn(ctx, f.sheetID, 1, []string{"tmp"}, ownerID))
		require.NoError(t, f.svc.DeleteColumn(ctx, f.sheetID, 1, ownerID))

		assert.Equal(t, before, f.grid(t))
	})
}

func TestDeleteColumn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.UpdateCells(ctx, f.sheetID, []gridService.CellChange{
		{Row: 0, Col: 0, Value: "keep"},
		{Row: 0, Col: 1, Value: "gone"},
		{Row: 0, Col: 2, Value: "moves"},
		{Row: 3, Col: 4, Value: "moves too"},
	}, ownerID))

	require.NoError(t, f.svc.DeleteColumn(ctx, f.sheetID, 1, ownerID))

	assert.Equal(t, map[repository.CellRef]string{
		{Row: 0, Col: 0}: "keep",
		{Row: 0, Col: 1}: "moves",
		{Row: 3, Col: 3}: "moves too",
	}, f.grid(t))
}

func TestAppendRow_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Concurrent appends race on the read-max-then-write sequence; the
	// per-sheet lock must keep the assigned indices contiguous and
	// duplicate-free.
	const workers = 32
	rows := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			row, err := f.svc.AppendRow(ctx, f.sheetID, []string{"v"}, ownerID)
			assert.NoError(t, err)
			rows <- row
		}()
	}
	wg.Wait()
	close(rows)

	seen := make(map[int]bool, workers)
	for row := range rows {
		assert.False(t, seen[row], "row index %d assigned twice", row)
		seen[row] = true
	}
	require.Len(t, seen, workers)
	for i := 0; i < workers; i++ {
		assert.True(t, seen[i], "row index %d never assigned", i)
	}
}

func TestDeleteSheet(t *testing.T) {
	ctx := context.Background()

	t.Run("last sheet is protected", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.DeleteSheet(ctx, f.sheetID, ownerID)
		assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	})

	t.Run("deletes cells and renumbers remaining sheets", func(t *testing.T) {
		f := newFixture(t)
		sheet, err := f.store.GetSheet(ctx, f.sheetID)
		require.NoError(t, err)

		second := &sheetdata.Sheet{
			ID:            uuid.New(),
			SpreadsheetID: sheet.SpreadsheetID,
			Name:          "Sheet2",
			OrderIndex:    1,
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		}
		require.NoError(t, f.store.CreateSheet(ctx, second))
		require.NoError(t, f.svc.UpdateCells(ctx, f.sheetID,
			[]gridService.CellChange{{Row: 0, Col: 0, Value: "x"}}, ownerID))

		require.NoError(t, f.svc.DeleteSheet(ctx, f.sheetID, ownerID))

		gone, err := f.store.GetSheet(ctx, f.sheetID)
		require.NoError(t, err)
		assert.Nil(t, gone)

		cells, err := f.store.AllCells(ctx, f.sheetID)
		require.NoError(t, err)
		assert.Empty(t, cells)

		remaining, err := f.store.ListSheets(ctx, sheet.SpreadsheetID)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, 0, remaining[0].OrderIndex)
	})
}
