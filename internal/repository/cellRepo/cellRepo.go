package cellRepo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"spreadsheet-service/internal/model/sheetdata"
	"spreadsheet-service/internal/repository"
)

type CellRepository struct {
	conn *pgx.Conn
}

func New(conn *pgx.Conn) *CellRepository {
	return &CellRepository{conn: conn}
}

func (r *CellRepository) GetCell(ctx context.Context, sheetID uuid.UUID, row, col int) (*sheetdata.Cell, error) {
	var cell sheetdata.Cell
	err := r.conn.QueryRow(ctx,
		`SELECT sheet_id, row_index, column_index, value
		 FROM cells WHERE sheet_id = $1 AND row_index = $2 AND column_index = $3`,
		sheetID, row, col).
		Scan(&cell.SheetID, &cell.RowIndex, &cell.ColumnIndex, &cell.Value)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &cell, err
}

func (r *CellRepository) UpsertCell(ctx context.Context, sheetID uuid.UUID, row, col int, value string) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO cells (sheet_id, row_index, column_index, value)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (sheet_id, row_index, column_index) DO UPDATE SET value = EXCLUDED.value`,
		sheetID, row, col, value)
	return err
}

func (r *CellRepository) RemoveCell(ctx context.Context, sheetID uuid.UUID, row, col int) error {
	_, err := r.conn.Exec(ctx,
		`DELETE FROM cells WHERE sheet_id = $1 AND row_index = $2 AND column_index = $3`,
		sheetID, row, col)
	return err
}

func (r *CellRepository) RowCells(ctx context.Context, sheetID uuid.UUID, row int) ([]sheetdata.Cell, error) {
	return r.queryCells(ctx,
		`SELECT sheet_id, row_index, column_index, value
		 FROM cells WHERE sheet_id = $1 AND row_index = $2
		 ORDER BY column_index`, sheetID, row)
}

func (r *CellRepository) ColumnCells(ctx context.Context, sheetID uuid.UUID, col int) ([]sheetdata.Cell, error) {
	return r.queryCells(ctx,
		`SELECT sheet_id, row_index, column_index, value
		 FROM cells WHERE sheet_id = $1 AND column_index = $2
		 ORDER BY row_index`, sheetID, col)
}

func (r *CellRepository) CellsBelowRow(ctx context.Context, sheetID uuid.UUID, row int) ([]sheetdata.Cell, error) {
	return r.queryCells(ctx,
		`SELECT sheet_id, row_index, column_index, value
		 FROM cells WHERE sheet_id = $1 AND row_index > $2
		 ORDER BY row_index, column_index`, sheetID, row)
}

func (r *CellRepository) CellsFromColumn(ctx context.Context, sheetID uuid.UUID, col int) ([]sheetdata.Cell, error) {
	return r.queryCells(ctx,
		`SELECT sheet_id, row_index, column_index, value
		 FROM cells WHERE sheet_id = $1 AND column_index >= $2
		 ORDER BY row_index, column_index`, sheetID, col)
}

func (r *CellRepository) CellsAfterColumn(ctx context.Context, sheetID uuid.UUID, col int) ([]sheetdata.Cell, error) {
	return r.queryCells(ctx,
		`SELECT sheet_id, row_index, column_index, value
		 FROM cells WHERE sheet_id = $1 AND column_index > $2
		 ORDER BY row_index, column_index`, sheetID, col)
}

func (r *CellRepository) AllCells(ctx context.Context, sheetID uuid.UUID) ([]sheetdata.Cell, error) {
	return r.queryCells(ctx,
		`SELECT sheet_id, row_index, column_index, value
		 FROM cells WHERE sheet_id = $1
		 ORDER BY row_index, column_index`, sheetID)
}

func (r *CellRepository) MaxRowIndex(ctx context.Context, sheetID uuid.UUID) (int, bool, error) {
	var max *int
	err := r.conn.QueryRow(ctx,
		`SELECT MAX(row_index) FROM cells WHERE sheet_id = $1`, sheetID).Scan(&max)
	if err != nil {
		return 0, false, err
	}
	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}

func (r *CellRepository) DeleteSheetCells(ctx context.Context, sheetID uuid.UUID) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM cells WHERE sheet_id = $1`, sheetID)
	return err
}

func (r *CellRepository) ApplyChanges(ctx context.Context, sheetID uuid.UUID, removes []repository.CellRef, upserts []sheetdata.Cell) error {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, ref := range removes {
		_, err = tx.Exec(ctx,
			`DELETE FROM cells WHERE sheet_id = $1 AND row_index = $2 AND column_index = $3`,
			sheetID, ref.Row, ref.Col)
		if err != nil {
			return err
		}
	}

	for _, cell := range upserts {
		_, err = tx.Exec(ctx,
			`INSERT INTO cells (sheet_id, row_index, column_index, value)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (sheet_id, row_index, column_index) DO UPDATE SET value = EXCLUDED.value`,
			sheetID, cell.RowIndex, cell.ColumnIndex, cell.Value)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *CellRepository) queryCells(ctx context.Context, query string, args ...any) ([]sheetdata.Cell, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cells []sheetdata.Cell
	for rows.Next() {
		var cell sheetdata.Cell
		if err := rows.Scan(&cell.SheetID, &cell.RowIndex, &cell.ColumnIndex, &cell.Value); err != nil {
			return nil, err
		}
		cells = append(cells, cell)
	}
	return cells, rows.Err()
}
