package spreadsheetRepo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"spreadsheet-service/internal/model/sheetdata"
)

// SpreadsheetRepository persists spreadsheets together with their
// sheets, permission grants and media rows.
type SpreadsheetRepository struct {
	conn *pgx.Conn
}

func New(conn *pgx.Conn) *SpreadsheetRepository {
	return &SpreadsheetRepository{conn: conn}
}

func (r *SpreadsheetRepository) CreateSpreadsheet(ctx context.Context, s *sheetdata.Spreadsheet) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO spreadsheets (id, name, description, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Name, s.Description, s.OwnerID, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *SpreadsheetRepository) GetSpreadsheet(ctx context.Context, id uuid.UUID) (*sheetdata.Spreadsheet, error) {
	var s sheetdata.Spreadsheet
	err := r.conn.QueryRow(ctx,
		`SELECT id, name, description, owner_id, created_at, updated_at
		 FROM spreadsheets WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Description, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &s, err
}

func (r *SpreadsheetRepository) DeleteSpreadsheet(ctx context.Context, id uuid.UUID) error {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM cells WHERE sheet_id IN (SELECT id FROM sheets WHERE spreadsheet_id = $1)`, id)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM sheets WHERE spreadsheet_id = $1`, id)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM spreadsheet_permissions WHERE spreadsheet_id = $1`, id)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM media WHERE spreadsheet_id = $1`, id)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM spreadsheets WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *SpreadsheetRepository) ListSpreadsheetsByOwner(ctx context.Context, ownerID uint32) ([]*sheetdata.Spreadsheet, error) {
	return r.querySpreadsheets(ctx,
		`SELECT id, name, description, owner_id, created_at, updated_at
		 FROM spreadsheets WHERE owner_id = $1`, ownerID)
}

func (r *SpreadsheetRepository) ListSpreadsheetsSharedWith(ctx context.Context, userID uint32) ([]*sheetdata.Spreadsheet, error) {
	return r.querySpreadsheets(ctx,
		`SELECT s.id, s.name, s.description, s.owner_id, s.created_at, s.updated_at
		 FROM spreadsheets s
		 JOIN spreadsheet_permissions p ON s.id = p.spreadsheet_id
		 WHERE p.user_id = $1`, userID)
}

func (r *SpreadsheetRepository) TouchSpreadsheet(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.conn.Exec(ctx,
		`UPDATE spreadsheets SET updated_at = $1 WHERE id = $2`, at, id)
	return err
}

func (r *SpreadsheetRepository) CreateSheet(ctx context.Context, sheet *sheetdata.Sheet) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO sheets (id, spreadsheet_id, name, order_index, row_count, column_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sheet.ID, sheet.SpreadsheetID, sheet.Name, sheet.OrderIndex,
		sheet.RowCount, sheet.ColumnCount, sheet.CreatedAt, sheet.UpdatedAt)
	return err
}

func (r *SpreadsheetRepository) GetSheet(ctx context.Context, id uuid.UUID) (*sheetdata.Sheet, error) {
	var sheet sheetdata.Sheet
	err := r.conn.QueryRow(ctx,
		`SELECT id, spreadsheet_id, name, order_index, row_count, column_count, created_at, updated_at
		 FROM sheets WHERE id = $1`, id).
		Scan(&sheet.ID, &sheet.SpreadsheetID, &sheet.Name, &sheet.OrderIndex,
			&sheet.RowCount, &sheet.ColumnCount, &sheet.CreatedAt, &sheet.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &sheet, err
}

func (r *SpreadsheetRepository) ListSheets(ctx context.Context, spreadsheetID uuid.UUID) ([]*sheetdata.Sheet, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT id, spreadsheet_id, name, order_index, row_count, column_count, created_at, updated_at
		 FROM sheets WHERE spreadsheet_id = $1
		 ORDER BY order_index`, spreadsheetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sheets []*sheetdata.Sheet
	for rows.Next() {
		var sheet sheetdata.Sheet
		if err := rows.Scan(&sheet.ID, &sheet.SpreadsheetID, &sheet.Name, &sheet.OrderIndex,
			&sheet.RowCount, &sheet.ColumnCount, &sheet.CreatedAt, &sheet.UpdatedAt); err != nil {
			return nil, err
		}
		sheets = append(sheets, &sheet)
	}
	return sheets, rows.Err()
}

func (r *SpreadsheetRepository) CountSheets(ctx context.Context, spreadsheetID uuid.UUID) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM sheets WHERE spreadsheet_id = $1`, spreadsheetID).Scan(&count)
	return count, err
}

func (r *SpreadsheetRepository) DeleteSheet(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM sheets WHERE id = $1`, id)
	return err
}

func (r *SpreadsheetRepository) UpdateSheetOrder(ctx context.Context, id uuid.UUID, orderIndex int) error {
	_, err := r.conn.Exec(ctx,
		`UPDATE sheets SET order_index = $1 WHERE id = $2`, orderIndex, id)
	return err
}

func (r *SpreadsheetRepository) TouchSheet(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.conn.Exec(ctx,
		`UPDATE sheets SET updated_at = $1 WHERE id = $2`, at, id)
	return err
}

func (r *SpreadsheetRepository) GetPermission(ctx context.Context, spreadsheetID uuid.UUID, userID uint32) (*sheetdata.Permission, error) {
	var p sheetdata.Permission
	err := r.conn.QueryRow(ctx,
		`SELECT spreadsheet_id, user_id, level
		 FROM spreadsheet_permissions WHERE spreadsheet_id = $1 AND user_id = $2`,
		spreadsheetID, userID).
		Scan(&p.SpreadsheetID, &p.UserID, &p.Level)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &p, err
}

func (r *SpreadsheetRepository) UpsertPermission(ctx context.Context, p *sheetdata.Permission) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO spreadsheet_permissions (spreadsheet_id, user_id, level)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (spreadsheet_id, user_id) DO UPDATE SET level = EXCLUDED.level`,
		p.SpreadsheetID, p.UserID, p.Level)
	return err
}

func (r *SpreadsheetRepository) DeletePermission(ctx context.Context, spreadsheetID uuid.UUID, userID uint32) error {
	_, err := r.conn.Exec(ctx,
		`DELETE FROM spreadsheet_permissions WHERE spreadsheet_id = $1 AND user_id = $2`,
		spreadsheetID, userID)
	return err
}

func (r *SpreadsheetRepository) ListPermissionsBySpreadsheet(ctx context.Context, spreadsheetID uuid.UUID) ([]sheetdata.Permission, error) {
	return r.queryPermissions(ctx,
		`SELECT spreadsheet_id, user_id, level
		 FROM spreadsheet_permissions WHERE spreadsheet_id = $1`, spreadsheetID)
}

func (r *SpreadsheetRepository) ListPermissionsByUser(ctx context.Context, userID uint32) ([]sheetdata.Permission, error) {
	return r.queryPermissions(ctx,
		`SELECT spreadsheet_id, user_id, level
		 FROM spreadsheet_permissions WHERE user_id = $1`, userID)
}

func (r *SpreadsheetRepository) CreateMedia(ctx context.Context, media *sheetdata.Media) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO media (id, spreadsheet_id, filename, content_type, size, storage_key, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		media.ID, media.SpreadsheetID, media.Filename, media.ContentType,
		media.Size, media.StorageKey, media.UploadedAt)
	return err
}

func (r *SpreadsheetRepository) GetMedia(ctx context.Context, id uuid.UUID) (*sheetdata.Media, error) {
	var m sheetdata.Media
	err := r.conn.QueryRow(ctx,
		`SELECT id, spreadsheet_id, filename, content_type, size, storage_key, uploaded_at
		 FROM media WHERE id = $1`, id).
		Scan(&m.ID, &m.SpreadsheetID, &m.Filename, &m.ContentType, &m.Size, &m.StorageKey, &m.UploadedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &m, err
}

func (r *SpreadsheetRepository) ListMedia(ctx context.Context, spreadsheetID uuid.UUID) ([]*sheetdata.Media, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT id, spreadsheet_id, filename, content_type, size, storage_key, uploaded_at
		 FROM media WHERE spreadsheet_id = $1
		 ORDER BY uploaded_at`, spreadsheetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var media []*sheetdata.Media
	for rows.Next() {
		var m sheetdata.Media
		if err := rows.Scan(&m.ID, &m.SpreadsheetID, &m.Filename, &m.ContentType,
			&m.Size, &m.StorageKey, &m.UploadedAt); err != nil {
			return nil, err
		}
		media = append(media, &m)
	}
	return media, rows.Err()
}

func (r *SpreadsheetRepository) DeleteMedia(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM media WHERE id = $1`, id)
	return err
}

func (r *SpreadsheetRepository) querySpreadsheets(ctx context.Context, query string, args ...any) ([]*sheetdata.Spreadsheet, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spreadsheets []*sheetdata.Spreadsheet
	for rows.Next() {
		var s sheetdata.Spreadsheet
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		spreadsheets = append(spreadsheets, &s)
	}
	return spreadsheets, rows.Err()
}

func (r *SpreadsheetRepository) queryPermissions(ctx context.Context, query string, args ...any) ([]sheetdata.Permission, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var permissions []sheetdata.Permission
	for rows.Next() {
		var p sheetdata.Permission
		if err := rows.Scan(&p.SpreadsheetID, &p.UserID, &p.Level); err != nil {
			return nil, err
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}
