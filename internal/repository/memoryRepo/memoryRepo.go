// Package memoryRepo holds in-memory implementations of the store
// interfaces. They back the service tests and small embedded setups;
// the postgres repositories are the production counterparts.
package memoryRepo

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"spreadsheet-service/internal/model/sheetdata"
	"spreadsheet-service/internal/model/user"
	"spreadsheet-service/internal/repository"
	"spreadsheet-service/pkg/apperr"
)

type permKey struct {
	spreadsheetID uuid.UUID
	userID        uint32
}

type Store struct {
	mu sync.RWMutex

	nextUserID   uint32
	users        map[uint32]user.User
	spreadsheets map[uuid.UUID]sheetdata.Spreadsheet
	sheets       map[uuid.UUID]sheetdata.Sheet
	cells        map[uuid.UUID]map[repository.CellRef]string
	permissions  map[permKey]sheetdata.Level
	media        map[uuid.UUID]sheetdata.Media
	objects      map[string][]byte
}

func New() *Store {
	return &Store{
		users:        make(map[uint32]user.User),
		spreadsheets: make(map[uuid.UUID]sheetdata.Spreadsheet),
		sheets:       make(map[uuid.UUID]sheetdata.Sheet),
		cells:        make(map[uuid.UUID]map[repository.CellRef]string),
		permissions:  make(map[permKey]sheetdata.Level),
		media:        make(map[uuid.UUID]sheetdata.Media),
		objects:      make(map[string][]byte),
	}
}

func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextUserID++
	u := user.User{
		ID:        s.nextUserID,
		Username:  username,
		Email:     email,
		Password:  passwordHash,
		CreatedAt: time.Now(),
	}
	s.users[u.ID] = u
	return u.ID, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uint32) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateSpreadsheet(ctx context.Context, spreadsheet *sheetdata.Spreadsheet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.spreadsheets[spreadsheet.ID] = *spreadsheet
	return nil
}

func (s *Store) GetSpreadsheet(ctx context.Context, id uuid.UUID) (*sheetdata.Spreadsheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sp, ok := s.spreadsheets[id]; ok {
		return &sp, nil
	}
	return nil, nil
}

func (s *Store) DeleteSpreadsheet(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sheetID, sheet := range s.sheets {
		if sheet.SpreadsheetID == id {
			delete(s.cells, sheetID)
			delete(s.sheets, sheetID)
		}
	}
	for key := range s.permissions {
		if key.spreadsheetID == id {
			delete(s.permissions, key)
		}
	}
	for mediaID, m := range s.media {
		if m.SpreadsheetID == id {
			delete(s.media, mediaID)
		}
	}
	delete(s.spreadsheets, id)
	return nil
}

func (s *Store) ListSpreadsheetsByOwner(ctx context.Context, ownerID uint32) ([]*sheetdata.Spreadsheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*sheetdata.Spreadsheet
	for _, sp := range s.spreadsheets {
		if sp.OwnerID == ownerID {
			sp := sp
			out = append(out, &sp)
		}
	}
	return out, nil
}

func (s *Store) ListSpreadsheetsSharedWith(ctx context.Context, userID uint32) ([]*sheetdata.Spreadsheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*sheetdata.Spreadsheet
	for key := range s.permissions {
		if key.userID != userID {
			continue
		}
		if sp, ok := s.spreadsheets[key.spreadsheetID]; ok {
			sp := sp
			out = append(out, &sp)
		}
	}
	return out, nil
}

func (s *Store) TouchSpreadsheet(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.spreadsheets[id]
	if !ok {
		return apperr.NotFound("spreadsheet")
	}
	sp.UpdatedAt = at
	s.spreadsheets[id] = sp
	return nil
}

func (s *Store) CreateSheet(ctx context.Context, sheet *sheetdata.Sheet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sheets[sheet.ID] = *sheet
	return nil
}

func (s *Store) GetSheet(ctx context.Context, id uuid.UUID) (*sheetdata.Sheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sheet, ok := s.sheets[id]; ok {
		return &sheet, nil
	}
	return nil, nil
}

func (s *Store) ListSheets(ctx context.Context, spreadsheetID uuid.UUID) ([]*sheetdata.Sheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*sheetdata.Sheet
	for _, sheet := range s.sheets {
		if sheet.SpreadsheetID == spreadsheetID {
			sheet := sheet
			out = append(out, &sheet)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (s *Store) CountSheets(ctx context.Context, spreadsheetID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, sheet := range s.sheets {
		if sheet.SpreadsheetID == spreadsheetID {
			count++
		}
	}
	return count, nil
}

func (s *Store) DeleteSheet(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sheets, id)
	return nil
}

func (s *Store) UpdateSheetOrder(ctx context.Context, id uuid.UUID, orderIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, ok := s.sheets[id]
	if !ok {
		return apperr.NotFound("sheet")
	}
	sheet.OrderIndex = orderIndex
	s.sheets[id] = sheet
	return nil
}

func (s *Store) TouchSheet(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, ok := s.sheets[id]
	if !ok {
		return apperr.NotFound("sheet")
	}
	sheet.UpdatedAt = at
	s.sheets[id] = sheet
	return nil
}

func (s *Store) GetPermission(ctx context.Context, spreadsheetID uuid.UUID, userID uint32) (*sheetdata.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if level, ok := s.permissions[permKey{spreadsheetID, userID}]; ok {
		return &sheetdata.Permission{SpreadsheetID: spreadsheetID, UserID: userID, Level: level}, nil
	}
	return nil, nil
}

func (s *Store) UpsertPermission(ctx context.Context, permission *sheetdata.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.permissions[permKey{permission.SpreadsheetID, permission.UserID}] = permission.Level
	return nil
}

func (s *Store) DeletePermission(ctx context.Context, spreadsheetID uuid.UUID, userID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.permissions, permKey{spreadsheetID, userID})
	return nil
}

func (s *Store) ListPermissionsBySpreadsheet(ctx context.Context, spreadsheetID uuid.UUID) ([]sheetdata.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []sheetdata.Permission
	for key, level := range s.permissions {
		if key.spreadsheetID == spreadsheetID {
			out = append(out, sheetdata.Permission{SpreadsheetID: key.spreadsheetID, UserID: key.userID, Level: level})
		}
	}
	return out, nil
}

func (s *Store) ListPermissionsByUser(ctx context.Context, userID uint32) ([]sheetdata.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []sheetdata.Permission
	for key, level := range s.permissions {
		if key.userID == userID {
			out = append(out, sheetdata.Permission{SpreadsheetID: key.spreadsheetID, UserID: key.userID, Level: level})
		}
	}
	return out, nil
}

func (s *Store) CreateMedia(ctx context.Context, media *sheetdata.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.media[media.ID] = *media
	return nil
}

func (s *Store) GetMedia(ctx context.Context, id uuid.UUID) (*sheetdata.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m, ok := s.media[id]; ok {
		return &m, nil
	}
	return nil, nil
}

func (s *Store) ListMedia(ctx context.Context, spreadsheetID uuid.UUID) ([]*sheetdata.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*sheetdata.Media
	for _, m := range s.media {
		if m.SpreadsheetID == spreadsheetID {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}

func (s *Store) DeleteMedia(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.media, id)
	return nil
}

func (s *Store) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *Store) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, apperr.NotFound("object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	return nil
}
