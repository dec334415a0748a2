package mediaService

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"spreadsheet-service/internal/access"
	"spreadsheet-service/internal/model/sheetdata"
	"spreadsheet-service/internal/repository"
	"spreadsheet-service/pkg/apperr"
)

// MediaService attaches files to spreadsheets. Bytes live in object
// storage under an opaque key; the original filename is metadata only.
type MediaService struct {
	spreadsheets repository.SpreadsheetStore
	media        repository.MediaStore
	objects      repository.ObjectStorage
	gate         *access.Gate
}

func New(
	spreadsheets repository.SpreadsheetStore,
	media repository.MediaStore,
	objects repository.ObjectStorage,
	gate *access.Gate,
) *MediaService {
	return &MediaService{
		spreadsheets: spreadsheets,
		media:        media,
		objects:      objects,
		gate:         gate,
	}
}

// Upload stores the file bytes and registers a media record. Requires EDIT.
func (s *MediaService) Upload(ctx context.Context, spreadsheetID uuid.UUID, userID uint32, filename, contentType string, reader io.Reader, size int64) (*sheetdata.Media, error) {
	if filename == "" {
		return nil, apperr.InvalidArgument("filename is required")
	}
	if _, err := s.authorizedSpreadsheet(ctx, spreadsheetID, userID, sheetdata.LevelEdit); err != nil {
		return nil, err
	}

	storageKey := uuid.New().String() + path.Ext(filename)
	if err := s.objects.Upload(ctx, storageKey, reader, size, contentType); err != nil {
		return nil, apperr.Storage("failed to upload media object", err)
	}

	media := &sheetdata.Media{
		ID:            uuid.New(),
		SpreadsheetID: spreadsheetID,
		Filename:      filename,
		ContentType:   contentType,
		Size:          size,
		StorageKey:    storageKey,
		UploadedAt:    time.Now(),
	}
	if err := s.media.CreateMedia(ctx, media); err != nil {
		return nil, fmt.Errorf("failed to save media record: %w", err)
	}
	return media, nil
}

// Download returns the media record and a reader over its bytes.
// Requires VIEW. The caller closes the reader.
func (s *MediaService) Download(ctx context.Context, mediaID uuid.UUID, userID uint32) (*sheetdata.Media, io.ReadCloser, error) {
	media, err := s.media.GetMedia(ctx, mediaID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get media: %w", err)
	}
	if media == nil {
		return nil, nil, apperr.NotFound("media")
	}
	if _, err := s.authorizedSpreadsheet(ctx, media.SpreadsheetID, userID, sheetdata.LevelView); err != nil {
		return nil, nil, err
	}

	object, err := s.objects.Download(ctx, media.StorageKey)
	if err != nil {
		return nil, nil, apperr.Storage("failed to download media object", err)
	}
	return media, object, nil
}

// List returns the spreadsheet's media records. Requires VIEW.
func (s *MediaService) List(ctx context.Context, spreadsheetID uuid.UUID, userID uint32) ([]*sheetdata.Media, error) {
	if _, err := s.authorizedSpreadsheet(ctx, spreadsheetID, userID, sheetdata.LevelView); err != nil {
		return nil, err
	}
	media, err := s.media.ListMedia(ctx, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	return media, nil
}

// Delete removes the record and the stored bytes. Requires EDIT.
func (s *MediaService) Delete(ctx context.Context, mediaID uuid.UUID, userID uint32) error {
	media, err := s.media.GetMedia(ctx, mediaID)
	if err != nil {
		return fmt.Errorf("failed to get media: %w", err)
	}
	if media == nil {
		return apperr.NotFound("media")
	}
	if _, err := s.authorizedSpreadsheet(ctx, media.SpreadsheetID, userID, sheetdata.LevelEdit); err != nil {
		return err
	}

	if err := s.objects.Delete(ctx, media.StorageKey); err != nil {
		return apperr.Storage("failed to delete media object", err)
	}
	if err := s.media.DeleteMedia(ctx, mediaID); err != nil {
		return fmt.Errorf("failed to delete media record: %w", err)
	}
	return nil
}

func (s *MediaService) authorizedSpreadsheet(ctx context.Context, spreadsheetID uuid.UUID, userID uint32, required sheetdata.Level) (*sheetdata.Spreadsheet, error) {
	spreadsheet, err := s.spreadsheets.GetSpreadsheet(ctx, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet: %w", err)
	}
	if spreadsheet == nil {
		return nil, apperr.NotFound("spreadsheet")
	}
	if err := s.gate.Authorize(ctx, spreadsheet, userID, required); err != nil {
		return nil, err
	}
	return spreadsheet, nil
}
