package mediaService_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spreadsheet-service/internal/access"
	"spreadsheet-service/internal/model/sheetdata"
	"spreadsheet-service/internal/repository/memoryRepo"
	"spreadsheet-service/internal/service/mediaService"
	"spreadsheet-service/pkg/apperr"
)

const ownerID uint32 = 1

func setup(t *testing.T) (*mediaService.MediaService, *memoryRepo.Store, *sheetdata.Spreadsheet) {
	t.Helper()
	ctx := context.Background()
	store := memoryRepo.New()

	id, err := store.CreateUser(ctx, "owner", "owner@example.com", "hash")
	require.NoError(t, err)
	require.Equal(t, ownerID, id)

	sp := &sheetdata.Spreadsheet{ID: uuid.New(), Name: "docs", OwnerID: ownerID}
	require.NoError(t, store.CreateSpreadsheet(ctx, sp))

	return mediaService.New(store, store, store, access.NewGate(store)), store, sp
}

func TestUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("stores bytes under an opaque key", func(t *testing.T) {
		svc, store, sp := setup(t)

		media, err := svc.Upload(ctx, sp.ID, ownerID, "report.pdf", "application/pdf", strings.NewReader("pdfdata"), 7)
		require.NoError(t, err)
		assert.Equal(t, "report.pdf", media.Filename)
		assert.NotEqual(t, "report.pdf", media.StorageKey)
		assert.True(t, strings.HasSuffix(media.StorageKey, ".pdf"))

		object, err := store.Download(ctx, media.StorageKey)
		require.NoError(t, err)
		defer object.Close()
		data, err := io.ReadAll(object)
		require.NoError(t, err)
		assert.Equal(t, "pdfdata", string(data))
	})

	t.Run("requires a filename", func(t *testing.T) {
		svc, _, sp := setup(t)
		_, err := svc.Upload(ctx, sp.ID, ownerID, "", "text/plain", strings.NewReader("x"), 1)
		assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
	})

	t.Run("requires EDIT", func(t *testing.T) {
		svc, store, sp := setup(t)
		require.NoError(t, store.UpsertPermission(ctx, &sheetdata.Permission{
			SpreadsheetID: sp.ID, UserID: 2, Level: sheetdata.LevelView,
		}))

		_, err := svc.Upload(ctx, sp.ID, 2, "a.txt", "text/plain", strings.NewReader("x"), 1)
		assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
	})
}

func TestDownload(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		svc, _, sp := setup(t)
		uploaded, err := svc.Upload(ctx, sp.ID, ownerID, "notes.txt", "text/plain", strings.NewReader("hello"), 5)
		require.NoError(t, err)

		media, object, err := svc.Download(ctx, uploaded.ID, ownerID)
		require.NoError(t, err)
		defer object.Close()

		assert.Equal(t, "notes.txt", media.Filename)
		data, err := io.ReadAll(object)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("unknown media", func(t *testing.T) {
		svc, _, _ := setup(t)
		_, _, err := svc.Download(ctx, uuid.New(), ownerID)
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})

	t.Run("missing object surfaces as storage failure", func(t *testing.T) {
		svc, store, sp := setup(t)
		uploaded, err := svc.Upload(ctx, sp.ID, ownerID, "lost.txt", "text/plain", strings.NewReader("x"), 1)
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, uploaded.StorageKey))

		_, _, err = svc.Download(ctx, uploaded.ID, ownerID)
		assert.True(t, errors.Is(err, apperr.ErrStorage))
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, store, sp := setup(t)

	uploaded, err := svc.Upload(ctx, sp.ID, ownerID, "temp.bin", "application/octet-stream", strings.NewReader("xx"), 2)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, uploaded.ID, ownerID))

	media, err := store.GetMedia(ctx, uploaded.ID)
	require.NoError(t, err)
	assert.Nil(t, media)

	_, err = store.Download(ctx, uploaded.StorageKey)
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	svc, _, sp := setup(t)

	_, err := svc.Upload(ctx, sp.ID, ownerID, "a.txt", "text/plain", strings.NewReader("a"), 1)
	require.NoError(t, err)
	_, err = svc.Upload(ctx, sp.ID, ownerID, "b.txt", "text/plain", strings.NewReader("b"), 1)
	require.NoError(t, err)

	list, err := svc.List(ctx, sp.ID, ownerID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
