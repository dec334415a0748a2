package archiveService

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spreadsheet-service/internal/access"
	"spreadsheet-service/internal/model/sheetdata"
	"spreadsheet-service/internal/repository"
	"spreadsheet-service/pkg/apperr"
	"spreadsheet-service/pkg/logger"
)

const (
	metadataFilename = "metadata.json"
	sheetsDir        = "sheets/"
	mediaDir         = "media/"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// spreadsheetMetadata is the manifest stored at the archive root. Sheet
// order in the manifest is the order index order of the spreadsheet.
type spreadsheetMetadata struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Sheets      []sheetMetadata `json:"sheets"`
	MediaFiles  []mediaMetadata `json:"mediaFiles"`
}

type sheetMetadata struct {
	Name     string `json:"name"`
	Filename string `json:"filename"`
}

type mediaMetadata struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// ArchiveService exports a spreadsheet to a zip archive and rebuilds a
// spreadsheet from one.
type ArchiveService struct {
	spreadsheets repository.SpreadsheetStore
	sheets       repository.SheetStore
	cells        repository.CellStore
	media        repository.MediaStore
	users        repository.UserStore
	objects      repository.ObjectStorage
	gate         *access.Gate
}

func New(
	spreadsheets repository.SpreadsheetStore,
	sheets repository.SheetStore,
	cells repository.CellStore,
	media repository.MediaStore,
	users repository.UserStore,
	objects repository.ObjectStorage,
	gate *access.Gate,
) *ArchiveService {
	return &ArchiveService{
		spreadsheets: spreadsheets,
		sheets:       sheets,
		cells:        cells,
		media:        media,
		users:        users,
		objects:      objects,
		gate:         gate,
	}
}

// Export writes the spreadsheet as a zip archive: metadata.json at the
// root, one CSV per sheet under sheets/, media bytes under media/.
// Requires VIEW.
func (s *ArchiveService) Export(ctx context.Context, spreadsheetID uuid.UUID, userID uint32) ([]byte, error) {
	spreadsheet, err := s.spreadsheets.GetSpreadsheet(ctx, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet: %w", err)
	}
	if spreadsheet == nil {
		return nil, apperr.NotFound("spreadsheet")
	}
	if err := s.gate.Authorize(ctx, spreadsheet, userID, sheetdata.LevelView); err != nil {
		return nil, err
	}

	sheets, err := s.sheets.ListSheets(ctx, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sheets: %w", err)
	}
	mediaFiles, err := s.media.ListMedia(ctx, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	metadata := spreadsheetMetadata{
		Name:        spreadsheet.Name,
		Description: spreadsheet.Description,
		Sheets:      make([]sheetMetadata, 0, len(sheets)),
		MediaFiles:  make([]mediaMetadata, 0, len(mediaFiles)),
	}

	for _, sheet := range sheets {
		filename := sanitizeFilename(sheet.Name) + ".csv"
		metadata.Sheets = append(metadata.Sheets, sheetMetadata{Name: sheet.Name, Filename: filename})

		cells, err := s.cells.AllCells(ctx, sheet.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list cells: %w", err)
		}
		entry, err := zw.Create(sheetsDir + filename)
		if err != nil {
			return nil, apperr.Storage("failed to add sheet entry", err)
		}
		if err := writeCSV(entry, cells); err != nil {
			return nil, err
		}
	}

	for _, media := range mediaFiles {
		metadata.MediaFiles = append(metadata.MediaFiles, mediaMetadata{
			Filename:    media.Filename,
			ContentType: media.ContentType,
			Size:        media.Size,
		})
		if err := s.copyMediaObject(ctx, zw, media); err != nil {
			return nil, err
		}
	}

	entry, err := zw.Create(metadataFilename)
	if err != nil {
		return nil, apperr.Storage("failed to add metadata entry", err)
	}
	encoder := json.NewEncoder(entry)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(metadata); err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, apperr.Storage("failed to finalize archive", err)
	}
	return buf.Bytes(), nil
}

// Import rebuilds a spreadsheet from an archive produced by Export. The
// caller becomes the owner. A missing metadata.json aborts before
// anything is created; a missing sheet CSV or media entry is logged and
// yields an empty sheet or a skipped file.
func (s *ArchiveService) Import(ctx context.Context, archive []byte, ownerID uint32) (*sheetdata.Spreadsheet, error) {
	owner, err := s.users.GetUserByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if owner == nil {
		return nil, apperr.NotFound("user")
	}

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, apperr.Format("not a zip archive")
	}
	entries := make(map[string]*zip.File, len(zr.File))
	for _, file := range zr.File {
		entries[path.Clean(file.Name)] = file
	}

	metadataEntry, ok := entries[metadataFilename]
	if !ok {
		return nil, apperr.Format("archive has no metadata.json")
	}
	var metadata spreadsheetMetadata
	if err := decodeEntry(metadataEntry, &metadata); err != nil {
		return nil, err
	}

	now := time.Now()
	spreadsheet := &sheetdata.Spreadsheet{
		ID:          uuid.New(),
		Name:        metadata.Name,
		Description: metadata.Description,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.spreadsheets.CreateSpreadsheet(ctx, spreadsheet); err != nil {
		return nil, fmt.Errorf("failed to create spreadsheet: %w", err)
	}

	log := logger.GetLogger(ctx)
	for i, meta := range metadata.Sheets {
		sheet := &sheetdata.Sheet{
			ID:            uuid.New(),
			SpreadsheetID: spreadsheet.ID,
			Name:          meta.Name,
			OrderIndex:    i,
			RowCount:      1000,
			ColumnCount:   26,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.sheets.CreateSheet(ctx, sheet); err != nil {
			return nil, fmt.Errorf("failed to create sheet: %w", err)
		}

		entry, ok := entries[sheetsDir+meta.Filename]
		if !ok {
			log.Warn("sheet data missing from archive, importing empty sheet",
				zap.String("sheet", meta.Name), zap.String("filename", meta.Filename))
			continue
		}
		upserts, err := readCSVCells(entry, sheet.ID)
		if err != nil {
			return nil, err
		}
		if len(upserts) > 0 {
			if err := s.cells.ApplyChanges(ctx, sheet.ID, nil, upserts); err != nil {
				return nil, fmt.Errorf("failed to import cells: %w", err)
			}
		}
	}

	for _, meta := range metadata.MediaFiles {
		entry, ok := entries[mediaDir+meta.Filename]
		if !ok {
			log.Warn("media file missing from archive, skipping",
				zap.String("filename", meta.Filename))
			continue
		}
		if err := s.importMediaEntry(ctx, spreadsheet.ID, meta, entry, now); err != nil {
			return nil, err
		}
	}

	return spreadsheet, nil
}

func (s *ArchiveService) copyMediaObject(ctx context.Context, zw *zip.Writer, media *sheetdata.Media) error {
	object, err := s.objects.Download(ctx, media.StorageKey)
	if err != nil {
		return apperr.Storage("failed to download media object", err)
	}
	defer object.Close()

	entry, err := zw.Create(mediaDir + media.Filename)
	if err != nil {
		return apperr.Storage("failed to add media entry", err)
	}
	if _, err := io.Copy(entry, object); err != nil {
		return apperr.Storage("failed to copy media object", err)
	}
	return nil
}

func (s *ArchiveService) importMediaEntry(ctx context.Context, spreadsheetID uuid.UUID, meta mediaMetadata, entry *zip.File, now time.Time) error {
	reader, err := entry.Open()
	if err != nil {
		return apperr.Format("failed to open media entry")
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return apperr.Format("failed to read media entry")
	}

	storageKey := uuid.New().String() + path.Ext(meta.Filename)
	if err := s.objects.Upload(ctx, storageKey, bytes.NewReader(data), int64(len(data)), meta.ContentType); err != nil {
		return apperr.Storage("failed to upload media object", err)
	}

	media := &sheetdata.Media{
		ID:            uuid.New(),
		SpreadsheetID: spreadsheetID,
		Filename:      meta.Filename,
		ContentType:   meta.ContentType,
		Size:          int64(len(data)),
		StorageKey:    storageKey,
		UploadedAt:    now,
	}
	if err := s.media.CreateMedia(ctx, media); err != nil {
		return fmt.Errorf("failed to save media record: %w", err)
	}
	return nil
}

// writeCSV writes the sparse cells as a dense rectangle: rows 0 through
// the highest occupied row, each as wide as the widest occupied column,
// with empty strings for absent cells.
func writeCSV(w io.Writer, cells []sheetdata.Cell) error {
	maxRow, maxCol := -1, -1
	for _, cell := range cells {
		if cell.RowIndex > maxRow {
			maxRow = cell.RowIndex
		}
		if cell.ColumnIndex > maxCol {
			maxCol = cell.ColumnIndex
		}
	}

	writer := csv.NewWriter(w)
	if maxRow >= 0 {
		grid := make(map[repository.CellRef]string, len(cells))
		for _, cell := range cells {
			grid[repository.CellRef{Row: cell.RowIndex, Col: cell.ColumnIndex}] = cell.Value
		}
		record := make([]string, maxCol+1)
		for row := 0; row <= maxRow; row++ {
			for col := 0; col <= maxCol; col++ {
				record[col] = grid[repository.CellRef{Row: row, Col: col}]
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write csv row: %w", err)
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// readCSVCells parses a sheet CSV, keeping only non-empty fields. The
// row index advances once per physical line, so a blank line consumes
// a row without creating cells. csv.Reader cannot be used directly
// here: it skips blank lines, which would collapse the gaps of a
// single-column sheet and shift every cell below them.
func readCSVCells(entry *zip.File, sheetID uuid.UUID) ([]sheetdata.Cell, error) {
	reader, err := entry.Open()
	if err != nil {
		return nil, apperr.Format("failed to open sheet entry")
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, apperr.Format("failed to read sheet entry")
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var cells []sheetdata.Cell
	var record strings.Builder
	row := 0
	inQuotes := false
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if inQuotes {
			record.WriteString("\n")
		}
		record.WriteString(line)

		// A line with an odd number of quote characters opens or
		// closes a quoted field; the record continues on the next line.
		if strings.Count(line, `"`)%2 == 1 {
			inQuotes = !inQuotes
		}
		if inQuotes {
			continue
		}

		fields, err := parseRecord(record.String())
		if err != nil {
			return nil, apperr.Format(fmt.Sprintf("malformed csv in %s", entry.Name))
		}
		record.Reset()

		for col, value := range fields {
			if strings.TrimSpace(value) == "" {
				continue
			}
			cells = append(cells, sheetdata.Cell{
				SheetID:     sheetID,
				RowIndex:    row,
				ColumnIndex: col,
				Value:       value,
			})
		}
		row++
	}
	if inQuotes {
		return nil, apperr.Format(fmt.Sprintf("malformed csv in %s", entry.Name))
	}
	return cells, nil
}

func parseRecord(record string) ([]string, error) {
	if record == "" {
		return nil, nil
	}
	parser := csv.NewReader(strings.NewReader(record))
	parser.FieldsPerRecord = -1
	return parser.Read()
}

func decodeEntry(entry *zip.File, v any) error {
	reader, err := entry.Open()
	if err != nil {
		return apperr.Format("failed to open metadata entry")
	}
	defer reader.Close()

	if err := json.NewDecoder(reader).Decode(v); err != nil {
		return apperr.Format("malformed metadata.json")
	}
	return nil
}

func sanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}
