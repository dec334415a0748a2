package app

import (
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"spreadsheet-service/internal/access"
	"spreadsheet-service/internal/cache"
	"spreadsheet-service/internal/repository"
	"spreadsheet-service/internal/repository/cellRepo"
	"spreadsheet-service/internal/repository/spreadsheetRepo"
	"spreadsheet-service/internal/repository/userRepo"
	"spreadsheet-service/internal/service/archiveService"
	"spreadsheet-service/internal/service/gridService"
	"spreadsheet-service/internal/service/mediaService"
	"spreadsheet-service/internal/service/spreadsheetService"
	"spreadsheet-service/internal/service/userService"
	"spreadsheet-service/internal/service/workbookService"
)

// App wires the repositories and services together. Callers embed it
// behind whatever transport they expose.
type App struct {
	Users        *userService.UserService
	Spreadsheets *spreadsheetService.SpreadsheetService
	Grid         *gridService.GridService
	Archive      *archiveService.ArchiveService
	Workbook     *workbookService.WorkbookService
	Media        *mediaService.MediaService
}

func New(conn *pgx.Conn, redisClient *redis.Client, objects repository.ObjectStorage) *App {
	users := userRepo.New(conn)
	store := spreadsheetRepo.New(conn)
	cells := cellRepo.New(conn)

	permCache := cache.New(redisClient, store)
	gate := access.NewGate(permCache)

	return &App{
		Users:        userService.New(users),
		Spreadsheets: spreadsheetService.New(store, store, cells, store, store, users, objects, gate, permCache),
		Grid:         gridService.New(store, store, cells, gate),
		Archive:      archiveService.New(store, store, cells, store, users, objects, gate),
		Workbook:     workbookService.New(store, store, cells, users, gate),
		Media:        mediaService.New(store, store, objects, gate),
	}
}
