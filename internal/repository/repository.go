// Package repository provides methods to work with DB
package repository

import (
	"context"
	"database/sql"
	"log"
	"path/filepath"
	"time"

	"github.com/AronAlan/buyi-picture/internal/model"
	"github.com/AronAlan/buyi-picture/internal/repository/picpostgres"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
)

type PictureRepo interface {
	Create(ctx context.Context, p *model.Picture) error
	Get(ctx context.Context, id uuid.UUID) (*model.Picture, error)
	UpdateMeta(ctx context.Context, p *model.Picture) error
	SetReview(ctx context.Context, p *model.Picture) (bool, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (*model.Picture, error)
	FingerprintExists(ctx context.Context, spaceID *uuid.UUID, fingerprint string) (bool, error)
	CountActiveInSpace(ctx context.Context, spaceID uuid.UUID) (int64, error)
	List(ctx context.Context, req *model.PictureQueryRequest) ([]model.Picture, int64, error)
}

type SpaceRepo interface {
	Create(ctx context.Context, s *model.Space) error
	GetSpace(ctx context.Context, id uuid.UUID) (*model.Space, error)
	ApplyUsage(ctx context.Context, id uuid.UUID, deltaCount, deltaSize int64) error
	OwnerHasActive(ctx context.Context, userID uuid.UUID) (bool, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, req *model.SpaceQueryRequest) ([]model.Space, int64, error)
}

type UserRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	List(ctx context.Context, req *model.UserQueryRequest) ([]model.User, error)
}

type BatchTaskRepo interface {
	Create(ctx context.Context, t *model.BatchTask) error
	Get(ctx context.Context, id uuid.UUID) (*model.BatchTask, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.TaskStatus) error
	SaveResult(ctx context.Context, id uuid.UUID, status model.TaskStatus, res *model.BatchResult) error
	FetchOrphans(ctx context.Context, limit int) ([]string, error)
}

func NewPostgresPictureRepo(dbconn *dbpg.DB) PictureRepo {
	return picpostgres.PictureRepo{DB: dbconn}
}

func NewPostgresSpaceRepo(dbconn *dbpg.DB) SpaceRepo {
	return picpostgres.SpaceRepo{DB: dbconn}
}

func NewPostgresUserRepo(dbconn *dbpg.DB) UserRepo {
	return picpostgres.UserRepo{DB: dbconn}
}

func NewPostgresBatchTaskRepo(dbconn *dbpg.DB) BatchTaskRepo {
	return picpostgres.BatchTaskRepo{DB: dbconn}
}

func ConnectWithRetries(appConfig *config.Config, retryCount int, idleTime time.Duration) *dbpg.DB {
	dbOptions := dbpg.Options{
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: 10 * time.Minute,
	}
	dsnLink := appConfig.GetString("POSTGRES_DSN")
	var dbConn *dbpg.DB
	var err error

	for attempt := 0; attempt < retryCount; attempt++ {
		dbConn, err = dbpg.New(dsnLink, nil, &dbOptions)
		if err == nil {
			break
		}
		log.Printf("Failed to connect to PGDB: %s\nWaiting %v before next retry...", err, idleTime)
		time.Sleep(idleTime)
	}

	if err != nil {
		log.Fatal("Failed to connect to DB. Exiting the app...")
	}

	return dbConn
}

func MigrateWithRetries(db *sql.DB, migrationsPath string, retries int, idle time.Duration) {
	for i := 0; i < retries; i++ {
		log.Printf("Migration try #%d...", i)
		err := runMigrate(db, migrationsPath)
		if err == nil {
			break
		}
		switch i {
		case retries:
			log.Fatalln("Out of retries. Exiting...")
		default:
			log.Printf("Migration try #%d was unsuccessful. Waiting %v before next try...", i, idle)
			time.Sleep(idle)
		}
	}
}

func runMigrate(db *sql.DB, migrationsPath string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return err
	}

	sourceURL := "file://" + absPath
	log.Println("Running migrations from:", sourceURL)

	m, err := migrate.NewWithDatabaseInstance(
		sourceURL,
		"postgres",
		driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	log.Println("Database migrations applied successfully")
	return nil
}
