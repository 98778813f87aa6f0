package bunsource

import (
	"context"
	"database/sql"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-optimistic-cache/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// OpenSQLite opens a mirror database with the mattn/go-sqlite3 driver.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "open sqlite mirror")
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// OpenPostgres opens a mirror database with the lib/pq driver.
func OpenPostgres(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "open postgres mirror")
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// Open picks the driver by name: "sqlite" or "postgres".
func Open(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return OpenSQLite(dsn)
	case "postgres", "postgresql":
		return OpenPostgres(dsn)
	default:
		return nil, goerrors.New("unsupported mirror driver "+driver, goerrors.CategoryValidation).
			WithMetadata(map[string]any{"driver": driver})
	}
}

// CreateSchema creates the entity_models table when it does not exist.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*EntityRecord)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "create entity_models table")
	}
	return nil
}

// NewRepository returns the go-repository-bun repository over entity_models.
func NewRepository(db *bun.DB) repository.Repository[*EntityRecord] {
	return repository.NewRepository[*EntityRecord](db, repository.ModelHandlers[*EntityRecord]{
		NewRecord: func() *EntityRecord {
			return &EntityRecord{}
		},
		GetID: func(r *EntityRecord) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *EntityRecord, id uuid.UUID) {
			r.ID = id
		},
		GetIdentifier: func() string {
			return "entity_id"
		},
	})
}

// SaveEntity writes every model of e as its own row.
func SaveEntity(ctx context.Context, repo repository.Repository[*EntityRecord], e store.Entity) error {
	records := RecordsFor(e)
	if len(records) == 0 {
		return nil
	}
	if _, err := repo.CreateMany(ctx, records); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "save entity records").
			WithMetadata(map[string]any{"entity_id": e.ID})
	}
	return nil
}
