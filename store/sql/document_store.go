package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-roundup/core"
	"github.com/uptrace/bun"
)

// DocumentStore persists the configuration document as one row whose
// version column guards concurrent writers.
type DocumentStore struct {
	db   *bun.DB
	repo repository.Repository[*configDocumentRecord]
}

func NewDocumentStore(db *bun.DB) (*DocumentStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*configDocumentRecord](db, configDocumentHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid config document repository wiring: %w", err)
		}
	}
	return &DocumentStore{db: db, repo: repo}, nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (core.ConfigDocument, bool, error) {
	if s == nil || s.db == nil {
		return core.ConfigDocument{}, false, fmt.Errorf("sqlstore: document store is not configured")
	}
	record, err := s.load(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ConfigDocument{}, false, nil
		}
		return core.ConfigDocument{}, false, err
	}
	return record.toDomain(), true, nil
}

func (s *DocumentStore) Put(ctx context.Context, doc core.ConfigDocument) (core.ConfigDocument, error) {
	if s == nil || s.db == nil {
		return core.ConfigDocument{}, fmt.Errorf("sqlstore: document store is not configured")
	}
	doc.ID = strings.TrimSpace(doc.ID)
	if doc.ID == "" {
		return core.ConfigDocument{}, fmt.Errorf("sqlstore: document id is required")
	}

	var stored core.ConfigDocument
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now().UTC()
		current, loadErr := s.load(ctx, tx, doc.ID)
		if loadErr != nil && !errors.Is(loadErr, sql.ErrNoRows) {
			return loadErr
		}
		if loadErr != nil {
			record := newConfigDocumentRecord(doc, 1, now)
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				return insertErr
			}
			stored = record.toDomain()
			return nil
		}
		record := newConfigDocumentRecord(doc, current.Version+1, now)
		record.CreatedAt = current.CreatedAt
		if _, updateErr := tx.NewUpdate().
			Model(record).
			Column("value", "version", "updated_at").
			WherePK().
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		stored = record.toDomain()
		return nil
	})
	if err != nil {
		return core.ConfigDocument{}, err
	}
	return stored, nil
}

func (s *DocumentStore) CompareAndPut(
	ctx context.Context,
	doc core.ConfigDocument,
	expectedVersion int64,
) (core.ConfigDocument, error) {
	if s == nil || s.db == nil || s.repo == nil {
		return core.ConfigDocument{}, fmt.Errorf("sqlstore: document store is not configured")
	}
	doc.ID = strings.TrimSpace(doc.ID)
	if doc.ID == "" {
		return core.ConfigDocument{}, fmt.Errorf("sqlstore: document id is required")
	}
	now := time.Now().UTC()

	if expectedVersion == 0 {
		created, err := s.repo.Create(ctx, newConfigDocumentRecord(doc, 1, now))
		if err != nil {
			if isUniqueViolation(err) {
				return core.ConfigDocument{}, core.NewVersionConflictError(doc.ID, expectedVersion)
			}
			return core.ConfigDocument{}, err
		}
		return created.toDomain(), nil
	}

	record := newConfigDocumentRecord(doc, expectedVersion+1, now)
	result, err := s.db.NewUpdate().
		Model(record).
		Column("value", "version", "updated_at").
		Where("id = ?", doc.ID).
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return core.ConfigDocument{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.ConfigDocument{}, err
	}
	if affected == 0 {
		return core.ConfigDocument{}, core.NewVersionConflictError(doc.ID, expectedVersion)
	}
	return record.toDomain(), nil
}

func (s *DocumentStore) load(ctx context.Context, db bun.IDB, id string) (*configDocumentRecord, error) {
	record := &configDocumentRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}
