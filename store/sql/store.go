package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Store backs the key-value contract with a relational table. Redis remains
// the default deployment; this keeps single-node installs on the database
// they already run.
type Store struct {
	db   *bun.DB
	repo repository.Repository[*kvRecord]
	now  func() time.Time
}

func New(candidate any) (*Store, error) {
	db, err := resolveBunDB(candidate)
	if err != nil {
		return nil, err
	}

	repo := repository.NewRepository[*kvRecord](db, kvHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid kv repository wiring: %w", err)
		}
	}

	return &Store{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func NewFromPersistence(client *persistence.Client) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	}
	return New(client)
}

// Migrate creates the backing table and its expiry index when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: store is not configured")
	}
	if _, err := s.db.NewCreateTable().
		Model((*kvRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create integration_kv table: %w", err)
	}
	if _, err := s.db.NewCreateIndex().
		Model((*kvRecord)(nil)).
		Index("ix_integration_kv_expires_at").
		Column("expires_at").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create expiry index: %w", err)
	}
	return nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil || s.db == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: key is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("sqlstore: ttl must be positive for key %q", key)
	}

	now := s.now()
	record := &kvRecord{
		ID:        uuid.NewString(),
		Key:       key,
		Value:     append([]byte(nil), value...),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*kvRecord)(nil)).
			Where("key = ?", key).
			Exec(ctx); err != nil {
			return err
		}
		_, err := s.repo.CreateTx(ctx, tx, record)
		return err
	})
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("sqlstore: store is not configured")
	}

	record := new(kvRecord)
	err := s.db.NewSelect().
		Model(record).
		Where("key = ?", strings.TrimSpace(key)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if s.now().After(record.ExpiresAt) {
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	return append([]byte(nil), record.Value...), true, nil
}

// Consume reads and deletes inside one transaction; the delete's row count
// decides the winner when two callers race on the same key.
func (s *Store) Consume(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("sqlstore: store is not configured")
	}
	key = strings.TrimSpace(key)

	var value []byte
	found := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := new(kvRecord)
		err := tx.NewSelect().
			Model(record).
			Where("key = ?", key).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		result, err := tx.NewDelete().
			Model((*kvRecord)(nil)).
			Where("key = ?", key).
			Where("id = ?", record.ID).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		if s.now().After(record.ExpiresAt) {
			return nil
		}
		value = append([]byte(nil), record.Value...)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*kvRecord)(nil)).
		Where("key = ?", strings.TrimSpace(key)).
		Exec(ctx)
	return err
}

// DeleteExpired reclaims rows past their expiry. Meant for a periodic sweep;
// reads never return expired rows regardless.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*kvRecord)(nil)).
		Where("expires_at <= ?", s.now()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

var _ core.KeyValueStore = (*Store)(nil)
