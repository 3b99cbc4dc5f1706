package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"

	"github.com/MKhiriev/clinic-keeper/internal/logger"
)

const (
	sqliteWriteAttempts = 3
	sqliteRetryDelay    = 20 * time.Millisecond
)

type sqliteBackend struct {
	db         *DB
	classifier *SQLiteErrorClassifier
	logger     *logger.Logger
}

// NewSQLiteBackend returns a [Backend] storing records in the kv_records
// table of db. The schema must already be migrated.
func NewSQLiteBackend(db *DB, log *logger.Logger) (Backend, error) {
	if db == nil || db.DB == nil {
		return nil, ErrNilDB
	}
	return &sqliteBackend{db: db, classifier: NewSQLiteErrorClassifier(), logger: log}, nil
}

func (b *sqliteBackend) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx, getRecord, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		b.logger.Err(err).Str("func", "sqliteBackend.Get").Str("key", key).Msg("error reading record")
		return "", false, fmt.Errorf("error reading record: %w", err)
	}
	return value, true, nil
}

func (b *sqliteBackend) Set(ctx context.Context, key, value string) error {
	if err := b.exec(ctx, upsertRecord, key, value, time.Now().UTC()); err != nil {
		b.logger.Err(err).Str("func", "sqliteBackend.Set").Str("key", key).Msg("error writing record")
		return fmt.Errorf("error writing record: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Remove(ctx context.Context, key string) error {
	if err := b.exec(ctx, deleteRecord, key); err != nil {
		b.logger.Err(err).Str("func", "sqliteBackend.Remove").Str("key", key).Msg("error deleting record")
		return fmt.Errorf("error deleting record: %w", err)
	}
	return nil
}

// exec runs a write statement, retrying while the database is busy or locked.
func (b *sqliteBackend) exec(ctx context.Context, query string, args ...any) error {
	var err error
	for attempt := 1; ; attempt++ {
		if _, err = b.db.ExecContext(ctx, query, args...); err == nil {
			return nil
		}
		if attempt == sqliteWriteAttempts || b.classifier.Classify(err) != Retryable {
			return err
		}

		b.logger.Debug().Err(err).Int("attempt", attempt).Msg("sqlite busy, retrying write")
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt) * sqliteRetryDelay):
		}
	}
}

// prefixCond matches keys by exact prefix; LIKE would treat '_' as a wildcard.
// SQLite's substr counts characters, not bytes.
func prefixCond(prefix string) sq.Sqlizer {
	return sq.Expr("substr(record_key, 1, ?) = ?", utf8.RuneCountInString(prefix), prefix)
}

func (b *sqliteBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	query, args, err := sq.Select("record_key").
		From(kvTable).
		Where(prefixCond(prefix)).
		OrderBy("record_key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building keys query: %w", err)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		b.logger.Err(err).Str("func", "sqliteBackend.Keys").Msg("error listing keys")
		return nil, fmt.Errorf("error listing keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("error scanning key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keys: %w", err)
	}

	return keys, nil
}

func (b *sqliteBackend) RemovePrefix(ctx context.Context, prefix string) error {
	query, args, err := sq.Delete(kvTable).Where(prefixCond(prefix)).ToSql()
	if err != nil {
		return fmt.Errorf("error building delete query: %w", err)
	}

	if err := b.exec(ctx, query, args...); err != nil {
		b.logger.Err(err).Str("func", "sqliteBackend.RemovePrefix").Msg("error deleting records")
		return fmt.Errorf("error deleting records: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
