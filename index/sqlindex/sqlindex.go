// Package sqlindex stores managed records in SQLite.
//
// The address column carries a UNIQUE constraint, so create-if-absent is a
// single INSERT, and deletes are conditional on both id and address.
package sqlindex

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/nuln/fsbox"
)

//go:embed schema.sql
var schemaSQL string

// Index is an fsbox.Index backed by a SQLite database.
type Index struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

// Open opens (and if needed creates) the database at path. An empty path
// opens a private in-memory database.
func Open(path string, logger logrus.FieldLogger) (*Index, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	dsn := path
	if path == "" {
		dsn = ":memory:"
	} else if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and ":memory:"
	// databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize index schema: %w", err)
	}

	logger.WithField("path", dsn).Info("SQLite record index initialized")
	return &Index{db: db, logger: logger}, nil
}

func (x *Index) Create(ctx context.Context, rec fsbox.Record) (*fsbox.Record, error) {
	rec = fsbox.PrepareRecord(rec)

	res, err := x.db.ExecContext(ctx, `
		INSERT INTO records (id, address, filename, size, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		rec.ID, rec.Address, rec.Filename, rec.Size, rec.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("%w: insert record: %v", fsbox.ErrBackendUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: insert record: %v", fsbox.ErrBackendUnavailable, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: record for %q", fsbox.ErrConflict, rec.Address)
	}
	return &rec, nil
}

func (x *Index) FindByAddress(ctx context.Context, address string) (*fsbox.Record, error) {
	row := x.db.QueryRowContext(ctx, `
		SELECT id, address, filename, size, created_at
		FROM records WHERE address = ?`, address)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fsbox.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find record: %v", fsbox.ErrBackendUnavailable, err)
	}
	return rec, nil
}

func (x *Index) Delete(ctx context.Context, rec *fsbox.Record) error {
	res, err := x.db.ExecContext(ctx, `DELETE FROM records WHERE id = ? AND address = ?`, rec.ID, rec.Address)
	if err != nil {
		return fmt.Errorf("%w: delete record: %v", fsbox.ErrBackendUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: delete record: %v", fsbox.ErrBackendUnavailable, err)
	}
	if n == 0 {
		return fsbox.ErrNotFound
	}
	return nil
}

func (x *Index) List(ctx context.Context) ([]*fsbox.Record, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT id, address, filename, size, created_at
		FROM records ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %v", fsbox.ErrBackendUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*fsbox.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			x.logger.WithError(err).Warn("Failed to scan record row")
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list records: %v", fsbox.ErrBackendUnavailable, err)
	}
	return out, nil
}

func (x *Index) Close() error {
	return x.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*fsbox.Record, error) {
	var (
		rec     fsbox.Record
		created int64
	)
	if err := s.Scan(&rec.ID, &rec.Address, &rec.Filename, &rec.Size, &created); err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	return &rec, nil
}

var _ fsbox.Index = (*Index)(nil)
