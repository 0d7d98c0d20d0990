// Package archive keeps a durable SQLite copy of every published review.
// The coordination store remains the source of truth; the archive is for
// operators and offline analysis.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
	"github.com/tjfontaine/record-review-gateway/internal/core/ports"
)

// Record is one archived review.
type Record struct {
	RecordID   string         `db:"record_id" json:"record_id"`
	ErrorCode  int            `db:"error_code" json:"error_code"`
	Review     sql.NullString `db:"review" json:"-"`
	Timestamp  int64          `db:"timestamp" json:"timestamp"`
	ArchivedAt int64          `db:"archived_at" json:"archived_at"`
}

// ListOptions filters List. A nil ErrorCode matches every record.
type ListOptions struct {
	Limit     int
	Offset    int
	ErrorCode *int
}

// Archive is a SQLite implementation of ports.ReviewArchive.
type Archive struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ ports.ReviewArchive = (*Archive)(nil)

// Open opens or creates the archive at path. ":memory:" is accepted.
func Open(path string) (*Archive, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serialises writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL"} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	a := &Archive{db: db, now: time.Now}
	if err := a.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return a, nil
}

func (a *Archive) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS reviews (
			record_id TEXT PRIMARY KEY,
			error_code INTEGER NOT NULL,
			review TEXT,
			timestamp INTEGER NOT NULL,
			archived_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_error_code ON reviews(error_code)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_timestamp ON reviews(timestamp)`,
	}
	for _, stmt := range statements {
		if _, err := a.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Put archives review unless id is already archived.
func (a *Archive) Put(ctx context.Context, id string, review *domain.Review) error {
	var payload sql.NullString
	if len(review.Review) > 0 {
		payload = sql.NullString{String: string(review.Review), Valid: true}
	}

	_, err := a.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reviews (record_id, error_code, review, timestamp, archived_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, review.ErrorCode, payload, review.Timestamp, a.now().Unix())
	if err != nil {
		return fmt.Errorf("archive review %s: %w", id, err)
	}
	return nil
}

// Get returns the archived record for id, or ports.ErrNotFound.
func (a *Archive) Get(ctx context.Context, id string) (*Record, error) {
	var r Record
	err := a.db.GetContext(ctx, &r, `SELECT * FROM reviews WHERE record_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get archived review %s: %w", id, err)
	}
	return &r, nil
}

// List returns archived records, newest first.
func (a *Archive) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	query := `SELECT * FROM reviews`
	var args []any
	if opts.ErrorCode != nil {
		query += ` WHERE error_code = ?`
		args = append(args, *opts.ErrorCode)
	}
	query += ` ORDER BY timestamp DESC, record_id`

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	var out []Record
	if err := a.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list archived reviews: %w", err)
	}
	return out, nil
}

// ToReview converts the record back to its stored form.
func (r *Record) ToReview() *domain.Review {
	review := &domain.Review{ErrorCode: r.ErrorCode, Timestamp: r.Timestamp}
	if r.Review.Valid {
		review.Review = []byte(r.Review.String)
	}
	return review
}

func (a *Archive) Close() error {
	return a.db.Close()
}
