package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Direction is the way a frame travelled through the bridge.
type Direction string

const (
	// Upstream frames came from the device and went to the broker.
	Upstream Direction = "upstream"

	// Downstream frames came from the broker and went to the device.
	Downstream Direction = "downstream"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 1000
)

// Entry is one journalled frame.
type Entry struct {
	ID int64

	// RunID identifies the bridge process that recorded the entry.
	RunID string

	Direction  Direction
	Kind       string
	Topic      string
	Message    string
	RecordedAt time.Time
}

// Repository defines the journal operations used by the bridge.
type Repository interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	CountByTopic(ctx context.Context, topic string) (int, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteRepository stores journal entries in SQLite.
type SQLiteRepository struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

// NewSQLiteRepository creates a repository over db. Every entry recorded
// without a RunID is stamped with a fresh per-repository UUID.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:    db,
		runID: uuid.NewString(),
		now:   time.Now,
	}
}

// RunID returns the identifier stamped on entries recorded by this repository.
func (r *SQLiteRepository) RunID() string {
	return r.runID
}

// Record inserts e. RecordedAt defaults to now.
func (r *SQLiteRepository) Record(ctx context.Context, e Entry) error {
	if e.Direction != Upstream && e.Direction != Downstream {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, e.Direction)
	}
	if e.Kind == "" {
		return ErrMissingKind
	}
	if e.RunID == "" {
		e.RunID = r.runID
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = r.now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO frame_journal (run_id, direction, kind, topic, message, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, string(e.Direction), e.Kind, e.Topic, e.Message,
		e.RecordedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// uses the default of 50; limits above 1000 are clamped.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	switch {
	case limit <= 0:
		limit = defaultRecentLimit
	case limit > maxRecentLimit:
		limit = maxRecentLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, run_id, direction, kind, topic, message, recorded_at
		 FROM frame_journal ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var direction string
		var recordedAt int64
		if err := rows.Scan(&e.ID, &e.RunID, &direction, &e.Kind, &e.Topic, &e.Message, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		e.Direction = Direction(direction)
		e.RecordedAt = time.UnixMilli(recordedAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}
	return entries, nil
}

// CountByTopic returns how many entries were recorded for topic.
func (r *SQLiteRepository) CountByTopic(ctx context.Context, topic string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM frame_journal WHERE topic = ?", topic,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting journal entries: %w", err)
	}
	return n, nil
}

// Prune deletes entries recorded strictly before the given time and returns
// how many were removed.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM frame_journal WHERE recorded_at < ?", before.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	return n, nil
}
