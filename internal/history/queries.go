package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tldr/internal/domain"
)

const defaultListLimit = 20

type Entry struct {
	ID        int64
	UserID    int64
	Result    domain.TldrResult
	CreatedAt time.Time
}

// Add stores a finished summary for userID. The CLI uses user 0.
func (s *Store) Add(ctx context.Context, userID int64, result *domain.TldrResult) (int64, error) {
	if strings.TrimSpace(result.Summary) == "" {
		return 0, errors.New("summary is empty")
	}

	query := `insert into summaries (
		user_id, source, title, author, published, content, partial,
		summary, provider, model, word_count, duration_ms, created_at
	) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	ext := result.Extraction
	res, err := s.db.ExecContext(ctx, query,
		userID, ext.Source, ext.Title, ext.Author, ext.Date, ext.Content, ext.Partial,
		result.Summary, result.Provider, result.Model, ext.WordCount,
		result.Duration.Milliseconds(), s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("insert summary: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted id: %w", err)
	}

	return id, nil
}

// List returns the newest entries of userID first. Content is left out.
func (s *Store) List(ctx context.Context, userID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `select id, user_id, source, title, author, published, '', partial,
		summary, provider, model, word_count, duration_ms, created_at
	from summaries
	where user_id = ?
	order by created_at desc, id desc
	limit ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			s.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"userID", userID,
				"operation", "List")
		}
	}()

	var entries []Entry
	for rows.Next() {
		entry, scanErr := scanEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan row: %w", scanErr)
		}
		entries = append(entries, *entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return entries, nil
}

// Get loads one entry of userID with its content.
func (s *Store) Get(ctx context.Context, userID, id int64) (*Entry, error) {
	query := `select id, user_id, source, title, author, published, content, partial,
		summary, provider, model, word_count, duration_ms, created_at
	from summaries
	where id = ? and user_id = ?`

	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get entry %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %d: %w", id, err)
	}

	return entry, nil
}

// Prune deletes entries created before cutoff and reports how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "delete from summaries where created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete old summaries: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted summaries: %w", err)
	}

	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		entry      Entry
		ext        = &entry.Result.Extraction
		durationMS int64
		createdAt  int64
	)

	err := row.Scan(&entry.ID, &entry.UserID,
		&ext.Source, &ext.Title, &ext.Author, &ext.Date, &ext.Content, &ext.Partial,
		&entry.Result.Summary, &entry.Result.Provider, &entry.Result.Model, &ext.WordCount,
		&durationMS, &createdAt)
	if err != nil {
		return nil, err
	}

	entry.Result.Duration = time.Duration(durationMS) * time.Millisecond
	entry.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &entry, nil
}
