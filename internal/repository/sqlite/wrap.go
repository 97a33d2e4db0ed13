package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wrapify/wrapify/internal/model"
	"github.com/wrapify/wrapify/internal/repository"
)

var _ repository.WrapRepository = (*DB)(nil)

// CreateWrap stores a new wrap. ID and CreatedAt are assigned here.
func (db *DB) CreateWrap(ctx context.Context, nw model.NewWrap) (*model.Wrap, error) {
	if err := nw.Validate(); err != nil {
		return nil, err
	}

	w := model.Wrap{
		UserID:    nw.UserID,
		Data:      nw.Data,
		ShareURL:  nw.ShareURL,
		CreatedAt: db.now().UTC(),
	}

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO wraps (user_id, data, share_url, created_at)
		 VALUES (?, ?, ?, ?)
		 RETURNING id`,
		w.UserID,
		string(w.Data),
		w.ShareURL,
		toNanos(w.CreatedAt),
	).Scan(&w.ID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: inserting wrap for user %d: %w", nw.UserID, err)
	}

	return &w, nil
}

// GetWrapsByUserID returns every wrap owned by userID, newest first.
// Ties on created_at fall back to the higher id.
func (db *DB) GetWrapsByUserID(ctx context.Context, userID int64) ([]model.Wrap, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, data, share_url, created_at
		 FROM wraps
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing wraps for user %d: %w", userID, err)
	}
	defer rows.Close()

	// Non-nil so the JSON encoding is [] rather than null.
	wraps := []model.Wrap{}
	for rows.Next() {
		var (
			w        model.Wrap
			data     string
			shareURL *string
			created  int64
		)
		if err := rows.Scan(&w.ID, &w.UserID, &data, &shareURL, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scanning wrap row: %w", err)
		}
		w.Data = json.RawMessage(data)
		w.ShareURL = shareURL
		w.CreatedAt = fromNanos(created)
		wraps = append(wraps, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating wrap rows: %w", err)
	}

	return wraps, nil
}
