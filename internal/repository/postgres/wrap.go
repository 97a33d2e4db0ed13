package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wrapify/wrapify/internal/model"
	"github.com/wrapify/wrapify/internal/repository"
)

var _ repository.WrapRepository = (*DB)(nil)

// CreateWrap stores a wrap; id and created_at come from the database.
func (db *DB) CreateWrap(ctx context.Context, nw model.NewWrap) (*model.Wrap, error) {
	if err := nw.Validate(); err != nil {
		return nil, err
	}

	var w model.Wrap
	err := db.pool.QueryRow(ctx,
		`INSERT INTO wraps (user_id, data, share_url)
		 VALUES ($1, $2, $3)
		 RETURNING id, user_id, data, share_url, created_at`,
		nw.UserID, []byte(nw.Data), nw.ShareURL,
	).Scan(&w.ID, &w.UserID, &w.Data, &w.ShareURL, &w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: inserting wrap for user %d: %w", nw.UserID, err)
	}
	w.CreatedAt = w.CreatedAt.UTC()
	return &w, nil
}

// GetWrapsByUserID lists a user's wraps newest first.
func (db *DB) GetWrapsByUserID(ctx context.Context, userID int64) ([]model.Wrap, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, user_id, data, share_url, created_at
		 FROM wraps
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing wraps for user %d: %w", userID, err)
	}

	wraps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Wrap, error) {
		var w model.Wrap
		err := row.Scan(&w.ID, &w.UserID, &w.Data, &w.ShareURL, &w.CreatedAt)
		w.CreatedAt = w.CreatedAt.UTC()
		return w, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scanning wraps: %w", err)
	}
	if wraps == nil {
		wraps = []model.Wrap{}
	}
	return wraps, nil
}
