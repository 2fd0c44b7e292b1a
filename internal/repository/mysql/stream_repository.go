package mysql

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"radio-api/internal/client"
	"radio-api/internal/model"
	"radio-api/internal/util"
)

type streamRepository struct {
	client *client.MySQLClient
}

func NewStreamRepository(c *client.MySQLClient, logger *zap.Logger) StreamRepository {
	return &streamRepository{client: c}
}

func (r *streamRepository) ListTracks(ctx context.Context) ([]model.Track, error) {
	ctx, cancel := r.client.WithContext(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.client.DB.QueryContext(ctx,
		`SELECT id, title, artist, duration_seconds, position
		 FROM playlist_tracks ORDER BY position ASC, id ASC`)
	if err != nil {
		util.Error("Failed to list playlist tracks", zap.Error(err))
		return nil, fmt.Errorf("failed to list playlist tracks: %w", err)
	}
	defer rows.Close()

	var tracks []model.Track
	for rows.Next() {
		var t model.Track
		if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.DurationSeconds, &t.Position); err != nil {
			return nil, fmt.Errorf("failed to scan track row: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

func (r *streamRepository) AddTrack(ctx context.Context, track *model.Track) (int64, error) {
	ctx, cancel := r.client.WithContext(ctx, 5*time.Second)
	defer cancel()

	res, err := r.client.DB.ExecContext(ctx,
		`INSERT INTO playlist_tracks (title, artist, duration_seconds, position) VALUES (?, ?, ?, ?)`,
		track.Title, track.Artist, track.DurationSeconds, track.Position)
	if err != nil {
		util.Error("Failed to add playlist track", zap.String("title", track.Title), zap.Error(err))
		return 0, fmt.Errorf("failed to add playlist track: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read track id: %w", err)
	}
	track.ID = id
	return id, nil
}
