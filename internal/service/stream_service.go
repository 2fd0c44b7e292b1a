package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"radio-api/internal/client"
	"radio-api/internal/config"
	"radio-api/internal/model"
	"radio-api/internal/repository/mysql"
	"radio-api/internal/util"
)

// StreamService reports stream status and the track derived from wall-clock
// rotation over the playlist. Every caller computes the same now-playing
// answer for the same instant without shared state.
type StreamService struct {
	repo       mysql.StreamRepository
	clickhouse *client.ClickHouseClient
	chEnabled  bool
	streamName string
	nowFn      func() time.Time
}

func NewStreamService(cfg *config.Config, repo mysql.StreamRepository, ch *client.ClickHouseClient) *StreamService {
	return &StreamService{
		repo:       repo,
		clickhouse: ch,
		chEnabled:  cfg.Clickhouse.Enabled && ch != nil,
		streamName: "Radio Adamowo",
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

// Status assembles the live status payload. Listener figures come from the
// audit archive when available; otherwise they are reported as zero rather
// than invented.
func (s *StreamService) Status(ctx context.Context) (*model.StreamStatus, error) {
	now := s.nowFn()
	status := &model.StreamStatus{
		Status:       "online",
		StreamName:   s.streamName,
		ServerStatus: "running",
		Bitrate:      128,
		Format:       "mp3",
		CurrentTime:  now,
	}

	if s.chEnabled {
		listeners, peak, err := s.listenerFigures(ctx, now)
		if err != nil {
			util.Warn("Listener figures unavailable", zap.Error(err))
		} else {
			status.Listeners = listeners
			status.PeakListeners = peak
		}
	}
	return status, nil
}

// listenerFigures approximates the audience from distinct clients seen in the
// archive: current = last 5 minutes, peak = best minute of the last 24 hours.
func (s *StreamService) listenerFigures(ctx context.Context, now time.Time) (int, int, error) {
	var current uint64
	rows, err := s.clickhouse.QueryRows(ctx,
		`SELECT uniqExact(client_id) FROM security_events WHERE created_at >= ?`,
		now.Add(-5*time.Minute))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query current listeners: %w", err)
	}
	if rows.Next() {
		if err := rows.Scan(&current); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("failed to scan current listeners: %w", err)
		}
	}
	rows.Close()

	var peak uint64
	rows, err = s.clickhouse.QueryRows(ctx,
		`SELECT max(cnt) FROM (
			SELECT toStartOfMinute(created_at) AS minute, uniqExact(client_id) AS cnt
			FROM security_events WHERE created_at >= ?
			GROUP BY minute
		)`,
		now.Add(-24*time.Hour))
	if err != nil {
		return int(current), 0, fmt.Errorf("failed to query peak listeners: %w", err)
	}
	if rows.Next() {
		if err := rows.Scan(&peak); err != nil {
			rows.Close()
			return int(current), 0, fmt.Errorf("failed to scan peak listeners: %w", err)
		}
	}
	rows.Close()

	return int(current), int(peak), nil
}

// NowPlaying maps the current instant onto the playlist: elapsed seconds
// since epoch modulo the total playlist length select the track.
func (s *StreamService) NowPlaying(ctx context.Context) (*model.NowPlaying, error) {
	tracks, err := s.repo.ListTracks(ctx)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, errors.New("playlist is empty")
	}

	var totalSeconds int
	for _, t := range tracks {
		totalSeconds += t.DurationSeconds
	}
	if totalSeconds == 0 {
		return nil, errors.New("playlist has no playable duration")
	}

	now := s.nowFn()
	offset := int(now.Unix()) % totalSeconds

	elapsed := offset
	for i, t := range tracks {
		if elapsed < t.DurationSeconds {
			return &model.NowPlaying{
				Track:      &tracks[i],
				StartedAt:  now.Add(-time.Duration(elapsed) * time.Second),
				ElapsedSec: elapsed,
				Index:      i,
				Total:      len(tracks),
			}, nil
		}
		elapsed -= t.DurationSeconds
	}

	// Unreachable while offset < totalSeconds; keep the compiler honest.
	return nil, errors.New("playlist rotation failed")
}

// Playlist returns the full rotation in order.
func (s *StreamService) Playlist(ctx context.Context) ([]model.Track, error) {
	return s.repo.ListTracks(ctx)
}

// AddTrack appends a track to the rotation, admin only.
func (s *StreamService) AddTrack(ctx context.Context, title, artist string, durationSeconds int) (*model.Track, error) {
	title = strings.TrimSpace(title)
	artist = strings.TrimSpace(artist)
	if title == "" || artist == "" {
		return nil, fmt.Errorf("%w: title and artist are required", ErrValidation)
	}
	if durationSeconds < 10 || durationSeconds > 3600 {
		return nil, fmt.Errorf("%w: duration must be 10-3600 seconds", ErrValidation)
	}

	existing, err := s.repo.ListTracks(ctx)
	if err != nil {
		return nil, err
	}

	track := &model.Track{
		Title:           util.SanitizeInput(title),
		Artist:          util.SanitizeInput(artist),
		DurationSeconds: durationSeconds,
		Position:        len(existing) + 1,
	}
	if _, err := s.repo.AddTrack(ctx, track); err != nil {
		return nil, err
	}
	return track, nil
}
