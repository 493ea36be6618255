package store

import (
	"context"
	"time"

	"candid-decisions/internal/db"
)

// CleanupStale removes day-old matches that never finished or were
// left behind after a reveal, plus verdict sessions past the cutoff.
// The relayd janitor runs this on a schedule; match creation also
// sweeps opportunistically.
func (s *Store) CleanupStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	result := s.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []string{db.MatchStatusWaiting, db.MatchStatusRevealed}, cutoff).
		Delete(&db.Match{})
	if result.Error != nil {
		return removed, result.Error
	}
	removed += result.RowsAffected

	var stale []db.VerdictSession
	if err := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Find(&stale).Error; err != nil {
		return removed, err
	}
	for _, session := range stale {
		if err := s.DeleteSession(ctx, session.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
