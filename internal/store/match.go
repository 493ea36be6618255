package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"candid-decisions/internal/db"
	"candid-decisions/internal/feed"

	"gorm.io/gorm"
)

const (
	RoleHost  = "host"
	RoleGuest = "guest"
)

const codeInsertAttempts = 5

// CreateMatch inserts a fresh waiting match and returns it. Stale
// matches older than a day are swept opportunistically first, and a
// session-code collision regenerates the code instead of failing.
func (s *Store) CreateMatch(ctx context.Context, hostName, hostFood string) (*db.Match, error) {
	s.sweepStaleMatches(ctx)
	for attempt := 0; attempt < codeInsertAttempts; attempt++ {
		match := &db.Match{
			ID:        newSessionCode(),
			HostName:  hostName,
			HostFood:  hostFood,
			Status:    db.MatchStatusWaiting,
			CreatedAt: timeNowUTC(),
		}
		err := s.db.WithContext(ctx).Create(match).Error
		if err == nil {
			s.publishMatch(feed.ActionInsert, match)
			s.audit(ctx, feed.TableMatches, match.ID, feed.ActionInsert, match)
			s.log.Infow("match created", "match_id", match.ID, "host", hostName)
			return match, nil
		}
		if isUniqueViolation(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrCodeExhausted
}

// GetMatch is the exactly-one read: any miss is ErrNotFound. Codes are
// case-insensitive.
func (s *Store) GetMatch(ctx context.Context, id string) (*db.Match, error) {
	var match db.Match
	err := s.db.WithContext(ctx).Where("id = ?", strings.ToUpper(id)).First(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// JoinMatch fills the guest seat and flips the match to playing. Only a
// waiting match can be joined.
func (s *Store) JoinMatch(ctx context.Context, id, guestName, guestFood string) (*db.Match, error) {
	match, err := s.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if match.Status != db.MatchStatusWaiting {
		return nil, ErrMatchFull
	}
	result := s.db.WithContext(ctx).Model(&db.Match{}).
		Where("id = ? AND status = ?", match.ID, db.MatchStatusWaiting).
		Updates(map[string]any{
			"guest_name": guestName,
			"guest_food": guestFood,
			"status":     db.MatchStatusPlaying,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrMatchFull
	}
	match, err = s.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publishMatch(feed.ActionUpdate, match)
	s.audit(ctx, feed.TableMatches, match.ID, feed.ActionUpdate, match)
	s.log.Infow("match joined", "match_id", match.ID, "guest", guestName)
	return match, nil
}

// SetMove records one player's move. Moves are write-once: a second
// submit for the same seat is ignored.
func (s *Store) SetMove(ctx context.Context, id, role, move string) (*db.Match, error) {
	column := "host_move"
	if role == RoleGuest {
		column = "guest_move"
	}
	id = strings.ToUpper(id)
	result := s.db.WithContext(ctx).Model(&db.Match{}).
		Where("id = ? AND "+column+" IS NULL", id).
		Update(column, move)
	if result.Error != nil {
		return nil, result.Error
	}
	match, err := s.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected > 0 {
		s.publishMatch(feed.ActionUpdate, match)
		s.audit(ctx, feed.TableMatches, match.ID, feed.ActionUpdate, match)
	}
	return match, nil
}

// MarkMatchRevealed flips a finished match to its terminal status so
// the janitor can tell completed matches from abandoned ones. The
// winner itself is never persisted.
func (s *Store) MarkMatchRevealed(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&db.Match{}).
		Where("id = ? AND status = ?", strings.ToUpper(id), db.MatchStatusPlaying).
		Update("status", db.MatchStatusRevealed)
	return result.Error
}

func (s *Store) DeleteMatch(ctx context.Context, id string) error {
	id = strings.ToUpper(id)
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&db.Match{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		s.pub.Publish(feed.Event{Table: feed.TableMatches, Action: feed.ActionDelete, Key: id})
		s.audit(ctx, feed.TableMatches, id, feed.ActionDelete, nil)
	}
	return nil
}

// sweepStaleMatches mirrors the cleanup the app runs before hosting a
// new match: waiting or revealed rows older than a day are garbage.
func (s *Store) sweepStaleMatches(ctx context.Context) {
	cutoff := timeNowUTC().Add(-24 * time.Hour)
	err := s.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []string{db.MatchStatusWaiting, db.MatchStatusRevealed}, cutoff).
		Delete(&db.Match{}).Error
	if err != nil {
		s.log.Infow("stale match sweep failed", "error", err)
	}
}

func (s *Store) publishMatch(action string, match *db.Match) {
	s.pub.Publish(feed.Event{
		Table:   feed.TableMatches,
		Action:  action,
		Key:     match.ID,
		Payload: mustJSON(match),
	})
}
