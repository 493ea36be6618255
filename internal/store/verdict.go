package store

import (
	"context"
	"errors"
	"strings"

	"candid-decisions/internal/db"
	"candid-decisions/internal/feed"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateSession inserts a waiting verdict session together with its
// host player row. Hosting counts as the first join.
func (s *Store) CreateSession(ctx context.Context, hostName string, avatar *string) (*db.VerdictSession, *db.VerdictPlayer, error) {
	for attempt := 0; attempt < codeInsertAttempts; attempt++ {
		session := &db.VerdictSession{
			ID:        newSessionCode(),
			Status:    db.SessionStatusWaiting,
			CreatedAt: timeNowUTC(),
		}
		err := s.db.WithContext(ctx).Create(session).Error
		if err == nil {
			host, err := s.addPlayerRow(ctx, session.ID, hostName, avatar, true)
			if err != nil {
				return nil, nil, err
			}
			s.publishSession(feed.ActionInsert, session)
			s.audit(ctx, feed.TableSessions, session.ID, feed.ActionInsert, session)
			s.log.Infow("verdict session created", "session_id", session.ID, "host", hostName)
			return session, host, nil
		}
		if isUniqueViolation(err) {
			continue
		}
		return nil, nil, err
	}
	return nil, nil, ErrCodeExhausted
}

// GetSession is the exactly-one session read; a missing row is
// ErrNotFound so callers can tell "host cancelled" from a transient
// failure.
func (s *Store) GetSession(ctx context.Context, id string) (*db.VerdictSession, error) {
	var session db.VerdictSession
	err := s.db.WithContext(ctx).Where("id = ?", strings.ToUpper(id)).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// AddPlayer joins an existing session. The session must exist; no
// state is mutated when it does not.
func (s *Store) AddPlayer(ctx context.Context, sessionID, name string, avatar *string) (*db.VerdictPlayer, error) {
	sessionID = strings.ToUpper(sessionID)
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	player, err := s.addPlayerRow(ctx, sessionID, name, avatar, false)
	if err != nil {
		return nil, err
	}
	s.log.Infow("verdict player joined", "session_id", sessionID, "player_id", player.ID, "name", name)
	return player, nil
}

func (s *Store) addPlayerRow(ctx context.Context, sessionID, name string, avatar *string, isHost bool) (*db.VerdictPlayer, error) {
	player := &db.VerdictPlayer{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Name:      name,
		Avatar:    avatar,
		IsHost:    isHost,
		CreatedAt: timeNowUTC(),
	}
	if err := s.db.WithContext(ctx).Create(player).Error; err != nil {
		return nil, err
	}
	s.publishPlayer(feed.ActionInsert, player)
	s.audit(ctx, feed.TablePlayers, player.ID, feed.ActionInsert, player)
	return player, nil
}

// ListPlayers returns the session's players in join order.
func (s *Store) ListPlayers(ctx context.Context, sessionID string) ([]db.VerdictPlayer, error) {
	var players []db.VerdictPlayer
	err := s.db.WithContext(ctx).
		Where("session_id = ?", strings.ToUpper(sessionID)).
		Order("created_at").
		Find(&players).Error
	if err != nil {
		return nil, err
	}
	return players, nil
}

// StartWriting flips the session from waiting to writing. The guard
// lives in the WHERE clause so a second start is a no-op.
func (s *Store) StartWriting(ctx context.Context, sessionID string) error {
	sessionID = strings.ToUpper(sessionID)
	result := s.db.WithContext(ctx).Model(&db.VerdictSession{}).
		Where("id = ? AND status = ?", sessionID, db.SessionStatusWaiting).
		Update("status", db.SessionStatusWriting)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		session, err := s.GetSession(ctx, sessionID)
		if err == nil {
			s.publishSession(feed.ActionUpdate, session)
			s.audit(ctx, feed.TableSessions, sessionID, feed.ActionUpdate, session)
		}
		s.log.Infow("verdict session started", "session_id", sessionID)
	}
	return nil
}

// SubmitEntry records a player's submission and justification exactly
// once. A row that already holds a submission is left untouched.
func (s *Store) SubmitEntry(ctx context.Context, playerID, submission, justification string) error {
	result := s.db.WithContext(ctx).Model(&db.VerdictPlayer{}).
		Where("id = ? AND submission IS NULL", playerID).
		Updates(map[string]any{
			"submission":    submission,
			"justification": justification,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return nil
	}
	var player db.VerdictPlayer
	if err := s.db.WithContext(ctx).Where("id = ?", playerID).First(&player).Error; err == nil {
		s.publishPlayer(feed.ActionUpdate, &player)
		s.audit(ctx, feed.TablePlayers, player.ID, feed.ActionUpdate, &player)
	}
	return nil
}

// RevealSession writes the terminal state in a single update: status,
// winner, and reason move together or not at all. A session that is
// already revealed is never overwritten.
func (s *Store) RevealSession(ctx context.Context, sessionID, winnerID, reason string) error {
	sessionID = strings.ToUpper(sessionID)
	result := s.db.WithContext(ctx).Model(&db.VerdictSession{}).
		Where("id = ? AND status <> ?", sessionID, db.SessionStatusRevealed).
		Updates(map[string]any{
			"status":    db.SessionStatusRevealed,
			"winner_id": winnerID,
			"ai_reason": reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		session, err := s.GetSession(ctx, sessionID)
		if err == nil {
			s.publishSession(feed.ActionUpdate, session)
			s.audit(ctx, feed.TableSessions, sessionID, feed.ActionUpdate, session)
		}
		s.log.Infow("verdict revealed", "session_id", sessionID, "winner_id", winnerID)
	}
	return nil
}

// RemovePlayer deletes one player row, as happens on leave.
func (s *Store) RemovePlayer(ctx context.Context, playerID string) error {
	var player db.VerdictPlayer
	if err := s.db.WithContext(ctx).Where("id = ?", playerID).First(&player).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&player).Error; err != nil {
		return err
	}
	s.publishPlayer(feed.ActionDelete, &player)
	s.audit(ctx, feed.TablePlayers, player.ID, feed.ActionDelete, nil)
	return nil
}

// DeleteSession tears the session down, players included.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	sessionID = strings.ToUpper(sessionID)
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&db.VerdictPlayer{}).Error; err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Where("id = ?", sessionID).Delete(&db.VerdictSession{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		s.pub.Publish(feed.Event{Table: feed.TableSessions, Action: feed.ActionDelete, Key: sessionID})
		s.audit(ctx, feed.TableSessions, sessionID, feed.ActionDelete, nil)
		s.log.Infow("verdict session deleted", "session_id", sessionID)
	}
	return nil
}

func (s *Store) publishSession(action string, session *db.VerdictSession) {
	s.pub.Publish(feed.Event{
		Table:   feed.TableSessions,
		Action:  action,
		Key:     session.ID,
		Payload: mustJSON(session),
	})
}

func (s *Store) publishPlayer(action string, player *db.VerdictPlayer) {
	s.pub.Publish(feed.Event{
		Table:   feed.TablePlayers,
		Action:  action,
		Key:     player.SessionID,
		Payload: mustJSON(player),
	})
}
