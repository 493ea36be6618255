package store

import (
	"context"
	"encoding/json"

	"candid-decisions/internal/db"

	"gorm.io/datatypes"
)

// audit appends one event row per mutation. Audit failures are logged
// and swallowed: history is nice to have, gameplay is not allowed to
// stall on it.
func (s *Store) audit(ctx context.Context, table, rowID, action string, payload any) {
	event := db.Event{
		TableName: table,
		RowID:     rowID,
		Action:    action,
		CreatedAt: timeNowUTC(),
	}
	if payload != nil {
		event.Payload = datatypes.JSON(mustJSON(payload))
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		s.log.Infow("audit write failed", "table", table, "row_id", rowID, "error", err)
	}
}

func mustJSON(value any) json.RawMessage {
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return data
}
