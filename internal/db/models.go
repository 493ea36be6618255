package db

import (
	"time"

	"gorm.io/datatypes"
)

const (
	MatchStatusWaiting  = "waiting"
	MatchStatusPlaying  = "playing"
	MatchStatusRevealed = "revealed"
)

const (
	SessionStatusWaiting  = "waiting"
	SessionStatusWriting  = "writing"
	SessionStatusRevealed = "revealed"
)

// Match is one Rock-Paper-Scissors duel. The winner is never stored;
// both clients derive it from the two move columns.
type Match struct {
	ID        string    `gorm:"primaryKey;size:4"`
	HostName  string    `gorm:"size:64;not null"`
	GuestName *string   `gorm:"size:64"`
	HostFood  string    `gorm:"size:120;not null"`
	GuestFood *string   `gorm:"size:120"`
	HostMove  *string   `gorm:"size:16"`
	GuestMove *string   `gorm:"size:16"`
	Status    string    `gorm:"size:16;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

type VerdictSession struct {
	ID        string          `gorm:"primaryKey;size:4"`
	Status    string          `gorm:"size:16;not null"`
	WinnerID  *string         `gorm:"size:36"`
	AIReason  *string         `gorm:"column:ai_reason;size:500"`
	CreatedAt time.Time       `gorm:"not null"`
	Players   []VerdictPlayer `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

type VerdictPlayer struct {
	ID            string    `gorm:"primaryKey;size:36"`
	SessionID     string    `gorm:"size:4;index;not null"`
	Name          string    `gorm:"size:64;not null"`
	Avatar        *string   `gorm:"size:255"`
	Submission    *string   `gorm:"size:280"`
	Justification *string   `gorm:"size:500"`
	IsHost        bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"not null"`
}

// Event is an audit row written alongside every store mutation so a
// session's history can be reconstructed after the fact.
type Event struct {
	ID        uint           `gorm:"primaryKey"`
	TableName string         `gorm:"size:32;not null;index"`
	RowID     string         `gorm:"size:36;not null;index"`
	Action    string         `gorm:"size:16;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"not null"`
}
