package store

import (
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"candid-decisions/internal/feed"

	"github.com/jackc/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when an exactly-one read matches no row.
	ErrNotFound = errors.New("not found")
	// ErrMatchFull is returned when joining a match that already has a
	// guest or has finished.
	ErrMatchFull = errors.New("match already in progress")
	// ErrCodeExhausted is returned when repeated session codes collide.
	ErrCodeExhausted = errors.New("could not allocate a session code")
)

// Store owns all persistent session state. Every successful mutation
// publishes a change event and appends an audit row; readers hold only
// ephemeral mirrors of what they last fetched here.
type Store struct {
	db  *gorm.DB
	pub feed.Publisher
	log *zap.SugaredLogger
}

func New(conn *gorm.DB, pub feed.Publisher, log *zap.SugaredLogger) *Store {
	return &Store{db: conn, pub: pub, log: log}
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newSessionCode returns a 4-character uppercase base-36 code. No
// global uniqueness check happens here; insert retries on collision.
func newSessionCode() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "AAAA"
	}
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(buf)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func timeNowUTC() time.Time {
	return time.Now().UTC()
}
