package store

import (
	"context"
	"testing"

	"candid-decisions/internal/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSessionAddsHostPlayer(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	session, host, err := st.CreateSession(ctx, "Ada", nil)
	require.NoError(t, err)
	assert.Len(t, session.ID, 4)
	assert.Equal(t, db.SessionStatusWaiting, session.Status)
	assert.True(t, host.IsHost)
	assert.Equal(t, session.ID, host.SessionID)

	players, err := st.ListPlayers(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "Ada", players[0].Name)
}

func TestAddPlayerRequiresSession(t *testing.T) {
	st, _ := newTestStore(t)

	_, err := st.AddPlayer(context.Background(), "ZZZZ", "Bob", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartWritingOnlyFromWaiting(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	session, _, err := st.CreateSession(ctx, "Ada", nil)
	require.NoError(t, err)

	require.NoError(t, st.StartWriting(ctx, session.ID))
	current, err := st.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, db.SessionStatusWriting, current.Status)

	// A second start changes nothing.
	require.NoError(t, st.StartWriting(ctx, session.ID))
	current, err = st.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, db.SessionStatusWriting, current.Status)
}

func TestSubmitEntryIsWriteOnce(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	session, host, err := st.CreateSession(ctx, "Ada", nil)
	require.NoError(t, err)

	require.NoError(t, st.SubmitEntry(ctx, host.ID, "Beach", "Sun"))
	require.NoError(t, st.SubmitEntry(ctx, host.ID, "Mountains", "Cold"))

	players, err := st.ListPlayers(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, players, 1)
	require.NotNil(t, players[0].Submission)
	assert.Equal(t, "Beach", *players[0].Submission)
	require.NotNil(t, players[0].Justification)
	assert.Equal(t, "Sun", *players[0].Justification)
}

func TestRevealSessionIsTerminal(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	session, host, err := st.CreateSession(ctx, "Ada", nil)
	require.NoError(t, err)
	require.NoError(t, st.StartWriting(ctx, session.ID))

	require.NoError(t, st.RevealSession(ctx, session.ID, host.ID, "The court has spoken."))
	current, err := st.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, db.SessionStatusRevealed, current.Status)
	require.NotNil(t, current.WinnerID)
	assert.Equal(t, host.ID, *current.WinnerID)

	// Once revealed, winner and reason are immutable.
	require.NoError(t, st.RevealSession(ctx, session.ID, "someone-else", "overruled"))
	current, err = st.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, host.ID, *current.WinnerID)
	assert.Equal(t, "The court has spoken.", *current.AIReason)
}

func TestDeleteSessionRemovesPlayers(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	session, _, err := st.CreateSession(ctx, "Ada", nil)
	require.NoError(t, err)
	_, err = st.AddPlayer(ctx, session.ID, "Bob", nil)
	require.NoError(t, err)

	require.NoError(t, st.DeleteSession(ctx, session.ID))

	_, err = st.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	players, err := st.ListPlayers(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, players)
}

func TestRemovePlayerIsIdempotent(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	session, _, err := st.CreateSession(ctx, "Ada", nil)
	require.NoError(t, err)
	guest, err := st.AddPlayer(ctx, session.ID, "Bob", nil)
	require.NoError(t, err)

	require.NoError(t, st.RemovePlayer(ctx, guest.ID))
	require.NoError(t, st.RemovePlayer(ctx, guest.ID))

	players, err := st.ListPlayers(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, players, 1)
}
