package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduler-client/internal/models"
)

func TestStatusBoard_PostBroadcastsAndClears(t *testing.T) {
	hub := &recordingHub{}
	board := NewStatusBoard(hub, 20*time.Millisecond)

	board.Post(models.StatusError, "Cloud sync failed")
	assert.Equal(t, "Cloud sync failed", board.Current().Text)

	require.Eventually(t, func() bool { return board.Current().Text == "" }, time.Second, 5*time.Millisecond)

	statuses := hub.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, models.StatusError, statuses[0].Level)
	assert.Empty(t, statuses[1].Text)
}

func TestStatusBoard_NewerMessageSurvivesOlderTimer(t *testing.T) {
	hub := &recordingHub{}
	board := NewStatusBoard(hub, 100*time.Millisecond)

	board.Post(models.StatusInfo, "first")
	time.Sleep(60 * time.Millisecond)
	board.Post(models.StatusSuccess, "second")

	// The first timer fires around 100ms and must not clear "second".
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, "second", board.Current().Text)

	require.Eventually(t, func() bool { return board.Current().Text == "" }, time.Second, 5*time.Millisecond)
}

func TestStatusBoard_NilIsSafe(t *testing.T) {
	var board *StatusBoard
	assert.NotPanics(t, func() { board.Post(models.StatusError, "ignored") })
}
