package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_RandomSentenceByDifficulty(t *testing.T) {
	m := NewMemory()

	for i := 0; i < 10; i++ {
		s, err := m.RandomSentence(context.Background(), "easy")
		require.NoError(t, err)
		require.Equal(t, "easy", s.Difficulty)
	}
}

func TestMemory_RandomSentenceFallsBack(t *testing.T) {
	m := NewMemory()

	// Unknown difficulty still yields a sentence from the full pool.
	s, err := m.RandomSentence(context.Background(), "impossible")
	require.NoError(t, err)
	require.NotEmpty(t, s.Content)
}

func TestMemory_RandomSentenceBumpsUsage(t *testing.T) {
	m := NewMemory()

	picked, err := m.RandomSentence(context.Background(), "")
	require.NoError(t, err)

	var usage int
	for _, s := range m.sentences {
		if s.SentenceID == picked.SentenceID {
			usage = s.UsageCount
		}
	}
	require.Equal(t, 1, usage)
}

func TestMemory_RaceMetadataRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.LoadRaceMetadata(ctx, "RACE01")
	require.ErrorIs(t, err, ErrNotFound)

	race := Race{
		RaceID:          "RACE01",
		Sentence:        "hello world",
		RaceType:        "competitive",
		MaxParticipants: 5,
		CreatedBy:       "u1",
		CreatedAt:       time.Now(),
	}
	require.NoError(t, m.SaveRaceMetadata(ctx, race))

	got, err := m.LoadRaceMetadata(ctx, "RACE01")
	require.NoError(t, err)
	require.Equal(t, race.Sentence, got.Sentence)
}

func TestMemory_FinalResults(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	results := []Result{
		{UserID: "u1", Username: "ann", Rank: 1, WPM: 80},
		{UserID: "u2", Username: "ben", Rank: 2, WPM: 55},
	}
	require.NoError(t, m.SaveFinalResults(ctx, "RACE01", results))

	got, err := m.LoadFinalResults(ctx, "RACE01")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "RACE01", got[0].RaceID)
	require.Equal(t, 1, got[0].Rank)
}
