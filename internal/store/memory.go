package store

import (
	"context"
	"math/rand"
	"sync"
)

// Memory is the in-process store used by tests and DB-less runs. Same
// contract as DB, guarded by one mutex.
type Memory struct {
	mu        sync.Mutex
	races     map[string]Race
	sentences []Sentence
	results   map[string][]Result
}

func NewMemory() *Memory {
	m := &Memory{
		races:   make(map[string]Race),
		results: make(map[string][]Result),
	}
	for i, s := range seedSentences {
		s.SentenceID = uint(i + 1)
		m.sentences = append(m.sentences, s)
	}
	return m
}

func (m *Memory) SaveRaceMetadata(_ context.Context, race Race) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.races[race.RaceID] = race
	return nil
}

func (m *Memory) LoadRaceMetadata(_ context.Context, raceID string) (Race, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	race, ok := m.races[raceID]
	if !ok {
		return Race{}, ErrNotFound
	}
	return race, nil
}

func (m *Memory) RandomSentence(_ context.Context, difficulty string) (Sentence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sentences) == 0 {
		return Sentence{}, ErrNoSentences
	}
	pool := m.sentences
	if difficulty != "" {
		var filtered []Sentence
		for _, s := range pool {
			if s.Difficulty == difficulty {
				filtered = append(filtered, s)
			}
		}
		if len(filtered) > 0 {
			pool = filtered
		}
	}
	picked := pool[rand.Intn(len(pool))]
	for i := range m.sentences {
		if m.sentences[i].SentenceID == picked.SentenceID {
			m.sentences[i].UsageCount++
		}
	}
	return picked, nil
}

func (m *Memory) SaveFinalResults(_ context.Context, raceID string, results []Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]Result, len(results))
	copy(rows, results)
	for i := range rows {
		rows[i].RaceID = raceID
	}
	m.results[raceID] = rows
	return nil
}

func (m *Memory) LoadFinalResults(_ context.Context, raceID string) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]Result, len(m.results[raceID]))
	copy(rows, m.results[raceID])
	return rows, nil
}
