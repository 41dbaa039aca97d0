// Package store is the persistence collaborator: immutable race
// metadata, the sentence pool, and final ranked results. The live race
// state never touches it; only the coordinator calls in here, outside
// any session critical section.
package store

import (
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrNoSentences = errors.New("no sentences available")
)

type Race struct {
	RaceID          string `gorm:"primaryKey;size:12"`
	Sentence        string
	RaceType        string `gorm:"size:16"`
	MaxParticipants int
	CreatedBy       string `gorm:"size:64"`
	Started         bool
	Finished        bool
	CreatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

type Sentence struct {
	SentenceID uint   `gorm:"primaryKey"`
	Content    string
	Difficulty string `gorm:"size:16;index"`
	UsageCount int
	CreatedAt  time.Time
}

type Result struct {
	ID         uint   `gorm:"primaryKey"`
	RaceID     string `gorm:"size:12;index"`
	UserID     string `gorm:"size:64"`
	Username   string `gorm:"size:64"`
	Rank       int
	WPM        int
	Accuracy   int
	FinishedAt time.Time
}
