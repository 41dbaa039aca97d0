// Package session implements the state machine for a single race. A
// Session is deliberately free of locks and goroutines: the room actor
// that owns it is its only caller, which is what keeps the transitions
// and the completion check race-free.
package session

import (
	"errors"
	"sort"
	"time"

	"github.com/mwhited/typerace-backend/internal/progress"
)

var (
	ErrAlreadyJoined   = errors.New("already joined this race")
	ErrRaceFull        = errors.New("race is full")
	ErrRaceStarted     = errors.New("race has already started")
	ErrNotStarted      = errors.New("race has not started")
	ErrNoParticipants  = errors.New("race has no participants")
	ErrNotParticipant  = errors.New("not a participant in this race")
	ErrRaceFinished    = errors.New("race has already finished")
	ErrAlreadyFinished = errors.New("race already finished")
	ErrNotFinished     = errors.New("race has not finished yet")
	ErrNotCreator      = errors.New("only the race creator can start the race")
)

type Kind string

const (
	KindCompetitive Kind = "competitive"
	KindPractice    Kind = "practice"
)

type State string

const (
	StateForming  State = "forming"
	StateStarted  State = "started"
	StateFinished State = "finished"
)

type Config struct {
	ID              string
	Sentence        string
	Kind            Kind
	MaxParticipants int
	CreatedBy       string
}

type Participant struct {
	UserID     string
	Username   string
	JoinedAt   time.Time
	Position   int
	Percent    float64
	WPM        int
	Accuracy   int
	Finished   bool
	FinishedAt time.Time
	Rank       int // 0 until the race finishes
}

// Snapshot is the per-keystroke view that goes out in a progress
// broadcast.
type Snapshot struct {
	UserID   string
	Username string
	Percent  float64
	Position int
	WPM      int
	Accuracy int
	Finished bool
}

type Result struct {
	Rank       int
	UserID     string
	Username   string
	WPM        int
	Accuracy   int
	FinishedAt time.Time
}

type Session struct {
	cfg        Config
	state      State
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time

	order        []string // user ids in join order
	participants map[string]*Participant

	now func() time.Time // swapped out in tests
}

func New(cfg Config) *Session {
	s := &Session{
		cfg:          cfg,
		state:        StateForming,
		participants: make(map[string]*Participant),
		now:          time.Now,
	}
	s.createdAt = s.now()
	return s
}

// AddParticipant appends a user to the roster. Valid only while the race
// is forming.
func (s *Session) AddParticipant(userID, username string) error {
	if s.state != StateForming {
		return ErrRaceStarted
	}
	if _, ok := s.participants[userID]; ok {
		return ErrAlreadyJoined
	}
	if len(s.order) >= s.cfg.MaxParticipants {
		return ErrRaceFull
	}
	s.participants[userID] = &Participant{
		UserID:   userID,
		Username: username,
		JoinedAt: s.now(),
		Accuracy: 100,
	}
	s.order = append(s.order, userID)
	return nil
}

// Start moves the race from forming to started. At least one participant
// must be on the roster.
func (s *Session) Start() error {
	if s.state != StateForming {
		return ErrRaceStarted
	}
	if len(s.order) == 0 {
		return ErrNoParticipants
	}
	s.state = StateStarted
	s.startedAt = s.now()
	return nil
}

// RecordProgress folds one keystroke event into the participant's live
// figures. The returned bool signals that the completion policy for this
// race kind is now satisfied: the caller decides whether to act on it by
// calling Finish. The session never finishes itself.
func (s *Session) RecordProgress(userID string, position int, elapsedMs int64, errorCount int) (Snapshot, bool, error) {
	switch s.state {
	case StateForming:
		return Snapshot{}, false, ErrNotStarted
	case StateFinished:
		return Snapshot{}, false, ErrRaceFinished
	}
	p, ok := s.participants[userID]
	if !ok {
		return Snapshot{}, false, ErrNotParticipant
	}
	if position < 0 || elapsedMs < 0 || errorCount < 0 {
		return Snapshot{}, false, progress.ErrInvalidInput
	}

	pct, err := progress.PercentComplete(position, len(s.cfg.Sentence))
	if err != nil {
		return Snapshot{}, false, err
	}
	p.Position = position
	p.Percent = pct
	p.WPM = progress.WordsPerMinute(elapsedMs, position)
	p.Accuracy = progress.Accuracy(errorCount, position)
	if !p.Finished && position >= len(s.cfg.Sentence) {
		p.Finished = true
		p.FinishedAt = s.now()
	}

	snap := Snapshot{
		UserID:   p.UserID,
		Username: p.Username,
		Percent:  p.Percent,
		Position: p.Position,
		WPM:      p.WPM,
		Accuracy: p.Accuracy,
		Finished: p.Finished,
	}
	return snap, s.shouldFinish(p), nil
}

// shouldFinish evaluates the completion policy after p's keystroke: a
// practice race ends on its single participant finishing, a competitive
// race only once every roster slot has finished.
func (s *Session) shouldFinish(p *Participant) bool {
	if !p.Finished {
		return false
	}
	if s.cfg.Kind == KindPractice {
		return true
	}
	for _, id := range s.order {
		if !s.participants[id].Finished {
			return false
		}
	}
	return true
}

// Finish ranks the finished participants and moves the race to its
// terminal state. Earliest finisher wins; identical finish times are
// broken by higher WPM. Calling it on an already-finished race reports
// ErrAlreadyFinished and changes nothing.
func (s *Session) Finish() ([]Result, error) {
	switch s.state {
	case StateForming:
		return nil, ErrNotStarted
	case StateFinished:
		return nil, ErrAlreadyFinished
	}

	finished := make([]*Participant, 0, len(s.order))
	for _, id := range s.order {
		if p := s.participants[id]; p.Finished {
			finished = append(finished, p)
		}
	}
	sort.SliceStable(finished, func(i, j int) bool {
		if !finished[i].FinishedAt.Equal(finished[j].FinishedAt) {
			return finished[i].FinishedAt.Before(finished[j].FinishedAt)
		}
		return finished[i].WPM > finished[j].WPM
	})

	results := make([]Result, 0, len(finished))
	for i, p := range finished {
		p.Rank = i + 1
		results = append(results, Result{
			Rank:       p.Rank,
			UserID:     p.UserID,
			Username:   p.Username,
			WPM:        p.WPM,
			Accuracy:   p.Accuracy,
			FinishedAt: p.FinishedAt,
		})
	}
	s.state = StateFinished
	s.finishedAt = s.now()
	return results, nil
}

// Results returns the ranked result list of a finished race.
func (s *Session) Results() ([]Result, error) {
	if s.state != StateFinished {
		return nil, ErrNotFinished
	}
	results := make([]Result, 0, len(s.order))
	for _, id := range s.order {
		p := s.participants[id]
		if p.Rank == 0 {
			continue
		}
		results = append(results, Result{
			Rank:       p.Rank,
			UserID:     p.UserID,
			Username:   p.Username,
			WPM:        p.WPM,
			Accuracy:   p.Accuracy,
			FinishedAt: p.FinishedAt,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Rank < results[j].Rank })
	return results, nil
}

// Participants returns the roster in join order. Copies, so callers can
// hold them outside the owning actor.
func (s *Session) Participants() []Participant {
	out := make([]Participant, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.participants[id])
	}
	return out
}

func (s *Session) IsParticipant(userID string) bool {
	_, ok := s.participants[userID]
	return ok
}

func (s *Session) ID() string { return s.cfg.ID }

func (s *Session) Sentence() string { return s.cfg.Sentence }

func (s *Session) Kind() Kind { return s.cfg.Kind }

func (s *Session) MaxParticipants() int { return s.cfg.MaxParticipants }

func (s *Session) CreatedBy() string { return s.cfg.CreatedBy }

func (s *Session) State() State { return s.state }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) StartedAt() time.Time { return s.startedAt }

func (s *Session) FinishedAt() time.Time { return s.finishedAt }
