// Package types defines the wire protocol between the server and live
// connections: the inbound client verbs and the room-scoped events that
// get broadcast to subscribers.
package types

import (
	"time"

	"github.com/mwhited/typerace-backend/internal/session"
)

// ClientMessage is what a live connection sends us.
//
// Types: "join-race" | "keystroke" | "leave-race"
// Timestamp is milliseconds elapsed since the race started.
type ClientMessage struct {
	Type      string `json:"type"`
	RaceID    string `json:"race_id,omitempty"`
	Position  int    `json:"position,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Errors    int    `json:"errors,omitempty"`
}

// ServerEvent is the envelope for everything we push to a connection.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

const (
	EventRaceCreated         = "race-created"
	EventJoinedRace          = "joined-race"
	EventParticipantJoined   = "participant-joined"
	EventRaceStarting        = "race-starting"
	EventParticipantProgress = "participant-progress"
	EventRaceFinished        = "race-finished"
	EventRaceError           = "race-error"
)

type UserRef struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type RaceInfo struct {
	RaceID          string    `json:"race_id"`
	Sentence        string    `json:"sentence"`
	RaceType        string    `json:"race_type"`
	MaxParticipants int       `json:"max_participants"`
	State           string    `json:"state"`
	Started         bool      `json:"started"`
	Finished        bool      `json:"finished"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

type ParticipantInfo struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joined_at"`
	Progress float64   `json:"progress"`
	Position int       `json:"position"`
	WPM      int       `json:"wpm"`
	Accuracy int       `json:"accuracy"`
	Finished bool      `json:"finished"`
	Rank     int       `json:"rank,omitempty"`
}

type RaceResult struct {
	Rank       int       `json:"rank"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	WPM        int       `json:"wpm"`
	Accuracy   int       `json:"accuracy"`
	FinishedAt time.Time `json:"finished_at"`
}

type RaceCreatedData struct {
	Race         RaceInfo          `json:"race"`
	Participants []ParticipantInfo `json:"participants"`
}

type JoinedRaceData struct {
	RaceID    string `json:"race_id"`
	Spectator bool   `json:"spectator,omitempty"`
}

type ParticipantJoinedData struct {
	RaceID         string            `json:"race_id"`
	Participants   []ParticipantInfo `json:"participants"`
	NewParticipant UserRef           `json:"new_participant"`
}

type RaceStartingData struct {
	RaceID    string `json:"race_id"`
	Countdown int    `json:"countdown"`
}

type ParticipantProgressData struct {
	UserID   string  `json:"user_id"`
	Username string  `json:"username"`
	Progress float64 `json:"progress"`
	Position int     `json:"position"`
	WPM      int     `json:"wpm"`
	Accuracy int     `json:"accuracy"`
}

type RaceFinishedData struct {
	RaceID  string       `json:"race_id"`
	Results []RaceResult `json:"results"`
}

type RaceErrorData struct {
	Message string `json:"message"`
}

// RaceInfoOf projects a live session into its wire form.
func RaceInfoOf(s *session.Session) RaceInfo {
	return RaceInfo{
		RaceID:          s.ID(),
		Sentence:        s.Sentence(),
		RaceType:        string(s.Kind()),
		MaxParticipants: s.MaxParticipants(),
		State:           string(s.State()),
		Started:         s.State() != session.StateForming,
		Finished:        s.State() == session.StateFinished,
		CreatedBy:       s.CreatedBy(),
		CreatedAt:       s.CreatedAt(),
	}
}

func ParticipantsOf(ps []session.Participant) []ParticipantInfo {
	out := make([]ParticipantInfo, 0, len(ps))
	for _, p := range ps {
		out = append(out, ParticipantInfo{
			UserID:   p.UserID,
			Username: p.Username,
			JoinedAt: p.JoinedAt,
			Progress: p.Percent,
			Position: p.Position,
			WPM:      p.WPM,
			Accuracy: p.Accuracy,
			Finished: p.Finished,
			Rank:     p.Rank,
		})
	}
	return out
}

func ResultsOf(rs []session.Result) []RaceResult {
	out := make([]RaceResult, 0, len(rs))
	for _, r := range rs {
		out = append(out, RaceResult{
			Rank:       r.Rank,
			UserID:     r.UserID,
			Username:   r.Username,
			WPM:        r.WPM,
			Accuracy:   r.Accuracy,
			FinishedAt: r.FinishedAt,
		})
	}
	return out
}

// ProgressDataOf projects a keystroke snapshot into its wire form.
func ProgressDataOf(snap session.Snapshot) ParticipantProgressData {
	return ParticipantProgressData{
		UserID:   snap.UserID,
		Username: snap.Username,
		Progress: snap.Percent,
		Position: snap.Position,
		WPM:      snap.WPM,
		Accuracy: snap.Accuracy,
	}
}
