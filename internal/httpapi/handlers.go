package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mwhited/typerace-backend/internal/coordinator"
	"github.com/mwhited/typerace-backend/internal/progress"
	"github.com/mwhited/typerace-backend/internal/session"
	"github.com/mwhited/typerace-backend/internal/store"
)

type createRaceRequest struct {
	RaceType        string `json:"race_type"`
	Difficulty      string `json:"difficulty"`
	MaxParticipants int    `json:"max_participants"`
}

func CreateRace(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRaceRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, progress.ErrInvalidInput)
				return
			}
		}
		kind := session.Kind(req.RaceType)
		if kind != "" && kind != session.KindCompetitive && kind != session.KindPractice {
			writeError(w, progress.ErrInvalidInput)
			return
		}
		view, err := c.CreateRace(r.Context(), identity(r), coordinator.CreateOptions{
			Difficulty:      req.Difficulty,
			Kind:            kind,
			MaxParticipants: req.MaxParticipants,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

func CreatePracticeRace(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRaceRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, progress.ErrInvalidInput)
				return
			}
		}
		view, err := c.CreateRace(r.Context(), identity(r), coordinator.CreateOptions{
			Difficulty: req.Difficulty,
			Kind:       session.KindPractice,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

func GetAvailableRaces(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeError(w, progress.ErrInvalidInput)
				return
			}
			limit = n
		}
		races := c.ListAvailableRaces(r.Context(), limit)
		writeJSON(w, http.StatusOK, map[string]any{"races": races})
	}
}

func GetRace(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := c.GetRace(r.Context(), chi.URLParam(r, "raceID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func JoinRace(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := c.JoinRace(r.Context(), chi.URLParam(r, "raceID"), identity(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func StartRace(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.StartRace(r.Context(), chi.URLParam(r, "raceID"), identity(r).UserID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "race started"})
	}
}

func GetResults(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := c.Results(r.Context(), chi.URLParam(r, "raceID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the core error taxonomy onto HTTP statuses. Anything
// unrecognized is an internal failure and stays opaque to the caller.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, coordinator.ErrRaceNotFound), errors.Is(err, store.ErrNoSentences):
		status = http.StatusNotFound
		msg = err.Error()
	case errors.Is(err, session.ErrNotCreator):
		status = http.StatusForbidden
		msg = err.Error()
	case errors.Is(err, progress.ErrInvalidInput):
		status = http.StatusBadRequest
		msg = err.Error()
	case errors.Is(err, session.ErrAlreadyJoined),
		errors.Is(err, session.ErrRaceFull),
		errors.Is(err, session.ErrRaceStarted),
		errors.Is(err, session.ErrNotStarted),
		errors.Is(err, session.ErrNoParticipants),
		errors.Is(err, session.ErrNotParticipant),
		errors.Is(err, session.ErrRaceFinished),
		errors.Is(err, session.ErrAlreadyFinished),
		errors.Is(err, session.ErrNotFinished):
		status = http.StatusConflict
		msg = err.Error()
	}

	writeJSON(w, status, map[string]string{"error": msg})
}
