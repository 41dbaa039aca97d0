// Package coordinator translates external race actions into session
// mutations and broadcasts. It looks the room up in the registry, sends
// it a typed message, and handles everything that must happen outside
// the room loop: persistence, the completion policy response, and
// post-finish eviction.
package coordinator

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mwhited/typerace-backend/internal/registry"
	"github.com/mwhited/typerace-backend/internal/room"
	"github.com/mwhited/typerace-backend/internal/session"
	"github.com/mwhited/typerace-backend/internal/store"
	"github.com/mwhited/typerace-backend/internal/types"
)

var (
	ErrRaceNotFound = errors.New("race not found")
	ErrInternal     = errors.New("internal error")
)

const (
	defaultMaxParticipants = 5
	defaultRetention       = 5 * time.Minute
	defaultListLimit       = 10
)

// Storage is the persistence collaborator contract. Implemented by
// store.DB and store.Memory.
type Storage interface {
	SaveRaceMetadata(ctx context.Context, race store.Race) error
	LoadRaceMetadata(ctx context.Context, raceID string) (store.Race, error)
	RandomSentence(ctx context.Context, difficulty string) (store.Sentence, error)
	SaveFinalResults(ctx context.Context, raceID string, results []store.Result) error
	LoadFinalResults(ctx context.Context, raceID string) ([]store.Result, error)
}

type Coordinator struct {
	reg       *registry.Registry
	store     Storage
	log       *zap.Logger
	retention time.Duration
}

func New(reg *registry.Registry, st Storage, log *zap.Logger, retention time.Duration) *Coordinator {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Coordinator{reg: reg, store: st, log: log, retention: retention}
}

type CreateOptions struct {
	Difficulty      string
	Kind            session.Kind
	MaxParticipants int
}

// RaceView is what create/join/detail calls hand back to the edge.
type RaceView struct {
	Race         types.RaceInfo          `json:"race"`
	Participants []types.ParticipantInfo `json:"participants"`
}

// CreateRace allocates a race, persists its metadata, auto-joins the
// creator and announces it to the room. Practice races are forced to a
// single slot and started on the spot.
func (c *Coordinator) CreateRace(ctx context.Context, user types.UserRef, opts CreateOptions) (RaceView, error) {
	if opts.Kind == "" {
		opts.Kind = session.KindCompetitive
	}
	if opts.Kind == session.KindPractice {
		opts.MaxParticipants = 1
	}
	if opts.MaxParticipants <= 0 {
		opts.MaxParticipants = defaultMaxParticipants
	}

	sentence, err := c.store.RandomSentence(ctx, opts.Difficulty)
	if err != nil {
		if errors.Is(err, store.ErrNoSentences) {
			return RaceView{}, err
		}
		c.log.Error("pick random sentence", zap.Error(err))
		return RaceView{}, ErrInternal
	}

	reply := make(chan registry.CreateReply, 1)
	c.reg.Inbox() <- registry.Create{
		Cfg: session.Config{
			Sentence:        sentence.Content,
			Kind:            opts.Kind,
			MaxParticipants: opts.MaxParticipants,
			CreatedBy:       user.UserID,
		},
		Reply: reply,
	}
	created := <-reply

	// Metadata persistence happens here, never inside the room loop.
	if err := c.store.SaveRaceMetadata(ctx, store.Race{
		RaceID:          created.ID,
		Sentence:        sentence.Content,
		RaceType:        string(opts.Kind),
		MaxParticipants: opts.MaxParticipants,
		CreatedBy:       user.UserID,
		CreatedAt:       time.Now(),
	}); err != nil {
		c.log.Error("save race metadata", zap.String("race_id", created.ID), zap.Error(err))
		c.reg.Inbox() <- registry.Remove{ID: created.ID}
		return RaceView{}, ErrInternal
	}

	joinReply := make(chan room.JoinReply, 1)
	joined, ok := ask(created.Room, room.Join{UserID: user.UserID, Username: user.Username, Reply: joinReply}, joinReply)
	if !ok {
		return RaceView{}, ErrInternal
	}
	if joined.Err != nil {
		// Fresh race with an empty roster; the creator always fits.
		c.log.Error("creator join", zap.String("race_id", created.ID), zap.Error(joined.Err))
		return RaceView{}, ErrInternal
	}

	tell(created.Room, room.Publish{Event: types.ServerEvent{
		Event: types.EventRaceCreated,
		Data: types.RaceCreatedData{
			Race:         joined.Race,
			Participants: types.ParticipantsOf(joined.Participants),
		},
	}})

	view := RaceView{Race: joined.Race, Participants: types.ParticipantsOf(joined.Participants)}

	if opts.Kind == session.KindPractice {
		startReply := make(chan error, 1)
		err, ok := ask(created.Room, room.Start{UserID: user.UserID, Reply: startReply}, startReply)
		if !ok {
			return RaceView{}, ErrInternal
		}
		if err != nil {
			c.log.Error("auto-start practice race", zap.String("race_id", created.ID), zap.Error(err))
			return RaceView{}, ErrInternal
		}
		c.markStarted(ctx, created.ID)
		view.Race.Started = true
		view.Race.State = string(session.StateStarted)
	}

	c.log.Info("race created",
		zap.String("race_id", created.ID),
		zap.String("race_type", string(opts.Kind)),
		zap.String("created_by", user.UserID))

	return view, nil
}

// JoinRace adds the user to the roster and broadcasts the refreshed
// participant list to the room.
func (c *Coordinator) JoinRace(ctx context.Context, raceID string, user types.UserRef) (RaceView, error) {
	rm := c.lookup(raceID)
	if rm == nil {
		return RaceView{}, ErrRaceNotFound
	}
	reply := make(chan room.JoinReply, 1)
	joined, ok := ask(rm, room.Join{UserID: user.UserID, Username: user.Username, Reply: reply}, reply)
	if !ok {
		return RaceView{}, ErrRaceNotFound
	}
	if joined.Err != nil {
		return RaceView{}, joined.Err
	}
	c.log.Info("participant joined",
		zap.String("race_id", raceID),
		zap.String("user_id", user.UserID),
		zap.Int("participants", len(joined.Participants)))
	return RaceView{Race: joined.Race, Participants: types.ParticipantsOf(joined.Participants)}, nil
}

// ListAvailableRaces returns the joinable lobby: competitive races that
// have not started and still have a free slot, newest first. Only live
// rooms qualify; evicted races are over by definition.
func (c *Coordinator) ListAvailableRaces(ctx context.Context, limit int) []RaceView {
	if limit <= 0 {
		limit = defaultListLimit
	}
	reply := make(chan []*room.Room, 1)
	c.reg.Inbox() <- registry.List{Reply: reply}
	rooms := <-reply

	views := make([]RaceView, 0, len(rooms))
	for _, rm := range rooms {
		vreply := make(chan room.View, 1)
		view, ok := ask(rm, room.GetView{Reply: vreply}, vreply)
		if !ok {
			continue
		}
		if view.Race.RaceType != string(session.KindCompetitive) || view.Race.Started {
			continue
		}
		if len(view.Participants) >= view.Race.MaxParticipants {
			continue
		}
		views = append(views, RaceView{Race: view.Race, Participants: types.ParticipantsOf(view.Participants)})
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Race.CreatedAt.After(views[j].Race.CreatedAt)
	})
	if len(views) > limit {
		views = views[:limit]
	}
	return views
}

// StartRace starts a forming race. Only the creator is allowed to.
func (c *Coordinator) StartRace(ctx context.Context, raceID, userID string) error {
	rm := c.lookup(raceID)
	if rm == nil {
		return ErrRaceNotFound
	}
	reply := make(chan error, 1)
	err, ok := ask(rm, room.Start{UserID: userID, Reply: reply}, reply)
	if !ok {
		return ErrRaceNotFound
	}
	if err != nil {
		return err
	}
	c.markStarted(ctx, raceID)
	c.log.Info("race starting", zap.String("race_id", raceID))
	return nil
}

// markStarted mirrors the live transition into the stored metadata.
// Persistence failures are logged, never surfaced: the race is already
// running.
func (c *Coordinator) markStarted(ctx context.Context, raceID string) {
	race, err := c.store.LoadRaceMetadata(ctx, raceID)
	if err != nil {
		c.log.Error("load race metadata", zap.String("race_id", raceID), zap.Error(err))
		return
	}
	now := time.Now()
	race.Started = true
	race.StartedAt = &now
	if err := c.store.SaveRaceMetadata(ctx, race); err != nil {
		c.log.Error("update race metadata", zap.String("race_id", raceID), zap.Error(err))
	}
}

// SubmitKeystroke records one telemetry event. Keystrokes for unknown
// races are dropped without error: the race may simply have been evicted
// after finishing. When the completion policy is satisfied the race is
// finished, results are broadcast and persisted, and eviction is armed.
func (c *Coordinator) SubmitKeystroke(ctx context.Context, raceID string, user types.UserRef, position int, elapsedMs int64, errorCount int) error {
	rm := c.lookup(raceID)
	if rm == nil {
		c.log.Debug("keystroke for unknown race", zap.String("race_id", raceID))
		return nil
	}

	reply := make(chan room.ProgressReply, 1)
	pr, ok := ask(rm, room.Progress{
		UserID:    user.UserID,
		Position:  position,
		ElapsedMs: elapsedMs,
		Errors:    errorCount,
		Reply:     reply,
	}, reply)
	if !ok {
		// Evicted between lookup and delivery; same as unknown.
		c.log.Debug("keystroke for evicted race", zap.String("race_id", raceID))
		return nil
	}
	if pr.Err != nil {
		return pr.Err
	}
	if !pr.ShouldFinish {
		return nil
	}

	finReply := make(chan room.FinishReply, 1)
	fin, ok := ask(rm, room.Finish{Reply: finReply}, finReply)
	if !ok {
		return nil
	}
	if fin.Err != nil {
		// A concurrent final keystroke got there first; nothing to do.
		if errors.Is(fin.Err, session.ErrAlreadyFinished) {
			return nil
		}
		return fin.Err
	}

	c.persistResults(ctx, raceID, fin.Results)

	time.AfterFunc(c.retention, func() {
		select {
		case c.reg.Inbox() <- registry.Remove{ID: raceID}:
		case <-c.reg.Done():
		}
	})

	c.log.Info("race finished",
		zap.String("race_id", raceID),
		zap.Int("finishers", len(fin.Results)))
	return nil
}

func (c *Coordinator) persistResults(ctx context.Context, raceID string, results []session.Result) {
	rows := make([]store.Result, 0, len(results))
	for _, r := range results {
		rows = append(rows, store.Result{
			RaceID:     raceID,
			UserID:     r.UserID,
			Username:   r.Username,
			Rank:       r.Rank,
			WPM:        r.WPM,
			Accuracy:   r.Accuracy,
			FinishedAt: r.FinishedAt,
		})
	}
	if err := c.store.SaveFinalResults(ctx, raceID, rows); err != nil {
		c.log.Error("save final results", zap.String("race_id", raceID), zap.Error(err))
	}

	race, err := c.store.LoadRaceMetadata(ctx, raceID)
	if err != nil {
		c.log.Error("load race metadata", zap.String("race_id", raceID), zap.Error(err))
		return
	}
	now := time.Now()
	race.Started = true
	race.Finished = true
	race.FinishedAt = &now
	if err := c.store.SaveRaceMetadata(ctx, race); err != nil {
		c.log.Error("update race metadata", zap.String("race_id", raceID), zap.Error(err))
	}
}

// Subscribe attaches a connection's outbox to a race room. The returned
// bool reports whether the user is a spectator rather than a
// participant.
func (c *Coordinator) Subscribe(raceID, connID, userID string, outbox chan types.ServerEvent) (bool, error) {
	rm := c.lookup(raceID)
	if rm == nil {
		return false, ErrRaceNotFound
	}
	reply := make(chan bool, 1)
	isParticipant, ok := ask(rm, room.Subscribe{ConnID: connID, UserID: userID, Outbox: outbox, Reply: reply}, reply)
	if !ok {
		return false, ErrRaceNotFound
	}
	return !isParticipant, nil
}

// Unsubscribe drops the room subscription only. The user keeps their
// roster slot: leaving a room is a presence concept, not forfeiting the
// race.
func (c *Coordinator) Unsubscribe(raceID, connID string) {
	rm := c.lookup(raceID)
	if rm == nil {
		return
	}
	tell(rm, room.Unsubscribe{ConnID: connID})
}

// GetRace returns the live view of a race, or its stored metadata once
// the session has been evicted.
func (c *Coordinator) GetRace(ctx context.Context, raceID string) (RaceView, error) {
	if rm := c.lookup(raceID); rm != nil {
		reply := make(chan room.View, 1)
		if view, ok := ask(rm, room.GetView{Reply: reply}, reply); ok {
			return RaceView{Race: view.Race, Participants: types.ParticipantsOf(view.Participants)}, nil
		}
		// Evicted mid-flight; the stored metadata still answers.
	}

	race, err := c.store.LoadRaceMetadata(ctx, raceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RaceView{}, ErrRaceNotFound
		}
		c.log.Error("load race metadata", zap.String("race_id", raceID), zap.Error(err))
		return RaceView{}, ErrInternal
	}
	info := types.RaceInfo{
		RaceID:          race.RaceID,
		Sentence:        race.Sentence,
		RaceType:        race.RaceType,
		MaxParticipants: race.MaxParticipants,
		Started:         race.Started,
		Finished:        race.Finished,
		CreatedBy:       race.CreatedBy,
		CreatedAt:       race.CreatedAt,
	}
	info.State = string(session.StateForming)
	if race.Started {
		info.State = string(session.StateStarted)
	}
	if race.Finished {
		info.State = string(session.StateFinished)
	}
	return RaceView{Race: info}, nil
}

// Results returns the ranked result list of a finished race, live or
// evicted.
func (c *Coordinator) Results(ctx context.Context, raceID string) ([]types.RaceResult, error) {
	if rm := c.lookup(raceID); rm != nil {
		reply := make(chan room.FinishReply, 1)
		if res, ok := ask(rm, room.Results{Reply: reply}, reply); ok {
			if res.Err != nil {
				return nil, res.Err
			}
			return types.ResultsOf(res.Results), nil
		}
	}

	race, err := c.store.LoadRaceMetadata(ctx, raceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRaceNotFound
		}
		c.log.Error("load race metadata", zap.String("race_id", raceID), zap.Error(err))
		return nil, ErrInternal
	}
	if !race.Finished {
		return nil, session.ErrNotFinished
	}
	rows, err := c.store.LoadFinalResults(ctx, raceID)
	if err != nil {
		c.log.Error("load final results", zap.String("race_id", raceID), zap.Error(err))
		return nil, ErrInternal
	}
	results := make([]types.RaceResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, types.RaceResult{
			Rank:       r.Rank,
			UserID:     r.UserID,
			Username:   r.Username,
			WPM:        r.WPM,
			Accuracy:   r.Accuracy,
			FinishedAt: r.FinishedAt,
		})
	}
	return results, nil
}

func (c *Coordinator) lookup(raceID string) *room.Room {
	reply := make(chan *room.Room, 1)
	c.reg.Inbox() <- registry.Get{ID: raceID, Reply: reply}
	return <-reply
}

// ask delivers m to the room and waits for the reply. A room evicted
// between lookup and delivery exits its loop without draining the
// inbox, so waiting on the reply alone would block forever; ask bails
// out on the room's Done channel instead. A false return means the room
// is gone and never answered.
func ask[R any](rm *room.Room, m room.Msg, reply chan R) (R, bool) {
	var zero R
	select {
	case rm.Inbox() <- m:
	case <-rm.Done():
		return zero, false
	}
	select {
	case out := <-reply:
		return out, true
	case <-rm.Done():
		// The room may have answered just before closing.
		select {
		case out := <-reply:
			return out, true
		default:
			return zero, false
		}
	}
}

// tell is ask for fire-and-forget messages.
func tell(rm *room.Room, m room.Msg) {
	select {
	case rm.Inbox() <- m:
	case <-rm.Done():
	}
}
