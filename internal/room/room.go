// Package room runs one actor per race. The actor is the sole owner of
// the race's Session, so every mutation and the completion check are
// serialized through its inbox, and it owns the subscriber map, so
// events reach subscribers in exactly the order they were produced.
package room

import (
	"context"

	"github.com/mwhited/typerace-backend/internal/session"
	"github.com/mwhited/typerace-backend/internal/types"
)

// Countdown hint sent with race-starting.
const startCountdown = 3

type Msg interface{ isRoomMsg() }

// Subscribe registers a connection's outbox for this race's broadcasts.
// The reply reports whether the subscriber is on the roster (false means
// spectator). Outboxes are owned by the connection and shared across
// rooms, so the room never closes them.
type Subscribe struct {
	ConnID string
	UserID string
	Outbox chan types.ServerEvent
	Reply  chan bool
}

type Unsubscribe struct{ ConnID string }

// Join adds a user to the roster and broadcasts the updated list.
type Join struct {
	UserID   string
	Username string
	Reply    chan JoinReply
}

type JoinReply struct {
	Race         types.RaceInfo
	Participants []session.Participant
	Err          error
}

// Start transitions the race to started. Only the creator may start it.
type Start struct {
	UserID string
	Reply  chan error
}

// Progress folds one keystroke into the session and broadcasts the
// resulting snapshot.
type Progress struct {
	UserID    string
	Position  int
	ElapsedMs int64
	Errors    int
	Reply     chan ProgressReply
}

type ProgressReply struct {
	Snapshot     session.Snapshot
	ShouldFinish bool
	Err          error
}

// Finish ranks the finishers, ends the race and broadcasts the results.
type Finish struct {
	Reply chan FinishReply
}

type FinishReply struct {
	Results []session.Result
	Err     error
}

// Results reads the ranked list of an already-finished race.
type Results struct {
	Reply chan FinishReply
}

// Publish fans an externally built event out to this room's subscribers.
type Publish struct {
	Event types.ServerEvent
}

// GetView reflects internal state without data races. Test hook plus the
// race detail endpoint.
type GetView struct {
	Reply chan View
}

type View struct {
	Race           types.RaceInfo
	Participants   []session.Participant
	NumSubscribers int
}

type Shutdown struct{}

func (Subscribe) isRoomMsg()   {}
func (Unsubscribe) isRoomMsg() {}
func (Join) isRoomMsg()        {}
func (Start) isRoomMsg()       {}
func (Progress) isRoomMsg()    {}
func (Finish) isRoomMsg()      {}
func (Results) isRoomMsg()     {}
func (Publish) isRoomMsg()     {}
func (GetView) isRoomMsg()     {}
func (Shutdown) isRoomMsg()    {}

type Room struct {
	inbox  chan Msg
	sess   *session.Session
	subs   map[string]chan types.ServerEvent
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, sess *session.Session) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		inbox:  make(chan Msg, 64),
		sess:   sess,
		subs:   make(map[string]chan types.ServerEvent),
		ctx:    ctx,
		cancel: cancel,
	}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Done is closed once the loop has stopped receiving. Anything buffered
// on the inbox at that point will never be answered, so callers waiting
// on a reply must also watch Done.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Subscribe:
				r.subs[msg.ConnID] = msg.Outbox
				msg.Reply <- r.sess.IsParticipant(msg.UserID)

			case Unsubscribe:
				delete(r.subs, msg.ConnID)

			case Join:
				err := r.sess.AddParticipant(msg.UserID, msg.Username)
				if err == nil {
					r.broadcast(types.ServerEvent{
						Event: types.EventParticipantJoined,
						Data: types.ParticipantJoinedData{
							RaceID:         r.sess.ID(),
							Participants:   types.ParticipantsOf(r.sess.Participants()),
							NewParticipant: types.UserRef{UserID: msg.UserID, Username: msg.Username},
						},
					})
				}
				msg.Reply <- JoinReply{
					Race:         types.RaceInfoOf(r.sess),
					Participants: r.sess.Participants(),
					Err:          err,
				}

			case Start:
				err := r.start(msg.UserID)
				if err == nil {
					r.broadcast(types.ServerEvent{
						Event: types.EventRaceStarting,
						Data:  types.RaceStartingData{RaceID: r.sess.ID(), Countdown: startCountdown},
					})
				}
				msg.Reply <- err

			case Progress:
				snap, shouldFinish, err := r.sess.RecordProgress(msg.UserID, msg.Position, msg.ElapsedMs, msg.Errors)
				if err == nil {
					r.broadcast(types.ServerEvent{
						Event: types.EventParticipantProgress,
						Data:  types.ProgressDataOf(snap),
					})
				}
				msg.Reply <- ProgressReply{Snapshot: snap, ShouldFinish: shouldFinish, Err: err}

			case Finish:
				results, err := r.sess.Finish()
				if err == nil {
					r.broadcast(types.ServerEvent{
						Event: types.EventRaceFinished,
						Data:  types.RaceFinishedData{RaceID: r.sess.ID(), Results: types.ResultsOf(results)},
					})
				}
				msg.Reply <- FinishReply{Results: results, Err: err}

			case Results:
				results, err := r.sess.Results()
				msg.Reply <- FinishReply{Results: results, Err: err}

			case Publish:
				r.broadcast(msg.Event)

			case GetView:
				msg.Reply <- View{
					Race:           types.RaceInfoOf(r.sess),
					Participants:   r.sess.Participants(),
					NumSubscribers: len(r.subs),
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) start(userID string) error {
	if userID != r.sess.CreatedBy() {
		return session.ErrNotCreator
	}
	return r.sess.Start()
}

func (r *Room) shutdown() {
	clear(r.subs)
	r.cancel()
}

// broadcast delivers in subscriber-map order with a non-blocking send.
// A subscriber whose outbox is full has stopped draining; it loses its
// membership in this room rather than stalling everyone else.
func (r *Room) broadcast(evt types.ServerEvent) {
	for id, ch := range r.subs {
		select {
		case ch <- evt:
		default:
			delete(r.subs, id)
		}
	}
}
