// Package registry owns the process-wide mapping from race id to its
// room actor. Creation happens inside the registry loop, so two
// concurrent creates can never be handed the same id.
package registry

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/mwhited/typerace-backend/internal/room"
	"github.com/mwhited/typerace-backend/internal/session"
)

type Msg interface{ isRegistryMsg() }

// Create allocates a race id, builds the session and its room, and
// registers them. Cfg.ID is assigned by the registry.
type Create struct {
	Cfg   session.Config
	Reply chan CreateReply
}

type CreateReply struct {
	ID   string
	Room *room.Room
}

// Get looks a room up by race id. The reply is nil for unknown ids.
type Get struct {
	ID    string
	Reply chan *room.Room
}

// List snapshots every live room.
type List struct {
	Reply chan []*room.Room
}

// Remove evicts a race and shuts its room down.
type Remove struct{ ID string }

type Shutdown struct{}

func (Create) isRegistryMsg()   {}
func (Get) isRegistryMsg()      {}
func (List) isRegistryMsg()     {}
func (Remove) isRegistryMsg()   {}
func (Shutdown) isRegistryMsg() {}

type Registry struct {
	inbox  chan Msg
	rooms  map[string]*room.Room
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:  make(chan Msg, 64),
		rooms:  make(map[string]*room.Room),
		ctx:    ctx,
		cancel: cancel,
	}
	go r.loop()
	return r
}

func (r *Registry) Inbox() chan<- Msg { return r.inbox }

// Done is closed once the loop has stopped receiving. Senders that might
// fire after shutdown, like retention timers, select against it.
func (r *Registry) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Create:
				id := r.newID()
				cfg := msg.Cfg
				cfg.ID = id
				rm := room.New(r.ctx, session.New(cfg))
				r.rooms[id] = rm
				msg.Reply <- CreateReply{ID: id, Room: rm}

			case Get:
				msg.Reply <- r.rooms[msg.ID] // may be nil

			case List:
				rooms := make([]*room.Room, 0, len(r.rooms))
				for _, rm := range r.rooms {
					rooms = append(rooms, rm)
				}
				msg.Reply <- rooms

			case Remove:
				if rm := r.rooms[msg.ID]; rm != nil {
					rm.Inbox() <- room.Shutdown{}
				}
				delete(r.rooms, msg.ID)

			case Shutdown:
				for _, rm := range r.rooms {
					rm.Inbox() <- room.Shutdown{}
				}
				clear(r.rooms)
				r.cancel()
			}
		}
	}
}

// newID loops until an unused code comes up. Runs inside the loop, so
// uniqueness holds without extra locking.
func (r *Registry) newID() string {
	for {
		id, err := generateCode()
		if err != nil {
			continue
		}
		if _, taken := r.rooms[id]; !taken {
			return id
		}
	}
}

func generateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}
