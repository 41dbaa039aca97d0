package registry

import (
	"context"
	"testing"
	"time"

	"github.com/mwhited/typerace-backend/internal/room"
	"github.com/mwhited/typerace-backend/internal/session"
)

func testConfig() session.Config {
	return session.Config{
		Sentence:        "the quick brown fox jumps over the lazy dog",
		Kind:            session.KindCompetitive,
		MaxParticipants: 5,
		CreatedBy:       "u1",
	}
}

func create(t *testing.T, r *Registry) CreateReply {
	t.Helper()
	reply := make(chan CreateReply, 1)
	r.Inbox() <- Create{Cfg: testConfig(), Reply: reply}
	select {
	case cr := <-reply:
		return cr
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for create")
		return CreateReply{} // unreachable
	}
}

func get(t *testing.T, r *Registry, id string) *room.Room {
	t.Helper()
	reply := make(chan *room.Room, 1)
	r.Inbox() <- Get{ID: id, Reply: reply}
	select {
	case rm := <-reply:
		return rm
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for get")
		return nil // unreachable
	}
}

func TestRegistry_Create_Get_SamePointer(t *testing.T) {
	r := New(context.Background())

	created := create(t, r)
	if created.ID == "" || created.Room == nil {
		t.Fatalf("create returned %+v", created)
	}
	if got := get(t, r, created.ID); got != created.Room {
		t.Fatalf("expected same room pointer")
	}
}

func TestRegistry_Get_UnknownIsNil(t *testing.T) {
	r := New(context.Background())
	if got := get(t, r, "NOPE99"); got != nil {
		t.Fatalf("unknown id should resolve to nil, got %v", got)
	}
}

func TestRegistry_IDsAreUnique(t *testing.T) {
	r := New(context.Background())

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		created := create(t, r)
		if seen[created.ID] {
			t.Fatalf("duplicate race id %q", created.ID)
		}
		seen[created.ID] = true
	}
}

func list(t *testing.T, r *Registry) []*room.Room {
	t.Helper()
	reply := make(chan []*room.Room, 1)
	r.Inbox() <- List{Reply: reply}
	select {
	case rooms := <-reply:
		return rooms
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for list")
		return nil // unreachable
	}
}

func TestRegistry_List(t *testing.T) {
	r := New(context.Background())

	first := create(t, r)
	second := create(t, r)
	if rooms := list(t, r); len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}

	r.Inbox() <- Remove{ID: first.ID}
	rooms := list(t, r)
	if len(rooms) != 1 {
		t.Fatalf("expected 1 room after remove, got %d", len(rooms))
	}
	if rooms[0] != second.Room {
		t.Fatalf("expected the surviving room")
	}
}

func TestRegistry_ShutdownUnblocksLateSenders(t *testing.T) {
	r := New(context.Background())
	create(t, r)

	r.Inbox() <- Shutdown{}
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatalf("registry loop did not stop")
	}

	// More sends than the inbox can buffer; each must resolve via Done
	// instead of blocking on a loop that exited.
	for i := 0; i < 100; i++ {
		select {
		case r.Inbox() <- Remove{ID: "GONE01"}:
		case <-r.Done():
		}
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := New(context.Background())

	created := create(t, r)
	r.Inbox() <- Remove{ID: created.ID}

	if got := get(t, r, created.ID); got != nil {
		t.Fatalf("removed race should resolve to nil")
	}
}
