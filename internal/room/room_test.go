package room

import (
	"context"
	"testing"
	"time"

	"github.com/mwhited/typerace-backend/internal/session"
	"github.com/mwhited/typerace-backend/internal/types"
)

const testSentence = "the quick brown fox jumps over the lazy dog"

func newTestRoom(t *testing.T, kind session.Kind, maxParticipants int) *Room {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sess := session.New(session.Config{
		ID:              "RACE01",
		Sentence:        testSentence,
		Kind:            kind,
		MaxParticipants: maxParticipants,
		CreatedBy:       "u1",
	})
	return New(ctx, sess)
}

// helper: receive one event with a timeout so tests never hang
func recvEvent(t *testing.T, ch <-chan types.ServerEvent, within time.Duration) types.ServerEvent {
	t.Helper()
	select {
	case evt, ok := <-ch:
		if !ok {
			t.Fatalf("outbox closed unexpectedly")
		}
		return evt
	case <-time.After(within):
		t.Fatalf("timed out waiting for event")
		return types.ServerEvent{} // unreachable
	}
}

func recvNoEvent(t *testing.T, ch <-chan types.ServerEvent, within time.Duration) {
	t.Helper()
	select {
	case evt := <-ch:
		t.Fatalf("expected no event within %v, but got: %+v", within, evt)
	case <-time.After(within):
		// good: nothing arrived
	}
}

func join(t *testing.T, r *Room, userID, username string) JoinReply {
	t.Helper()
	reply := make(chan JoinReply, 1)
	r.Inbox() <- Join{UserID: userID, Username: username, Reply: reply}
	return <-reply
}

func subscribe(t *testing.T, r *Room, connID, userID string, out chan types.ServerEvent) bool {
	t.Helper()
	reply := make(chan bool, 1)
	r.Inbox() <- Subscribe{ConnID: connID, UserID: userID, Outbox: out, Reply: reply}
	return <-reply
}

func getView(t *testing.T, r *Room) View {
	t.Helper()
	reply := make(chan View, 1)
	r.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func TestRoom_JoinBroadcastsRoster(t *testing.T) {
	r := newTestRoom(t, session.KindCompetitive, 5)

	out := make(chan types.ServerEvent, 8)
	subscribe(t, r, "conn1", "u9", out)

	if reply := join(t, r, "u1", "ann"); reply.Err != nil {
		t.Fatalf("join: %v", reply.Err)
	}

	evt := recvEvent(t, out, time.Second)
	if evt.Event != types.EventParticipantJoined {
		t.Fatalf("want %s, got %s", types.EventParticipantJoined, evt.Event)
	}
	data := evt.Data.(types.ParticipantJoinedData)
	if len(data.Participants) != 1 || data.NewParticipant.UserID != "u1" {
		t.Fatalf("unexpected payload: %+v", data)
	}
}

func TestRoom_SubscribeReportsSpectator(t *testing.T) {
	r := newTestRoom(t, session.KindCompetitive, 5)
	join(t, r, "u1", "ann")

	out := make(chan types.ServerEvent, 8)
	if isParticipant := subscribe(t, r, "conn1", "u1", out); !isParticipant {
		t.Fatalf("u1 should be reported as a participant")
	}
	if isParticipant := subscribe(t, r, "conn2", "u2", out); isParticipant {
		t.Fatalf("u2 never joined, should be a spectator")
	}
}

func TestRoom_StartRequiresCreator(t *testing.T) {
	r := newTestRoom(t, session.KindCompetitive, 5)
	join(t, r, "u1", "ann")
	join(t, r, "u2", "ben")

	reply := make(chan error, 1)
	r.Inbox() <- Start{UserID: "u2", Reply: reply}
	if err := <-reply; err != session.ErrNotCreator {
		t.Fatalf("want ErrNotCreator, got %v", err)
	}
	if view := getView(t, r); view.Race.Started {
		t.Fatalf("race must stay in forming after a forbidden start")
	}

	r.Inbox() <- Start{UserID: "u1", Reply: reply}
	if err := <-reply; err != nil {
		t.Fatalf("creator start: %v", err)
	}
}

func TestRoom_StartBroadcastsCountdown(t *testing.T) {
	r := newTestRoom(t, session.KindCompetitive, 5)
	join(t, r, "u1", "ann")

	out := make(chan types.ServerEvent, 8)
	subscribe(t, r, "conn1", "u1", out)

	reply := make(chan error, 1)
	r.Inbox() <- Start{UserID: "u1", Reply: reply}
	if err := <-reply; err != nil {
		t.Fatalf("start: %v", err)
	}

	evt := recvEvent(t, out, time.Second)
	if evt.Event != types.EventRaceStarting {
		t.Fatalf("want %s, got %s", types.EventRaceStarting, evt.Event)
	}
	if data := evt.Data.(types.RaceStartingData); data.Countdown != 3 {
		t.Fatalf("want countdown 3, got %d", data.Countdown)
	}
}

func TestRoom_ProgressBroadcastsInOrder(t *testing.T) {
	r := newTestRoom(t, session.KindCompetitive, 5)
	join(t, r, "u1", "ann")
	join(t, r, "u2", "ben")

	startReply := make(chan error, 1)
	r.Inbox() <- Start{UserID: "u1", Reply: startReply}
	<-startReply

	out := make(chan types.ServerEvent, 8)
	subscribe(t, r, "conn1", "u1", out)

	for i, pos := range []int{5, 10, 15} {
		reply := make(chan ProgressReply, 1)
		r.Inbox() <- Progress{UserID: "u1", Position: pos, ElapsedMs: int64((i + 1) * 1000), Reply: reply}
		if pr := <-reply; pr.Err != nil {
			t.Fatalf("progress %d: %v", pos, pr.Err)
		}
	}

	for _, wantPos := range []int{5, 10, 15} {
		evt := recvEvent(t, out, time.Second)
		if evt.Event != types.EventParticipantProgress {
			t.Fatalf("want %s, got %s", types.EventParticipantProgress, evt.Event)
		}
		if data := evt.Data.(types.ParticipantProgressData); data.Position != wantPos {
			t.Fatalf("events out of order: want position %d, got %d", wantPos, data.Position)
		}
	}
}

func TestRoom_FinishBroadcastsRankedResults(t *testing.T) {
	r := newTestRoom(t, session.KindCompetitive, 5)
	join(t, r, "u1", "ann")

	startReply := make(chan error, 1)
	r.Inbox() <- Start{UserID: "u1", Reply: startReply}
	<-startReply

	out := make(chan types.ServerEvent, 8)
	subscribe(t, r, "conn1", "u1", out)

	progReply := make(chan ProgressReply, 1)
	r.Inbox() <- Progress{UserID: "u1", Position: len(testSentence), ElapsedMs: 60000, Reply: progReply}
	pr := <-progReply
	if pr.Err != nil || !pr.ShouldFinish {
		t.Fatalf("want clean finish signal, got %+v", pr)
	}
	recvEvent(t, out, time.Second) // drain the progress event

	finReply := make(chan FinishReply, 1)
	r.Inbox() <- Finish{Reply: finReply}
	if fin := <-finReply; fin.Err != nil {
		t.Fatalf("finish: %v", fin.Err)
	}

	evt := recvEvent(t, out, time.Second)
	if evt.Event != types.EventRaceFinished {
		t.Fatalf("want %s, got %s", types.EventRaceFinished, evt.Event)
	}
	data := evt.Data.(types.RaceFinishedData)
	if len(data.Results) != 1 || data.Results[0].Rank != 1 {
		t.Fatalf("unexpected results: %+v", data.Results)
	}

	// Second finish is a no-op with an explicit signal, no broadcast.
	r.Inbox() <- Finish{Reply: finReply}
	if fin := <-finReply; fin.Err != session.ErrAlreadyFinished {
		t.Fatalf("want ErrAlreadyFinished, got %v", fin.Err)
	}
	recvNoEvent(t, out, 100*time.Millisecond)
}

func TestRoom_DropsSlowSubscriber(t *testing.T) {
	r := newTestRoom(t, session.KindCompetitive, 5)

	out := make(chan types.ServerEvent) // unbuffered and never drained
	subscribe(t, r, "conn1", "u1", out)

	join(t, r, "u1", "ann")

	if view := getView(t, r); view.NumSubscribers != 0 {
		t.Fatalf("expected slow subscriber to be dropped; NumSubscribers=%d", view.NumSubscribers)
	}
}

func TestRoom_ShutdownClosesDone(t *testing.T) {
	r := newTestRoom(t, session.KindCompetitive, 5)

	r.Inbox() <- Shutdown{}
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatalf("Done must close once the loop exits")
	}

	// Anything buffered after the loop exits is never answered; senders
	// resolve via Done instead.
	reply := make(chan JoinReply, 1)
	select {
	case r.Inbox() <- Join{UserID: "u1", Username: "ann", Reply: reply}:
	case <-r.Done():
	}
	select {
	case got := <-reply:
		t.Fatalf("closed room should not answer, got %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRoom_UnsubscribeStopsDelivery(t *testing.T) {
	r := newTestRoom(t, session.KindCompetitive, 5)

	out := make(chan types.ServerEvent, 8)
	subscribe(t, r, "conn1", "u1", out)
	r.Inbox() <- Unsubscribe{ConnID: "conn1"}

	join(t, r, "u1", "ann")
	recvNoEvent(t, out, 100*time.Millisecond)
}
