package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/park285/critter-kakao-bot/internal/board"
	"github.com/park285/critter-kakao-bot/internal/duel"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestNoopPublisher(t *testing.T) {
	var pub Publisher = &NoopPublisher{}
	if err := pub.Publish(context.Background(), TopicSessionStarted, SessionStarted{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRecorder_PublishesLifecycle(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	rec := NewRecorder(pub)
	ctx := context.Background()
	view := duel.View{SessionID: "s-1", Kind: board.GravityDrop, Channel: "room1", PartyA: "alice", PartyB: "bob"}
	if err := rec.RecordStart(ctx, view); err != nil {
		t.Fatalf("RecordStart: %v", err)
	}
	res := duel.Result{
		SessionID: "s-1", Kind: board.GravityDrop, PartyA: "alice", PartyB: "bob",
		Status: duel.StatusWonByB, Reason: duel.ReasonWin, Winner: "bob",
		OutcomeA: duel.OutcomeLost, OutcomeB: duel.OutcomeWon, Turns: 8, Moves: 8,
	}
	if err := rec.Record(ctx, res); err != nil {
		t.Fatalf("Record: %v", err)
	}
	pub.conn.Flush()

	var got []Message
	for len(got) < 2 {
		select {
		case m := <-ch:
			got = append(got, m)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d messages", len(got))
		}
	}
	if got[0].Topic != TopicSessionStarted || got[1].Topic != TopicSessionFinished {
		t.Fatalf("topics = %q, %q", got[0].Topic, got[1].Topic)
	}
	var started SessionStarted
	if err := json.Unmarshal(got[0].Data, &started); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if started.Kind != "connect4" || started.PartyB != "bob" {
		t.Errorf("started = %+v", started)
	}
	var fin SessionFinished
	if err := json.Unmarshal(got[1].Data, &fin); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fin.Winner != "bob" || fin.Status != "WON_BY_B" || fin.OutcomeA != "lost" {
		t.Errorf("finished = %+v", fin)
	}
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	url := startTestNATS(t)
	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()
	ch, cancel, err := sub.Subscribe(TopicSessionFinished)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
}
