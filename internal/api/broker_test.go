package api

import (
	"context"
	"testing"
	"time"

	"binroute/internal/model"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	rid := "r1"
	ch := b.Subscribe(rid)

	evt := model.RunEvent{Type: model.EventRunProgress, RunID: rid, Iteration: 3}
	b.Publish(rid, evt)
	b.Publish("other", model.RunEvent{Type: model.EventRunProgress, RunID: "other"})

	select {
	case got := <-ch:
		if got.Type != evt.Type || got.Iteration != 3 {
			t.Fatalf("got %+v, want %+v", got, evt)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected event from another run: %+v", got)
	default:
	}

	b.Unsubscribe(rid, ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	// second unsubscribe is a no-op
	b.Unsubscribe(rid, ch)
}

func TestBrokerKeepsTerminalEventWhenFull(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("r1")
	defer b.Unsubscribe("r1", ch)
	for i := 0; i < cap(ch)+10; i++ {
		b.Publish("r1", model.RunEvent{Type: model.EventRunProgress, Iteration: i})
	}
	b.Publish("r1", model.RunEvent{Type: model.EventRunCompleted})

	var last model.RunEvent
	for i := 0; i < cap(ch); i++ {
		last = <-ch
	}
	if last.Type != model.EventRunCompleted {
		t.Fatalf("last event %+v, want run.completed", last)
	}
}

func newMiniredisBroker(t *testing.T) *RedisBroker {
	t.Helper()
	mr := miniredis.RunT(t)
	b := NewRedisBrokerClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestRedisBrokerPublishSubscribe(t *testing.T) {
	b := newMiniredisBroker(t)
	ch := b.Subscribe("r1")

	b.Publish("r1", model.RunEvent{Type: model.EventRunProgress, RunID: "r1", BestCost: 7})
	b.Publish("r1", model.RunEvent{Type: model.EventRunCompleted, RunID: "r1", BestCost: 5})

	want := []string{model.EventRunProgress, model.EventRunCompleted}
	for _, typ := range want {
		select {
		case got := <-ch:
			if got.Type != typ || got.RunID != "r1" {
				t.Fatalf("got %+v, want type %s", got, typ)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for %s", typ)
		}
	}

	b.Unsubscribe("r1", ch)
	b.Unsubscribe("r1", ch)
}

func TestRedisBrokerPing(t *testing.T) {
	b := newMiniredisBroker(t)
	if err := b.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestNewRedisBrokerBadURL(t *testing.T) {
	if _, err := NewRedisBroker("not a url"); err == nil {
		t.Fatal("expected error for invalid redis url")
	}
}
