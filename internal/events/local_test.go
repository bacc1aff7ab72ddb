package events

import (
	"context"
	"testing"
	"time"
)

func receive(t *testing.T, sub Subscription) Delivery {
	t.Helper()
	select {
	case d, ok := <-sub.C():
		if !ok {
			t.Fatalf("subscription closed")
		}
		return d
	case <-time.After(time.Second):
		t.Fatalf("no delivery within 1s")
	}
	return Delivery{}
}

func TestLocal_PublishToTopic(t *testing.T) {
	ctx := context.Background()
	bus := NewLocal()

	room, _ := bus.Subscribe(ctx, RoomTopic("abc123"))
	defer room.Close()
	other, _ := bus.Subscribe(ctx, RoomTopic("xyz999"))
	defer other.Close()

	ev := Event{Type: AdminChanged, RoomID: "abc123", CreatorID: "U3"}
	if err := bus.Publish(ctx, ev, RoomTopic("abc123")); err != nil {
		t.Fatal(err)
	}

	d := receive(t, room)
	if d.Topic != RoomTopic("abc123") || d.Event.CreatorID != "U3" {
		t.Errorf("delivery = %+v", d)
	}

	select {
	case d := <-other.C():
		t.Errorf("unexpected delivery to other room: %+v", d)
	default:
	}
}

func TestLocal_Wildcard(t *testing.T) {
	ctx := context.Background()
	bus := NewLocal()

	all, _ := bus.Subscribe(ctx, AllTopics)
	defer all.Close()

	bus.Publish(ctx, Event{Type: JoinRequestCreated, RoomID: "r"}, UserTopic("U1"), RoomTopic("r"))

	first := receive(t, all)
	second := receive(t, all)
	if first.Topic != UserTopic("U1") || second.Topic != RoomTopic("r") {
		t.Errorf("topics = %q, %q", first.Topic, second.Topic)
	}
}

func TestLocal_ContextCancelClosesSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewLocal()

	sub, _ := bus.Subscribe(ctx, UserTopic("U2"))
	cancel()

	select {
	case _, ok := <-sub.C():
		if ok {
			t.Errorf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscription not closed after cancel")
	}

	// Публикация после закрытия не должна паниковать
	if err := bus.Publish(context.Background(), Event{Type: RoomDeleted}, UserTopic("U2")); err != nil {
		t.Fatal(err)
	}
	if err := sub.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestParseTopic(t *testing.T) {
	tests := []struct {
		topic    string
		kind, id string
		ok       bool
	}{
		{RoomTopic("abc"), "room", "abc", true},
		{UserTopic("u1"), "user", "u1", true},
		{"other", "", "", false},
	}
	for _, test := range tests {
		kind, id, ok := ParseTopic(test.topic)
		if kind != test.kind || id != test.id || ok != test.ok {
			t.Errorf("ParseTopic(%q) = %q, %q, %v", test.topic, kind, id, ok)
		}
	}
}
