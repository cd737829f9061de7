package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_PublishSubscribe(t *testing.T) {
	n := NewNotifier(4)
	ch := n.SubscribeAutoID()

	n.Publish(Notification{
		Type:      EventAppended,
		ProjectID: "p1",
		EventName: "login",
		Timestamp: 100,
	})

	select {
	case notif := <-ch:
		assert.Equal(t, EventAppended, notif.Type)
		assert.Equal(t, "p1", notif.ProjectID)
		assert.Equal(t, "login", notif.EventName)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestNotifier_ProjectFilter(t *testing.T) {
	n := NewNotifier(4)
	ch := n.SubscribeAutoID("p1")

	n.Publish(Notification{Type: SegmentArchived, ProjectID: "p2", SegmentID: "seg-a"})
	n.Publish(Notification{Type: SegmentArchived, ProjectID: "p1", SegmentID: "seg-b"})

	select {
	case notif := <-ch:
		assert.Equal(t, "seg-b", notif.SegmentID)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
	// Nothing else should arrive.
	select {
	case notif := <-ch:
		t.Fatalf("unexpected notification: %+v", notif)
	default:
	}
}

func TestNotifier_FullChannelDoesNotBlock(t *testing.T) {
	n := NewNotifier(1)
	ch := n.SubscribeAutoID()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			n.Publish(Notification{Type: EventAppended, ProjectID: "p1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on full subscriber channel")
	}
	// Exactly the buffered notification survives.
	require.Len(t, ch, 1)
}

func TestNotifier_Unsubscribe(t *testing.T) {
	n := NewNotifier(4)
	sub := n.Subscribe("watcher", nil)

	n.Unsubscribe("watcher")
	_, open := <-sub.Ch
	assert.False(t, open)

	// Publishing after unsubscribe is a no-op.
	n.Publish(Notification{Type: EventAppended, ProjectID: "p1"})
}
