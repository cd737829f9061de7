// Package router provides an in-process notification bus for index
// lifecycle events: ingested records and archived segments.
package router

import (
	"sync"
	"time"
)

// NotificationType represents the type of notification.
type NotificationType int

const (
	EventAppended NotificationType = iota
	SegmentArchived
)

// Notification represents an index lifecycle event.
type Notification struct {
	Type        NotificationType
	ProjectID   string
	EventName   string
	SegmentID   string
	RecordCount int64
	Timestamp   int64
}

// Notifier provides an in-process pub/sub bus. Publishing never
// blocks: a subscriber that falls behind loses notifications rather
// than stalling the ingest or retention path.
type Notifier struct {
	subscribers sync.Map
	bufferSize  int
}

// NewNotifier creates a new notifier instance.
func NewNotifier(bufferSize int) *Notifier {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Notifier{bufferSize: bufferSize}
}

// Publish sends a notification to all matching subscribers.
// Non-blocking: if a subscriber's channel is full, the notification is
// dropped.
func (n *Notifier) Publish(notif Notification) {
	n.subscribers.Range(func(key, value interface{}) bool {
		sub := value.(*Subscriber)
		if n.matchesFilter(sub, notif.ProjectID) {
			select {
			case sub.Ch <- notif:
			default:
				// Channel full, drop rather than block.
			}
		}
		return true
	})
}

// Subscribe adds a subscriber. Filters are project ID prefixes; an
// empty filter set receives everything.
func (n *Notifier) Subscribe(id string, filters []string) *Subscriber {
	sub := &Subscriber{
		ID:      id,
		Filters: filters,
		Ch:      make(chan Notification, n.bufferSize),
	}
	n.subscribers.Store(sub.ID, sub)
	return sub
}

// SubscribeAutoID adds a subscriber with a generated ID and returns
// its channel.
func (n *Notifier) SubscribeAutoID(filters ...string) chan Notification {
	sub := n.Subscribe(generateSubscriberID(), filters)
	return sub.Ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (n *Notifier) Unsubscribe(subID string) {
	if value, ok := n.subscribers.LoadAndDelete(subID); ok {
		close(value.(*Subscriber).Ch)
	}
}

func (n *Notifier) matchesFilter(sub *Subscriber, projectID string) bool {
	if len(sub.Filters) == 0 {
		return true
	}
	for _, filter := range sub.Filters {
		if len(filter) == 0 {
			return true
		}
		if len(projectID) >= len(filter) && projectID[:len(filter)] == filter {
			return true
		}
	}
	return false
}

// Subscriber represents a notification subscriber.
type Subscriber struct {
	ID      string
	Filters []string
	Ch      chan Notification
}

func generateSubscriberID() string {
	return "sub_" + time.Now().Format("20060102150405000000")
}
