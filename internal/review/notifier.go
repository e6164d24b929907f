package review

import (
	"slices"
	"sync"
	"time"

	"github.com/conorfennell/studyplan/internal/domain"
)

// EventKind names a committed store mutation.
type EventKind string

const (
	EventCreated         EventKind = "created"
	EventOutcomeRecorded EventKind = "outcome_recorded"
	EventCompleted       EventKind = "completed"
	EventRescheduled     EventKind = "rescheduled"
)

// Event is emitted after a mutation commits.
type Event struct {
	Kind    EventKind
	OwnerID string
	ItemID  string
	Item    domain.ReviewItem
	At      time.Time
}

// Notifier fans committed changes out to hooks and channel subscribers.
// Hooks run synchronously before the mutating call returns; channel
// subscribers that fall behind miss events rather than block the store.
type Notifier struct {
	mu    sync.RWMutex
	hooks []func(Event)
	subs  map[<-chan Event]chan Event
}

// NewNotifier creates an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[<-chan Event]chan Event)}
}

// OnChange registers fn to be called for every event.
func (n *Notifier) OnChange(fn func(Event)) {
	n.mu.Lock()
	n.hooks = append(n.hooks, fn)
	n.mu.Unlock()
}

// Subscribe returns a buffered channel that receives every event.
func (n *Notifier) Subscribe() <-chan Event {
	ch := make(chan Event, 64)
	n.mu.Lock()
	n.subs[ch] = ch
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (n *Notifier) Unsubscribe(ch <-chan Event) {
	n.mu.Lock()
	if c, ok := n.subs[ch]; ok {
		delete(n.subs, ch)
		close(c)
	}
	n.mu.Unlock()
}

// Publish delivers e to hooks, then to subscribers. Hooks run without the
// lock held, so they may register hooks or subscribers themselves.
func (n *Notifier) Publish(e Event) {
	n.mu.RLock()
	hooks := slices.Clone(n.hooks)
	n.mu.RUnlock()

	for _, fn := range hooks {
		fn(e)
	}

	// Sends never block, and holding the lock keeps Unsubscribe from closing
	// a channel mid-send.
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, ch := range n.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
