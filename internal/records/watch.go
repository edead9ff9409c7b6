package records

import "sync"

// Table identifies an entity table in the change feed.
type Table string

const (
	TableSubmissions Table = "submissions"
	TableTracks      Table = "tracks"
)

// ChangeKind identifies the mutation type carried by a Change.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// Change is one committed record mutation. It names the entity, not its
// contents; consumers fetch current state themselves.
type Change struct {
	Table Table
	Kind  ChangeKind
	ID    string
}

// subscriptionBuffer bounds how far a slow consumer may fall behind before
// its subscription is dropped and it must resubscribe.
const subscriptionBuffer = 64

// Subscription is a live feed of record changes for one table. The channel is
// closed when the consumer lags too far behind or the store shuts down;
// consumers are expected to resubscribe and refresh their snapshot.
type Subscription struct {
	table  Table
	ch     chan Change
	feed   *feed
	closed bool // guarded by feed.mu
}

// C returns the change delivery channel.
func (s *Subscription) C() <-chan Change {
	return s.ch
}

// Close releases the subscription. Safe to call multiple times and from any
// exit path.
func (s *Subscription) Close() {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	if s.closed {
		return
	}
	delete(s.feed.subs, s)
	close(s.ch)
	s.closed = true
}

type feed struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
	done bool
}

func newFeed() *feed {
	return &feed{subs: make(map[*Subscription]struct{})}
}

// Watch registers a subscription for changes to one table. Changes are
// delivered after the corresponding write has committed.
func (s *Store) Watch(table Table) *Subscription {
	sub := &Subscription{
		table: table,
		ch:    make(chan Change, subscriptionBuffer),
		feed:  s.feed,
	}
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	if s.feed.done {
		close(sub.ch)
		sub.closed = true
		return sub
	}
	s.feed.subs[sub] = struct{}{}
	return sub
}

func (f *feed) publish(change Change) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs {
		if sub.table != change.Table {
			continue
		}
		select {
		case sub.ch <- change:
		default:
			// Lagging consumer: drop the subscription rather than block
			// writers. The consumer resubscribes and re-fetches a snapshot.
			delete(f.subs, sub)
			close(sub.ch)
			sub.closed = true
		}
	}
}

func (f *feed) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return
	}
	f.done = true
	for sub := range f.subs {
		delete(f.subs, sub)
		close(sub.ch)
		sub.closed = true
	}
}
