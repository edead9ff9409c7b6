package livefeed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"demodrop/internal/logging"
	"demodrop/internal/records"
)

// resubscribeDelay paces snapshot reload attempts after a dropped
// subscription.
const resubscribeDelay = 250 * time.Millisecond

// feedStore is the slice of the record store the viewer needs.
type feedStore interface {
	ListSubmissions(ctx context.Context) ([]*records.Submission, error)
	GetSubmission(ctx context.Context, id string) (*records.Submission, error)
	Watch(table records.Table) *records.Subscription
}

// Viewer maintains one connected reviewer's live view of submissions.
type Viewer struct {
	store  feedStore
	logger *slog.Logger

	onInsert func(records.Submission)
	onUpdate func(records.Submission)

	mu    sync.RWMutex
	order []string
	byID  map[string]records.Submission

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewViewer builds a viewer over the record store.
func NewViewer(store feedStore, logger *slog.Logger) *Viewer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Viewer{
		store:  store,
		logger: logger.With(logging.String(logging.FieldComponent, "livefeed")),
		byID:   make(map[string]records.Submission),
	}
}

// OnInsert registers a callback fired after a new submission is merged.
// Must be set before Start.
func (v *Viewer) OnInsert(fn func(records.Submission)) { v.onInsert = fn }

// OnUpdate registers a callback fired after an existing entry is replaced.
// Must be set before Start.
func (v *Viewer) OnUpdate(fn func(records.Submission)) { v.onUpdate = fn }

// Start subscribes to the change feed, loads the initial snapshot, and
// begins merging events in the background. Subscribing before the snapshot
// fetch means no change can fall between the two; the merge rules absorb any
// overlap.
func (v *Viewer) Start(ctx context.Context) error {
	v.runMu.Lock()
	defer v.runMu.Unlock()
	if v.running {
		return errors.New("viewer already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	sub := v.store.Watch(records.TableSubmissions)

	if err := v.loadSnapshot(runCtx); err != nil {
		sub.Close()
		cancel()
		return err
	}

	v.cancel = cancel
	v.running = true
	v.wg.Add(1)
	go v.run(runCtx, sub)
	return nil
}

// Stop tears the subscription down and waits for the merge loop to exit.
func (v *Viewer) Stop() {
	v.runMu.Lock()
	if !v.running {
		v.runMu.Unlock()
		return
	}
	cancel := v.cancel
	v.running = false
	v.cancel = nil
	v.runMu.Unlock()

	cancel()
	v.wg.Wait()
}

// Submissions returns the current view, newest first.
func (v *Viewer) Submissions() []records.Submission {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]records.Submission, 0, len(v.order))
	for _, id := range v.order {
		out = append(out, v.byID[id])
	}
	return out
}

func (v *Viewer) loadSnapshot(ctx context.Context) error {
	subs, err := v.store.ListSubmissions(ctx)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.order = v.order[:0]
	v.byID = make(map[string]records.Submission, len(subs))
	for _, sub := range subs {
		v.order = append(v.order, sub.ID)
		v.byID[sub.ID] = *sub
	}
	return nil
}

func (v *Viewer) run(ctx context.Context, sub *records.Subscription) {
	defer v.wg.Done()
	defer func() { sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-sub.C():
			if !ok {
				// The feed drops lagging subscribers. Resubscribe and
				// reload rather than surfacing a fatal error to the viewer.
				v.logger.Warn("change subscription dropped, resubscribing")
				next := v.resubscribe(ctx)
				if next == nil {
					return
				}
				sub.Close()
				sub = next
				continue
			}
			v.apply(ctx, change)
		}
	}
}

// resubscribe re-establishes the subscription and snapshot, retrying a
// failed snapshot query until it succeeds or the context is cancelled.
// Returns nil only on cancellation.
func (v *Viewer) resubscribe(ctx context.Context) *records.Subscription {
	for {
		if ctx.Err() != nil {
			return nil
		}
		sub := v.store.Watch(records.TableSubmissions)
		err := v.loadSnapshot(ctx)
		if err == nil {
			return sub
		}
		sub.Close()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		v.logger.Warn("snapshot reload failed, retrying", logging.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(resubscribeDelay):
		}
	}
}

func (v *Viewer) apply(ctx context.Context, change records.Change) {
	if change.Table != records.TableSubmissions {
		return
	}

	switch change.Kind {
	case records.ChangeDelete:
		v.removeEntry(change.ID)
		return
	case records.ChangeInsert, records.ChangeUpdate:
	default:
		return
	}

	sub, err := v.store.GetSubmission(ctx, change.ID)
	if err != nil {
		v.logger.Warn("failed to load changed submission",
			logging.String("submission_id", change.ID),
			logging.Error(err),
		)
		return
	}
	if sub == nil {
		// Row already gone again; nothing to merge.
		return
	}

	inserted, updated := v.merge(change.Kind, *sub)
	if inserted && v.onInsert != nil {
		v.onInsert(*sub)
	}
	if updated && v.onUpdate != nil {
		v.onUpdate(*sub)
	}
}

// merge applies one change to the view. An insert for a known id and an
// update for a known id both replace in place, keeping the entry's position.
// An update for an unknown id is discarded: it raced ahead of the snapshot
// and its insert will follow.
func (v *Viewer) merge(kind records.ChangeKind, sub records.Submission) (inserted, updated bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, known := v.byID[sub.ID]; known {
		v.byID[sub.ID] = sub
		return false, true
	}
	if kind == records.ChangeUpdate {
		return false, false
	}

	v.order = append([]string{sub.ID}, v.order...)
	v.byID[sub.ID] = sub
	return true, false
}

func (v *Viewer) removeEntry(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, known := v.byID[id]; !known {
		return
	}
	delete(v.byID, id)
	for i, existing := range v.order {
		if existing == id {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
}
