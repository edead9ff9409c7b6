package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"demodrop/internal/config"
	"demodrop/internal/logging"
	"demodrop/internal/storage"
)

// ErrOversizeAsset rejects a file above the configured ceiling before any
// network traffic happens.
var ErrOversizeAsset = errors.New("asset exceeds size ceiling")

// ErrEmptyBatch rejects finalizing a batch with no units left in it.
var ErrEmptyBatch = errors.New("batch has no units")

// etaFloor is the minimum elapsed transfer time before throughput and ETA
// are reported. Estimates from shorter samples spike wildly and mislead.
const etaFloor = 500 * time.Millisecond

const progressDepth = 64

// AggregateProgress is one progress observation for one unit. EstimateKnown
// is false until the unit has transferred long enough for a stable estimate.
type AggregateProgress struct {
	UnitID        string
	State         UnitState
	Percent       float64
	EstimateKnown bool
	ETASeconds    float64
	ThroughputBps float64
	Err           error
}

// StoredAsset is one successfully landed upload.
type StoredAsset struct {
	UnitID   string
	Name     string
	Location string
}

// FailedUnit is one upload that ended in failure, reported but not blocking.
type FailedUnit struct {
	UnitID string
	Name   string
	Err    error
}

// BatchResult is the outcome of a finalized batch. Failed units are listed
// for the caller but never block submission of the stored ones.
type BatchResult struct {
	Stored []StoredAsset
	Failed []FailedUnit
}

// Coordinator owns the transfer units of one submission attempt.
type Coordinator struct {
	backend  storage.Backend
	logger   *slog.Logger
	maxBytes int64

	mu    sync.Mutex
	units map[string]*unit
	order []string

	progress chan AggregateProgress
	wg       sync.WaitGroup
	closer   sync.Once
}

// NewCoordinator builds a coordinator for one batch.
func NewCoordinator(cfg *config.Config, backend storage.Backend, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		backend:  backend,
		logger:   logger.With(logging.String(logging.FieldComponent, "upload")),
		maxBytes: cfg.Uploads.MaxFileMiB * 1024 * 1024,
		units:    make(map[string]*unit),
	}
}

// Enqueue registers an asset and returns its unit identifier. Files above
// the ceiling are rejected here, before any unit exists.
func (c *Coordinator) Enqueue(asset Asset) (string, error) {
	if asset.Size > c.maxBytes {
		return "", fmt.Errorf("%w: %s is %d bytes, ceiling is %d", ErrOversizeAsset, asset.Name, asset.Size, c.maxBytes)
	}
	if asset.Open == nil {
		return "", errors.New("asset has no open function")
	}

	u := &unit{
		id:    uuid.NewString(),
		asset: asset,
		key:   assetKey(asset.Name),
		state: UnitPending,
		done:  make(chan struct{}),
	}

	c.mu.Lock()
	c.units[u.id] = u
	c.order = append(c.order, u.id)
	c.mu.Unlock()
	return u.id, nil
}

// BeginAll starts every pending unit concurrently and returns the aggregate
// progress stream. The stream closes once all started units reach a terminal
// state. Intermediate ticks may be dropped if the consumer lags; terminal
// outcomes are always available through Finalize.
func (c *Coordinator) BeginAll(ctx context.Context) <-chan AggregateProgress {
	c.mu.Lock()
	if c.progress == nil {
		c.progress = make(chan AggregateProgress, progressDepth)
	}
	progress := c.progress
	pending := make([]*unit, 0, len(c.order))
	for _, id := range c.order {
		u := c.units[id]
		if u == nil {
			continue
		}
		if state, _, _ := u.snapshot(); state == UnitPending {
			pending = append(pending, u)
		}
	}
	c.wg.Add(len(pending))
	c.mu.Unlock()

	for _, u := range pending {
		go c.transfer(ctx, u)
	}

	c.closer.Do(func() {
		go func() {
			c.wg.Wait()
			close(progress)
		}()
	})
	return progress
}

func (c *Coordinator) transfer(ctx context.Context, u *unit) {
	defer c.wg.Done()

	unitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !u.begin(cancel) {
		return
	}

	reader, err := u.asset.Open()
	if err != nil {
		u.fail(fmt.Errorf("open asset: %w", err))
		c.emit(u)
		return
	}
	defer reader.Close()

	counted := &progressReader{r: reader, unit: u, onRead: c.emit}
	location, err := c.backend.Store(unitCtx, u.key, counted, u.asset.Size)
	if err != nil {
		u.fail(err)
		c.emit(u)
		c.logger.Warn("transfer failed",
			logging.String("unit_id", u.id),
			logging.String("asset", u.asset.Name),
			logging.Error(err),
		)
		return
	}

	u.complete(location)
	c.emit(u)
	c.logger.Info("transfer complete",
		logging.String("unit_id", u.id),
		logging.String("asset", u.asset.Name),
		logging.String("location", location),
	)
}

// emit publishes a progress tick without ever blocking a transfer.
func (c *Coordinator) emit(u *unit) {
	c.mu.Lock()
	progress := c.progress
	c.mu.Unlock()
	if progress == nil {
		return
	}

	state, bytesSent, startedAt := u.snapshot()
	if state == unitRemoved {
		return
	}

	tick := AggregateProgress{UnitID: u.id, State: state}
	if u.asset.Size > 0 {
		tick.Percent = float64(bytesSent) / float64(u.asset.Size) * 100
	}
	if state == UnitFailed {
		u.mu.Lock()
		tick.Err = u.err
		u.mu.Unlock()
	}
	if throughput, eta, known := estimate(u.asset.Size, bytesSent, time.Since(startedAt)); known {
		tick.EstimateKnown = true
		tick.ThroughputBps = throughput
		tick.ETASeconds = eta
	}

	select {
	case progress <- tick:
	default:
	}
}

// estimate derives throughput and remaining time once the sample window
// clears the floor. Below the floor both values are unknown, not zero.
func estimate(sizeBytes, bytesSent int64, elapsed time.Duration) (throughputBps, etaSeconds float64, known bool) {
	if elapsed < etaFloor || bytesSent <= 0 {
		return 0, 0, false
	}
	throughputBps = float64(bytesSent) / elapsed.Seconds()
	if throughputBps <= 0 {
		return 0, 0, false
	}
	etaSeconds = float64(sizeBytes-bytesSent) / throughputBps
	if etaSeconds < 0 {
		etaSeconds = 0
	}
	return throughputBps, etaSeconds, true
}

// Remove cancels an in-flight transfer and discards the unit. Unknown ids
// and repeated calls are no-ops.
func (c *Coordinator) Remove(unitID string) {
	c.mu.Lock()
	u := c.units[unitID]
	if u != nil {
		delete(c.units, unitID)
		for i, id := range c.order {
			if id == unitID {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	c.mu.Unlock()

	if u != nil {
		u.remove()
	}
}

// Finalize waits for every remaining unit to reach a terminal state and
// returns the stored asset locations. Failed units are reported alongside
// but do not block the batch.
func (c *Coordinator) Finalize(ctx context.Context) (BatchResult, error) {
	c.mu.Lock()
	ids := append([]string(nil), c.order...)
	units := make([]*unit, 0, len(ids))
	for _, id := range ids {
		if u := c.units[id]; u != nil {
			units = append(units, u)
		}
	}
	c.mu.Unlock()

	if len(units) == 0 {
		return BatchResult{}, ErrEmptyBatch
	}

	var result BatchResult
	for _, u := range units {
		select {
		case <-u.done:
		case <-ctx.Done():
			return BatchResult{}, ctx.Err()
		}

		u.mu.Lock()
		state, location, unitErr := u.state, u.location, u.err
		u.mu.Unlock()
		switch state {
		case UnitComplete:
			result.Stored = append(result.Stored, StoredAsset{UnitID: u.id, Name: u.asset.Name, Location: location})
		case UnitFailed:
			result.Failed = append(result.Failed, FailedUnit{UnitID: u.id, Name: u.asset.Name, Err: unitErr})
		}
	}
	return result, nil
}

func assetKey(name string) string {
	ext := path.Ext(name)
	return "demos/" + uuid.NewString() + ext
}
