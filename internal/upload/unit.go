package upload

import (
	"context"
	"io"
	"sync"
	"time"
)

// UnitState tracks one transfer unit's lifecycle.
type UnitState string

const (
	UnitPending      UnitState = "pending"
	UnitTransferring UnitState = "transferring"
	UnitComplete     UnitState = "complete"
	UnitFailed       UnitState = "failed"
	unitRemoved      UnitState = "removed"
)

// Asset describes one file queued for upload. Open is called once when the
// transfer starts.
type Asset struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

type unit struct {
	id    string
	asset Asset
	key   string

	mu        sync.Mutex
	state     UnitState
	bytesSent int64
	startedAt time.Time
	location  string
	err       error
	cancel    context.CancelFunc

	done chan struct{}
}

func (u *unit) snapshot() (state UnitState, bytesSent int64, startedAt time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state, u.bytesSent, u.startedAt
}

func (u *unit) addBytes(n int64) int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	// Ticks are strictly non-decreasing in bytes sent.
	u.bytesSent += n
	return u.bytesSent
}

func (u *unit) begin(cancel context.CancelFunc) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state != UnitPending {
		return false
	}
	u.state = UnitTransferring
	u.startedAt = time.Now()
	u.cancel = cancel
	return true
}

func (u *unit) complete(location string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.terminalLocked() {
		return
	}
	u.state = UnitComplete
	u.location = location
	close(u.done)
}

func (u *unit) fail(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.terminalLocked() {
		return
	}
	u.state = UnitFailed
	u.err = err
	close(u.done)
}

// remove cancels an in-flight transfer and discards the unit. Safe to call
// in any state, any number of times.
func (u *unit) remove() {
	u.mu.Lock()
	cancel := u.cancel
	already := u.terminalLocked()
	u.state = unitRemoved
	if !already {
		close(u.done)
	}
	u.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (u *unit) terminalLocked() bool {
	switch u.state {
	case UnitComplete, UnitFailed, unitRemoved:
		return true
	}
	return false
}

// progressReader counts bytes as the storage backend consumes them and
// reports each read to the coordinator.
type progressReader struct {
	r      io.Reader
	unit   *unit
	onRead func(u *unit)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.unit.addBytes(int64(n))
		p.onRead(p.unit)
	}
	return n, err
}
