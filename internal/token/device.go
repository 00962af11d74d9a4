package token

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tjdeveng/keeptower/internal/vaulterr"
)

// tokenResult is what a worker goroutine hands back through the completion
// channel.
type tokenResult struct {
	response []byte
}

// Device serialises access to one physical token: at most one operation may
// be in flight, guarded by an atomic.Bool busy flag and a single-slot
// pending-callback guarded by a mutex, per §4.8 and §5's shared-mutable-state
// inventory.
type Device struct {
	device HMACDevice

	busy    atomic.Bool
	mu      sync.Mutex
	pending *Operation
}

// NewDevice binds a Device to the given transport.
func NewDevice(d HMACDevice) *Device {
	return &Device{device: d}
}

// Operation is a single in-flight (or completed) asynchronous token call.
// Drain blocks until the worker goroutine completes or ctx is cancelled,
// whichever happens first, and is safe to call exactly once.
type Operation struct {
	done   chan struct{}
	result tokenResult
	err    error

	cancelled atomic.Bool
}

// Drain waits for the operation to finish and returns its result. If ctx is
// done before the worker completes, Drain returns ErrCancelled and marks the
// operation so the eventual worker result is discarded; the completion
// callback is never observed twice.
func (op *Operation) Drain(ctx context.Context) ([]byte, error) {
	select {
	case <-op.done:
		return op.result.response, op.err
	case <-ctx.Done():
		op.cancelled.Store(true)
		return nil, vaulterr.ErrCancelled
	}
}

// start launches work on a new goroutine, enforcing the at-most-one-in-flight
// rule for d.
func (d *Device) start(ctx context.Context, work func() (tokenResult, error)) (*Operation, error) {
	if !d.busy.CompareAndSwap(false, true) {
		return nil, vaulterr.ErrBusy
	}

	op := &Operation{done: make(chan struct{}, 1)}

	d.mu.Lock()
	d.pending = op
	d.mu.Unlock()

	go func() {
		defer func() {
			d.busy.Store(false)
			d.mu.Lock()
			if d.pending == op {
				d.pending = nil
			}
			d.mu.Unlock()
		}()

		select {
		case <-ctx.Done():
			op.err = vaulterr.ErrCancelled
			close(op.done)
			return
		default:
		}

		result, err := work()
		if op.cancelled.Load() {
			// Cancel() was observed before the worker reached its point of
			// no return; the result is discarded regardless of whether the
			// device call itself succeeded.
			op.err = vaulterr.ErrCancelled
			close(op.done)
			return
		}
		op.result = result
		op.err = err
		close(op.done)
	}()

	return op, nil
}

// Cancel requests cancellation of the device's current in-flight operation,
// if any. If the worker has not yet produced a result, the eventual
// completion is discarded and the caller's Drain (already unblocked by its
// own ctx) is the only observer of Cancelled.
func (d *Device) Cancel() {
	d.mu.Lock()
	op := d.pending
	d.mu.Unlock()
	if op != nil {
		op.cancelled.Store(true)
	}
}
