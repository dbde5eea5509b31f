package billing

import (
	"context"
	"errors"
	"sync"

	"github.com/towerworks/atc-simulator/core"
	"github.com/towerworks/atc-simulator/internal/logging"
)

// ErrDispatcherClosed indicates a notice was submitted after Close.
var ErrDispatcherClosed = errors.New("notice dispatcher closed")

const defaultQueueSize = 64

// Dispatcher decouples notice issuance from the monitoring loop. Requests
// are buffered on a channel and drained by a single worker goroutine, so
// the scheduler never blocks on billing. It stands in for the message
// channel a split-process deployment would use.
type Dispatcher struct {
	delegate core.NoticeIssuer
	log      logging.Logger

	queue chan core.NoticeRequest

	// mu orders senders against Close: Close flips closed under the write
	// lock, so no send can race the channel close.
	mu     sync.RWMutex
	closed bool

	wg sync.WaitGroup
}

var _ core.NoticeIssuer = (*Dispatcher)(nil)

// NewDispatcher starts a dispatcher draining into delegate.
func NewDispatcher(delegate core.NoticeIssuer, log logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.Noop()
	}
	d := &Dispatcher{
		delegate: delegate,
		log:      log,
		queue:    make(chan core.NoticeRequest, defaultQueueSize),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// IssueNotice enqueues the request for asynchronous issuance. The returned
// ID is empty; callers needing the notice ID should query the service once
// the queue drains.
func (d *Dispatcher) IssueNotice(ctx context.Context, req core.NoticeRequest) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return "", ErrDispatcherClosed
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case d.queue <- req:
		return "", nil
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for req := range d.queue {
		if _, err := d.delegate.IssueNotice(context.Background(), req); err != nil {
			d.log.Error(context.Background(), "async notice issuance failed",
				logging.String("aircraft", req.AircraftID),
				logging.String("error", err.Error()),
			)
		}
	}
}

// Close stops accepting new requests and waits for queued ones to drain.
// Safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	alreadyClosed := d.closed
	d.closed = true
	d.mu.Unlock()

	if !alreadyClosed {
		close(d.queue)
	}
	d.wg.Wait()
}
