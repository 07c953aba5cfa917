package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/domreview/review"
)

const queueSize = 64

// Forwarder subscribes a Sink to a store. Store observers run inside the
// mutating call, so changes are queued and delivered by one goroutine.
// When the queue is full the oldest change is dropped: every change
// carries the full state, so the latest one supersedes it.
type Forwarder struct {
	sink   Sink
	page   string
	logger *slog.Logger
	now    func() time.Time

	queue  chan Change
	unsub  func()
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// Forward starts delivering changes of s to sink until Close.
func Forward(s *review.Store, sink Sink, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	f := &Forwarder{
		sink:   sink,
		page:   s.Document().Location().Href,
		logger: logger,
		now:    time.Now,
		queue:  make(chan Change, queueSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	f.unsub = s.OnChange(f.enqueue)
	go f.run(ctx)
	return f
}

func (f *Forwarder) enqueue(reviews []review.Review) {
	c := NewChange(f.page, reviews, f.now())

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for {
		select {
		case f.queue <- c:
			return
		default:
		}
		select {
		case <-f.queue:
			f.logger.Warn("notify: queue full, dropping oldest change", "page", f.page)
		default:
		}
	}
}

func (f *Forwarder) run(ctx context.Context) {
	defer close(f.done)
	for c := range f.queue {
		if err := f.sink.Send(ctx, c); err != nil {
			f.logger.Warn("notify: delivery failed", "page", c.Page, "error", err)
		}
	}
}

// Close unsubscribes, delivers what is queued and waits. Pending retries
// are abandoned once ctx is done.
func (f *Forwarder) Close(ctx context.Context) error {
	f.unsub()
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		<-f.done
		return nil
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()

	select {
	case <-f.done:
		f.cancel()
		return nil
	case <-ctx.Done():
		f.cancel()
		<-f.done
		return ctx.Err()
	}
}
