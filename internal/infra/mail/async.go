package mail

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mujthriftz/internal/app/policies"
)

var (
	ErrQueueFull = errors.New("mail: queue full")
	ErrClosed    = errors.New("mail: notifier closed")
)

type job struct {
	template string
	params   map[string]string
}

// AsyncNotifier queues sends and delivers them from one background goroutine,
// so request handlers return before the mail provider answers.
type AsyncNotifier struct {
	next        policies.Notifier
	logger      *slog.Logger
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan job
	done   chan struct{}
}

func NewAsyncNotifier(next policies.Notifier, size int, logger *slog.Logger) *AsyncNotifier {
	if size <= 0 {
		size = 64
	}
	n := &AsyncNotifier{
		next:        next,
		logger:      logger,
		sendTimeout: 15 * time.Second,
		queue:       make(chan job, size),
		done:        make(chan struct{}),
	}
	go n.run()
	return n
}

// Send enqueues a mail. It never blocks; a full queue drops the mail with ErrQueueFull.
func (n *AsyncNotifier) Send(_ context.Context, template string, params map[string]string) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrClosed
	}
	select {
	case n.queue <- job{template: template, params: params}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting mail and waits for queued mail to be delivered or ctx to end.
func (n *AsyncNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *AsyncNotifier) run() {
	defer close(n.done)
	for j := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), n.sendTimeout)
		err := n.next.Send(ctx, j.template, j.params)
		cancel()
		if err != nil && n.logger != nil {
			n.logger.Error("mail delivery failed", "template", j.template, "error", err)
		}
	}
}

var _ policies.Notifier = (*AsyncNotifier)(nil)
