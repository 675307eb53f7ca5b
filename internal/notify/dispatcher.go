package notify

import (
	"context"
	"sync"
	"time"

	"murmur.dev/internal/obs"
)

// Sender performs the actual delivery of one rendered email.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// Dispatcher consumes enqueued notifications on a worker goroutine and hands
// them to a Sender. Enqueue never blocks the producing request: when the
// buffer is full the notification is dropped and counted.
type Dispatcher struct {
	sender  Sender
	ch      chan Notification
	timeout time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewDispatcher wraps sender with a buffered queue.
func NewDispatcher(sender Sender, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		sender:  sender,
		ch:      make(chan Notification, buffer),
		timeout: 30 * time.Second,
		done:    make(chan struct{}),
	}
}

// Start launches the delivery worker. Safe to call once.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.run()
	})
}

// Enqueue accepts a notification for delivery without blocking.
func (d *Dispatcher) Enqueue(n Notification) {
	select {
	case d.ch <- n:
		obs.IncEmailEnqueued()
	default:
		obs.IncEmailSent("dropped")
		obs.LogEvent("warn", "notification queue full, dropping email", map[string]any{
			"kind": string(n.Kind),
			"to":   n.To,
		})
	}
}

// Close stops the worker after draining whatever is already queued.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case n := <-d.ch:
			d.deliver(n)
		case <-d.done:
			for {
				select {
				case n := <-d.ch:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(n Notification) {
	subject, html, err := Render(n)
	if err != nil {
		obs.IncEmailSent("error")
		obs.LogEvent("error", "notification render failed", map[string]any{
			"kind": string(n.Kind), "error": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sender.Send(ctx, n.To, subject, html); err != nil {
		obs.IncEmailSent("error")
		obs.LogEvent("error", "email delivery failed", map[string]any{
			"kind": string(n.Kind), "to": n.To, "error": err.Error(),
		})
		return
	}
	obs.IncEmailSent("ok")
	obs.LogEvent("info", "email sent", map[string]any{
		"kind": string(n.Kind), "to": n.To,
	})
}
