package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery outcomes recorded in notifications_total.
const (
	outcomeSent      = "sent"
	outcomeRetried   = "retried"
	outcomeDropped   = "dropped"
	outcomeDuplicate = "duplicate"
)

// DispatcherConfig bounds background delivery.
type DispatcherConfig struct {
	// Timeout caps one message's delivery, both attempts included.
	Timeout time.Duration
	// RetryBackoff is the wait before the single retry.
	RetryBackoff time.Duration
}

// DefaultDispatcherConfig returns a 30s timeout and a 2s retry backoff.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Timeout:      30 * time.Second,
		RetryBackoff: 2 * time.Second,
	}
}

// Dispatcher delivers messages in the background. Each message is attempted
// once and retried once; after that it is dropped and logged.
type Dispatcher struct {
	sender   Sender
	store    IdempotencyStore
	cfg      DispatcherConfig
	outcomes *prometheus.CounterVec
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher and registers its counters with reg.
// Zero fields in cfg take their default values.
func NewDispatcher(sender Sender, store IdempotencyStore, cfg DispatcherConfig, reg prometheus.Registerer, logger *slog.Logger) *Dispatcher {
	defaults := DefaultDispatcherConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaults.RetryBackoff
	}

	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Total number of notification delivery outcomes",
	}, []string{"case", "outcome"})
	reg.MustRegister(outcomes)

	return &Dispatcher{
		sender:   sender,
		store:    store,
		cfg:      cfg,
		outcomes: outcomes,
		logger:   logger,
	}
}

// Notify schedules msg for delivery and returns immediately. The delivery
// outlives ctx's cancellation but keeps its values for logging and tracing.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.WarnContext(ctx, "dispatcher closed, dropping notification",
			slog.String("message_id", msg.ID),
		)
		d.outcomes.WithLabelValues(string(msg.Subject), outcomeDropped).Inc()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
		defer cancel()

		d.deliver(ctx, msg)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	label := string(msg.Subject)

	if msg.ID != "" {
		reserved, err := d.store.Reserve(ctx, msg.ID)
		switch {
		case err != nil:
			d.logger.WarnContext(ctx, "idempotency store unavailable, sending anyway",
				slog.String("message_id", msg.ID),
				slog.String("error", err.Error()),
			)
		case !reserved:
			d.logger.DebugContext(ctx, "skipping duplicate notification",
				slog.String("message_id", msg.ID),
			)
			d.outcomes.WithLabelValues(label, outcomeDuplicate).Inc()
			return
		}
	}

	err := d.sender.Send(ctx, msg)
	if err == nil {
		d.outcomes.WithLabelValues(label, outcomeSent).Inc()
		return
	}

	d.outcomes.WithLabelValues(label, outcomeRetried).Inc()
	d.logger.WarnContext(ctx, "notification failed, retrying once",
		slog.String("message_id", msg.ID),
		slog.String("sender", d.sender.Name()),
		slog.String("error", err.Error()),
	)

	if err = sleepCtx(ctx, d.cfg.RetryBackoff); err == nil {
		err = d.sender.Send(ctx, msg)
	}
	if err == nil {
		d.outcomes.WithLabelValues(label, outcomeSent).Inc()
		return
	}

	d.outcomes.WithLabelValues(label, outcomeDropped).Inc()
	d.logger.ErrorContext(ctx, "notification dropped after retry",
		slog.String("message_id", msg.ID),
		slog.String("addressee", msg.Addressee),
		slog.String("case", label),
		slog.String("error", err.Error()),
	)

	if msg.ID != "" {
		if relErr := d.store.Release(context.WithoutCancel(ctx), msg.ID); relErr != nil {
			d.logger.WarnContext(ctx, "failed to release notification claim",
				slog.String("message_id", msg.ID),
				slog.String("error", relErr.Error()),
			)
		}
	}
}

// Close stops accepting messages and waits for in-flight deliveries, or for
// ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("notifications still in flight"), ctx.Err())
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
