package dynamoplus

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// Drainer maintains index rows and aggregations in async mode. It reads change events
// from the change queue and applies them at a controlled rate to protect the table.
type Drainer struct {
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	name      string
	queue     core.ChangeQueue
	applier   ChangeApplier
	config    DrainerConfig
	processed int64
	failed    int64
}

// ChangeApplier applies one change event to the projection.
type ChangeApplier interface {
	ApplyChange(ctx context.Context, event *core.ChangeEvent) error
}

// DrainerConfig contains configuration for the drainer.
type DrainerConfig struct {
	// DrainRate is the maximum number of change events applied per second.
	DrainRate int

	// BatchSize is how many events to dequeue at once.
	BatchSize int

	// PollInterval is how long to wait before polling an empty queue again.
	PollInterval time.Duration

	// MaxRetries is how many times a failing event is retried before it is dropped.
	MaxRetries int

	// RetryBackoff is the base duration of the exponential backoff between retries,
	// capped at RetryBackoffMax.
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
}

// DefaultDrainerConfig returns sensible defaults for the drainer.
func DefaultDrainerConfig() DrainerConfig {
	return DrainerConfig{
		DrainRate:       50,
		BatchSize:       100,
		PollInterval:    100 * time.Millisecond,
		MaxRetries:      5,
		RetryBackoff:    1 * time.Second,
		RetryBackoffMax: 30 * time.Second,
	}
}

// NewDrainer creates a new drainer reading queue and applying events through applier.
func NewDrainer(name string, queue core.ChangeQueue, applier ChangeApplier, config DrainerConfig) *Drainer {
	defaults := DefaultDrainerConfig()
	if config.DrainRate <= 0 {
		config.DrainRate = defaults.DrainRate
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBackoffMax <= 0 {
		config.RetryBackoffMax = defaults.RetryBackoffMax
	}

	return &Drainer{
		name:    name,
		queue:   queue,
		applier: applier,
		config:  config,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the drainer goroutine. It is non-blocking; call Stop to shut it down.
func (d *Drainer) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		log.Printf("[DRAINER:%s] Already running", d.name)
		return nil
	}
	d.running = true
	// Reset channels for restart capability
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.mu.Unlock()

	go d.run(ctx)
	log.Printf("[DRAINER:%s] Started with drain rate: %d events/sec", d.name, d.config.DrainRate)
	return nil
}

// Stop gracefully stops the drainer after the event in flight.
func (d *Drainer) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	stopCh, doneCh := d.stopCh, d.doneCh
	d.mu.Unlock()

	log.Printf("[DRAINER:%s] Stopping...", d.name)
	close(stopCh)
	<-doneCh
	log.Printf("[DRAINER:%s] Stopped", d.name)
	return nil
}

// IsRunning returns whether the drainer is currently running.
func (d *Drainer) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// QueueSize returns the current size of the change queue.
func (d *Drainer) QueueSize() int {
	if d.queue == nil {
		return 0
	}
	return d.queue.Size()
}

// Stats returns the number of events applied and the number dropped after exhausting retries.
func (d *Drainer) Stats() (processed, failed int64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.processed, d.failed
}

// GetConfig returns the drainer configuration.
func (d *Drainer) GetConfig() DrainerConfig {
	return d.config
}

func (d *Drainer) run(ctx context.Context) {
	d.mu.RLock()
	stopCh, doneCh := d.stopCh, d.doneCh
	d.mu.RUnlock()
	defer close(doneCh)

	// DrainRate tokens per second, one event per token
	limiter := rate.NewLimiter(rate.Limit(d.config.DrainRate), 1)
	startTime := time.Now()

	for {
		select {
		case <-stopCh:
			processed, failed := d.Stats()
			log.Printf("[DRAINER:%s] Received stop signal, applied %d events (%d dropped) in %v",
				d.name, processed, failed, time.Since(startTime))
			return
		case <-ctx.Done():
			log.Printf("[DRAINER:%s] Context cancelled", d.name)
			return
		default:
		}

		events, err := d.queue.Dequeue(ctx, d.config.BatchSize)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[DRAINER:%s] Dequeue error: %v", d.name, err)
		}
		if len(events) == 0 {
			if !d.sleep(ctx, stopCh, d.config.PollInterval) {
				return
			}
			continue
		}

		for _, event := range events {
			if event == nil {
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			if err := d.apply(ctx, stopCh, event); err != nil {
				d.mu.Lock()
				d.failed++
				d.mu.Unlock()
				log.Printf("[DRAINER:%s] ERROR: Dropping %s %s/%s after %d retries: %v",
					d.name, event.Operation, event.Collection, event.ID, event.RetryCount, err)
				continue
			}
			d.mu.Lock()
			d.processed++
			d.mu.Unlock()
		}
	}
}

// apply applies one event, retrying with exponential backoff.
func (d *Drainer) apply(ctx context.Context, stopCh <-chan struct{}, event *core.ChangeEvent) error {
	backoff := d.config.RetryBackoff
	for {
		start := time.Now()
		err := d.applier.ApplyChange(ctx, event)
		if err == nil {
			log.Printf("[DRAINER:%s] Applied %s %s/%s (duration: %v)",
				d.name, event.Operation, event.Collection, event.ID, time.Since(start))
			return nil
		}
		if event.RetryCount >= d.config.MaxRetries {
			return err
		}
		event.RetryCount++
		log.Printf("[DRAINER:%s] Retry %d/%d of %s %s/%s in %v: %v",
			d.name, event.RetryCount, d.config.MaxRetries, event.Operation, event.Collection, event.ID, backoff, err)
		if !d.sleep(ctx, stopCh, backoff) {
			return err
		}
		backoff *= 2
		if backoff > d.config.RetryBackoffMax {
			backoff = d.config.RetryBackoffMax
		}
	}
}

// sleep waits for the duration and reports false when the drainer is stopping.
func (d *Drainer) sleep(ctx context.Context, stopCh <-chan struct{}, duration time.Duration) bool {
	if duration <= 0 {
		return true
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}
