package kvstore

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// RateLimitedDriver caps the calls issued to the wrapped driver, protecting
// provisioned capacity from bursts of index maintenance.
type RateLimitedDriver struct {
	driver  core.StorageDriver
	limiter *rate.Limiter
}

// NewRateLimitedDriver wraps a driver with a token bucket of opsPerSecond and burst.
func NewRateLimitedDriver(driver core.StorageDriver, opsPerSecond, burst int) *RateLimitedDriver {
	if burst <= 0 {
		burst = opsPerSecond
	}
	return &RateLimitedDriver{
		driver:  driver,
		limiter: rate.NewLimiter(rate.Limit(opsPerSecond), burst),
	}
}

func (r *RateLimitedDriver) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", core.ErrStorageFailure, err)
	}
	return nil
}

// Get waits for a token and reads a row.
func (r *RateLimitedDriver) Get(ctx context.Context, pk, sk string) (*core.Row, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.driver.Get(ctx, pk, sk)
}

// Put waits for a token and stores a row.
func (r *RateLimitedDriver) Put(ctx context.Context, row core.Row) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.driver.Put(ctx, row)
}

// Delete waits for a token and removes a row.
func (r *RateLimitedDriver) Delete(ctx context.Context, pk, sk string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.driver.Delete(ctx, pk, sk)
}

// Scan waits for a token and reads one page.
func (r *RateLimitedDriver) Scan(ctx context.Context, descriptor core.ScanDescriptor, limit int, exclusiveStart *core.Key) ([]core.Row, *core.Key, error) {
	if err := r.wait(ctx); err != nil {
		return nil, nil, err
	}
	return r.driver.Scan(ctx, descriptor, limit, exclusiveStart)
}

// AtomicIncrement waits for a token and increments a counter.
func (r *RateLimitedDriver) AtomicIncrement(ctx context.Context, key core.Key, field string, delta float64) (float64, error) {
	if err := r.wait(ctx); err != nil {
		return 0, err
	}
	return r.driver.AtomicIncrement(ctx, key, field, delta)
}

// Close closes the wrapped driver.
func (r *RateLimitedDriver) Close() error {
	return r.driver.Close()
}
