// Package budget enforces the shared download budget of a crawl job: the
// global maximum-images cap and the minimum spacing between download
// starts. The controller is the single point of truth for how many images
// have been committed and is safe for concurrent use by multiple fetch
// tasks.
package budget

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Controller tracks committed downloads against a global cap and paces
// emissions with a uniform inter-request delay shared across engines.
type Controller struct {
	mu        sync.Mutex
	maxImages int
	committed int
	inFlight  int
	delay     time.Duration
	jitter    float64
	lastEmit  time.Time
}

// NewController creates a budget controller. jitter widens each wait to a
// random value in [delay*(1-jitter), delay*(1+jitter)].
func NewController(maxImages int, delay time.Duration, jitter float64) *Controller {
	return &Controller{
		maxImages: maxImages,
		delay:     delay,
		jitter:    jitter,
	}
}

// Wait blocks until the jittered pause since the previous emission has
// elapsed, or the context is cancelled. A single pause may undershoot or
// overshoot the nominal delay by the jitter fraction; the average spacing
// stays at the configured delay.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	pause := c.nextPause()
	wait := time.Until(c.lastEmit.Add(pause))
	if wait < 0 {
		wait = 0
	}
	c.lastEmit = time.Now().Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// nextPause returns the jittered delay. Caller holds the lock.
func (c *Controller) nextPause() time.Duration {
	if c.delay <= 0 {
		return 0
	}
	if c.jitter <= 0 {
		return c.delay
	}
	spread := float64(c.delay) * c.jitter
	return time.Duration(float64(c.delay) - spread + rand.Float64()*2*spread)
}

// TryReserve claims a budget slot for a download about to start. It
// returns false once committed plus in-flight reservations reach the cap;
// no new downloads may start after that, though in-flight ones finish.
func (c *Controller) TryReserve() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.committed+c.inFlight >= c.maxImages {
		return false
	}
	c.inFlight++
	return true
}

// Commit settles a reservation as a successfully stored image.
func (c *Controller) Commit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight > 0 {
		c.inFlight--
	}
	c.committed++
}

// Release returns a reservation unused. A failed download never consumes
// budget.
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight > 0 {
		c.inFlight--
	}
}

// Committed returns the number of successfully stored images.
func (c *Controller) Committed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed
}

// Exhausted reports whether the cap has been reached by committed images.
func (c *Controller) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed >= c.maxImages
}
