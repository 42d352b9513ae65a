// Package timeout implements the response builder's wall-clock deadline: a
// single process-wide alarm slot that, when it fires mid-emission, asks the
// builder to inject a timeout error into the already-open output stream.
//
// The original DAP server arms a SIGALRM per response. Go has no portable
// signal-based alarm without cgo, so this package uses time.AfterFunc
// instead — the cooperative, non-signal strategy the design notes allow as
// an alternative backend. Because there is exactly one timer slot, only one
// response per process may have an armed deadline at a time; this mirrors
// the single-alarm-per-process limitation of the original design and is not
// a simplification introduced here.
package timeout

import (
	"sync"
	"time"
)

// Controller is a process-wide singleton guarding the one active deadline
// slot. Use the package-level functions (Arm, Disarm, Fired) rather than
// constructing a Controller directly; they operate on the shared instance.
type Controller struct {
	mu      sync.Mutex
	timer   *time.Timer
	fired   bool
	onFire  func()
	armedAt time.Time
}

var global = &Controller{}

// Arm starts a deadline of seconds from now. seconds <= 0 arms no alarm:
// any prior deadline is still replaced, and Fired reports false until the
// next Arm.
//
// If a previous deadline is still armed when Arm is called again, it is
// replaced: the prior timer is stopped and its onFire callback will never
// run. This documents the single-alarm-per-process limitation rather than
// hiding it — callers must not rely on two concurrent deadlines.
func Arm(seconds int, onFire func()) {
	global.Arm(seconds, onFire)
}

// Disarm cancels any pending deadline without firing it. Safe to call even
// if no deadline is armed.
func Disarm() {
	global.Disarm()
}

// Fired reports whether the armed deadline has already fired.
func Fired() bool {
	return global.Fired()
}

// Arm is the Controller method backing the package-level Arm.
func (c *Controller) Arm(seconds int, onFire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.fired = false
	c.onFire = onFire
	c.armedAt = time.Now()

	if seconds <= 0 {
		c.timer = nil
		return
	}

	c.timer = time.AfterFunc(time.Duration(seconds)*time.Second, func() {
		c.mu.Lock()
		c.fired = true
		cb := c.onFire
		c.mu.Unlock()
		if cb != nil {
			cb()
		}
	})
}

// Disarm is the Controller method backing the package-level Disarm.
func (c *Controller) Disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.onFire = nil
}

// Fired is the Controller method backing the package-level Fired.
func (c *Controller) Fired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}
