package store

import "sync"

// Counter aggregates the completions of a batch of expected operations and
// fires its terminal callback exactly once: with nil after every operation
// succeeded, or with the first failure.
//
// Completions may be delivered from any goroutine.
type Counter struct {
	mu        sync.Mutex
	expected  int
	completed int
	fired     bool
	done      func(err error)
}

// NewCounter creates a counter for expected completions. A counter expecting
// zero completions fires immediately.
func NewCounter(expected int, done func(err error)) *Counter {
	c := &Counter{expected: expected, done: done}
	if expected <= 0 {
		c.fired = true
		done(nil)
	}
	return c
}

// Succeed records a success. record runs under the counter's lock before the
// completion is counted, so recording and the threshold check are one atomic
// step. It reports false, without running record, once the counter has fired.
func (c *Counter) Succeed(record func()) bool {
	c.mu.Lock()
	if c.fired {
		c.mu.Unlock()
		return false
	}
	if record != nil {
		record()
	}
	c.completed++
	fire := c.completed == c.expected
	if fire {
		c.fired = true
	}
	c.mu.Unlock()

	if fire {
		c.done(nil)
	}
	return true
}

// Fail records a failure. It reports whether err became the terminal failure;
// later failures are ignored.
func (c *Counter) Fail(err error) bool {
	c.mu.Lock()
	if c.fired {
		c.mu.Unlock()
		return false
	}
	c.completed++
	c.fired = true
	c.mu.Unlock()

	c.done(err)
	return true
}

// Completed returns the number of completions recorded before firing.
func (c *Counter) Completed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// Fired reports whether the terminal callback has been invoked.
func (c *Counter) Fired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}
