// Package diag carries non-essential diagnostic warnings that callers may
// silence for the duration of a single operation.
package diag

import (
	"io"
	"log"
	"sync"
	"sync/atomic"
)

// Channel is a warning sink with counted, scoped suppression. While any
// suppression scope is held, warnings are dropped and counted.
type Channel struct {
	mu         sync.Mutex
	logger     *log.Logger
	suppressed atomic.Int32
	dropped    atomic.Int64
}

// New returns a Channel writing to w. A nil w writes through the standard logger.
func New(w io.Writer) *Channel {
	c := &Channel{}
	if w != nil {
		c.logger = log.New(w, "", log.LstdFlags)
	}
	return c
}

// SetOutput redirects warnings. A nil w restores the standard logger.
func (c *Channel) SetOutput(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w == nil {
		c.logger = nil
		return
	}
	c.logger = log.New(w, "", log.LstdFlags)
}

func (c *Channel) Warnf(format string, args ...interface{}) {
	if c.suppressed.Load() > 0 {
		c.dropped.Add(1)
		return
	}
	c.mu.Lock()
	logger := c.logger
	c.mu.Unlock()
	if logger == nil {
		log.Printf("[WARN] "+format, args...)
		return
	}
	logger.Printf("[WARN] "+format, args...)
}

// Suppress silences warnings until the returned restore func is called.
// Restore is safe to call more than once; only the first call counts.
func (c *Channel) Suppress() (restore func()) {
	c.suppressed.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { c.suppressed.Add(-1) })
	}
}

func (c *Channel) Suppressed() bool {
	return c.suppressed.Load() > 0
}

// Dropped returns how many warnings were swallowed by suppression.
func (c *Channel) Dropped() int64 {
	return c.dropped.Load()
}

var std = New(nil)

// Default returns the process-wide channel.
func Default() *Channel { return std }

func Warnf(format string, args ...interface{}) { std.Warnf(format, args...) }

func Suppress() (restore func()) { return std.Suppress() }
