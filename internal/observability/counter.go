package observability

import "sync"

// ConnCounter counts open connections for diagnostics only. No game decision
// reads it.
type ConnCounter struct {
	mu sync.Mutex
	n  int
}

// Inc records a new connection and returns the updated count.
func (c *ConnCounter) Inc() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

// Dec records a closed connection and returns the updated count.
func (c *ConnCounter) Dec() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n--
	return c.n
}

// Count returns the current number of open connections.
func (c *ConnCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
