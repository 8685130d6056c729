package aggregate

import (
	"errors"
	"sync"

	"github.com/perfgo/vrtgo/model"
)

// ErrAlreadyFlushed is returned when a collector is flushed twice.
var ErrAlreadyFlushed = errors.New("results already flushed")

// Collector accumulates the comparison results of one shard run. It is
// flushed exactly once when the run ends.
type Collector struct {
	mu      sync.Mutex
	results []model.ComparisonResult
	flushed bool
}

// Add records a result.
func (c *Collector) Add(r model.ComparisonResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

// Len returns the number of collected results.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Flush passes the collected results to fn. Later calls return
// ErrAlreadyFlushed without calling fn.
func (c *Collector) Flush(fn func([]model.ComparisonResult) error) error {
	c.mu.Lock()
	if c.flushed {
		c.mu.Unlock()
		return ErrAlreadyFlushed
	}
	c.flushed = true
	results := make([]model.ComparisonResult, len(c.results))
	copy(results, c.results)
	c.mu.Unlock()

	return fn(results)
}
