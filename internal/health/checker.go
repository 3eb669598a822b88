// Package health runs readiness checks against the service's backing stores.
package health

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// DefaultTimeout bounds a full readiness pass.
const DefaultTimeout = 2 * time.Second

// Pinger is a dependency that can be pinged for readiness (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger (e.g. a Redis client's Ping).
type PingFunc func(ctx context.Context) error

// PingContext calls f(ctx).
func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Checker pings named dependencies. A Checker with no dependencies is always ready.
type Checker struct {
	deps    map[string]Pinger
	timeout time.Duration
}

// NewChecker returns a Checker with DefaultTimeout.
func NewChecker() *Checker {
	return &Checker{deps: make(map[string]Pinger), timeout: DefaultTimeout}
}

// Add registers p under name. A nil p is ignored.
func (c *Checker) Add(name string, p Pinger) *Checker {
	if p != nil {
		c.deps[name] = p
	}
	return c
}

// Status pings every dependency and returns each failure by name. An empty map means ready.
func (c *Checker) Status(ctx context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	failures := make(map[string]error)
	for name, p := range c.deps {
		if err := p.PingContext(ctx); err != nil {
			failures[name] = err
		}
	}
	return failures
}

// Ready returns nil when every dependency answers, otherwise an error naming the failures.
func (c *Checker) Ready(ctx context.Context) error {
	failures := c.Status(ctx)
	if len(failures) == 0 {
		return nil
	}
	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)
	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, fmt.Errorf("%s: %w", name, failures[name]))
	}
	return errors.Join(errs...)
}
