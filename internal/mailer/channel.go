package mailer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrChannelUnavailable is returned by Send after every configured transport
// failed its probe. Sends fail fast from then on; no network call is made.
var ErrChannelUnavailable = errors.New("mailer: no transport available")

// State is the channel lifecycle. Probing happens at most once per process:
// the first transport that verifies is cached as active for the process
// lifetime, so later sends skip straight to delivery.
type State int

const (
	StateUninitialized State = iota
	StateProbing
	StateActive
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateProbing:
		return "probing"
	case StateActive:
		return "active"
	case StateUnavailable:
		return "unavailable"
	default:
		return "uninitialized"
	}
}

// Channel sends email through the first transport that verifies, trying
// transports strictly in the order given. Fallback applies only while
// selecting the active transport; a failed Deliver is reported to the
// caller, never retried against another transport.
type Channel struct {
	transports   []Transport
	probeTimeout time.Duration

	mu     sync.Mutex
	state  State
	active Transport
}

// NewChannel builds a channel over transports in priority order.
func NewChannel(transports []Transport, probeTimeout time.Duration) *Channel {
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &Channel{transports: transports, probeTimeout: probeTimeout}
}

// Send delivers msg through the active transport, selecting one first if
// needed. The outcome is always observed: success names the transport,
// failure carries the underlying error.
func (c *Channel) Send(ctx context.Context, msg Message) (Result, error) {
	t, err := c.activeTransport(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := t.Deliver(ctx, msg); err != nil {
		return Result{}, fmt.Errorf("mailer: send via %s: %w", t.Name(), err)
	}
	return Result{Transport: t.Name()}, nil
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveTransport returns the cached transport name, or "" before a
// successful probe.
func (c *Channel) ActiveTransport() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.Name()
}

func (c *Channel) activeTransport(ctx context.Context) (Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateActive:
		return c.active, nil
	case StateUnavailable:
		return nil, ErrChannelUnavailable
	}

	c.state = StateProbing
	for _, t := range c.transports {
		probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
		err := t.Verify(probeCtx)
		cancel()
		if err != nil {
			log.Printf("mailer: transport %s failed probe: %v", t.Name(), err)
			continue
		}
		c.state = StateActive
		c.active = t
		log.Printf("mailer: transport %s active", t.Name())
		return t, nil
	}

	c.state = StateUnavailable
	return nil, ErrChannelUnavailable
}
