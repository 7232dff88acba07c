package appmix

import (
	"fmt"

	"go.uber.org/zap"
)

// State is the lifecycle state of the link to the audio server
type State int

const (
	StateUnconnected State = iota
	StateConnecting
	StateReady
	StateFailed
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// absorbing states never transition again
func (s State) absorbing() bool {
	return s == StateFailed || s == StateTerminated
}

// connection tracks the single link of one Engine to the audio server
type connection struct {
	logger   *zap.SugaredLogger
	protocol Protocol

	appName  string
	state    State
	released bool
}

func newConnection(logger *zap.SugaredLogger, protocol Protocol, appName string) *connection {
	return &connection{
		logger:   logger.Named("connection"),
		protocol: protocol,
		appName:  appName,
		state:    StateUnconnected,
	}
}

// allowed reports whether the state machine may move from one state to another
func allowed(from, to State) bool {
	switch from {
	case StateUnconnected:
		return to == StateConnecting
	case StateConnecting:
		return to == StateReady || to == StateFailed || to == StateTerminated
	case StateReady:
		return to == StateTerminated
	default:
		return false
	}
}

func (c *connection) transition(to State) {
	if c.state == to {
		return
	}

	if !allowed(c.state, to) {
		c.logger.Debugw("Ignoring invalid state transition", "from", c.state, "to", to)
		return
	}

	c.logger.Debugw("Connection state changed", "from", c.state, "to", to)
	c.state = to
}

// open moves to Connecting and hands the protocol a callback bound to this connection
func (c *connection) open() error {
	c.transition(StateConnecting)

	if err := c.protocol.Connect(c.appName, c.transition); err != nil {
		c.logger.Warnw("Failed to start connecting", "appName", c.appName, "error", err)
		c.transition(StateFailed)
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	return nil
}

func (c *connection) settled() bool {
	return c.state == StateReady || c.state.absorbing()
}

func (c *connection) ready() error {
	if c.state != StateReady {
		return fmt.Errorf("%w (state: %s)", ErrNotConnected, c.state)
	}

	return nil
}

// close disconnects and releases the protocol exactly once
func (c *connection) close() {
	if c.released {
		return
	}

	c.released = true

	if c.state == StateUnconnected {
		return
	}

	c.logger.Debugw("Releasing audio server connection", "state", c.state)
	c.protocol.Disconnect()

	switch c.state {
	case StateReady:
		c.transition(StateTerminated)
	case StateConnecting:
		c.transition(StateFailed)
	}
}
