// Package appmix reads and changes the volume and mute state of the individual
// playback streams of a running audio server, one application at a time
package appmix

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultClientName is announced to the audio server when no other name is configured
const DefaultClientName = "Volume Control"

// Options tune a single Engine
type Options struct {
	ClientName string

	// OperationTimeout bounds every blocking wait. Zero waits forever.
	OperationTimeout time.Duration

	// StrictLookup makes mutations of unknown streams fail with ErrNotFound instead of doing nothing
	StrictLookup bool
}

// Engine owns one connection to the audio server and exposes synchronous operations on it.
// It is not safe for concurrent use: every call pumps the connection's reactor on the calling goroutine.
type Engine struct {
	logger   *zap.SugaredLogger
	options  Options
	protocol Protocol
	conn     *connection
	loop     *driver
}

// NewEngine connects through the given protocol and blocks until the connection settles.
// If it doesn't become ready the returned error wraps ErrConnection and nothing stays open.
func NewEngine(logger *zap.SugaredLogger, protocol Protocol, options Options) (*Engine, error) {
	logger = logger.Named("engine")

	if options.ClientName == "" {
		options.ClientName = DefaultClientName
	}

	e := &Engine{
		logger:   logger,
		options:  options,
		protocol: protocol,
		conn:     newConnection(logger, protocol, options.ClientName),
		loop:     newDriver(logger, protocol),
	}

	if err := e.conn.open(); err != nil {
		e.conn.close()
		return nil, err
	}

	ctx, cancel := e.operationContext()
	defer cancel()

	state, err := e.loop.runUntilConnected(ctx, e.conn)
	if err != nil {
		logger.Warnw("Failed waiting for audio server connection", "error", err)
		e.conn.close()
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	if state != StateReady {
		logger.Warnw("Audio server connection didn't become ready", "state", state)
		e.conn.close()
		return nil, fmt.Errorf("%w (state: %s)", ErrConnection, state)
	}

	logger.Debugw("Created engine instance", "clientName", options.ClientName)

	return e, nil
}

// Dial connects to the PulseAudio server named by the config
func Dial(logger *zap.SugaredLogger, config *Config) (*Engine, error) {
	protocol := NewPulseProtocol(logger, config.Server, config.IterateWait)

	engine, err := NewEngine(logger, protocol, config.EngineOptions())
	if err != nil {
		logger.Warnw("Failed to create engine", "server", config.Server, "error", err)
		return nil, fmt.Errorf("dial audio server: %w", err)
	}

	return engine, nil
}

// State returns the current connection state
func (e *Engine) State() State {
	return e.conn.state
}

// Watch registers fn for stream appear/disappear notifications. fn only runs
// while the engine pumps its reactor, e.g. during Dispatch.
func (e *Engine) Watch(fn func(StreamChange)) error {
	if err := e.conn.ready(); err != nil {
		return err
	}

	if err := e.protocol.Subscribe(fn); err != nil {
		e.logger.Warnw("Failed to subscribe to stream changes", "error", err)
		return fmt.Errorf("subscribe to stream changes: %w", err)
	}

	return nil
}

// Dispatch pumps the reactor for the given duration, delivering pending notifications
func (e *Engine) Dispatch(duration time.Duration) error {
	if err := e.conn.ready(); err != nil {
		return err
	}

	return e.loop.runFor(duration)
}

// Close disconnects from the audio server. It is safe to call more than once.
func (e *Engine) Close() error {
	e.conn.close()
	e.logger.Debug("Released engine instance")

	return nil
}

func (e *Engine) operationContext() (context.Context, context.CancelFunc) {
	if e.options.OperationTimeout > 0 {
		return context.WithTimeout(context.Background(), e.options.OperationTimeout)
	}

	return context.WithCancel(context.Background())
}
