package appmix

import (
	"context"
	"fmt"
)

// Enumerate lists the playback streams currently known to the server.
// An empty snapshot is a normal result; a partial one is never returned.
func (e *Engine) Enumerate() (Snapshot, error) {
	ctx, cancel := e.operationContext()
	defer cancel()

	return e.enumerate(ctx)
}

func (e *Engine) enumerate(ctx context.Context) (Snapshot, error) {
	if err := e.conn.ready(); err != nil {
		return nil, err
	}

	op, err := e.protocol.ListStreams()
	if err != nil {
		e.logger.Warnw("Failed to submit stream list request", "error", err)
		return nil, fmt.Errorf("%w: submit list request: %w", ErrEnumeration, err)
	}

	// wait on the request's own completion, zero records with an immediate end-of-list is valid
	if err := e.loop.runUntil(ctx, op.Done); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}

	if err := op.Err(); err != nil {
		e.logger.Warnw("Server failed to list streams", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}

	snapshot := Snapshot{}
	for info := range op.Streams() {
		snapshot = append(snapshot, newAudioSink(info))
	}

	e.logger.Debugw("Enumerated streams", "snapshot", snapshot)

	return snapshot, nil
}
