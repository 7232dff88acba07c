package appmix

import (
	"context"
	"fmt"
)

// SetVolume submits a new volume for one stream. level must be within [0.0, 1.0].
// The call returns once the request is sent; an id missing from a fresh snapshot
// is silently ignored unless strict lookups are enabled.
func (e *Engine) SetVolume(id uint32, level float64) error {
	if err := validateLevel(level); err != nil {
		return err
	}

	return e.mutate(id, func() error {
		return e.protocol.SetVolume(id, level)
	})
}

// SetMute submits a new mute state for one stream, with the same lookup policy as SetVolume
func (e *Engine) SetMute(id uint32, muted bool) error {
	return e.mutate(id, func() error {
		return e.protocol.SetMute(id, muted)
	})
}

// SetVolumeByName applies SetVolume to every stream whose display name matches, ignoring case
func (e *Engine) SetVolumeByName(name string, level float64) error {
	if err := validateLevel(level); err != nil {
		return err
	}

	return e.mutateByName(name, func(id uint32) error {
		return e.protocol.SetVolume(id, level)
	})
}

// SetMuteByName applies SetMute to every stream whose display name matches, ignoring case
func (e *Engine) SetMuteByName(name string, muted bool) error {
	return e.mutateByName(name, func(id uint32) error {
		return e.protocol.SetMute(id, muted)
	})
}

// Volume reads the current volume of one stream from a fresh snapshot
func (e *Engine) Volume(id uint32) (float64, error) {
	snapshot, err := e.Enumerate()
	if err != nil {
		return 0, err
	}

	sink, ok := snapshot.Find(id)
	if !ok {
		return 0, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	return sink.Volume, nil
}

func validateLevel(level float64) error {
	// written so NaN fails too
	if !(level >= 0.0 && level <= 1.0) {
		return fmt.Errorf("%w: volume %v outside [0.0, 1.0]", ErrInvalidArgument, level)
	}

	return nil
}

// mutate takes its own snapshot, stale ids from an earlier enumeration are never trusted
func (e *Engine) mutate(id uint32, submit func() error) error {
	ctx, cancel := e.operationContext()
	defer cancel()

	snapshot, err := e.lookupSnapshot(ctx)
	if err != nil {
		return err
	}

	if _, ok := snapshot.Find(id); !ok {
		return e.missed(fmt.Sprintf("id %d", id), snapshot)
	}

	if err := submit(); err != nil {
		e.logger.Warnw("Failed to submit stream mutation", "streamID", id, "error", err)
		return fmt.Errorf("submit mutation for stream %d: %w", id, err)
	}

	return nil
}

func (e *Engine) mutateByName(name string, submit func(id uint32) error) error {
	ctx, cancel := e.operationContext()
	defer cancel()

	snapshot, err := e.lookupSnapshot(ctx)
	if err != nil {
		return err
	}

	matches := snapshot.FindByName(name)
	if len(matches) == 0 {
		return e.missed(fmt.Sprintf("name %q", name), snapshot)
	}

	for _, sink := range matches {
		if err := submit(sink.StreamID); err != nil {
			e.logger.Warnw("Failed to submit stream mutation", "streamID", sink.StreamID, "name", name, "error", err)
			return fmt.Errorf("submit mutation for stream %d: %w", sink.StreamID, err)
		}
	}

	return nil
}

func (e *Engine) lookupSnapshot(ctx context.Context) (Snapshot, error) {
	snapshot, err := e.enumerate(ctx)
	if err != nil {
		e.logger.Warnw("Failed to take snapshot for stream lookup", "error", err)
		return nil, fmt.Errorf("look up stream: %w", err)
	}

	return snapshot, nil
}

func (e *Engine) missed(target string, snapshot Snapshot) error {
	if e.options.StrictLookup {
		return fmt.Errorf("%w: %s", ErrNotFound, target)
	}

	e.logger.Debugw("No stream matched mutation target, ignoring", "target", target, "snapshot", snapshot)

	return nil
}
