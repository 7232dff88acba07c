package main

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/MixyLabs/appmix/pkg/appmix"
	"github.com/MixyLabs/appmix/pkg/appmix/util"
)

// monitor prints the stream list whenever it changes. The engine is only ever
// touched from this goroutine; the config watcher and the interrupt handler
// just hand over signals.
func monitor(logger *zap.SugaredLogger, configMan *appmix.ConfigManager) error {
	logger = logger.Named("monitor")

	release, err := util.CreateMutex("appmix-monitor")
	if err != nil {
		return fmt.Errorf("acquire monitor lock: %w", err)
	}
	defer release()

	engine, err := appmix.Dial(logger, configMan.Current())
	if err != nil {
		return err
	}
	defer engine.Close()

	changed := true
	if err := engine.Watch(func(change appmix.StreamChange) {
		logger.Debugw("Stream changed", "streamID", change.Index, "removed", change.Removed)
		changed = true
	}); err != nil {
		logger.Warnw("Failed to watch stream changes, falling back to polling", "error", err)
	}

	reloaded := configMan.SubscribeToChanges()
	go configMan.WatchConfigFileChanges()
	defer configMan.StopWatchingConfigFile()

	interrupted := util.SetupCloseHandler()
	pollInterval := configMan.Current().PollInterval

	var last appmix.Snapshot

	for {
		select {
		case signal := <-interrupted:
			logger.Debugw("Interrupted", "signal", signal)
			return nil

		case <-reloaded:
			pollInterval = configMan.Current().PollInterval
			logger.Infow("Applied reloaded config", "pollInterval", pollInterval)

		default:
		}

		stop, err := waitForChanges(engine, pollInterval, interrupted)
		if err != nil {
			return err
		}

		if stop {
			logger.Debug("Interrupted while waiting for stream changes")
			return nil
		}

		snapshot, err := engine.Enumerate()
		if err != nil {
			return err
		}

		if changed || !reflect.DeepEqual(snapshot, last) {
			printSnapshot(snapshot)
			fmt.Println()
		}

		changed = false
		last = snapshot
	}
}

// keeps Ctrl-C responsive during long poll intervals
const interruptCheckInterval = 100 * time.Millisecond

// waitForChanges pumps stream notifications for the poll interval in short
// steps, returning early with stop set once an interrupt arrives
func waitForChanges(engine *appmix.Engine, pollInterval time.Duration, interrupted <-chan os.Signal) (stop bool, err error) {
	deadline := time.Now().Add(pollInterval)

	for {
		select {
		case <-interrupted:
			return true, nil
		default:
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}

		if err := engine.Dispatch(min(remaining, interruptCheckInterval)); err != nil {
			return false, fmt.Errorf("dispatch stream notifications: %w", err)
		}
	}
}
