package util

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/mitchellh/go-ps"
)

// EnsureDirExists creates the given directory path if it doesn't already exist
func EnsureDirExists(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("ensure directory exists (%s): %w", path, err)
	}

	return nil
}

// FileExists checks if a file exists and is not a directory before we
// try using it to prevent further errors.
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}

	return err == nil && !info.IsDir()
}

// SetupCloseHandler creates a 'listener' on a new goroutine which will notify the
// program if it receives an interrupt from the OS
func SetupCloseHandler() chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	return c
}

// ProcessName returns the executable name of a running process
func ProcessName(pid int) (string, error) {
	if pid <= 0 {
		return "", fmt.Errorf("invalid pid %d", pid)
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return "", fmt.Errorf("find process %d: %w", pid, err)
	}

	if process == nil {
		return "", fmt.Errorf("process %d not running", pid)
	}

	return process.Executable(), nil
}

// CreateMutex takes a lock file so only one instance runs at a time.
// A lock held by a process that no longer runs is taken over.
func CreateMutex(name string) (release func(), err error) {
	lockFile := name + ".lock"
	currentPid := os.Getpid()

	lockContent, err := os.ReadFile(lockFile)
	if err == nil {
		content := strings.TrimSpace(string(lockContent))
		if content != "" && content != strconv.Itoa(currentPid) {
			lockPid, _ := strconv.Atoi(content)
			if processRunning(lockPid) {
				return nil, fmt.Errorf("another instance of %s is running (pid %d)", name, lockPid)
			}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read lock file: %w", err)
	}

	if err := os.WriteFile(lockFile, []byte(strconv.Itoa(currentPid)), 0o664); err != nil {
		return nil, fmt.Errorf("write lock file: %w", err)
	}

	return func() { _ = os.Remove(lockFile) }, nil
}

func processRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := ps.FindProcess(pid)

	return err == nil && process != nil
}
