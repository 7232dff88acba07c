package appmix

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/MixyLabs/appmix/pkg/appmix/util"
)

const (
	crashlogFilename        = "appmix-crash-%s.log"
	crashlogTimestampFormat = "2006.01.02-15.04.05"

	crashMessage = `-----------------------------------------------------------------
                        appmix crashlog
-----------------------------------------------------------------
Unfortunately, appmix has crashed.
To help diagnose the issue, a crashlog has been generated.
Please consider sharing this file with developers to help improve appmix.
-----------------------------------------------------------------
Time: %s
Panic occurred: %s
Stack trace:
%s
-----------------------------------------------------------------
`
)

// RecoverFromPanic writes a crashlog for a panicking goroutine and exits.
// Call it deferred.
func RecoverFromPanic(logger *zap.SugaredLogger, notifier Notifier) {
	r := recover()

	if r == nil {
		return
	}

	crashlogPath, err := writeCrashlog(logDirectory, time.Now(), r, debug.Stack())
	if err != nil {
		panic(fmt.Errorf("can't even write the crashlog file contents: %w", err))
	}

	logger.Errorw("Encountered and logged panic, crashing",
		"crashlogPath", crashlogPath,
		"error", r)

	notifier.Notify("Unexpected crash occurred...",
		fmt.Sprintf("More details in %s", crashlogPath))

	logger.Errorw("Quitting", "exitCode", 1)
	os.Exit(1)
}

func writeCrashlog(dir string, now time.Time, r any, stack []byte) (string, error) {
	if err := util.EnsureDirExists(dir); err != nil {
		return "", fmt.Errorf("ensure crashlog dir exists: %w", err)
	}

	crashlogBytes := bytes.NewBufferString(fmt.Sprintf(crashMessage, now.Format(crashlogTimestampFormat), r, stack))
	crashlogPath := filepath.Join(dir, fmt.Sprintf(crashlogFilename, now.Format(crashlogTimestampFormat)))

	if err := os.WriteFile(crashlogPath, crashlogBytes.Bytes(), 0o644); err != nil {
		return "", err
	}

	return crashlogPath, nil
}
