package appmix

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestWriteCrashlog(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	path, err := writeCrashlog(dir, now, "boom", []byte("goroutine 1 [running]"))
	if err != nil {
		t.Fatalf("writeCrashlog: %v", err)
	}

	if !strings.HasSuffix(path, "appmix-crash-2024.03.01-12.30.00.log") {
		t.Errorf("unexpected crashlog path %q", path)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read crashlog: %v", err)
	}

	for _, expected := range []string{"Panic occurred: boom", "goroutine 1 [running]"} {
		if !strings.Contains(string(contents), expected) {
			t.Errorf("expected crashlog to contain %q", expected)
		}
	}
}
