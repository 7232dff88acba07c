package appmix

import (
	"errors"
	"fmt"
	"testing"
)

func TestEnumerate(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("%d streams", n), func(t *testing.T) {
			protocol := newFakeProtocol()
			engine := newTestEngine(t, protocol, Options{})

			var records []StreamInfo
			for i := range n {
				// descending ids, so any re-sorting would show
				records = append(records, stream(uint32(100-i), fmt.Sprintf("app-%d", i)))
			}
			protocol.respond(records...)

			snapshot, err := engine.Enumerate()
			if err != nil {
				t.Fatalf("Enumerate: %v", err)
			}

			if snapshot == nil {
				t.Fatal("expected a non-nil snapshot")
			}

			if len(snapshot) != n {
				t.Fatalf("expected %d sinks, got %d", n, len(snapshot))
			}

			for i, sink := range snapshot {
				if sink.StreamID != records[i].Index || sink.DisplayName != fmt.Sprintf("app-%d", i) {
					t.Errorf("sink %d out of order: %v", i, sink)
				}
			}
		})
	}
}

func TestEnumerateFreshEveryCall(t *testing.T) {
	protocol := newFakeProtocol()
	engine := newTestEngine(t, protocol, Options{})

	protocol.respond(stream(1, "a"), stream(2, "b"))
	protocol.respond(stream(3, "c"))

	first, err := engine.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}

	second, err := engine.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}

	if len(second) != 1 || second[0].StreamID != 3 {
		t.Errorf("expected only stream 3, got %v", second)
	}

	if len(first) != 2 {
		t.Errorf("earlier snapshot changed: %v", first)
	}
}

func TestEnumerateServerError(t *testing.T) {
	for _, k := range []int{0, 2} {
		t.Run(fmt.Sprintf("after %d records", k), func(t *testing.T) {
			protocol := newFakeProtocol()
			engine := newTestEngine(t, protocol, Options{})

			var partial []StreamInfo
			for i := range k {
				partial = append(partial, stream(uint32(i), "partial"))
			}
			protocol.fail(errServer, partial...)

			snapshot, err := engine.Enumerate()
			if !errors.Is(err, ErrEnumeration) || !errors.Is(err, errServer) {
				t.Errorf("expected ErrEnumeration wrapping the server error, got %v", err)
			}

			if snapshot != nil {
				t.Errorf("expected no snapshot, got %v", snapshot)
			}
		})
	}
}

func TestEnumerateSubmitError(t *testing.T) {
	protocol := newFakeProtocol()
	engine := newTestEngine(t, protocol, Options{})
	protocol.listErr = errServer

	if _, err := engine.Enumerate(); !errors.Is(err, ErrEnumeration) {
		t.Errorf("expected ErrEnumeration, got %v", err)
	}
}

func TestListOperation(t *testing.T) {
	t.Run("nothing readable before completion", func(t *testing.T) {
		op := newListOperation()
		op.deliver(stream(1, "a"))

		for range op.Streams() {
			t.Error("expected no records before end-of-list")
		}
	})

	t.Run("records after the end are dropped", func(t *testing.T) {
		op := newListOperation()
		op.deliver(stream(1, "a"))
		op.finish(nil)
		op.deliver(stream(2, "b"))
		op.finish(errServer)

		if op.Err() != nil {
			t.Errorf("expected the first completion to win, got %v", op.Err())
		}

		count := 0
		for range op.Streams() {
			count++
		}

		if count != 1 {
			t.Errorf("expected 1 record, got %d", count)
		}
	})
}
