package appmix

import (
	"errors"
	"testing"
)

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		allowed  bool
	}{
		{StateUnconnected, StateConnecting, true},
		{StateUnconnected, StateReady, false},
		{StateConnecting, StateReady, true},
		{StateConnecting, StateFailed, true},
		{StateConnecting, StateTerminated, true},
		{StateReady, StateTerminated, true},
		{StateReady, StateConnecting, false},
		{StateReady, StateFailed, false},
		{StateFailed, StateReady, false},
		{StateFailed, StateConnecting, false},
		{StateTerminated, StateReady, false},
		{StateTerminated, StateConnecting, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+" to "+tt.to.String(), func(t *testing.T) {
			if got := allowed(tt.from, tt.to); got != tt.allowed {
				t.Errorf("expected allowed=%t, got %t", tt.allowed, got)
			}
		})
	}
}

func TestConnectionAbsorbingStates(t *testing.T) {
	for _, absorbing := range []State{StateFailed, StateTerminated} {
		t.Run(absorbing.String(), func(t *testing.T) {
			conn := newConnection(testLogger(t), newFakeProtocol(), "test")
			conn.state = absorbing

			conn.transition(StateReady)
			conn.transition(StateConnecting)

			if conn.state != absorbing {
				t.Errorf("expected state to stay %s, got %s", absorbing, conn.state)
			}

			if err := conn.ready(); !errors.Is(err, ErrNotConnected) {
				t.Errorf("expected ErrNotConnected, got %v", err)
			}
		})
	}
}

func TestConnectionOpen(t *testing.T) {
	t.Run("moves to connecting", func(t *testing.T) {
		protocol := newFakeProtocol()
		conn := newConnection(testLogger(t), protocol, "test")

		if err := conn.open(); err != nil {
			t.Fatalf("open: %v", err)
		}

		if conn.state != StateConnecting {
			t.Errorf("expected connecting, got %s", conn.state)
		}

		if protocol.connects != 1 {
			t.Errorf("expected 1 connect call, got %d", protocol.connects)
		}
	})

	t.Run("failing to start connecting", func(t *testing.T) {
		protocol := newFakeProtocol()
		protocol.connectErr = errServer
		conn := newConnection(testLogger(t), protocol, "test")

		err := conn.open()
		if !errors.Is(err, ErrConnection) || !errors.Is(err, errServer) {
			t.Errorf("expected ErrConnection wrapping the cause, got %v", err)
		}

		if conn.state != StateFailed {
			t.Errorf("expected failed, got %s", conn.state)
		}
	})
}

func TestConnectionClose(t *testing.T) {
	tests := []struct {
		name         string
		state        State
		disconnects  int
		expectedEnds State
	}{
		{"ready disconnects", StateReady, 1, StateTerminated},
		{"connecting drops the dial", StateConnecting, 1, StateFailed},
		{"failed releases", StateFailed, 1, StateFailed},
		{"terminated releases", StateTerminated, 1, StateTerminated},
		{"never opened", StateUnconnected, 0, StateUnconnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			protocol := newFakeProtocol()
			conn := newConnection(testLogger(t), protocol, "test")
			conn.state = tt.state

			conn.close()
			conn.close()

			if protocol.disconnects != tt.disconnects {
				t.Errorf("expected %d disconnects, got %d", tt.disconnects, protocol.disconnects)
			}

			if conn.state != tt.expectedEnds {
				t.Errorf("expected %s, got %s", tt.expectedEnds, conn.state)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	if s := State(42).String(); s != "state(42)" {
		t.Errorf("unexpected string %q", s)
	}
}
