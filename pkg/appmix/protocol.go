package appmix

import "iter"

// StreamInfo is a single playback stream record as reported by the audio server
type StreamInfo struct {
	Index      uint32
	Properties map[string]string
	Volume     float64 // mean across channels, 1.0 is the server's normal level
	Muted      bool
}

// StreamChange describes a playback stream appearing or disappearing on the server
type StreamChange struct {
	Index   uint32
	Removed bool
}

// Reactor dispatches pending protocol events on the calling goroutine
type Reactor interface {
	// Iterate processes one bounded batch of pending events and returns how many it dispatched.
	// With block set it waits briefly for events when none are pending.
	Iterate(block bool) (int, error)
}

// Protocol is the audio server client the engine drives. Every callback passed to it
// runs from within Iterate, never concurrently with the engine.
type Protocol interface {
	Reactor

	// Connect starts connecting and reports every state change through onState
	Connect(appName string, onState func(State)) error
	Disconnect()

	// ListStreams submits a "list streams" request; the operation completes during Iterate
	ListStreams() (*ListOperation, error)

	// SetVolume and SetMute submit a request without waiting for its acknowledgement
	SetVolume(index uint32, level float64) error
	SetMute(index uint32, muted bool) error

	// Subscribe registers onChange for stream appear/disappear notifications
	Subscribe(onChange func(StreamChange)) error
}

// ListOperation is the handle of an in-flight stream listing.
// Records are only readable once the operation is done.
type ListOperation struct {
	records []StreamInfo
	done    bool
	err     error
}

func newListOperation() *ListOperation {
	return &ListOperation{}
}

func (op *ListOperation) deliver(info StreamInfo) {
	if op.done {
		return
	}

	op.records = append(op.records, info)
}

// finish marks the end-of-list (err == nil) or the error signal. Only the first call counts.
func (op *ListOperation) finish(err error) {
	if op.done {
		return
	}

	op.done = true
	op.err = err
	if err != nil {
		op.records = nil
	}
}

// Done reports whether end-of-list or an error was received
func (op *ListOperation) Done() bool {
	return op.done
}

// Err returns the error signal received from the server, if any
func (op *ListOperation) Err() error {
	return op.err
}

// Streams yields the received records in server order. It yields nothing until the
// operation completed successfully.
func (op *ListOperation) Streams() iter.Seq[StreamInfo] {
	return func(yield func(StreamInfo) bool) {
		if !op.done || op.err != nil {
			return
		}

		for _, info := range op.records {
			if !yield(info) {
				return
			}
		}
	}
}
