package appmix

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/thoas/go-funk"
)

// AudioSink is one playback stream as seen by a single enumeration
type AudioSink struct {
	// StreamID targets mutation requests. It is only meaningful against the
	// server state of the snapshot it came from.
	StreamID uint32

	DisplayName string
	Volume      float64
	Muted       bool

	// ProcessID is the owning OS process, 0 when the server didn't report one
	ProcessID int
}

func newAudioSink(info StreamInfo) AudioSink {
	pid, _ := strconv.Atoi(info.Properties[propApplicationProcessID])

	return AudioSink{
		StreamID:    info.Index,
		DisplayName: DisplayName(info.Properties),
		Volume:      info.Volume,
		Muted:       info.Muted,
		ProcessID:   pid,
	}
}

func (s AudioSink) String() string {
	return fmt.Sprintf("<sink %d: %s (vol: %.2f, muted: %t)>", s.StreamID, s.DisplayName, s.Volume, s.Muted)
}

// Snapshot is the full list of playback streams captured by one enumeration, in server order
type Snapshot []AudioSink

// Find returns the sink with the given stream id
func (s Snapshot) Find(id uint32) (AudioSink, bool) {
	for _, sink := range s {
		if sink.StreamID == id {
			return sink, true
		}
	}

	return AudioSink{}, false
}

// FindByName returns every sink whose display name matches, ignoring case
func (s Snapshot) FindByName(name string) Snapshot {
	var matches Snapshot

	for _, sink := range s {
		if strings.EqualFold(sink.DisplayName, name) {
			matches = append(matches, sink)
		}
	}

	return matches
}

// Names returns the distinct display names, in order of first appearance
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s))
	for _, sink := range s {
		names = append(names, sink.DisplayName)
	}

	return funk.UniqString(names)
}

func (s Snapshot) String() string {
	return fmt.Sprintf("<%d audio sinks>", len(s))
}
