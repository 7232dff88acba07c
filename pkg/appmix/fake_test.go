package appmix

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type listScript struct {
	records []StreamInfo
	err     error
}

type volumeCall struct {
	index uint32
	level float64
}

type muteCall struct {
	index uint32
	muted bool
}

// fakeProtocol is a scripted audio server. Replies are queued and only
// delivered one event per Iterate, like a real reactor.
type fakeProtocol struct {
	connectErr    error
	connectStates []State
	scripts       []listScript
	listErr       error
	iterateErr    error

	queue    []func()
	onState  func(State)
	onChange func(StreamChange)

	connects    int
	disconnects int
	lists       int
	iterations  int
	volumeCalls []volumeCall
	muteCalls   []muteCall
	subscribes  int
}

func newFakeProtocol(states ...State) *fakeProtocol {
	if len(states) == 0 {
		states = []State{StateReady}
	}

	return &fakeProtocol{connectStates: states}
}

func (f *fakeProtocol) Connect(_ string, onState func(State)) error {
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}

	f.onState = onState
	for _, state := range f.connectStates {
		f.queue = append(f.queue, func() { f.onState(state) })
	}

	return nil
}

func (f *fakeProtocol) Disconnect() {
	f.disconnects++
}

func (f *fakeProtocol) ListStreams() (*ListOperation, error) {
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}

	script := listScript{}
	if len(f.scripts) > 0 {
		script, f.scripts = f.scripts[0], f.scripts[1:]
	}

	op := newListOperation()
	for _, record := range script.records {
		f.queue = append(f.queue, func() { op.deliver(record) })
	}
	f.queue = append(f.queue, func() { op.finish(script.err) })

	return op, nil
}

func (f *fakeProtocol) SetVolume(index uint32, level float64) error {
	f.volumeCalls = append(f.volumeCalls, volumeCall{index, level})
	return nil
}

func (f *fakeProtocol) SetMute(index uint32, muted bool) error {
	f.muteCalls = append(f.muteCalls, muteCall{index, muted})
	return nil
}

func (f *fakeProtocol) Subscribe(onChange func(StreamChange)) error {
	f.subscribes++
	f.onChange = onChange
	return nil
}

func (f *fakeProtocol) Iterate(_ bool) (int, error) {
	f.iterations++
	if f.iterateErr != nil {
		return 0, f.iterateErr
	}

	if len(f.queue) == 0 {
		return 0, nil
	}

	event := f.queue[0]
	f.queue = f.queue[1:]
	event()

	return 1, nil
}

// mutations counts every request that would change server state
func (f *fakeProtocol) mutations() int {
	return len(f.volumeCalls) + len(f.muteCalls)
}

func (f *fakeProtocol) push(event func()) {
	f.queue = append(f.queue, event)
}

func (f *fakeProtocol) respond(records ...StreamInfo) {
	f.scripts = append(f.scripts, listScript{records: records})
}

func (f *fakeProtocol) fail(err error, partial ...StreamInfo) {
	f.scripts = append(f.scripts, listScript{records: partial, err: err})
}

var errServer = errors.New("server said no")

func testLogger(t *testing.T) *zap.SugaredLogger {
	return zaptest.NewLogger(t).Sugar()
}

func newTestEngine(t *testing.T, protocol *fakeProtocol, options Options) *Engine {
	t.Helper()

	engine, err := NewEngine(testLogger(t), protocol, options)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	t.Cleanup(func() { _ = engine.Close() })

	return engine
}

func stream(index uint32, name string) StreamInfo {
	return StreamInfo{
		Index:      index,
		Properties: map[string]string{propApplicationName: name},
		Volume:     1.0,
	}
}
