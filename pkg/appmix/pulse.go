package appmix

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/jfreymuth/pulse/proto"
	"go.uber.org/zap"
)

const (
	// volumeNorm is the server's 100% volume
	volumeNorm = 0x10000

	defaultIterateWait = 50 * time.Millisecond

	// most events one Iterate call dispatches
	maxDispatchBatch = 64

	eventQueueSize   = 256
	requestQueueSize = 64

	// how long Disconnect waits for submitted requests to be answered
	defaultDrainTimeout = time.Second
)

var (
	errProtocolClosed = errors.New("pulseaudio protocol closed")
	errClientNotReady = errors.New("pulseaudio client not ready")
)

// PulseProtocol implements Protocol on top of the PulseAudio native protocol.
// Requests are written in submission order by a single sender goroutine; their
// results are queued as events and only take effect when Iterate dispatches them.
type PulseProtocol struct {
	logger       *zap.SugaredLogger
	server       string
	iterateWait  time.Duration
	drainTimeout time.Duration

	// owned by the goroutine calling Iterate
	client   *proto.Client
	onState  func(State)
	onChange func(StreamChange)
	dialing  bool

	lock     sync.Mutex
	conn     net.Conn
	stopping bool
	closed   chan struct{}
	events   chan func()

	requests chan func(client *proto.Client)
	sender   sync.WaitGroup
}

// NewPulseProtocol prepares a client for the given server address, "" picks the default server
func NewPulseProtocol(logger *zap.SugaredLogger, server string, iterateWait time.Duration) *PulseProtocol {
	if iterateWait <= 0 {
		iterateWait = defaultIterateWait
	}

	return &PulseProtocol{
		logger:       logger.Named("pulse"),
		server:       server,
		iterateWait:  iterateWait,
		drainTimeout: defaultDrainTimeout,
		closed:       make(chan struct{}),
		events:       make(chan func(), eventQueueSize),
		requests:     make(chan func(client *proto.Client), requestQueueSize),
	}
}

func (p *PulseProtocol) Connect(appName string, onState func(State)) error {
	if p.dialing {
		return errors.New("connect called twice")
	}

	p.dialing = true
	p.onState = onState

	go p.dial(appName)

	return nil
}

func (p *PulseProtocol) dial(appName string) {
	client, conn, err := proto.Connect(p.server)
	if err != nil {
		p.post(func() {
			p.logger.Warnw("Failed to establish PulseAudio connection", "server", p.server, "error", err)
			p.onState(StateFailed)
		})
		return
	}

	client.Callback = func(msg interface{}) {
		switch msg := msg.(type) {
		case *proto.SubscribeEvent:
			if msg.Event&proto.EventFacilityMask != proto.EventSinkSinkInput {
				return
			}

			change := StreamChange{Index: msg.Index}
			switch msg.Event.GetType() {
			case proto.EventNew:
			case proto.EventRemove:
				change.Removed = true
			default:
				return
			}

			p.post(func() {
				if p.onChange != nil {
					p.onChange(change)
				}
			})
		}
	}

	request := proto.SetClientName{
		Props: proto.PropList{
			propApplicationName: proto.PropListString(appName),
		},
	}
	reply := proto.SetClientNameReply{}

	if err := client.Request(&request, &reply); err != nil {
		_ = conn.Close()
		p.post(func() {
			p.logger.Warnw("Failed to announce client name", "appName", appName, "error", err)
			p.onState(StateFailed)
		})
		return
	}

	if !p.attach(client, conn) {
		_ = conn.Close()
		return
	}

	p.post(func() {
		p.client = client
		p.logger.Debugw("Connected to PulseAudio", "server", p.server, "clientIndex", reply.ClientIndex)
		p.onState(StateReady)
	})
}

// attach adopts an established connection and starts its sender, false if already disconnected
func (p *PulseProtocol) attach(client *proto.Client, conn net.Conn) bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.stopping {
		return false
	}

	p.conn = conn
	p.sender.Add(1)
	go p.send(client)

	return true
}

// send writes queued requests one at a time, in the order they were submitted
func (p *PulseProtocol) send(client *proto.Client) {
	defer p.sender.Done()

	for request := range p.requests {
		request(client)
	}
}

// Disconnect lets already submitted requests reach the server, then closes the connection
func (p *PulseProtocol) Disconnect() {
	p.lock.Lock()
	if p.stopping {
		p.lock.Unlock()
		return
	}

	p.stopping = true
	close(p.requests)
	p.lock.Unlock()

	if !waitTimeout(&p.sender, p.drainTimeout) {
		p.logger.Warnw("Gave up waiting for submitted requests", "timeout", p.drainTimeout)
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	close(p.closed)

	if p.conn == nil {
		return
	}

	if err := p.conn.Close(); err != nil {
		p.logger.Warnw("Failed to close PulseAudio connection", "error", err)
		return
	}

	p.logger.Debug("Closed PulseAudio connection")
}

func (p *PulseProtocol) ListStreams() (*ListOperation, error) {
	op := newListOperation()

	err := p.enqueue(func(client *proto.Client) {
		reply := proto.GetSinkInputInfoListReply{}
		if err := client.Request(&proto.GetSinkInputInfoList{}, &reply); err != nil {
			p.post(func() {
				p.requestFailed("get sink input list", err)
				op.finish(err)
			})
			return
		}

		for _, info := range reply {
			props := make(map[string]string, len(info.Properties))
			for key, value := range info.Properties {
				props[key] = value.String()
			}

			record := StreamInfo{
				Index:      info.SinkInputIndex,
				Properties: props,
				Volume:     meanVolume(info.ChannelVolumes),
				Muted:      info.Muted,
			}

			if !p.post(func() { op.deliver(record) }) {
				return
			}
		}

		p.post(func() { op.finish(nil) })
	})
	if err != nil {
		return nil, err
	}

	return op, nil
}

func (p *PulseProtocol) SetVolume(index uint32, level float64) error {
	volumes := make(proto.ChannelVolumes, 1)
	fillVolumes(volumes, level)

	return p.submit("set sink input volume", func(client *proto.Client) error {
		return client.Request(&proto.SetSinkInputVolume{SinkInputIndex: index, ChannelVolumes: volumes}, nil)
	})
}

func (p *PulseProtocol) SetMute(index uint32, muted bool) error {
	return p.submit("set sink input mute", func(client *proto.Client) error {
		return client.Request(&proto.SetSinkInputMute{SinkInputIndex: index, Mute: muted}, nil)
	})
}

func (p *PulseProtocol) Subscribe(onChange func(StreamChange)) error {
	p.onChange = onChange

	return p.submit("subscribe to sink input events", func(client *proto.Client) error {
		return client.Request(&proto.Subscribe{Mask: proto.SubscriptionMaskSinkInput}, nil)
	})
}

func (p *PulseProtocol) Iterate(block bool) (int, error) {
	select {
	case <-p.closed:
		return 0, errProtocolClosed
	default:
	}

	var event func()

	if block {
		timer := time.NewTimer(p.iterateWait)
		defer timer.Stop()

		select {
		case event = <-p.events:
		case <-timer.C:
			return 0, nil
		case <-p.closed:
			return 0, errProtocolClosed
		}
	} else {
		select {
		case event = <-p.events:
		default:
			return 0, nil
		}
	}

	event()
	dispatched := 1

	for dispatched < maxDispatchBatch {
		select {
		case event = <-p.events:
			event()
			dispatched++
		default:
			return dispatched, nil
		}
	}

	return dispatched, nil
}

// enqueue hands a request to the sender. Runs on the dispatching goroutine, so
// while the queue is full it dispatches events to let the sender make progress.
func (p *PulseProtocol) enqueue(request func(client *proto.Client)) error {
	if p.client == nil {
		return errClientNotReady
	}

	p.lock.Lock()
	stopping := p.stopping
	p.lock.Unlock()

	if stopping {
		return errProtocolClosed
	}

	for {
		select {
		case p.requests <- request:
			return nil
		case event := <-p.events:
			event()
		}
	}
}

// submit queues a request without waiting for its reply; the outcome is logged once dispatched
func (p *PulseProtocol) submit(what string, request func(client *proto.Client) error) error {
	return p.enqueue(func(client *proto.Client) {
		err := request(client)

		delivered := p.post(func() {
			if err != nil {
				p.requestFailed(what, err)
				return
			}

			p.logger.Debugw("Server acknowledged request", "request", what)
		})

		if !delivered && err != nil {
			p.logger.Warnw("PulseAudio request failed after disconnect", "request", what, "error", err)
		}
	})
}

// requestFailed runs on the dispatching goroutine
func (p *PulseProtocol) requestFailed(what string, err error) {
	p.logger.Warnw("PulseAudio request failed", "request", what, "error", err)

	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		p.logger.Infow("PulseAudio connection lost", "error", err)
		p.onState(StateTerminated)
	}
}

// post queues an event for Iterate, false once the protocol is closed
func (p *PulseProtocol) post(event func()) bool {
	select {
	case <-p.closed:
		return false
	default:
	}

	select {
	case p.events <- event:
		return true
	case <-p.closed:
		return false
	}
}

func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func meanVolume[S ~[]E, E ~uint32](volumes S) float64 {
	if len(volumes) == 0 {
		return 0
	}

	var sum float64
	for _, v := range volumes {
		sum += float64(v)
	}

	return sum / float64(len(volumes)) / volumeNorm
}

func fillVolumes[S ~[]E, E ~uint32](volumes S, level float64) {
	for i := range volumes {
		volumes[i] = E(math.Round(level * volumeNorm))
	}
}

func (p *PulseProtocol) String() string {
	return fmt.Sprintf("<pulse server=%q>", p.server)
}
