// Package nodetest provides an in-memory HostCallbacks fake and a no-op
// Switch fake for exercising the node package without real sockets or
// disk access, per spec.md's "no sockets" / "no disk access" non-goals.
//
// Structurally this mirrors the teacher's mocks_test.go: small,
// dependency-free fakes recording what was sent/stored for assertions,
// rather than a mocking framework.
package nodetest

import (
	"sync"
	"time"

	"github.com/zerotau/zerotau/callbacks"
	"github.com/zerotau/zerotau/identity"
)

// SentPacket records one WirePacketSend call.
type SentPacket struct {
	RemoteAddress   string
	LinkDesperation int
	Data            []byte
}

// DeliveredFrame records one VirtualNetworkFrame call.
type DeliveredFrame struct {
	NWID      uint64
	SrcMac    [6]byte
	DstMac    [6]byte
	EtherType uint16
	VlanID    uint16
	Data      []byte
}

// ConfigEvent records one VirtualNetworkConfig call.
type ConfigEvent struct {
	NWID   uint64
	Op     callbacks.ConfigOp
	Config interface{}
}

// Callbacks is an in-memory HostCallbacks implementation backed by a map,
// satisfying spec.md's embedder contract for tests.
type Callbacks struct {
	mu sync.Mutex

	store map[string][]byte

	Sent          []SentPacket
	Delivered     []DeliveredFrame
	ConfigEvents  []ConfigEvent
	StatusEvents  []callbacks.StatusEvent

	// FailStorePut, when set, makes DataStorePut fail for the named key,
	// simulating the embedder's store failing (spec.md §4.1 failure mode).
	FailStorePut map[string]bool
}

// New constructs an empty in-memory Callbacks fake.
func New() *Callbacks {
	return &Callbacks{store: make(map[string][]byte)}
}

// DataStoreGet implements callbacks.HostCallbacks.
func (c *Callbacks) DataStoreGet(name string, buf []byte, readOffset int64) (int, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.store[name]
	if !ok {
		return 0, 0, nil
	}
	total := int64(len(data))
	if readOffset >= total {
		return 0, total, nil
	}
	n := copy(buf, data[readOffset:])
	return n, total, nil
}

// DataStorePut implements callbacks.HostCallbacks.
func (c *Callbacks) DataStorePut(name string, data []byte, secure bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.FailStorePut[name] {
		return false
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.store[name] = cp
	return true
}

// Get returns the raw bytes stored under name, for test assertions.
func (c *Callbacks) Get(name string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[name]
	return v, ok
}

// Seed pre-populates the store, e.g. to simulate a warm start.
func (c *Callbacks) Seed(name string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[name] = data
}

// WirePacketSend implements callbacks.HostCallbacks.
func (c *Callbacks) WirePacketSend(remoteAddress string, linkDesperation int, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.Sent = append(c.Sent, SentPacket{RemoteAddress: remoteAddress, LinkDesperation: linkDesperation, Data: cp})
}

// VirtualNetworkFrame implements callbacks.HostCallbacks.
func (c *Callbacks) VirtualNetworkFrame(nwid uint64, srcMac, dstMac [6]byte, etherType uint16, vlanID uint16, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.Delivered = append(c.Delivered, DeliveredFrame{
		NWID: nwid, SrcMac: srcMac, DstMac: dstMac, EtherType: etherType, VlanID: vlanID, Data: cp,
	})
}

// VirtualNetworkConfig implements callbacks.HostCallbacks.
func (c *Callbacks) VirtualNetworkConfig(nwid uint64, op callbacks.ConfigOp, config interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ConfigEvents = append(c.ConfigEvents, ConfigEvent{NWID: nwid, Op: op, Config: config})
}

// StatusCallback implements callbacks.HostCallbacks.
func (c *Callbacks) StatusCallback(event callbacks.StatusEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StatusEvents = append(c.StatusEvents, event)
}

// HasStatus reports whether event was ever reported.
func (c *Callbacks) HasStatus(event callbacks.StatusEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.StatusEvents {
		if e == event {
			return true
		}
	}
	return false
}

// CountStatus counts how many times event was reported.
func (c *Callbacks) CountStatus(event callbacks.StatusEvent) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.StatusEvents {
		if e == event {
			n++
		}
	}
	return n
}

// Switch is a recording switchcore.Switch fake. By default it never
// recognizes a sender and reports a zero timer interval, so tests that
// don't care about switch behavior can ignore it; RecognizeAs and
// Interval override those defaults.
type Switch struct {
	mu       sync.Mutex
	Received []ReceivedPacket
	Sent     []SentFrame
	Interval int64 // nanoseconds; 0 means "use the core's default"

	// RecognizeAs, when non-nil, is returned as the sender of every
	// OnRemotePacket call, simulating a switch that always identifies
	// the peer.
	RecognizeAs *identity.Address
}

// ReceivedPacket records one OnRemotePacket call.
type ReceivedPacket struct {
	RemoteAddress   string
	LinkDesperation int
	Data            []byte
}

// SentFrame records one OnVirtualNetworkFrame call.
type SentFrame struct {
	NWID   uint64
	SrcMac [6]byte
	DstMac [6]byte
	Data   []byte
}

// OnRemotePacket implements switchcore.Switch.
func (s *Switch) OnRemotePacket(remoteAddress string, linkDesperation int, data []byte) (identity.Address, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.Received = append(s.Received, ReceivedPacket{RemoteAddress: remoteAddress, LinkDesperation: linkDesperation, Data: cp})
	if s.RecognizeAs != nil {
		return *s.RecognizeAs, true, nil
	}
	return identity.Address{}, false, nil
}

// OnVirtualNetworkFrame implements switchcore.Switch.
func (s *Switch) OnVirtualNetworkFrame(nwid uint64, srcMac, dstMac [6]byte, etherType uint16, vlanID uint16, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.Sent = append(s.Sent, SentFrame{NWID: nwid, SrcMac: srcMac, DstMac: dstMac, Data: cp})
	return nil
}

// NextTimerDeadline implements switchcore.Switch.
func (s *Switch) NextTimerDeadline() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.Interval)
}
