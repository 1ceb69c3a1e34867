package radio

import (
	"context"
	"fmt"
	"sync"

	"github.com/meshwire/meshnode/internal/chat"
)

// Bus is a shared in-process medium that a set of Memory radios attach
// to, standing in for the shared RF channel of a real mesh. Every send
// is visible to every other attached node whose address matches the
// destination (or every node, for a broadcast).
type Bus struct {
	mu    sync.Mutex
	nodes map[chat.NodeAddr]*Memory
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{nodes: make(map[chat.NodeAddr]*Memory)}
}

func (b *Bus) attach(m *Memory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes[m.self] = m
}

func (b *Bus) deliver(from chat.NodeAddr, dst chat.NodeAddr, pkt *chat.WireChatPacket) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for addr, node := range b.nodes {
		if addr == from {
			continue
		}
		if dst != chat.BroadcastAddr && addr != dst {
			continue
		}
		node.deliver(from, *pkt)
	}
}

// Memory is an in-process chat.RadioHandle double attached to a Bus. It
// never refuses a send (airtime budget is unlimited) unless RefuseNext
// has been armed by a test, matching the teacher's injectable-behavior
// mock style.
type Memory struct {
	self chat.NodeAddr
	bus  *Bus

	mu      sync.Mutex
	inbox   []chat.RxEvent
	notify  chan struct{}
	txCount uint64
	rxCount uint64
	txAirMS int64

	// RefuseNext, when > 0, makes the next N Send calls fail with the
	// given airtimeRemainingMS, then clears itself — for exercising
	// spec.md §8 scenario 6 (airtime backoff).
	RefuseNext      int
	RefuseAirtimeMS int64
}

// NewMemory attaches a new Memory radio for self to bus.
func NewMemory(self chat.NodeAddr, bus *Bus) *Memory {
	m := &Memory{
		self:   self,
		bus:    bus,
		notify: make(chan struct{}, 1),
	}
	bus.attach(m)
	return m
}

// Send implements chat.Radio / chat.RadioHandle.
func (m *Memory) Send(dst chat.NodeAddr, pkt *chat.WireChatPacket) (bool, int64) {
	m.mu.Lock()
	if m.RefuseNext > 0 {
		m.RefuseNext--
		airtime := m.RefuseAirtimeMS
		m.mu.Unlock()
		return false, airtime
	}
	m.txCount++
	m.mu.Unlock()

	m.bus.deliver(m.self, dst, pkt)
	return true, 0
}

// deliver is called by the Bus to hand an inbound packet to this node.
func (m *Memory) deliver(from chat.NodeAddr, pkt chat.WireChatPacket) {
	m.mu.Lock()
	m.rxCount++
	m.inbox = append(m.inbox, chat.RxEvent{Src: from, Pkt: pkt})
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// LocalAddress implements chat.RadioHandle.
func (m *Memory) LocalAddress() chat.NodeAddr { return m.self }

// AirtimeRemainingMS implements chat.RadioHandle. Memory has no airtime
// model outside of RefuseNext, so it always reports ready.
func (m *Memory) AirtimeRemainingMS(int64) int64 { return 0 }

// TxCount implements chat.RadioHandle.
func (m *Memory) TxCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txCount
}

// RxCount implements chat.RadioHandle.
func (m *Memory) RxCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rxCount
}

// TxAirtimeMS implements chat.RadioHandle.
func (m *Memory) TxAirtimeMS() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txAirMS
}

// Recv implements chat.RadioHandle: blocks until a packet is in the
// inbox or ctx is cancelled.
func (m *Memory) Recv(ctx context.Context) (chat.RxEvent, error) {
	for {
		m.mu.Lock()
		if len(m.inbox) > 0 {
			ev := m.inbox[0]
			m.inbox = m.inbox[1:]
			m.mu.Unlock()
			return ev, nil
		}
		m.mu.Unlock()

		select {
		case <-m.notify:
			continue
		case <-ctx.Done():
			return chat.RxEvent{}, fmt.Errorf("memory radio recv: %w", ctx.Err())
		}
	}
}
