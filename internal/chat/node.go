package chat

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// tickInterval is the main loop's cooperative yield period: how often
// PendingTable.Tick, PresenceEngine.PresenceTick, and PairBeaconTick are
// driven in the absence of an inbound packet to react to.
const tickInterval = 250 * time.Millisecond

// RadioHandle is the capability set the core consumes from the physical
// radio substrate, per spec.md §6.1 and the Design Notes' "pass a radio
// handle" guidance. The physical driver, multi-hop routing, and RF
// scheduling live entirely behind this interface.
type RadioHandle interface {
	Radio

	// LocalAddress returns this node's 16-bit mesh address.
	LocalAddress() NodeAddr

	// AirtimeRemainingMS reports how long until the substrate will accept
	// another send, 0 if ready now.
	AirtimeRemainingMS(nowMS int64) int64

	// TxCount, RxCount, and TxAirtimeMS are diagnostic counters exposed
	// for metrics collection.
	TxCount() uint64
	RxCount() uint64
	TxAirtimeMS() int64

	// Recv blocks until a packet has arrived or ctx is cancelled. The
	// receive worker calls this in a loop and forwards every result to
	// the main loop over a channel, never touching core state itself.
	Recv(ctx context.Context) (RxEvent, error)
}

// chatMetrics is the observation surface the core reports through.
// internal/metrics.Collector implements it with exported methods (so it
// can satisfy an interface declared in this package); tests may use a
// no-op implementation instead.
type chatMetrics interface {
	ObserveAck(peer NodeAddr)
	ObserveSend(kind Kind, peer NodeAddr)
	ObserveDuplicate()
	ObserveReplayRejected()
	ObserveDecryptFailed()
	ObserveNoKey()
	ObservePairingCompleted()
	ObserveDiscoveryEscalation()
	ObserveDelivered()
	ObserveFailed()
}

// noopMetrics discards every observation; the zero value for chatMetrics
// when a caller has no collector wired up.
type noopMetrics struct{}

func (noopMetrics) ObserveAck(NodeAddr)         {}
func (noopMetrics) ObserveSend(Kind, NodeAddr)  {}
func (noopMetrics) ObserveDuplicate()           {}
func (noopMetrics) ObserveReplayRejected()      {}
func (noopMetrics) ObserveDecryptFailed()       {}
func (noopMetrics) ObserveNoKey()               {}
func (noopMetrics) ObservePairingCompleted()    {}
func (noopMetrics) ObserveDiscoveryEscalation() {}
func (noopMetrics) ObserveDelivered()           {}
func (noopMetrics) ObserveFailed()              {}

// Node is the protocol core: it owns every table in spec.md §3, wires
// the receive worker to the main loop over a typed channel (per the
// Design Notes, replacing the source's cross-thread callback/mutex
// pattern), and is the only place core state is mutated; the receive
// worker only forwards packets and never touches core state.
type Node struct {
	self  NodeAddr
	radio RadioHandle
	clock Clock
	log   *slog.Logger

	pairing     *PairingStore
	dedupe      *DedupeWindow
	chatLog     *ChatLog
	routeHealth *RouteHealthTable
	seenPeers   *SeenPeerTable
	pending     *PendingTable
	presence    *PresenceEngine
	pairBeacons *PairBeaconTable
	metrics     chatMetrics

	msgIDCounter atomic.Uint32
	rxCh         chan RxEvent
}

// NodeOption configures optional Node fields at construction time.
type NodeOption func(*Node)

// WithLogger overrides the default slog.Logger (slog.Default()).
func WithLogger(l *slog.Logger) NodeOption {
	return func(n *Node) { n.log = l }
}

// WithMetrics overrides the default no-op metrics collector.
func WithMetrics(m chatMetrics) NodeOption {
	return func(n *Node) { n.metrics = m }
}

// NewNode constructs a Node for address self, backed by radio for
// transport, clock for timing, and pairing for persisted handshake
// state. msg_id generation starts at 1 and is monotonic for the
// lifetime of the process, per the Design Notes.
func NewNode(self NodeAddr, radio RadioHandle, clock Clock, pairing *PairingStore, opts ...NodeOption) *Node {
	n := &Node{
		self:        self,
		radio:       radio,
		clock:       clock,
		log:         slog.Default(),
		pairing:     pairing,
		dedupe:      NewDedupeWindow(DedupeCapacity),
		chatLog:     NewChatLog(ChatLogCapacity),
		routeHealth: NewRouteHealthTable(RouteHealthCapacity),
		seenPeers:   NewSeenPeerTable(SeenPeerCapacity),
		pending:     NewPendingTable(),
		presence:    NewPresenceEngine(),
		pairBeacons: NewPairBeaconTable(PairBeaconCapacity),
		metrics:     noopMetrics{},
		rxCh:        make(chan RxEvent, PendingSlots),
	}
	n.msgIDCounter.Store(0)
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// nextMsgID returns the next monotonically increasing message id,
// starting at 1. Never reused within a process lifetime.
func (n *Node) nextMsgID() uint32 {
	return n.msgIDCounter.Add(1)
}

// nextNonce returns fresh per-packet entropy. Nonces need not be secret —
// only unpredictable enough to keep two independently-chosen values from
// colliding — so math/rand/v2 is used, matching the jitter source style
// used throughout this protocol.
func (n *Node) nextNonce() uint32 {
	return rand.Uint32() //nolint:gosec // nonce is a collision-avoidance value, not a security boundary
}

// SetBroadcastMode enables or disables pair-beacon emission for the
// Listen/Broadcast pairing UI modes.
func (n *Node) SetBroadcastMode(on bool) {
	n.presence.SetBroadcastMode(on)
}

// ChatLog returns the node's chat log, for a UI consumer to snapshot.
func (n *Node) ChatLog() *ChatLog { return n.chatLog }

// RouteHealth returns the node's route-health table, for a UI consumer
// to snapshot.
func (n *Node) RouteHealth() *RouteHealthTable { return n.routeHealth }

// SeenPeers returns the node's seen-peer table, for a UI consumer to
// snapshot.
func (n *Node) SeenPeers() *SeenPeerTable { return n.seenPeers }

// PairBeacons returns the node's pair-beacon join list, for a UI
// consumer to snapshot.
func (n *Node) PairBeacons() *PairBeaconTable { return n.pairBeacons }

// Pairing returns the node's pairing store, for a UI or CLI consumer to
// check HasKey before composing a message.
func (n *Node) Pairing() *PairingStore { return n.pairing }

// Run starts the receive worker and blocks running the main loop until
// ctx is cancelled. The receive worker does nothing but translate
// radio.Recv calls into rxCh sends; inbound packets and ticks are
// handled only on this goroutine, per spec.md §5. SendDraft may still be
// called from other goroutines; every table guards itself with its own
// mutex.
func (n *Node) Run(ctx context.Context) error {
	go n.receiveWorker(ctx)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n.log.Info("node stopped")
			return ctx.Err()

		case ev := <-n.rxCh:
			n.OnReceive(ev)

		case <-ticker.C:
			n.tick()
		}
	}
}

// receiveWorker blocks on radio.Recv and forwards every packet to rxCh
// until ctx is cancelled, per the "typed channel from receive worker to
// main loop" Design Note.
func (n *Node) receiveWorker(ctx context.Context) {
	for {
		ev, err := n.radio.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			n.log.Warn("radio recv error", slog.String("error", err.Error()))
			continue
		}
		select {
		case n.rxCh <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// Tick drives one pass of the pending-send retry machine, presence
// broadcasts, and pair-beacon emission. Run calls this on every
// tickInterval; a caller driving its own loop (tests, an alternate
// scheduler) can call it directly instead.
func (n *Node) Tick() {
	n.tick()
}

// tick drives the pending-send retry machine, presence broadcasts, and
// pair-beacon emission — the "internal periodic tick" of spec.md §2.
func (n *Node) tick() {
	now := n.clock.NowMS()

	for _, result := range n.pending.Tick(now, n.routeHealth) {
		switch result.Action {
		case ActionSend:
			pkt := result.Pkt
			ok, airtime := n.radio.Send(result.Dst, &pkt)
			n.pending.RecordSendOutcome(result.Dst, result.MsgID, now, ok, airtime)
			n.metrics.ObserveSend(pkt.Kind, result.Dst)

		case ActionDiscovery:
			n.routeHealth.NoteDiscovery(result.Dst, now)
			n.metrics.ObserveDiscoveryEscalation()
			disc := WireChatPacket{
				Kind:  KindDiscovery,
				MsgID: n.nextMsgID(),
				To:    BroadcastAddr,
				From:  n.self,
				TS:    uint32(now / 1000),
			}
			n.radio.Send(BroadcastAddr, &disc)

		case ActionFailed:
			n.chatLog.MarkFailed(result.Dst, result.MsgID)
			n.metrics.ObserveFailed()
		}
	}

	if n.presence.PresenceTick(now) {
		p := WireChatPacket{
			Kind:  KindPresence,
			MsgID: n.nextMsgID(),
			To:    BroadcastAddr,
			From:  n.self,
			TS:    uint32(now / 1000),
			Nonce: n.nextNonce(),
		}
		_ = p.SetText([]byte("hi"))
		n.radio.Send(BroadcastAddr, &p)
	}

	if n.presence.PairBeaconTick(now) {
		b := WireChatPacket{
			Kind:  KindPresence,
			MsgID: n.nextMsgID(),
			To:    BroadcastAddr,
			From:  n.self,
			TS:    uint32(now / 1000),
			Nonce: n.nextNonce(),
		}
		_ = b.SetText([]byte(PairBeaconTag))
		n.radio.Send(BroadcastAddr, &b)
	}
}
