package radio

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/meshwire/meshnode/internal/chat"
)

// UDP is a best-effort broadcast/unicast transport standing in for the
// physical LoRa/mesh driver: every send is fanned out over UDP to every
// configured peer, mirroring how a real radio transmits at the physical
// layer regardless of the logical destination — the chat core filters
// unicast destinations out of band via the wire packet's `to` field, the
// same way it would against a real radio. No retries, no delivery
// guarantee, no airtime modeling beyond always reporting ready; this
// exists to let the protocol core run over a real network for manual
// testing and demos, not to emulate RF scheduling.
type UDP struct {
	self chat.NodeAddr
	conn *net.UDPConn
	log  *slog.Logger

	mu    sync.Mutex
	peers []*net.UDPAddr

	txCount atomic.Uint64
	rxCount atomic.Uint64

	events chan chat.RxEvent
	done   chan struct{}
}

// NewUDP binds a UDP socket at localAddr (e.g. "0.0.0.0:7001") for node
// self, fanning outbound sends out to every address in peers (each
// "host:port"). logger defaults to slog.Default() if nil.
func NewUDP(self chat.NodeAddr, localAddr string, peers []string, logger *slog.Logger) (*UDP, error) {
	laddr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("radio udp: resolve local addr %q: %w", localAddr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("radio udp: listen %q: %w", localAddr, err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	u := &UDP{
		self:   self,
		conn:   conn,
		log:    logger,
		events: make(chan chat.RxEvent, chat.PendingSlots),
		done:   make(chan struct{}),
	}

	for _, p := range peers {
		addr, err := net.ResolveUDPAddr("udp", p)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("radio udp: resolve peer addr %q: %w", p, err)
		}
		u.peers = append(u.peers, addr)
	}

	go u.readLoop()
	return u, nil
}

// Close releases the underlying socket and stops the read loop.
func (u *UDP) Close() error {
	close(u.done)
	return u.conn.Close()
}

// Send implements chat.Radio / chat.RadioHandle.
func (u *UDP) Send(_ chat.NodeAddr, pkt *chat.WireChatPacket) (bool, int64) {
	bufPtr := chat.PacketPool.Get().(*[]byte) //nolint:errcheck // sync.Pool.New always returns *[]byte
	defer chat.PacketPool.Put(bufPtr)
	buf := *bufPtr

	n, err := chat.MarshalWireChatPacket(pkt, buf)
	if err != nil {
		u.log.Warn("radio udp: marshal failed", slog.String("error", err.Error()))
		return false, 0
	}

	u.mu.Lock()
	peers := u.peers
	u.mu.Unlock()

	sent := false
	for _, p := range peers {
		if _, err := u.conn.WriteToUDP(buf[:n], p); err != nil {
			u.log.Warn("radio udp: write failed", slog.String("peer", p.String()), slog.String("error", err.Error()))
			continue
		}
		sent = true
	}
	if sent {
		u.txCount.Add(1)
	}
	return sent, 0
}

// LocalAddress implements chat.RadioHandle.
func (u *UDP) LocalAddress() chat.NodeAddr { return u.self }

// AirtimeRemainingMS implements chat.RadioHandle. UDP has no airtime
// model; it always reports ready.
func (u *UDP) AirtimeRemainingMS(int64) int64 { return 0 }

// TxCount implements chat.RadioHandle.
func (u *UDP) TxCount() uint64 { return u.txCount.Load() }

// RxCount implements chat.RadioHandle.
func (u *UDP) RxCount() uint64 { return u.rxCount.Load() }

// TxAirtimeMS implements chat.RadioHandle. Always 0: see AirtimeRemainingMS.
func (u *UDP) TxAirtimeMS() int64 { return 0 }

// Recv implements chat.RadioHandle.
func (u *UDP) Recv(ctx context.Context) (chat.RxEvent, error) {
	select {
	case ev := <-u.events:
		return ev, nil
	case <-ctx.Done():
		return chat.RxEvent{}, fmt.Errorf("radio udp recv: %w", ctx.Err())
	case <-u.done:
		return chat.RxEvent{}, fmt.Errorf("radio udp recv: %w", net.ErrClosed)
	}
}

// readLoop decodes inbound datagrams and forwards them to events until
// the socket is closed.
func (u *UDP) readLoop() {
	buf := make([]byte, chat.HeaderSize)
	for {
		n, _, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-u.done:
				return
			default:
				u.log.Warn("radio udp: read failed", slog.String("error", err.Error()))
				continue
			}
		}

		var pkt chat.WireChatPacket
		if err := chat.UnmarshalWireChatPacket(buf[:n], &pkt); err != nil {
			u.log.Warn("radio udp: unmarshal failed", slog.String("error", err.Error()))
			continue
		}
		if pkt.From == u.self {
			continue
		}

		u.rxCount.Add(1)
		select {
		case u.events <- chat.RxEvent{Src: pkt.From, Pkt: pkt}:
		case <-u.done:
			return
		}
	}
}
