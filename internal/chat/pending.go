package chat

import (
	"math/rand/v2"
	"sync"
)

// PendingSlot is one in-flight outbound message, per spec.md §3/§4.5.
type PendingSlot struct {
	active        bool
	dst           NodeAddr
	attempts      int
	discoverySent bool
	lastSendMS    int64
	nextSendMS    int64
	pkt           WireChatPacket
	state         DeliveryState
}

// Radio is the minimal send-side capability the pending queue needs. It
// is the send-side subset of RadioHandle (which embeds it), so chat has
// no import-time dependency on the radio package's transport concerns.
type Radio interface {
	// Send attempts to transmit pkt toward dst. It returns false if the
	// substrate refuses the send (airtime/backpressure exhausted), along
	// with the number of milliseconds until it expects to be ready again.
	Send(dst NodeAddr, pkt *WireChatPacket) (ok bool, airtimeRemainingMS int64)
}

// PendingTable is the fixed 4-slot reliable-sender queue described in
// spec.md §4.5. Tick drives the retry/discovery-escalation/give-up state
// machine for every active slot.
type PendingTable struct {
	mu    sync.Mutex
	slots [PendingSlots]PendingSlot
}

// NewPendingTable returns an empty PendingTable.
func NewPendingTable() *PendingTable {
	return &PendingTable{}
}

// RetryDelay computes retry_delay(attempt) = RetryBaseMS*attempt + jitter,
// jitter in [0, JitterWindowMS).
func RetryDelay(attempt int) int64 {
	jitter := rand.Int64N(JitterWindowMS) //nolint:gosec // retry jitter is collision avoidance, not a security boundary
	return RetryBaseMS*int64(attempt) + jitter
}

// Enqueue records pkt as a new pending send to dst, seeded with the given
// initial attempt count (0 or 1, depending on whether a synchronous first
// send already happened) and first retry delay. Returns ErrNoPendingSlot
// if every slot is occupied.
func (p *PendingTable) Enqueue(dst NodeAddr, pkt WireChatPacket, attempts int, nowMS, firstDelayMS int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.slots {
		if !p.slots[i].active {
			state := StateQueued
			if attempts > 0 {
				state = StateAwaitingAck
			}
			p.slots[i] = PendingSlot{
				active:     true,
				dst:        dst,
				attempts:   attempts,
				lastSendMS: nowMS,
				nextSendMS: nowMS + firstDelayMS,
				pkt:        pkt,
				state:      state,
			}
			return nil
		}
	}
	return ErrNoPendingSlot
}

// AckAction is one side effect Tick asks the caller to perform.
type AckAction int

const (
	// ActionNone asks for nothing further.
	ActionNone AckAction = iota
	// ActionSend asks the caller to hand pkt to the radio toward dst.
	ActionSend
	// ActionDiscovery asks the caller to broadcast a Discovery packet.
	ActionDiscovery
	// ActionFailed asks the caller to mark the chat-log entry for
	// (dst, msgID) failed.
	ActionFailed
)

// TickResult is one action Tick produced for a single slot.
type TickResult struct {
	Action AckAction
	Dst    NodeAddr
	MsgID  uint32
	Pkt    WireChatPacket
}

// routeStaleChecker is the subset of RouteHealthTable Tick needs.
type routeStaleChecker interface {
	IsStale(dst NodeAddr, nowMS int64) bool
}

// Tick advances every active slot's state machine one step at time nowMS,
// per the five-step algorithm in spec.md §4.5. It returns the actions the
// caller must perform (radio sends, discovery broadcasts, chat-log
// marks); Tick itself never touches the radio or the chat log.
func (p *PendingTable) Tick(nowMS int64, routes routeStaleChecker) []TickResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	var results []TickResult

	for i := range p.slots {
		s := &p.slots[i]
		if !s.active {
			continue
		}

		// Step 1: stale-route discovery escalation.
		if !s.discoverySent && s.attempts > 0 && nowMS-s.lastSendMS >= staleRouteMinAgeMS && routes.IsStale(s.dst, nowMS) {
			s.discoverySent = true
			s.nextSendMS = nowMS + DiscoveryCooldownMS
			results = append(results, TickResult{Action: ActionDiscovery, Dst: s.dst, MsgID: s.pkt.MsgID})
			dr := ApplyDeliveryEvent(s.state, EventDiscoveryEscalated)
			s.state = dr.NewState
			continue
		}

		// Step 2: unicast cap — attempt discovery escalation once more attempts pile up.
		if s.attempts >= MaxUnicastAttempts && !s.discoverySent {
			if nowMS >= s.nextSendMS {
				s.discoverySent = true
				s.nextSendMS = nowMS + DiscoveryCooldownMS
				results = append(results, TickResult{Action: ActionDiscovery, Dst: s.dst, MsgID: s.pkt.MsgID})
				dr := ApplyDeliveryEvent(s.state, EventDiscoveryEscalated)
				s.state = dr.NewState
			}
			continue
		}

		// Step 3: total cap — give up.
		if s.attempts >= MaxTotalAttempts {
			if nowMS >= s.nextSendMS {
				dst, msgID := s.dst, s.pkt.MsgID
				*s = PendingSlot{}
				results = append(results, TickResult{Action: ActionFailed, Dst: dst, MsgID: msgID})
			}
			continue
		}

		// Step 4: gate.
		if nowMS < s.nextSendMS {
			continue
		}

		// Step 5: send.
		results = append(results, TickResult{Action: ActionSend, Dst: s.dst, MsgID: s.pkt.MsgID, Pkt: s.pkt})
	}

	return results
}

// RecordSendOutcome applies the radio's response to the slot addressed
// by (dst, msgID) after Tick emitted an ActionSend for it: ok=false
// defers the gate by max(airtimeRemainingMS, AirtimeDeferralFloorMS);
// ok=true advances attempts and schedules the next retry.
func (p *PendingTable) RecordSendOutcome(dst NodeAddr, msgID uint32, nowMS int64, ok bool, airtimeRemainingMS int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.slots {
		s := &p.slots[i]
		if !s.active || s.dst != dst || s.pkt.MsgID != msgID {
			continue
		}
		if !ok {
			defer_ := airtimeRemainingMS
			if defer_ < AirtimeDeferralFloorMS {
				defer_ = AirtimeDeferralFloorMS
			}
			s.nextSendMS = nowMS + defer_
			return
		}
		s.attempts++
		s.lastSendMS = nowMS
		s.nextSendMS = nowMS + RetryDelay(s.attempts)
		dr := ApplyDeliveryEvent(s.state, EventRadioAccepted)
		s.state = dr.NewState
		return
	}
}

// HandleAck clears the slot matching (src, refMsgID), if any, reporting
// whether a slot was found. Idempotent across repeated Acks for the same
// message, since a cleared slot no longer matches.
func (p *PendingTable) HandleAck(src NodeAddr, refMsgID uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.slots {
		s := &p.slots[i]
		if s.active && s.dst == src && s.pkt.MsgID == refMsgID {
			*s = PendingSlot{}
			return true
		}
	}
	return false
}

// Snapshot returns a copy of every active slot, for diagnostics/tests.
func (p *PendingTable) Snapshot() []PendingSlot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PendingSlot, 0, len(p.slots))
	for _, s := range p.slots {
		if s.active {
			out = append(out, s)
		}
	}
	return out
}
