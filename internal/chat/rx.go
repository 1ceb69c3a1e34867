package chat

// RxEvent is one inbound observation handed from the receive worker to
// the main loop: a decoded packet plus the radio-reported link quality,
// per spec.md §6.1 (`next_packet()` yields `(src, pkt, rssi, snr)`).
type RxEvent struct {
	Src  NodeAddr
	Pkt  WireChatPacket
	RSSI float64
	SNR  float64
}

// OnReceive implements the exact switch in spec.md §4.4. It is called
// once per inbound packet, always from the main loop (never concurrently
// with itself or with Tick), and may call back into n.radio to send
// Acks, Discoverys, or PairAccepts. A packet whose source is the
// broadcast address is dropped without any further processing.
func (n *Node) OnReceive(ev RxEvent) {
	if ev.Src == BroadcastAddr {
		return
	}
	now := n.clock.NowMS()

	n.seenPeers.Note(ev.Src, now/1000, n.pairing.HasKey(ev.Src))

	switch ev.Pkt.Kind {
	case KindAck:
		if ev.Pkt.To != n.self {
			return
		}
		n.chatLog.MarkDelivered(ev.Src, ev.Pkt.RefMsgID)
		delivered := n.pending.HandleAck(ev.Src, ev.Pkt.RefMsgID)
		n.routeHealth.NoteSuccess(ev.Src, now)
		n.metrics.ObserveAck(ev.Src)
		if delivered {
			n.metrics.ObserveDelivered()
		}

	case KindDiscovery:
		if ev.Pkt.To != n.self && ev.Pkt.To != BroadcastAddr {
			return
		}
		n.sendAck(ev.Src, ev.Pkt.RefMsgID)

	case KindPresence:
		if IsPairBeaconText(ev.Pkt.TextBytes()) {
			n.pairBeacons.Note(ev.Src, now)
		}

	case KindPairRequest:
		n.handlePairRequest(ev.Src, ev.Pkt, now)

	case KindPairAccept:
		n.handlePairAccept(ev.Src, ev.Pkt)

	case KindSecureChat:
		n.handleSecureChat(ev.Src, ev.Pkt, now)

	case KindChat:
		n.handleChat(ev.Src, ev.Pkt, now)
	}
}

// handlePairRequest runs the acceptor path of spec.md §4.3. A duplicate
// request from a peer we already hold a key for reuses the stored key
// (Open Question option (a)) rather than re-deriving, so already
// delivered secure messages remain verifiable under the original key.
func (n *Node) handlePairRequest(src NodeAddr, pkt WireChatPacket, now int64) {
	acceptNonce := n.nextNonce()

	if !n.pairing.HasKey(src) {
		if _, err := n.pairing.DeriveFromRequest(src, pkt.MsgID, pkt.Nonce, acceptNonce); err != nil {
			return
		}
		n.metrics.ObservePairingCompleted()
	}

	reply := WireChatPacket{
		Kind:     KindPairAccept,
		MsgID:    n.nextMsgID(),
		To:       src,
		From:     n.self,
		TS:       uint32(now / 1000),
		RefMsgID: pkt.MsgID,
		Nonce:    acceptNonce,
	}
	n.radio.Send(src, &reply)
}

// handlePairAccept runs the initiator completion path of spec.md §4.3.
func (n *Node) handlePairAccept(src NodeAddr, pkt WireChatPacket) {
	if _, err := n.pairing.ResolvePendingRequest(src, pkt.RefMsgID, pkt.Nonce); err != nil {
		// HandshakeMismatch: drop silently, per spec.md §7.
		return
	}
	n.metrics.ObservePairingCompleted()
}

// handleSecureChat runs the SecureChat branch of spec.md §4.4 step 2,
// including the dedupe policy of step 3.
func (n *Node) handleSecureChat(src NodeAddr, pkt WireChatPacket, now int64) {
	if pkt.To != n.self {
		return
	}

	key, ok := n.pairing.Key(src)
	if !ok {
		n.emitFreshPairRequest(src, now)
		n.chatLog.Add(ChatLogEntry{TS: now, Peer: src, Outgoing: false, Text: "(pairing required)"})
		n.metrics.ObserveNoKey()
		return
	}

	dup := n.dedupe.CheckAndRemember(src, pkt.MsgID)
	if dup {
		n.sendAck(src, pkt.MsgID)
		n.metrics.ObserveDuplicate()
		return
	}

	if err := n.pairing.CheckReplayAndUpdate(src, pkt.MsgID); err != nil {
		n.metrics.ObserveReplayRejected()
		return
	}

	plaintext, err := DecryptText(key[:], src, n.self, pkt.Nonce, pkt.MsgID, pkt.TextBytes())
	if err != nil {
		n.metrics.ObserveDecryptFailed()
		return
	}

	n.chatLog.Add(ChatLogEntry{TS: now, Peer: src, Outgoing: false, MsgID: pkt.MsgID, Text: string(plaintext)})
	n.sendAck(src, pkt.MsgID)
}

// handleChat runs the plaintext Chat branch of spec.md §4.4 step 2,
// including the dedupe policy of step 3.
func (n *Node) handleChat(src NodeAddr, pkt WireChatPacket, now int64) {
	if pkt.To != n.self && pkt.To != BroadcastAddr {
		return
	}

	dup := n.dedupe.CheckAndRemember(src, pkt.MsgID)
	if dup {
		n.sendAck(src, pkt.MsgID)
		n.metrics.ObserveDuplicate()
		return
	}

	n.chatLog.Add(ChatLogEntry{TS: now, Peer: src, Outgoing: false, MsgID: pkt.MsgID, Text: string(pkt.TextBytes())})
	n.sendAck(src, pkt.MsgID)
}

// sendAck unconditionally emits an Ack{ref=refMsgID} toward dst.
func (n *Node) sendAck(dst NodeAddr, refMsgID uint32) {
	ack := WireChatPacket{
		Kind:     KindAck,
		MsgID:    n.nextMsgID(),
		To:       dst,
		From:     n.self,
		TS:       uint32(n.clock.NowMS() / 1000),
		RefMsgID: refMsgID,
	}
	n.radio.Send(dst, &ack)
}

// emitFreshPairRequest sends a PairRequest to dst and records it as
// outstanding, used both by the NoKey recovery path and by send_draft.
func (n *Node) emitFreshPairRequest(dst NodeAddr, now int64) {
	msgID := n.nextMsgID()
	nonce := n.nextNonce()
	req := WireChatPacket{
		Kind:  KindPairRequest,
		MsgID: msgID,
		To:    dst,
		From:  n.self,
		TS:    uint32(now / 1000),
		Nonce: nonce,
	}
	_ = n.pairing.RecordOutgoingRequest(dst, msgID, nonce)
	n.radio.Send(dst, &req)
}
