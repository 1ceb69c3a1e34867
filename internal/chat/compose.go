package chat

// SendDraft implements send_draft of spec.md §4.7: encrypt-and-enqueue if
// a pairwise key already exists for dst, otherwise kick off pairing and
// leave it to the user to re-send once paired.
func (n *Node) SendDraft(dst NodeAddr, text string) error {
	if len(text) > MaxTextLen {
		return ErrTextTooLong
	}

	now := n.clock.NowMS()

	if n.pairing.HasKey(dst) {
		return n.sendSecure(dst, text, now)
	}

	n.emitFreshPairRequest(dst, now)
	n.chatLog.Add(ChatLogEntry{TS: now, Peer: dst, Outgoing: true, Text: "(pairing started, resend after pairing completes)"})
	return nil
}

// sendSecure implements send_secure of spec.md §4.7: build and encrypt a
// SecureChat, attempt a synchronous send, then unconditionally record the
// message as pending so the reliable sender retries it regardless of
// whether the synchronous attempt succeeded.
func (n *Node) sendSecure(dst NodeAddr, text string, now int64) error {
	key, ok := n.pairing.Key(dst)
	if !ok {
		return ErrNoKey
	}

	msgID := n.nextMsgID()
	nonce := n.nextNonce()

	cipherText, textLen, err := EncryptText(key[:], n.self, dst, nonce, msgID, []byte(text))
	if err != nil {
		return err
	}

	pkt := WireChatPacket{
		Kind:    KindSecureChat,
		MsgID:   msgID,
		To:      dst,
		From:    n.self,
		TS:      uint32(now / 1000),
		Nonce:   nonce,
		TextLen: textLen,
		Text:    cipherText,
	}

	attempts := 0
	if ok, _ := n.radio.Send(dst, &pkt); ok {
		attempts = 1
	}

	firstDelay := RetryDelay(1)
	if err := n.pending.Enqueue(dst, pkt, attempts, now, firstDelay); err != nil {
		n.chatLog.Add(ChatLogEntry{TS: now, Peer: dst, Outgoing: true, MsgID: msgID, Failed: true, Text: text})
		return err
	}

	n.chatLog.Add(ChatLogEntry{TS: now, Peer: dst, Outgoing: true, MsgID: msgID, Text: text})
	return nil
}
