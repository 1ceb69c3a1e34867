package chat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// -------------------------------------------------------------------------
// Wire layout constants
// -------------------------------------------------------------------------

// HeaderSize is the fixed size of a WireChatPacket in bytes: kind(1) +
// msg_id(4) + to(2) + from(2) + ts(4) + ref_msg_id(4) + nonce(4) +
// text_len(2) + reserved(1) + text(96).
const HeaderSize = 1 + 4 + 2 + 2 + 4 + 4 + 4 + 2 + 1 + MaxTextLen

const (
	offKind      = 0
	offMsgID     = 1
	offTo        = 5
	offFrom      = 7
	offTS        = 9
	offRefMsgID  = 13
	offNonce     = 17
	offTextLen   = 21
	offReserved  = 23
	offText      = 24
)

// NodeAddr is a 16-bit mesh node address. 0xFFFF is the broadcast address;
// 0 means unassigned.
type NodeAddr uint16

// String formats a as a 4-digit hex mesh address, e.g. "0x002a".
func (a NodeAddr) String() string {
	return fmt.Sprintf("0x%04x", uint16(a))
}

// Kind tags a WireChatPacket's role. Wire values are stable and MUST NOT
// be renumbered.
type Kind uint8

const (
	KindChat        Kind = 0
	KindAck         Kind = 1
	KindDiscovery   Kind = 2
	KindPresence    Kind = 3
	KindPairRequest Kind = 4
	KindPairAccept  Kind = 5
	KindSecureChat  Kind = 6
)

var kindNames = [...]string{
	KindChat:        "Chat",
	KindAck:         "Ack",
	KindDiscovery:   "Discovery",
	KindPresence:    "Presence",
	KindPairRequest: "PairRequest",
	KindPairAccept:  "PairAccept",
	KindSecureChat:  "SecureChat",
}

// String returns the human-readable name of the packet kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(k))
}

// -------------------------------------------------------------------------
// Codec errors
// -------------------------------------------------------------------------

var (
	// ErrPacketTooShort indicates the buffer is shorter than HeaderSize.
	ErrPacketTooShort = errors.New("chat: packet too short")

	// ErrTextLenOverflow indicates text_len exceeds MaxTextLen.
	ErrTextLenOverflow = errors.New("chat: text_len exceeds maximum")

	// ErrBufTooSmall indicates a marshal destination buffer is undersized.
	ErrBufTooSmall = errors.New("chat: buffer too small for wire packet")
)

// -------------------------------------------------------------------------
// WireChatPacket
// -------------------------------------------------------------------------

// WireChatPacket is the decoded form of the fixed 120-byte on-wire record.
type WireChatPacket struct {
	Kind      Kind
	MsgID     uint32
	To        NodeAddr
	From      NodeAddr
	TS        uint32
	RefMsgID  uint32
	Nonce     uint32
	TextLen   uint16
	Text      [MaxTextLen]byte
}

// SetText copies p into the packet's text buffer and sets TextLen.
// Returns ErrTextTooLong if p exceeds MaxTextLen.
func (w *WireChatPacket) SetText(p []byte) error {
	if len(p) > MaxTextLen {
		return ErrTextTooLong
	}
	w.TextLen = uint16(len(p))
	n := copy(w.Text[:], p)
	for i := n; i < MaxTextLen; i++ {
		w.Text[i] = 0
	}
	return nil
}

// TextBytes returns the slice of Text actually in use.
func (w *WireChatPacket) TextBytes() []byte {
	return w.Text[:w.TextLen]
}

// ExpectsAck reports whether this kind of packet drives an Ack response
// when successfully accepted by its destination.
func (w *WireChatPacket) ExpectsAck() bool {
	switch w.Kind {
	case KindChat, KindSecureChat:
		return true
	default:
		return false
	}
}

// -------------------------------------------------------------------------
// Marshal / Unmarshal
// -------------------------------------------------------------------------

// MarshalWireChatPacket encodes pkt into buf, which must be at least
// HeaderSize bytes. All integers are little-endian, per the wire format.
func MarshalWireChatPacket(pkt *WireChatPacket, buf []byte) (int, error) {
	if len(buf) < HeaderSize {
		return 0, fmt.Errorf("marshal wire packet: need %d bytes, got %d: %w",
			HeaderSize, len(buf), ErrBufTooSmall)
	}
	if pkt.TextLen > MaxTextLen {
		return 0, fmt.Errorf("marshal wire packet: text_len %d: %w", pkt.TextLen, ErrTextLenOverflow)
	}

	buf[offKind] = uint8(pkt.Kind)
	binary.LittleEndian.PutUint32(buf[offMsgID:], pkt.MsgID)
	binary.LittleEndian.PutUint16(buf[offTo:], uint16(pkt.To))
	binary.LittleEndian.PutUint16(buf[offFrom:], uint16(pkt.From))
	binary.LittleEndian.PutUint32(buf[offTS:], pkt.TS)
	binary.LittleEndian.PutUint32(buf[offRefMsgID:], pkt.RefMsgID)
	binary.LittleEndian.PutUint32(buf[offNonce:], pkt.Nonce)
	binary.LittleEndian.PutUint16(buf[offTextLen:], pkt.TextLen)
	buf[offReserved] = 0
	copy(buf[offText:offText+MaxTextLen], pkt.Text[:])

	return HeaderSize, nil
}

// UnmarshalWireChatPacket decodes buf into pkt. buf must contain at least
// HeaderSize bytes; trailing bytes are ignored.
func UnmarshalWireChatPacket(buf []byte, pkt *WireChatPacket) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("unmarshal wire packet: received %d bytes, need %d: %w",
			len(buf), HeaderSize, ErrPacketTooShort)
	}

	pkt.Kind = Kind(buf[offKind])
	pkt.MsgID = binary.LittleEndian.Uint32(buf[offMsgID:])
	pkt.To = NodeAddr(binary.LittleEndian.Uint16(buf[offTo:]))
	pkt.From = NodeAddr(binary.LittleEndian.Uint16(buf[offFrom:]))
	pkt.TS = binary.LittleEndian.Uint32(buf[offTS:])
	pkt.RefMsgID = binary.LittleEndian.Uint32(buf[offRefMsgID:])
	pkt.Nonce = binary.LittleEndian.Uint32(buf[offNonce:])
	pkt.TextLen = binary.LittleEndian.Uint16(buf[offTextLen:])

	if pkt.TextLen > MaxTextLen {
		return fmt.Errorf("unmarshal wire packet: text_len %d: %w", pkt.TextLen, ErrTextLenOverflow)
	}
	copy(pkt.Text[:], buf[offText:offText+MaxTextLen])

	return nil
}

// -------------------------------------------------------------------------
// PacketPool — reusable wire buffers
// -------------------------------------------------------------------------

// PacketPool provides reusable HeaderSize-byte buffers for packet I/O, the
// same sync.Pool-of-*[]byte shape used to avoid interface allocation on
// Get/Put.
var PacketPool = sync.Pool{
	New: func() any {
		buf := make([]byte, HeaderSize)
		return &buf
	},
}
