package chat

import (
	"bytes"
	"errors"
	"testing"
)

func TestHeaderSizeIsFixed120Bytes(t *testing.T) {
	t.Parallel()
	if HeaderSize != 120 {
		t.Fatalf("HeaderSize = %d, want 120", HeaderSize)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	t.Parallel()

	pkt := WireChatPacket{
		Kind:     KindSecureChat,
		MsgID:    42,
		To:       7,
		From:     3,
		TS:       1_700_000_000,
		RefMsgID: 0,
		Nonce:    99,
	}
	if err := pkt.SetText([]byte("hello mesh")); err != nil {
		t.Fatalf("SetText: %v", err)
	}

	buf := make([]byte, HeaderSize)
	n, err := MarshalWireChatPacket(&pkt, buf)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if n != HeaderSize {
		t.Fatalf("Marshal returned n=%d, want %d", n, HeaderSize)
	}

	var out WireChatPacket
	if err := UnmarshalWireChatPacket(buf, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if out.Kind != pkt.Kind || out.MsgID != pkt.MsgID || out.To != pkt.To ||
		out.From != pkt.From || out.TS != pkt.TS || out.Nonce != pkt.Nonce {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, pkt)
	}
	if !bytes.Equal(out.TextBytes(), []byte("hello mesh")) {
		t.Fatalf("TextBytes = %q, want %q", out.TextBytes(), "hello mesh")
	}
}

func TestSetTextRejectsOverflow(t *testing.T) {
	t.Parallel()

	var pkt WireChatPacket
	oversized := make([]byte, MaxTextLen+1)
	if err := pkt.SetText(oversized); err != ErrTextTooLong {
		t.Fatalf("SetText(oversized) error = %v, want ErrTextTooLong", err)
	}
}

func TestUnmarshalRejectsShortBuffer(t *testing.T) {
	t.Parallel()

	var pkt WireChatPacket
	if err := UnmarshalWireChatPacket(make([]byte, HeaderSize-1), &pkt); !errors.Is(err, ErrPacketTooShort) {
		t.Fatalf("Unmarshal(short) error = %v, want ErrPacketTooShort", err)
	}
}

func TestExpectsAck(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind Kind
		want bool
	}{
		{KindChat, true},
		{KindSecureChat, true},
		{KindAck, false},
		{KindDiscovery, false},
		{KindPresence, false},
		{KindPairRequest, false},
		{KindPairAccept, false},
	}
	for _, tc := range cases {
		pkt := WireChatPacket{Kind: tc.kind}
		if got := pkt.ExpectsAck(); got != tc.want {
			t.Errorf("Kind(%v).ExpectsAck() = %v, want %v", tc.kind, got, tc.want)
		}
	}
}

func TestKindStringKnownAndUnknown(t *testing.T) {
	t.Parallel()

	if got := KindChat.String(); got != "Chat" {
		t.Errorf("KindChat.String() = %q, want %q", got, "Chat")
	}
	if got := Kind(200).String(); got == "" {
		t.Errorf("Kind(200).String() returned empty string")
	}
}

func TestPacketPoolReturnsRightSizedBuffer(t *testing.T) {
	t.Parallel()

	bufPtr := PacketPool.Get().(*[]byte)
	defer PacketPool.Put(bufPtr)
	if len(*bufPtr) != HeaderSize {
		t.Fatalf("pooled buffer length = %d, want %d", len(*bufPtr), HeaderSize)
	}
}
