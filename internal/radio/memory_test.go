package radio_test

import (
	"context"
	"testing"
	"time"

	"github.com/meshwire/meshnode/internal/chat"
	"github.com/meshwire/meshnode/internal/radio"
)

func TestMemorySendDeliversToMatchingDestination(t *testing.T) {
	t.Parallel()

	bus := radio.NewBus()
	a := radio.NewMemory(1, bus)
	b := radio.NewMemory(2, bus)
	c := radio.NewMemory(3, bus)

	pkt := chat.WireChatPacket{Kind: chat.KindChat, MsgID: 1, To: 2, From: 1}
	ok, airtime := a.Send(2, &pkt)
	if !ok || airtime != 0 {
		t.Fatalf("Send = (%v, %d), want (true, 0)", ok, airtime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	ev, err := b.Recv(ctx)
	if err != nil {
		t.Fatalf("b.Recv: %v", err)
	}
	if ev.Src != 1 || ev.Pkt.MsgID != 1 {
		t.Fatalf("b received %+v, want src=1 msg_id=1", ev)
	}

	shortCtx, shortCancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer shortCancel()
	if _, err := c.Recv(shortCtx); err == nil {
		t.Fatalf("c (not the destination) unexpectedly received a packet")
	}
}

func TestMemorySendBroadcastReachesEveryOtherNode(t *testing.T) {
	t.Parallel()

	bus := radio.NewBus()
	a := radio.NewMemory(1, bus)
	b := radio.NewMemory(2, bus)
	c := radio.NewMemory(3, bus)

	pkt := chat.WireChatPacket{Kind: chat.KindPresence, MsgID: 1, To: chat.BroadcastAddr, From: 1}
	if ok, _ := a.Send(chat.BroadcastAddr, &pkt); !ok {
		t.Fatalf("broadcast Send returned ok=false")
	}

	for _, m := range []*radio.Memory{b, c} {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		_, err := m.Recv(ctx)
		cancel()
		if err != nil {
			t.Fatalf("expected broadcast to reach every non-sender: %v", err)
		}
	}

	shortCtx, shortCancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer shortCancel()
	if _, err := a.Recv(shortCtx); err == nil {
		t.Fatalf("sender a unexpectedly received its own broadcast")
	}
}

func TestMemoryRefuseNextFailsThenRecovers(t *testing.T) {
	t.Parallel()

	bus := radio.NewBus()
	a := radio.NewMemory(1, bus)
	_ = radio.NewMemory(2, bus)

	a.RefuseNext = 1
	a.RefuseAirtimeMS = 2500

	pkt := chat.WireChatPacket{Kind: chat.KindChat, MsgID: 1, To: 2, From: 1}
	ok, airtime := a.Send(2, &pkt)
	if ok || airtime != 2500 {
		t.Fatalf("first Send = (%v, %d), want (false, 2500)", ok, airtime)
	}

	ok, _ = a.Send(2, &pkt)
	if !ok {
		t.Fatalf("second Send = (%v, _), want (true, _) once RefuseNext is consumed", ok)
	}
}

func TestMemoryRecvUnblocksOnContextCancel(t *testing.T) {
	t.Parallel()

	bus := radio.NewBus()
	a := radio.NewMemory(1, bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := a.Recv(ctx)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("Recv returned nil error after context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatalf("Recv did not unblock after context cancellation")
	}
}

func TestMemoryCountersTrackSendsAndReceives(t *testing.T) {
	t.Parallel()

	bus := radio.NewBus()
	a := radio.NewMemory(1, bus)
	b := radio.NewMemory(2, bus)

	pkt := chat.WireChatPacket{Kind: chat.KindChat, MsgID: 1, To: 2, From: 1}
	a.Send(2, &pkt)
	a.Send(2, &pkt)

	if a.TxCount() != 2 {
		t.Fatalf("a.TxCount() = %d, want 2", a.TxCount())
	}
	if b.RxCount() != 2 {
		t.Fatalf("b.RxCount() = %d, want 2", b.RxCount())
	}
	if a.LocalAddress() != 1 || b.LocalAddress() != 2 {
		t.Fatalf("LocalAddress mismatch: a=%d b=%d", a.LocalAddress(), b.LocalAddress())
	}
}
