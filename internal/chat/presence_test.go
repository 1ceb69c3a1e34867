package chat

import "testing"

func TestPresenceTickFiresOnIntervalOnly(t *testing.T) {
	t.Parallel()

	p := NewPresenceEngine()
	if !p.PresenceTick(0) {
		t.Fatalf("first PresenceTick = false, want true")
	}
	if p.PresenceTick(PresenceIntervalMS - 1) {
		t.Fatalf("PresenceTick before interval elapsed = true, want false")
	}
	if !p.PresenceTick(PresenceIntervalMS) {
		t.Fatalf("PresenceTick at interval boundary = false, want true")
	}
}

func TestPairBeaconTickRequiresBroadcastMode(t *testing.T) {
	t.Parallel()

	p := NewPresenceEngine()
	if p.PairBeaconTick(0) {
		t.Fatalf("PairBeaconTick with broadcast mode off = true, want false")
	}

	p.SetBroadcastMode(true)
	if !p.PairBeaconTick(0) {
		t.Fatalf("first PairBeaconTick with broadcast mode on = false, want true")
	}
	if p.PairBeaconTick(PairBeaconIntervalMS - 1) {
		t.Fatalf("PairBeaconTick before interval elapsed = true, want false")
	}
	if !p.PairBeaconTick(PairBeaconIntervalMS) {
		t.Fatalf("PairBeaconTick at interval boundary = false, want true")
	}

	p.SetBroadcastMode(false)
	if p.PairBeaconTick(PairBeaconIntervalMS * 10) {
		t.Fatalf("PairBeaconTick after broadcast mode disabled = true, want false")
	}
}

func TestPairBeaconTableNoteUpdatesAndEvicts(t *testing.T) {
	t.Parallel()

	pb := NewPairBeaconTable(2)
	pb.Note(1, 100)
	pb.Note(2, 200)
	pb.Note(1, 300) // refresh dst 1, now the most recently seen

	snap := pb.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() = %+v, want 2 entries", snap)
	}

	pb.Note(3, 400) // must evict dst 2 (least recently seen)
	snap = pb.Snapshot()
	seen := map[NodeAddr]int64{}
	for _, e := range snap {
		seen[e.Addr] = e.SeenMS
	}
	if _, ok := seen[2]; ok {
		t.Fatalf("addr 2 should have been evicted, snapshot = %+v", snap)
	}
	if seen[1] != 300 || seen[3] != 400 {
		t.Fatalf("unexpected snapshot contents = %+v", snap)
	}
}

func TestIsPairBeaconText(t *testing.T) {
	t.Parallel()

	if !IsPairBeaconText([]byte("PAIR_BEACON")) {
		t.Fatalf("exact tag not recognized")
	}
	if !IsPairBeaconText([]byte("PAIR_BEACON:node-7")) {
		t.Fatalf("tag with suffix not recognized")
	}
	if IsPairBeaconText([]byte("hello")) {
		t.Fatalf("unrelated text recognized as pair beacon")
	}
	if IsPairBeaconText([]byte("PAIR_BEAC")) {
		t.Fatalf("truncated tag recognized as pair beacon")
	}
}
