package chat

import "sync"

// PresenceEngine drives the periodic Presence and pair-beacon broadcasts
// described in spec.md §4.6. It holds only the two "last sent" timestamps
// and the current pairing-broadcast mode; building and sending the actual
// packets is the caller's job (via the booleans PresenceTick and
// PairBeaconTick return), keeping this type radio-agnostic.
type PresenceEngine struct {
	mu             sync.Mutex
	lastPresenceMS int64
	lastBeaconMS   int64
	broadcastMode  bool
}

// NewPresenceEngine returns a PresenceEngine with broadcast pairing mode
// initially disabled. Both "last sent" timestamps start one interval
// before time 0, so the first PresenceTick (and, once broadcast mode is
// on, the first PairBeaconTick) at nowMS >= 0 reports due.
func NewPresenceEngine() *PresenceEngine {
	return &PresenceEngine{
		lastPresenceMS: -PresenceIntervalMS,
		lastBeaconMS:   -PairBeaconIntervalMS,
	}
}

// SetBroadcastMode enables or disables pair-beacon emission. The UI turns
// this on while the user is actively advertising for pairing.
func (p *PresenceEngine) SetBroadcastMode(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcastMode = on
}

// PresenceTick reports whether a general Presence broadcast is due at
// nowMS, per PresenceIntervalMS, and advances the internal timestamp if
// so.
func (p *PresenceEngine) PresenceTick(nowMS int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if nowMS-p.lastPresenceMS < PresenceIntervalMS {
		return false
	}
	p.lastPresenceMS = nowMS
	return true
}

// PairBeaconTick reports whether a pair-beacon broadcast is due at nowMS:
// broadcast mode must be on and PairBeaconIntervalMS must have elapsed
// since the last one.
func (p *PresenceEngine) PairBeaconTick(nowMS int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.broadcastMode {
		return false
	}
	if nowMS-p.lastBeaconMS < PairBeaconIntervalMS {
		return false
	}
	p.lastBeaconMS = nowMS
	return true
}

// PairBeaconEntry is one rendezvous beacon observed while listening for
// peers to pair with, per spec.md §4.6's Listen-mode join list.
type PairBeaconEntry struct {
	active bool
	Addr   NodeAddr
	SeenMS int64
}

// PairBeaconTable is the bounded join-list the Listen UI renders,
// populated by pair-beacons observed on RX.
type PairBeaconTable struct {
	mu      sync.Mutex
	entries []PairBeaconEntry
}

// NewPairBeaconTable returns a table holding at least capacity entries.
func NewPairBeaconTable(capacity int) *PairBeaconTable {
	if capacity < 1 {
		capacity = 1
	}
	return &PairBeaconTable{entries: make([]PairBeaconEntry, capacity)}
}

// Note records a pair-beacon observed from addr at nowMS.
func (t *PairBeaconTable) Note(addr NodeAddr, nowMS int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if t.entries[i].active && t.entries[i].Addr == addr {
			t.entries[i].SeenMS = nowMS
			return
		}
	}
	idx := -1
	for i := range t.entries {
		if !t.entries[i].active {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = 0
		for i := 1; i < len(t.entries); i++ {
			if t.entries[i].SeenMS < t.entries[idx].SeenMS {
				idx = i
			}
		}
	}
	t.entries[idx] = PairBeaconEntry{active: true, Addr: addr, SeenMS: nowMS}
}

// Snapshot returns a copy of every active beacon entry.
func (t *PairBeaconTable) Snapshot() []PairBeaconEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PairBeaconEntry, 0, len(t.entries))
	for _, e := range t.entries {
		if e.active {
			out = append(out, e)
		}
	}
	return out
}

// IsPairBeaconText reports whether text carries the well-known
// pair-beacon marker. A dedicated sub-kind byte would be strictly safer;
// this literal-prefix scheme is kept for wire compatibility with the
// existing Presence kind.
func IsPairBeaconText(text []byte) bool {
	if len(text) < len(PairBeaconTag) {
		return false
	}
	return string(text[:len(PairBeaconTag)]) == PairBeaconTag
}
