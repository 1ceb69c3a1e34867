package chat

import "sync"

// RouteHealthEntry tracks per-destination delivery freshness, per
// spec.md §3.
type RouteHealthEntry struct {
	active          bool
	dst             NodeAddr
	successStreak   uint32
	lastAckMS       int64
	lastDiscoveryMS int64
}

// RouteHealthTable is a bounded table of RouteHealthEntry, reused by
// least-recent-freshness when full.
type RouteHealthTable struct {
	mu      sync.Mutex
	entries []RouteHealthEntry
}

// NewRouteHealthTable returns a table holding at least capacity entries.
func NewRouteHealthTable(capacity int) *RouteHealthTable {
	if capacity < 1 {
		capacity = 1
	}
	return &RouteHealthTable{entries: make([]RouteHealthEntry, capacity)}
}

// findLocked returns the index of dst's entry, or -1. Caller holds mu.
func (t *RouteHealthTable) findLocked(dst NodeAddr) int {
	for i := range t.entries {
		if t.entries[i].active && t.entries[i].dst == dst {
			return i
		}
	}
	return -1
}

// reuseSlotLocked picks a slot for a new destination: an inactive slot if
// one exists, else the slot with the least recent freshness timestamp.
func (t *RouteHealthTable) reuseSlotLocked() int {
	for i := range t.entries {
		if !t.entries[i].active {
			return i
		}
	}
	oldest := 0
	oldestFreshness := freshnessOf(t.entries[0])
	for i := 1; i < len(t.entries); i++ {
		f := freshnessOf(t.entries[i])
		if f < oldestFreshness {
			oldest = i
			oldestFreshness = f
		}
	}
	return oldest
}

func freshnessOf(e RouteHealthEntry) int64 {
	if e.lastAckMS > e.lastDiscoveryMS {
		return e.lastAckMS
	}
	return e.lastDiscoveryMS
}

// NoteSuccess records a successful Ack from dst at time nowMS, creating
// the entry if necessary and incrementing its success streak.
func (t *RouteHealthTable) NoteSuccess(dst NodeAddr, nowMS int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.findLocked(dst)
	if idx < 0 {
		idx = t.reuseSlotLocked()
		t.entries[idx] = RouteHealthEntry{active: true, dst: dst}
	}
	t.entries[idx].successStreak++
	t.entries[idx].lastAckMS = nowMS
}

// NoteDiscovery records a discovery probe sent toward dst at time nowMS.
func (t *RouteHealthTable) NoteDiscovery(dst NodeAddr, nowMS int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.findLocked(dst)
	if idx < 0 {
		idx = t.reuseSlotLocked()
		t.entries[idx] = RouteHealthEntry{active: true, dst: dst}
	}
	t.entries[idx].lastDiscoveryMS = nowMS
}

// IsStale reports whether dst's route is stale at time nowMS: an entry
// exists but neither an Ack nor a Discovery has been observed within
// RouteFreshnessMS. A destination with no entry at all is treated as
// fresh, not stale — it simply hasn't been evaluated yet, and the stale-
// route escalation in the pending queue's Tick is meant to catch a route
// that went bad mid-flight, not to flood every brand-new destination
// with an immediate discovery broadcast.
func (t *RouteHealthTable) IsStale(dst NodeAddr, nowMS int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.findLocked(dst)
	if idx < 0 {
		return false
	}
	return nowMS-freshnessOf(t.entries[idx]) > RouteFreshnessMS
}

// Snapshot returns a copy of every active entry, for a UI consumer.
func (t *RouteHealthTable) Snapshot() []RouteHealthEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RouteHealthEntry, 0, len(t.entries))
	for _, e := range t.entries {
		if e.active {
			out = append(out, e)
		}
	}
	return out
}
