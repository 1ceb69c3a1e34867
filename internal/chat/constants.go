package chat

// -------------------------------------------------------------------------
// Compile-time resource caps
// -------------------------------------------------------------------------

const (
	// PendingSlots is the number of fixed in-flight outbound message slots.
	PendingSlots = 4

	// DedupeCapacity is the minimum number of recently observed (src, msg_id)
	// pairs the dedupe window remembers.
	DedupeCapacity = 24

	// SeenPeerCapacity is the minimum number of tracked seen peers.
	SeenPeerCapacity = 8

	// RouteHealthCapacity is the minimum number of tracked route-health entries.
	RouteHealthCapacity = 6

	// PairBeaconCapacity is the minimum number of tracked pair beacons.
	PairBeaconCapacity = 6

	// ChatLogCapacity is the minimum number of retained chat-log entries.
	ChatLogCapacity = 30

	// OutstandingPairRequests is the number of outstanding outgoing pair
	// requests tracked at once.
	OutstandingPairRequests = 4

	// MaxTextLen is the hard cap on payload bytes per packet.
	MaxTextLen = 96
)

// -------------------------------------------------------------------------
// Timing constants
// -------------------------------------------------------------------------

const (
	// PresenceIntervalMS is the minimum spacing between general Presence broadcasts.
	PresenceIntervalMS int64 = 30_000

	// PairBeaconIntervalMS is the minimum spacing between pair-beacon broadcasts.
	PairBeaconIntervalMS int64 = 5_000

	// RetryBaseMS is the linear coefficient of the retry backoff formula.
	RetryBaseMS int64 = 2_500

	// JitterWindowMS bounds the non-deterministic component of retry backoff.
	JitterWindowMS int64 = 600

	// MaxUnicastAttempts is the attempt count at which a single discovery
	// escalation is made, if no discovery has been sent for the slot yet.
	MaxUnicastAttempts = 3

	// MaxTotalAttempts is the attempt count at which a pending slot is freed
	// and its chat-log entry marked failed.
	MaxTotalAttempts = 5

	// DiscoveryCooldownMS is the deferral applied after a discovery broadcast.
	DiscoveryCooldownMS int64 = 5_000

	// RouteFreshnessMS is how recently a destination must have produced an
	// Ack or consumed a Discovery to be considered fresh.
	RouteFreshnessMS int64 = 45_000

	// AirtimeDeferralFloorMS is the minimum deferral applied after the radio
	// refuses a send for airtime-budget reasons.
	AirtimeDeferralFloorMS int64 = 1_200

	// staleRouteMinAgeMS is the minimum time since the last send before a
	// slot is eligible for stale-route discovery escalation.
	staleRouteMinAgeMS int64 = 2_000
)

// BroadcastAddr is the reserved destination meaning "every node."
const BroadcastAddr NodeAddr = 0xFFFF

// UnassignedAddr is the reserved value meaning "no address issued yet."
const UnassignedAddr NodeAddr = 0

// PairBeaconTag is the well-known literal text prefix that marks a
// Presence packet as a pairing rendezvous beacon rather than a general
// presence advertisement. A dedicated sub-kind byte would be strictly
// safer, but this scheme is kept for wire compatibility.
const PairBeaconTag = "PAIR_BEACON"
