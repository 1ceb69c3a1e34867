package chatmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/meshwire/meshnode/internal/chat"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "meshnode"
	subsystem = "chat"
)

// Label names for mesh-chat metrics.
const (
	labelPeerAddr = "peer_addr"
	labelKind     = "kind"
)

// -------------------------------------------------------------------------
// Collector — Prometheus mesh-chat metrics
// -------------------------------------------------------------------------

// Collector holds all mesh-chat Prometheus metrics.
//
// Metrics are designed for a field-deployed mesh:
//   - Packet counters track sends by kind and peer.
//   - Delivery counters track the end-to-end Ack/retry/give-up outcome.
//   - Pairing and dedupe/replay counters flag protocol-level anomalies.
type Collector struct {
	// PacketsSent counts the retransmissions the pending queue hands to
	// the radio, by kind and destination peer, whether or not the radio
	// accepts them. First sends and control packets (Ack, PairRequest,
	// PairAccept, Presence, Discovery) are not counted.
	PacketsSent *prometheus.CounterVec

	// Acks counts Ack packets received, by sending peer.
	Acks *prometheus.CounterVec

	// Delivered counts messages whose Ack was observed before the
	// pending slot was given up on.
	Delivered prometheus.Counter

	// Failed counts messages that exhausted MaxTotalAttempts without an
	// Ack.
	Failed prometheus.Counter

	// DiscoveryEscalations counts Discovery probes the pending queue
	// broadcasts, either for a stale route or after MaxUnicastAttempts
	// unicast sends went unacknowledged.
	DiscoveryEscalations prometheus.Counter

	// Duplicates counts inbound packets recognized by the dedupe window
	// and re-acked without being re-delivered to the chat log.
	Duplicates prometheus.Counter

	// ReplayRejected counts inbound SecureChat packets whose msg_id did
	// not exceed the peer's replay watermark.
	ReplayRejected prometheus.Counter

	// DecryptFailed counts inbound SecureChat packets for which the
	// AES-CTR transform under the peer's derived key returned an error.
	DecryptFailed prometheus.Counter

	// NoKey counts inbound SecureChat packets received from a peer with
	// no completed pairing, triggering a fresh PairRequest.
	NoKey prometheus.Counter

	// PairingCompleted counts successful pairing handshakes, counted
	// once on each side (acceptor on PairRequest, initiator on
	// PairAccept).
	PairingCompleted prometheus.Counter
}

// NewCollector creates a Collector with all mesh-chat metrics registered
// against the provided prometheus.Registerer. If reg is nil,
// prometheus.DefaultRegisterer is used.
//
// All metrics are created with the "meshnode_chat_" prefix
// (namespace_subsystem) to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.PacketsSent,
		c.Acks,
		c.Delivered,
		c.Failed,
		c.DiscoveryEscalations,
		c.Duplicates,
		c.ReplayRejected,
		c.DecryptFailed,
		c.NoKey,
		c.PairingCompleted,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	sendLabels := []string{labelKind, labelPeerAddr}
	peerLabels := []string{labelPeerAddr}

	return &Collector{
		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_sent_total",
			Help:      "Total pending-queue retransmission attempts, by kind and destination peer.",
		}, sendLabels),

		Acks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "acks_received_total",
			Help:      "Total Ack packets received, by sending peer.",
		}, peerLabels),

		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "delivered_total",
			Help:      "Total messages acknowledged before their pending slot was given up on.",
		}),

		Failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "failed_total",
			Help:      "Total messages that exhausted their retry budget without an Ack.",
		}),

		DiscoveryEscalations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "discovery_escalations_total",
			Help:      "Total Discovery broadcasts triggered by a stale route or unicast retry exhaustion.",
		}),

		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duplicates_total",
			Help:      "Total inbound packets recognized by the dedupe window.",
		}),

		ReplayRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "replay_rejected_total",
			Help:      "Total SecureChat packets rejected for failing the replay watermark check.",
		}),

		DecryptFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "decrypt_failed_total",
			Help:      "Total SecureChat packets that failed decryption under the peer's derived key.",
		}),

		NoKey: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "no_key_total",
			Help:      "Total SecureChat packets received from an unpaired peer.",
		}),

		PairingCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pairing_completed_total",
			Help:      "Total pairing handshakes completed (counted on both acceptor and initiator).",
		}),
	}
}

// -------------------------------------------------------------------------
// chat.chatMetrics implementation
// -------------------------------------------------------------------------
//
// Every method below is exported so Collector can satisfy the observation
// interface internal/chat declares: unexported method names are not
// matchable across package boundaries, so the interface there names
// these same methods capitalized.

// ObserveAck records an Ack received from peer.
func (c *Collector) ObserveAck(peer chat.NodeAddr) {
	c.Acks.WithLabelValues(peer.String()).Inc()
}

// ObserveSend records a pending-queue retransmission of kind toward peer.
func (c *Collector) ObserveSend(kind chat.Kind, peer chat.NodeAddr) {
	c.PacketsSent.WithLabelValues(kind.String(), peer.String()).Inc()
}

// ObserveDuplicate records a dedupe-window hit.
func (c *Collector) ObserveDuplicate() { c.Duplicates.Inc() }

// ObserveReplayRejected records a replay-watermark rejection.
func (c *Collector) ObserveReplayRejected() { c.ReplayRejected.Inc() }

// ObserveDecryptFailed records a failed SecureChat decryption.
func (c *Collector) ObserveDecryptFailed() { c.DecryptFailed.Inc() }

// ObserveNoKey records a SecureChat packet from an unpaired peer.
func (c *Collector) ObserveNoKey() { c.NoKey.Inc() }

// ObservePairingCompleted records a completed pairing handshake.
func (c *Collector) ObservePairingCompleted() { c.PairingCompleted.Inc() }

// ObserveDiscoveryEscalation records a Discovery broadcast triggered by
// a stale route or retry exhaustion.
func (c *Collector) ObserveDiscoveryEscalation() { c.DiscoveryEscalations.Inc() }

// ObserveDelivered records a message acknowledged before give-up.
func (c *Collector) ObserveDelivered() { c.Delivered.Inc() }

// ObserveFailed records a message that exhausted its retry budget.
func (c *Collector) ObserveFailed() { c.Failed.Inc() }
