package chat

import "errors"

// Sentinel errors for the core protocol's recognized error kinds. Transient
// conditions (RadioBusy, NoKey, ReplayRejected, DecryptFailed, Duplicate,
// HandshakeMismatch) are absorbed internally and never reach a caller;
// NoPendingSlot and MaxRetriesExceeded are the two kinds a caller or the
// chat log can observe.
var (
	// ErrNoPendingSlot indicates all pending-send slots were occupied at
	// send time. The caller-visible compose failure.
	ErrNoPendingSlot = errors.New("chat: no pending send slot available")

	// ErrMaxRetriesExceeded indicates a pending slot exhausted its total
	// attempt budget without receiving an Ack.
	ErrMaxRetriesExceeded = errors.New("chat: max retries exceeded")

	// ErrNoKey indicates a SecureChat arrived from a peer with no
	// established pairwise key.
	ErrNoKey = errors.New("chat: no pairwise key for peer")

	// ErrReplayRejected indicates a SecureChat msg_id did not strictly
	// exceed the peer's replay watermark.
	ErrReplayRejected = errors.New("chat: replay rejected")

	// ErrDecryptFailed indicates the AES-CTR transform reported failure.
	ErrDecryptFailed = errors.New("chat: decrypt failed")

	// ErrHandshakeMismatch indicates a PairAccept referenced no outstanding
	// pair request.
	ErrHandshakeMismatch = errors.New("chat: pair accept matches no outstanding request")

	// ErrInvalidKey indicates a key is not structurally valid (wrong length).
	ErrInvalidKey = errors.New("chat: invalid key")

	// ErrTextTooLong indicates a text payload exceeds MaxTextLen.
	ErrTextTooLong = errors.New("chat: text exceeds maximum length")

	// ErrNoOutstandingRequest indicates no free outstanding-request slot
	// was available to record a new outgoing pair request.
	ErrNoOutstandingRequest = errors.New("chat: no outstanding pair request slot available")
)
