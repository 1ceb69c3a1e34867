package chat

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"

	"github.com/meshwire/meshnode/internal/store"
)

// pairingSalt is the fixed HKDF salt for pairwise key derivation. It has
// no secrecy requirement; it exists only to domain-separate this
// derivation from any other use of the same KDF.
const pairingSalt = "meshchat-pairing-v1"

// keyNamespace and replayNamespace are the store.KV key prefixes this
// store persists under.
const (
	keyNamespace     = "pair/"
	replayNamespace  = "rplay/"
)

// outstandingRequest is one in-flight outgoing PairRequest this node is
// waiting on a PairAccept for.
type outstandingRequest struct {
	active bool
	peer   NodeAddr
	msgID  uint32
	nonce  uint32
}

// PairingStore holds the persistent pairwise-key and replay-watermark
// maps plus the volatile outstanding-request table, per spec.md §4.3.
// The key and replay maps are backed by store.KV so they survive a
// restart; the outstanding-request table is intentionally volatile — an
// in-flight handshake that is interrupted by a restart is simply retried
// by the user.
type PairingStore struct {
	mu   sync.Mutex
	self NodeAddr
	kv   store.KV

	keys            map[NodeAddr][KeySize]byte
	lastSecureMsgID map[NodeAddr]uint32
	outstanding     [OutstandingPairRequests]outstandingRequest
}

// NewPairingStore loads any persisted keys and replay watermarks from kv
// for a node whose own address is self.
func NewPairingStore(self NodeAddr, kv store.KV) (*PairingStore, error) {
	ps := &PairingStore{
		self:            self,
		kv:              kv,
		keys:            make(map[NodeAddr][KeySize]byte),
		lastSecureMsgID: make(map[NodeAddr]uint32),
	}

	keyKeys, err := kv.Keys(keyNamespace)
	if err != nil {
		return nil, fmt.Errorf("pairing store: list %s: %w", keyNamespace, err)
	}
	for _, k := range keyKeys {
		peer, err := parseAddrSuffix(k, keyNamespace)
		if err != nil {
			continue
		}
		raw, err := kv.Get(k)
		if err != nil || len(raw) != KeySize {
			continue
		}
		var key [KeySize]byte
		copy(key[:], raw)
		ps.keys[peer] = key
	}

	replayKeys, err := kv.Keys(replayNamespace)
	if err != nil {
		return nil, fmt.Errorf("pairing store: list %s: %w", replayNamespace, err)
	}
	for _, k := range replayKeys {
		peer, err := parseAddrSuffix(k, replayNamespace)
		if err != nil {
			continue
		}
		raw, err := kv.Get(k)
		if err != nil || len(raw) != 4 {
			continue
		}
		ps.lastSecureMsgID[peer] = binary.BigEndian.Uint32(raw)
	}

	return ps, nil
}

func parseAddrSuffix(key, prefix string) (NodeAddr, error) {
	if len(key) <= len(prefix) {
		return 0, fmt.Errorf("pairing store: malformed key %q", key)
	}
	var n uint32
	if _, err := fmt.Sscanf(key[len(prefix):], "%d", &n); err != nil {
		return 0, fmt.Errorf("pairing store: malformed key %q: %w", key, err)
	}
	return NodeAddr(n), nil
}

func addrKey(prefix string, addr NodeAddr) string {
	return fmt.Sprintf("%s%d", prefix, addr)
}

// Key returns the established pairwise key for peer, if any.
func (ps *PairingStore) Key(peer NodeAddr) ([KeySize]byte, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	k, ok := ps.keys[peer]
	return k, ok
}

// HasKey reports whether a pairwise key is established for peer.
func (ps *PairingStore) HasKey(peer NodeAddr) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	_, ok := ps.keys[peer]
	return ok
}

// storeKeyLocked persists key for peer to both the in-memory map and kv.
// Caller must hold ps.mu.
func (ps *PairingStore) storeKeyLocked(peer NodeAddr, key [KeySize]byte) error {
	ps.keys[peer] = key
	if err := ps.kv.Set(addrKey(keyNamespace, peer), key[:]); err != nil {
		return fmt.Errorf("pairing store: persist key for %d: %w", peer, err)
	}
	return nil
}

// RecordOutgoingRequest records a fresh outgoing PairRequest to peer in
// the outstanding-request table, taking the first free slot or, when
// every slot is in use, overwriting slot 0. Mirrors spec.md §4.3's
// "insert/replace" semantics: a second request to the same peer replaces
// its own slot rather than consuming a second one.
func (ps *PairingStore) RecordOutgoingRequest(peer NodeAddr, msgID, nonce uint32) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for i := range ps.outstanding {
		if ps.outstanding[i].active && ps.outstanding[i].peer == peer {
			ps.outstanding[i] = outstandingRequest{active: true, peer: peer, msgID: msgID, nonce: nonce}
			return nil
		}
	}
	for i := range ps.outstanding {
		if !ps.outstanding[i].active {
			ps.outstanding[i] = outstandingRequest{active: true, peer: peer, msgID: msgID, nonce: nonce}
			return nil
		}
	}
	// All slots occupied by distinct peers: overwrite slot 0. A bounded
	// table with no free slots is treated as a cheap eviction rather than
	// a hard failure, since a stuck handshake is retried by the user.
	ps.outstanding[0] = outstandingRequest{active: true, peer: peer, msgID: msgID, nonce: nonce}
	return nil
}

// deriveKey computes K = HKDF-SHA256(ikm = initiator||acceptor||reqMsgID||
// reqNonce||acceptNonce, salt = pairingSalt), truncated to KeySize bytes.
// Both the initiator and the acceptor call this with the SAME (initiator,
// acceptor) addresses regardless of which side they are, so the byte
// material — and therefore the derived key — is identical on both ends.
func deriveKey(initiator, acceptor NodeAddr, reqMsgID, reqNonce, acceptNonce uint32) [KeySize]byte {
	ikm := make([]byte, 0, 2+2+4+4+4)
	var buf4 [4]byte
	var buf2 [2]byte

	binary.BigEndian.PutUint16(buf2[:], uint16(initiator))
	ikm = append(ikm, buf2[:]...)
	binary.BigEndian.PutUint16(buf2[:], uint16(acceptor))
	ikm = append(ikm, buf2[:]...)
	binary.BigEndian.PutUint32(buf4[:], reqMsgID)
	ikm = append(ikm, buf4[:]...)
	binary.BigEndian.PutUint32(buf4[:], reqNonce)
	ikm = append(ikm, buf4[:]...)
	binary.BigEndian.PutUint32(buf4[:], acceptNonce)
	ikm = append(ikm, buf4[:]...)

	r := hkdf.New(sha256.New, ikm, []byte(pairingSalt), nil)
	var key [KeySize]byte
	if _, err := io.ReadFull(r, key[:]); err != nil {
		// hkdf.New with SHA-256 can supply far more than KeySize bytes;
		// ReadFull over a fixed, valid Reader cannot fail in practice.
		panic(fmt.Sprintf("pairing: hkdf read: %v", err))
	}
	return key
}

// DeriveFromRequest is the acceptor path: called on receiving a
// PairRequest from peer carrying reqMsgID/reqNonce. acceptNonce is freshly
// chosen by the acceptor. The derived key is stored under peer and
// returned so the caller can send the PairAccept.
//
// A duplicate PairRequest from the same peer re-derives and re-sends a
// PairAccept reusing the PREVIOUSLY stored accept nonce would require
// remembering it; instead this store implements Option (a) from spec.md
// §4.3 by having the caller detect the duplicate (an existing key already
// present for peer) and resend without calling DeriveFromRequest again,
// so the stored key — and every secure message already exchanged under
// it — remains valid.
func (ps *PairingStore) DeriveFromRequest(peer NodeAddr, reqMsgID, reqNonce, acceptNonce uint32) ([KeySize]byte, error) {
	key := deriveKey(peer, ps.self, reqMsgID, reqNonce, acceptNonce)

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if err := ps.storeKeyLocked(peer, key); err != nil {
		return key, err
	}
	return key, nil
}

// ResolvePendingRequest is the initiator completion path: called on
// receiving a PairAccept with refMsgID/acceptNonce from peer. It matches
// refMsgID against the outstanding-request table, derives the identical
// key, stores it, and clears the outstanding record. Returns
// ErrHandshakeMismatch if no outstanding request matches.
func (ps *PairingStore) ResolvePendingRequest(peer NodeAddr, refMsgID, acceptNonce uint32) ([KeySize]byte, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	slot := -1
	for i := range ps.outstanding {
		if ps.outstanding[i].active && ps.outstanding[i].peer == peer && ps.outstanding[i].msgID == refMsgID {
			slot = i
			break
		}
	}
	if slot < 0 {
		var zero [KeySize]byte
		return zero, ErrHandshakeMismatch
	}

	req := ps.outstanding[slot]
	key := deriveKey(ps.self, peer, req.msgID, req.nonce, acceptNonce)
	if err := ps.storeKeyLocked(peer, key); err != nil {
		return key, err
	}
	ps.outstanding[slot] = outstandingRequest{}
	return key, nil
}

// CheckReplayAndUpdate reports whether msgID strictly exceeds the
// recorded watermark for peer (accepting it and advancing the watermark)
// or is a replay (rejecting it, watermark unchanged).
func (ps *PairingStore) CheckReplayAndUpdate(peer NodeAddr, msgID uint32) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	last, ok := ps.lastSecureMsgID[peer]
	if ok && msgID <= last {
		return ErrReplayRejected
	}

	ps.lastSecureMsgID[peer] = msgID
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], msgID)
	if err := ps.kv.Set(addrKey(replayNamespace, peer), buf[:]); err != nil {
		return fmt.Errorf("pairing store: persist replay watermark for %d: %w", peer, err)
	}
	return nil
}
