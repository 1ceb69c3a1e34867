// Package chat implements the reliable, deduplicated, authenticated
// direct-message protocol that runs on a radio-mesh node.
//
// It owns packet taxonomy and wire codec, the send queue with retry and
// discovery escalation, the receive-side dedupe and replay window,
// pairwise key establishment over a two-message handshake, per-destination
// route-health tracking, and presence/beacon advertisement. Everything
// outside this protocol core — the physical radio, display/input, and
// persistent settings — is consumed through the RadioHandle and
// store.KV interfaces, never reached directly.
package chat
