// Package radio provides concrete, swappable implementations of
// chat.RadioHandle: the capability set spec.md §6.1 specifies for the
// physical-layer radio substrate, which is explicitly out of this
// system's scope. Memory is an in-process bus double for tests and
// simulation; UDP is a best-effort broadcast/unicast transport standing
// in for the LoRa/mesh driver a real deployment would supply.
//
// Neither type implements multi-hop routing, RF scheduling, or link
// quality estimation — those remain the physical substrate's job.
package radio
