// Package room implements the single shared movebox room.
//
// A Room owns one Position and an insertion-ordered roster of Sessions. Every
// mutation (connect, move, disconnect) holds the room mutex while it reads the
// state, changes it, and enqueues the resulting event on each recipient's
// outbound queue, so every session observes events in the order they were
// applied. Writing those queues to the network is left to the transport.
package room
