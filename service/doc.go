// Package service runs the order book behind a single goroutine.
//
// Engine is the only write entry point: every command (limit, market,
// cancel, and the read-through queries) is queued to the engine loop,
// applied to the book in arrival order, stamped with a sequence number,
// recorded as execution reports and followed by a fresh depth snapshot.
// Transports, simulators and tests all go through it.
package service
