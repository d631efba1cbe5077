// Package memory holds allocation helpers shared by the order book.
//
// The book recycles the linked-list nodes of its price-level queues
// through Pool. Orders themselves are plain values and are never
// pooled, so nothing handed to a caller can be reused underneath it.
package memory
