// Package orderbook implements a single-symbol limit order book.
//
// Each side of the book is an OrderSide: a red-black tree keyed by price
// whose values are OrderQueues, the FIFO of resting orders at that price.
// OrderBook composes a bid side and an ask side with an order-id index and
// routes market and limit orders to the opposite side for matching under
// price-time priority.
//
// The package is single-writer and does no I/O. Callers that share a book
// between goroutines must serialize every call, reads included.
package orderbook
