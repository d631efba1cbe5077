// Package snapshot publishes read-only depth views of the book.
//
// The engine captures a Depth after every command that changes the book
// and swaps it into a Store. Readers load the current pointer and never
// touch the live book, so queries need neither locks nor a trip through
// the engine loop. A Depth is immutable once published.
package snapshot
