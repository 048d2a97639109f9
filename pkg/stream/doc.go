// Package stream provides the asynchronous value streams the convoy pipeline
// is built on, and the operators used to compose them.
//
// A Stream is pull-based: the consumer calls Next until it returns io.EOF (normal
// completion) or another error (failure). Close detaches the consumer and releases
// every resource the stream holds, transitively. Next must not be called from more
// than one goroutine at a time; Close may be called from any goroutine and unblocks
// a pending Next, which then returns ErrClosed.
//
// Plugin authors return a Source, a sum of the three shapes a result naturally
// takes:
//
//	stream.Eager(resp)                      // a value that is already known
//	stream.Deferred(func(ctx) (T, error))   // a value that will be known later
//	stream.Streaming(s)                     // zero, one or many values over time
//
// From normalizes any Source into a Stream so that the rest of the system works
// with a single abstraction.
//
// Streams built from values that are already materialized (Of, and Map, Tap,
// Defer or Then over such streams) can be drained without blocking. Merge and
// Share take that fast path so that a synchronous source publishes its values
// before any sibling source is engaged.
package stream
