// Package engine implements the proc network interpreter.
//
// An Engine is one interpreter session over an ir.Network. It owns a
// QueueManager holding one ChannelQueue per channel and one runner per
// proc. Callers drive it with the run-control operations Tick,
// TickUntilOutput and TickUntilBlocked.
//
// ARCHITECTURE:
//
// Rounds:
// A round attempts one tick of every proc. Procs are swept in declaration
// order; procs that blocked are swept again while the previous sweep made
// progress, so a value written by a later proc can still unblock an earlier
// one within the same round. A round in which no proc makes progress while
// some proc is blocked is a deadlock.
//
// Ticks:
// A proc tick evaluates the proc's nodes in a fixed topological order.
// Receives and sends commit at most once per tick: their results are
// memoised in the proc's in-flight tick record, so a tick that blocked and
// is retried later re-evaluates from the saved state without repeating
// channel effects. Writes committed before a block stay delivered. State
// advances only when every node has been evaluated.
//
// CRITICAL PATTERNS:
//
// Single-threaded execution:
// An Engine is driven from one goroutine. Queues take no locks. Separate
// engines share nothing and may run in parallel.
//
// Logical clock:
// Every channel event is stamped with a monotonic seq from the engine's
// clock, never a wall-clock timestamp. Replaying the recorded external
// inputs of a run reproduces the same events in the same order.
package engine
