// Package ir provides the intermediate representation consumed by the
// proc-network interpreter.
//
// This package contains the value model, the type model and the network
// description (channels, procs, dataflow nodes). All other internal packages
// import ir; ir imports nothing internal. This keeps the IR the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - Values are immutable once constructed; constructors copy their inputs
//   - Bits values are at most 64 bits wide and always masked to their width
//   - Node operations form a closed set (see Op); new kinds are added here,
//     never by callers
//   - Declaration order of channels, procs and nodes is preserved everywhere
//     because the scheduler relies on it for deterministic evaluation
package ir
