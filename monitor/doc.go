// Package monitor contains the resilient client for the game server's
// monitor port.
//
// The upstream speaks a newline-delimited text protocol with no framing
// beyond sentinel lines: activity arrives in repeated blocks bounded by a
// "begin" line and an "end" line. Each interior line's first token selects
// the event kind:
//
//   - player <name>      counted toward the block's population
//   - chat <line>        parsed and relayed to the public sink
//   - email <header> ... tab-prefixed body lines up to an "endemail" line
//
// A Session owns one connection at a time. It reconnects forever on a fixed
// delay, keeps its line buffer across reconnects, and degrades every failure
// to a logged warning; nothing on this path terminates the process.
package monitor
