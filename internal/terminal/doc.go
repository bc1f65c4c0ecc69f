// Package terminal turns raw process output into stable display lines.
//
// # Why Normalizer Exists
//
// Backend scripts write to a pseudo terminal, so the chunks streamed back over
// a session carry everything a terminal would interpret: ANSI colour and
// cursor sequences, carriage returns used to redraw progress bars, spinner
// frames and lines split across chunk boundaries. Appending those chunks
// verbatim produces unreadable logs, so every session owns a Normalizer that
// applies the subset of terminal semantics that matters for a log view:
//
//   - ANSI escape sequences are removed, including sequences split across
//     two chunks.
//   - A carriage return rewinds the in-progress line; the next printable
//     character overwrites it instead of appending.
//   - A newline finalises the in-progress line.
//   - Single-character spinner frames (`-`, `\`, `|`, `/`) never become lines.
//
// Finalised lines are kept in a bounded buffer with monotonically increasing
// sequence numbers so readers can tail a session incrementally.
//
// A Normalizer belongs to exactly one session and is never shared.
package terminal
