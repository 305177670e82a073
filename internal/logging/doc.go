// Package logging wires log/slog with the console and JSON handlers used
// across streamhalt, plus small attribute helpers so call sites stay terse.
package logging
