// Package logging provides structured logging for Gray Gate.
//
// It wraps the standard library's log/slog with configuration-driven
// format/level selection and default service fields. Domain packages do not
// depend on this package directly; they declare a minimal Logger interface
// (Debug/Info/Warn/Error) that *logging.Logger satisfies.
package logging
