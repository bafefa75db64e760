// Package logx provides a small structured logging facade over zerolog.
//
// It exposes a value Logger whose zero value is a safe no-op, closure-based
// fields in the spirit of slog.Attr, and an optional token-bucket throttle
// for hot failure paths.
package logx
