// Package logger wraps zap with a global sugared console logger and
// context helpers (ToContext, FromContext, WithName, WithKV).
//
// Services take a context and pull the logger from it, so names and fields
// attached at the edge (process, request, topic) follow the call down.
package logger
