// Package web implements the HTTP surface using the Echo framework.
//
// Routes: GET / (status page), GET /status (JSON polled by the page),
// POST /action (form field cmd), GET /health/live and GET /metrics.
// POST /action always answers with a redirect to the page; rejected commands
// are only logged.
package web
