// Package handler implements the HTTP status API.
//
// PresenceHandler serves device snapshots, inventory exports and a scan
// trigger on top of the running monitor. The SSE hub is mounted on /events.
// Middleware provides panic recovery, CORS and request logging.
package handler
