// Package repository defines the persistence interface for device presence
// state.
//
// Persistence is optional. Without it the daemon starts cold: the first scan
// seeds the registry silently and every window must refill before the
// classifier leaves its immature fallback. With it, beliefs and sample
// histories survive restarts and classification continues where it stopped.
//
// The sqlite subpackage implements StateStore on a single SQLite file using
// the pure-Go modernc.org/sqlite driver.
package repository
