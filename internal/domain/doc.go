// Package domain defines the value types shared by every lanwatch component.
//
// # Core Types
//
// MACAddress is the stable device identifier. It is validated and normalized
// at construction; a malformed address is an error, never silently coerced.
//
// Device is a single scan observation (MAC, IPv4 address, vendor label). The
// presence engine replaces the stored device wholesale on every sighting, so
// address and vendor may change without losing the device's history.
//
// # Design Principles
//
// - Immutable value objects
// - No database or external dependencies
// - Validation at the boundary, so downstream code can trust its inputs
package domain
