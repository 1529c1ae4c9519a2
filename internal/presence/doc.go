// Package presence is the connectivity engine: it turns a noisy stream of
// "seen this round" samples into a debounced online/offline belief per device.
//
// SampleWindow keeps the bounded history of one device. Classifier maps a
// history and the prior belief to a new belief using one of three regimes
// (sparse, intermittent, always-on) picked from the device's base rate; it
// prefers to keep the current belief unless the evidence is strong. Registry
// reconciles each scan round against known devices and emits an Event for
// every belief flip and every first sighting.
//
// Devices are never evicted from the registry.
package presence
