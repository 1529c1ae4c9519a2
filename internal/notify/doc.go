// Package notify delivers presence transitions to people and systems.
//
// A Dispatcher turns registry events into Notifications, applies the
// known-device policy and fans each batch out to every configured Notifier.
// Delivery runs after the registry has committed its new beliefs, so a failed
// delivery costs at most one alert and never corrupts state.
package notify
