// Package service runs the presence monitor.
//
// Monitor owns the device registry and drives one cycle per scan interval:
// scan, reconcile, persist, notify, report. Belief changes are committed
// before any delivery starts. Scan failures skip the cycle entirely, so an
// unreachable scanner never looks like every device leaving the network.
//
// # Event System
//
// EventBus fans monitor activity out to in-process subscribers, chiefly the
// SSE hub. BusNotifier plugs the bus into the notification dispatcher so web
// clients see the same transitions as the other notifiers.
package service
