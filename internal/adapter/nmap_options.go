package adapter

import "time"

// NmapOption is a functional option for configuring NmapAdapter
type NmapOption func(*NmapAdapter)

// WithTimeout sets the timeout for the entire nmap scan
func WithTimeout(d time.Duration) NmapOption {
	return func(n *NmapAdapter) {
		n.timeout = d
	}
}

// WithTargets sets or replaces the target list
func WithTargets(targets []string) NmapOption {
	return func(n *NmapAdapter) {
		n.targets = targets
	}
}

// WithInterface pins the scan to one network interface (-e)
func WithInterface(iface string) NmapOption {
	return func(n *NmapAdapter) {
		n.iface = iface
	}
}

// WithPrivileged tells nmap it may use raw sockets (--privileged).
// Needed for MAC addresses when running with capabilities instead of root.
func WithPrivileged(enabled bool) NmapOption {
	return func(n *NmapAdapter) {
		n.privileged = enabled
	}
}

// WithDNSResolution enables reverse DNS lookups, off by default
func WithDNSResolution(enabled bool) NmapOption {
	return func(n *NmapAdapter) {
		n.resolveDNS = enabled
	}
}
