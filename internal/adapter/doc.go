// Package adapter implements the network scanners that feed the presence
// registry.
//
// A Scanner performs one discovery round per call and returns every device it
// could identify by MAC address. Two backends exist:
//
// ArpScanAdapter shells out to arp-scan and parses its tab-separated output.
// It sees every device on the local segment that answers ARP, which includes
// phones in power-save mode that ignore ICMP.
//
// NmapAdapter runs an nmap host discovery scan (-sn) over configured targets.
// nmap only reports MAC addresses for hosts on the local segment, and only when
// it has raw socket privileges.
//
// Malformed records are logged and skipped. A failed scan is returned as an
// error and must not be read as an empty network.
package adapter
