// Package discovery finds simulator hosts on the local network.
//
// Hosts announce themselves by multicasting a BECN beacon about once per
// second to 239.255.1.1:49707. Listening on that group for a few seconds
// is enough to enumerate every running instance, including the UDP port
// each one accepts protocol traffic on.
package discovery
