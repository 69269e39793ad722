// Package client implements the protocol engine for one simulator host.
//
// A Client owns the UDP transport, the subscription registry, the
// latest-value cache and the pending-query table for its lifetime. One
// background goroutine runs the receive loop; everything else executes on
// the caller's path.
//
// The receive loop demultiplexes a single inbound packet stream into two
// consumption modes: streamed subscription updates flow into the value
// cache, one-shot query replies are handed off to the blocked caller. The
// two cannot collide because permanent subscriptions and one-shot queries
// draw slot ids from disjoint ranges (see package dataref).
//
//	updates, err := client.New(client.Options{Host: "127.0.0.1", Port: 49000})
//	...
//	updates.SubscribeDatarefs(
//	    client.SubscriptionSpec{Name: "sim/flightmodel/position/y_agl", FrequencyHz: 10},
//	)
//	entry, _ := updates.Dataref("sim/flightmodel/position/y_agl")
//
// Datagram loss is never retried: a lost one-shot reply surfaces as a
// timeout, a lost stream update as a stale cache timestamp.
package client
