// Package dataref tracks dataref subscriptions and their latest values.
//
// The Registry maps small integer slot ids to dataref names. Permanent
// subscriptions occupy a dense range starting at 0, in subscription order.
// One-shot synchronous queries use slot ids at or above OneShotBase; the two
// ranges are disjoint at all times, which is what lets a receive loop route
// one inbound packet stream to two different consumers without collisions.
//
// The Cache holds the most recent value and receive time per subscribed
// name. It follows a single-writer discipline: the engine's receive loop is
// the only mutator, any caller may read concurrently.
package dataref
