// Package gatt describes a GATT peripheral's object hierarchy and the handler
// contract that binds each node to application data.
//
// A Tree is built once with a Builder and never changes afterwards. Services
// own characteristics, characteristics own descriptors, and every node has a
// path segment that is unique among its siblings, so "battery/level" names
// exactly one characteristic.
//
// Characteristics and descriptors may carry up to four handlers:
//
//   - ReadHandler answers a peer read with exactly one reply.
//   - WriteHandler consumes a peer write and replies exactly once, with an
//     empty reply when there is nothing to return.
//   - UpdateHandler runs whenever the bound value may have changed and sends
//     change notifications to subscribers.
//   - EventHandler runs on a fixed tick cadence.
//
// The Invoke functions run a handler against an Env and enforce the reply
// rules; transports never call handlers directly but go through a Dispatcher.
package gatt
