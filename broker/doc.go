// Package broker defines the capability contract every broker backend must
// satisfy, the connection options shared by all backends, and the error
// taxonomy surfaced to callers.
//
// # Capability
//
// Broker is the polymorphism boundary between backends. The Redis backend
// (package redisbroker) implements the full contract by decoding Celery's
// wire conventions out of generic list/key/set primitives; the AMQP backend
// (package amqpbroker) is a stub that satisfies the same contract and
// reports every operation as unsupported.
//
// The three fetch operations are independent reads: each may fail on its
// own without blocking the others, which is what allows the refresh loop
// to publish partial results. The three mutations (retry, revoke, purge)
// may be issued concurrently with an in-flight fetch cycle on the same
// connection; their effect is guaranteed visible only after the next
// completed cycle.
//
// # Errors
//
// Operations return *Error values carrying an operation name and a kind
// (connection, timeout, decode, not_found, unsupported, validation,
// internal). Sentinel errors such as ErrTaskNotFound work with errors.Is
// through any level of wrapping.
package broker
