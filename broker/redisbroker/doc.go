// Package redisbroker implements the broker capability against a Redis
// backend, reconstructing workers, tasks, and queues that Redis itself does
// not represent: the backend only offers named lists, keys, hashes, and
// sets, and everything above that is convention.
//
// # Redis Key Schema
//
// The conventions decoded by this package (established by Celery/kombu):
//   - <queue> - list of task envelopes, one per queued message
//   - celery-task-meta-<id> - result record for a finished task
//   - unacked - hash of reserved (actively executing) envelopes
//   - _kombu.binding.<exchange> - set of routing-key/queue binding records
//   - revoked - set of task ids marked as cancelled
//
// An envelope is an outer JSON framing with headers (task name, id, origin)
// and properties (routing), wrapping an encoded body that carries the
// positional and keyword arguments, base64 over JSON by convention, though
// either encoding may appear at either layer depending on protocol version,
// and both message protocol v1 and v2 are accepted.
//
// # Reconstruction Caveats
//
// Workers are inferred entirely from task evidence (reserved envelopes and
// result records); a worker with no activity inside the heartbeat window is
// indistinguishable from an offline one. Consumer counts are best-effort
// and may be zero. These are properties of the backend, not defects of the
// decoder.
//
// Revocation is likewise cooperative: RevokeTask records the id in the
// shared revoked set, which workers consult before executing. It cannot
// stop a task a worker has already dequeued, and is therefore weaker than
// a control-plane broadcast.
//
// # Failure Policy
//
// Entries that fail to decode are skipped and counted, never fatal to the
// surrounding fetch. Whole-operation failures (unreachable broker, timeout)
// are returned as broker.Error values with KindConnection or KindTimeout.
package redisbroker
